package persistent

import "strings"

func clampLimit(limit int) uint64 {
	if limit <= 0 {
		return _defaultListLimit
	}
	if limit > _maxListLimit {
		return _maxListLimit
	}
	return uint64(limit)
}

func returning(columns []string) string {
	return "RETURNING " + strings.Join(columns, ", ")
}
