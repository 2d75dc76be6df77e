package validate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000

	MaxClaimBatch = 100

	DefaultStuckThreshold = 5 * time.Minute
)

// Limit parses an optional ?limit= value.
func Limit(raw string) (int, error) {
	if raw == "" {
		return DefaultLimit, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errs.NewValidation("limit", "must be a positive number")
	}
	if n > MaxLimit {
		return 0, errs.NewValidation("limit", fmt.Sprintf("must not exceed %d", MaxLimit))
	}

	return n, nil
}

// Time parses an optional RFC 3339 query value.
func Time(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errs.NewValidation(field, "must be an RFC 3339 timestamp")
	}

	return &t, nil
}

// EventTypes splits a comma separated ?type= value.
func EventTypes(raw string) []entity.EventType {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	types := make([]entity.EventType, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			types = append(types, entity.EventType(p))
		}
	}

	return types
}
