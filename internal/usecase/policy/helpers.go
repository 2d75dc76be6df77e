package policy

import "time"

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
