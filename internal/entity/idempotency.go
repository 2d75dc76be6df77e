package entity

import "time"

const IdempotencyTTL = 24 * time.Hour

type IdempotencyRecord struct {
	TenantID     string    `json:"tenant_id"`
	Key          string    `json:"key"`
	CachedResult []byte    `json:"cached_result"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
