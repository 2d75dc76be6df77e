package entity

import (
	"encoding/json"
	"time"
)

// Event is one immutable fact of the tenant's log. Only the processing fields
// (ProcessingStatus, ErrorInfo, ClaimedAt, ProcessedAt) change after insert.
type Event struct {
	ID               string           `json:"id"`
	TenantID         string           `json:"tenant_id"`
	Type             EventType        `json:"type"`
	SchemaVersion    int              `json:"schema_version"`
	Payload          json.RawMessage  `json:"payload"`
	OccurredAt       time.Time        `json:"occurred_at"`
	IdempotencyKey   *string          `json:"idempotency_key,omitempty"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	ErrorInfo        *string          `json:"error_info,omitempty"`
	ClaimedAt        *time.Time       `json:"claimed_at,omitempty"`
	ProcessedAt      *time.Time       `json:"processed_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}
