package dto

import (
	"encoding/json"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
)

// AppendEvent is one write to the event log. Exactly one of Raw and Payload is set:
// Raw comes from outside and is schema-checked, Payload is built in-process.
type AppendEvent struct {
	TenantID       string
	Type           entity.EventType
	Raw            json.RawMessage
	Payload        entity.Payload
	StatusOverride *entity.ProcessingStatus
	IdempotencyKey *string
	OccurredAt     *time.Time
}

type IngestItem struct {
	Type             entity.EventType         `json:"type"`
	Payload          json.RawMessage          `json:"payload"`
	OccurredAt       *time.Time               `json:"occurredAt,omitempty"`
	IdempotencyKey   *string                  `json:"idempotencyKey,omitempty"`
	ProcessingStatus *entity.ProcessingStatus `json:"processingStatus,omitempty"`
}

// IngestResult is what the ledger caches per item, so its encoding must be deterministic.
type IngestResult struct {
	EventID          string                  `json:"eventId,omitempty"`
	Type             entity.EventType        `json:"type"`
	ProcessingStatus entity.ProcessingStatus `json:"processingStatus,omitempty"`
	OccurredAt       *time.Time              `json:"occurredAt,omitempty"`
	RecordID         string                  `json:"recordId,omitempty"`
	TombstoneID      string                  `json:"tombstoneId,omitempty"`
}

type EventFilter struct {
	TenantID string
	Types    []entity.EventType
	Status   *entity.ProcessingStatus
	From     *time.Time
	To       *time.Time
	Limit    int
}

type ClaimFilter struct {
	TenantID *string
	Types    []entity.EventType
}

// EventOutcome is posted back by the reasoning engine for a claimed event.
type EventOutcome struct {
	Status   entity.ProcessingStatus
	Proposal *CreateProposal
}

type AuditExport struct {
	Key        string    `json:"key"`
	EventCount int       `json:"eventCount"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
}
