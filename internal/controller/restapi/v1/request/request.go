package request

import (
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
)

type Ingest struct {
	Items []dto.IngestItem `json:"items"`
}

type CreateProposal struct {
	EventID                  string                  `json:"eventId"`
	CreatedBy                entity.CreatedBy        `json:"createdBy"`
	Rationale                string                  `json:"rationale"`
	Options                  []entity.ProposalOption `json:"options"`
	RequiresExternalApprover bool                    `json:"requiresExternalApprover"`
	Approver                 *string                 `json:"approver,omitempty"`
	TokenTTLSeconds          *int                    `json:"tokenTtlSeconds,omitempty"`
	AutoApply                bool                    `json:"autoApply"`
	IdempotencyKey           *string                 `json:"idempotencyKey,omitempty"`
}

func (r CreateProposal) DTO(tenantID string) dto.CreateProposal {
	in := dto.CreateProposal{
		TenantID:                 tenantID,
		EventID:                  r.EventID,
		CreatedBy:                r.CreatedBy,
		Rationale:                r.Rationale,
		Options:                  r.Options,
		RequiresExternalApprover: r.RequiresExternalApprover,
		Approver:                 r.Approver,
		AutoApply:                r.AutoApply,
		IdempotencyKey:           r.IdempotencyKey,
	}
	if r.TokenTTLSeconds != nil {
		ttl := time.Duration(*r.TokenTTLSeconds) * time.Second
		in.TokenTTL = &ttl
	}

	return in
}

type Decide struct {
	Actor             string           `json:"actor"`
	Decision          entity.Decision  `json:"decision"`
	ChosenOptionIndex *int             `json:"chosenOptionIndex,omitempty"`
	AlternateSlot     *entity.TimeSlot `json:"alternateSlot,omitempty"`
	Comment           *string          `json:"comment,omitempty"`
	Token             *string          `json:"token,omitempty"`
}

func (r Decide) DTO(tenantID, proposalID string) dto.Decide {
	return dto.Decide{
		TenantID:          tenantID,
		ProposalID:        proposalID,
		Actor:             r.Actor,
		Decision:          r.Decision,
		ChosenOptionIndex: r.ChosenOptionIndex,
		AlternateSlot:     r.AlternateSlot,
		Comment:           r.Comment,
		Token:             r.Token,
	}
}

type ClaimEvents struct {
	TenantID *string            `json:"tenantId,omitempty"`
	Types    []entity.EventType `json:"types,omitempty"`
	Limit    int                `json:"limit"`
}

type EventRef struct {
	TenantID string `json:"tenantId"`
}

type CompleteEvent struct {
	TenantID         string                  `json:"tenantId"`
	ProcessingStatus entity.ProcessingStatus `json:"processingStatus"`
	Proposal         *CreateProposal         `json:"proposal,omitempty"`
}

type FailEvent struct {
	TenantID string `json:"tenantId"`
	Error    string `json:"error"`
}

type ClaimOutbox struct {
	Limit int `json:"limit"`
}

type FailNotification struct {
	Error string `json:"error"`
}

// Queue selects which lease queue a maintenance call touches; empty means both.
type Queue string

const (
	QueueEvents        Queue = "events"
	QueueNotifications Queue = "notifications"
)

type ResetStuck struct {
	Queue            Queue `json:"queue,omitempty"`
	ThresholdSeconds int   `json:"thresholdSeconds"`
}

type RetryFailed struct {
	Queue    Queue   `json:"queue,omitempty"`
	TenantID *string `json:"tenantId,omitempty"`
}

type ExportAudit struct {
	TenantID string    `json:"tenantId"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
}
