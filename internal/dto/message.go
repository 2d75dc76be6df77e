package dto

import (
	"encoding/json"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
)

// NotificationMessage is what delivery services receive for one outbox row.
type NotificationMessage struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenantId"`
	Channel    string          `json:"channel"`
	To         string          `json:"to"`
	TemplateID string          `json:"templateId"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
}

func NewNotificationMessage(n *entity.OutboxNotification) NotificationMessage {
	return NotificationMessage{
		ID:         n.ID,
		TenantID:   n.TenantID,
		Channel:    n.Channel,
		To:         n.To,
		TemplateID: n.TemplateID,
		Payload:    n.Payload,
		Attempt:    n.Attempts,
	}
}

// DispatchMessage hands one claimed event to the reasoning engine.
type DispatchMessage struct {
	EventID       string           `json:"eventId"`
	TenantID      string           `json:"tenantId"`
	Type          entity.EventType `json:"type"`
	SchemaVersion int              `json:"schemaVersion"`
	Payload       json.RawMessage  `json:"payload"`
	OccurredAt    time.Time        `json:"occurredAt"`
}

func NewDispatchMessage(e *entity.Event) DispatchMessage {
	return DispatchMessage{
		EventID:       e.ID,
		TenantID:      e.TenantID,
		Type:          e.Type,
		SchemaVersion: e.SchemaVersion,
		Payload:       e.Payload,
		OccurredAt:    e.OccurredAt,
	}
}

// ConnectorMessage is one record pushed by a calendar connector onto the ingest topic.
type ConnectorMessage struct {
	TenantID string       `json:"tenantId"`
	Items    []IngestItem `json:"items"`
}

// ApprovalRequest is the outbox body of an approval request. Token is empty at
// rest and filled in when the row is claimed.
type ApprovalRequest struct {
	ProposalID string                  `json:"proposalId"`
	EventID    string                  `json:"eventId"`
	Approver   string                  `json:"approver"`
	ExpiresAt  time.Time               `json:"expiresAt"`
	Title      string                  `json:"title,omitempty"`
	Rationale  string                  `json:"rationale,omitempty"`
	Options    []entity.ProposalOption `json:"options,omitempty"`
	Token      string                  `json:"token,omitempty"`
}

// ProposalNotice is the outbox body sent to the owner about a proposal outcome.
type ProposalNotice struct {
	ProposalID        string                `json:"proposalId"`
	EventID           string                `json:"eventId"`
	Status            entity.ProposalStatus `json:"status"`
	Actor             string                `json:"actor,omitempty"`
	Decision          entity.Decision       `json:"decision,omitempty"`
	ChosenOptionIndex *int                  `json:"chosenOptionIndex,omitempty"`
	AlternateSlot     *entity.TimeSlot      `json:"alternateSlot,omitempty"`
}
