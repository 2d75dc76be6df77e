package entity

import (
	"encoding/json"
	"time"
)

const (
	TemplateApprovalRequest = "proposal.approval_request"
	TemplateProposalDecided = "proposal.decided"
	TemplateProposalApplied = "proposal.applied"
	TemplateProposalExpired = "proposal.expired"
)

const (
	ChannelEmail = "email"
	ChannelPush  = "push"
)

type OutboxNotification struct {
	ID         string             `json:"id"`
	TenantID   string             `json:"tenant_id"`
	Channel    string             `json:"channel"`
	To         string             `json:"to"`
	TemplateID string             `json:"template_id"`
	Payload    json.RawMessage    `json:"payload"`
	Status     NotificationStatus `json:"status"`
	Attempts   int                `json:"attempts"`
	LastError  *string            `json:"last_error,omitempty"`
	ClaimedAt  *time.Time         `json:"claimed_at,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}
