package dto

import (
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
)

type CreateProposal struct {
	TenantID                 string
	EventID                  string
	CreatedBy                entity.CreatedBy
	Rationale                string
	Options                  []entity.ProposalOption
	RequiresExternalApprover bool
	Approver                 *string
	TokenTTL                 *time.Duration
	AutoApply                bool
	IdempotencyKey           *string
}

type CreatedProposal struct {
	Proposal       *entity.Proposal `json:"proposal"`
	ApprovalToken  *string          `json:"approvalToken,omitempty"`
	AutoApplicable bool             `json:"autoApplicable"`
	AutoApplied    bool             `json:"autoApplied"`
}

// Decide records one decision. TenantID is empty when the caller is an external
// approver authenticated by Token alone.
type Decide struct {
	TenantID          string
	ProposalID        string
	Actor             string
	Decision          entity.Decision
	ChosenOptionIndex *int
	AlternateSlot     *entity.TimeSlot
	Comment           *string
	Token             *string
}

type ProposalView struct {
	Proposal  *entity.Proposal   `json:"proposal"`
	Approvals []*entity.Approval `json:"approvals"`
}
