package entity

import "time"

type ProposalStatus string

const (
	ProposalStatusPending  ProposalStatus = "pending"
	ProposalStatusApproved ProposalStatus = "approved"
	ProposalStatusRejected ProposalStatus = "rejected"
	ProposalStatusExpired  ProposalStatus = "expired"
	ProposalStatusApplied  ProposalStatus = "applied"
)

// proposalTransitions is the whole state machine; anything missing is ErrInvalidTransition.
var proposalTransitions = map[ProposalStatus][]ProposalStatus{
	ProposalStatusPending:  {ProposalStatusApproved, ProposalStatusRejected, ProposalStatusExpired},
	ProposalStatusApproved: {ProposalStatusApplied},
}

func (s ProposalStatus) CanTransitionTo(next ProposalStatus) bool {
	for _, allowed := range proposalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// HasChosenOption reports whether a proposal in status s must carry ChosenOptionIndex.
func (s ProposalStatus) HasChosenOption() bool {
	return s == ProposalStatusApproved || s == ProposalStatusApplied
}

type CreatedBy string

const (
	CreatedByUser      CreatedBy = "user"
	CreatedByAssistant CreatedBy = "assistant"
	CreatedBySystem    CreatedBy = "system"
)

func (c CreatedBy) Valid() bool {
	return c == CreatedByUser || c == CreatedByAssistant || c == CreatedBySystem
}

type TimeSlot struct {
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
}

type ProposalOption struct {
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
	Score   *float64  `json:"score,omitempty"`
	Reason  *string   `json:"reason,omitempty"`
}

func (o ProposalOption) Slot() TimeSlot {
	return TimeSlot{StartAt: o.StartAt, EndAt: o.EndAt}
}

type Proposal struct {
	ID                       string           `json:"id"`
	TenantID                 string           `json:"tenant_id"`
	EventRef                 string           `json:"event_ref"`
	CreatedBy                CreatedBy        `json:"created_by"`
	Status                   ProposalStatus   `json:"status"`
	Rationale                string           `json:"rationale"`
	Options                  []ProposalOption `json:"options"`
	RequiresExternalApprover bool             `json:"requires_external_approver"`
	Approver                 *string          `json:"approver,omitempty"`
	ApprovalTokenHash        *string          `json:"-"`
	TokenExpiresAt           *time.Time       `json:"token_expires_at,omitempty"`
	ChosenOptionIndex        *int             `json:"chosen_option_index,omitempty"`
	CreatedAt                time.Time        `json:"created_at"`
	UpdatedAt                time.Time        `json:"updated_at"`
	DeletedAt                *time.Time       `json:"deleted_at,omitempty"`
}

// TokenExpired reports whether the external-approval window has closed at now.
func (p *Proposal) TokenExpired(now time.Time) bool {
	return p.TokenExpiresAt != nil && !now.Before(*p.TokenExpiresAt)
}
