package entity

import "time"

type Decision string

const (
	DecisionApproved  Decision = "approved"
	DecisionRejected  Decision = "rejected"
	DecisionAlternate Decision = "alternate"
)

func (d Decision) Valid() bool {
	return d == DecisionApproved || d == DecisionRejected || d == DecisionAlternate
}

// Approval is append-only; one row per decision.
type Approval struct {
	ID                string    `json:"id"`
	ProposalRef       string    `json:"proposal_ref"`
	Actor             string    `json:"actor"`
	Decision          Decision  `json:"decision"`
	ChosenOptionIndex *int      `json:"chosen_option_index,omitempty"`
	AlternateSlot     *TimeSlot `json:"alternate_slot,omitempty"`
	Comment           *string   `json:"comment,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
