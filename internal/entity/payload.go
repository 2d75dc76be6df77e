package entity

import (
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
)

// Payload is the tagged union of event bodies; the tag is Event.Type and the
// concrete struct is chosen by the registry in event_type.go.
type Payload interface {
	isPayload()
}

// CalendarEventPayload carries EventID once the read-model row is known.
type CalendarEventPayload struct {
	EventID         string    `json:"eventId,omitempty"`
	AccountRef      string    `json:"accountRef"`
	ProviderEventID string    `json:"providerEventId"`
	Title           string    `json:"title"`
	Location        *string   `json:"location,omitempty"`
	StartAt         time.Time `json:"startAt"`
	EndAt           time.Time `json:"endAt"`
	Timezone        string    `json:"timezone"`
	Attendees       []string  `json:"attendees,omitempty"`
	Organizer       string    `json:"organizer"`
	Visibility      string    `json:"visibility,omitempty"`
	Policy          *Policy   `json:"policy,omitempty"`
}

type CalendarEventDeletedPayload struct {
	EventID         string  `json:"eventId,omitempty"`
	AccountRef      string  `json:"accountRef,omitempty"`
	ProviderEventID string  `json:"providerEventId,omitempty"`
	TombstoneID     string  `json:"tombstoneId,omitempty"`
	Reason          *string `json:"reason,omitempty"`
}

type CalendarEventRescheduledPayload struct {
	EventID         string    `json:"eventId"`
	ProposalID      string    `json:"proposalId"`
	PreviousStartAt time.Time `json:"previousStartAt"`
	PreviousEndAt   time.Time `json:"previousEndAt"`
	StartAt         time.Time `json:"startAt"`
	EndAt           time.Time `json:"endAt"`
}

type EmailReceivedPayload struct {
	AccountRef string    `json:"accountRef"`
	MessageID  string    `json:"messageId"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type TaskPayload struct {
	ID     string     `json:"id,omitempty"`
	Title  string     `json:"title"`
	DueAt  *time.Time `json:"dueAt,omitempty"`
	Status string     `json:"status,omitempty"`
}

type AccountPayload struct {
	ID       string `json:"id,omitempty"`
	Provider string `json:"provider"`
	Email    string `json:"email"`
}

// RecordDeletedPayload is shared by every non-calendar deletion.
type RecordDeletedPayload struct {
	Kind        TombstoneKind `json:"kind"`
	RefID       string        `json:"refId"`
	TombstoneID string        `json:"tombstoneId"`
	Reason      *string       `json:"reason,omitempty"`
}

type ProposalCreatedPayload struct {
	ProposalID               string    `json:"proposalId"`
	EventID                  string    `json:"eventId"`
	CreatedBy                CreatedBy `json:"createdBy"`
	OptionCount              int       `json:"optionCount"`
	RequiresExternalApprover bool      `json:"requiresExternalApprover"`
}

type ProposalDecisionPayload struct {
	ProposalID        string    `json:"proposalId"`
	Actor             string    `json:"actor"`
	Decision          Decision  `json:"decision"`
	ChosenOptionIndex *int      `json:"chosenOptionIndex,omitempty"`
	AlternateSlot     *TimeSlot `json:"alternateSlot,omitempty"`
}

type ProposalExpiredPayload struct {
	ProposalID string `json:"proposalId"`
}

type ProposalAppliedPayload struct {
	ProposalID        string    `json:"proposalId"`
	EventID           string    `json:"eventId"`
	ChosenOptionIndex int       `json:"chosenOptionIndex"`
	StartAt           time.Time `json:"startAt"`
	EndAt             time.Time `json:"endAt"`
}

func (*CalendarEventPayload) isPayload()            {}
func (*CalendarEventDeletedPayload) isPayload()     {}
func (*CalendarEventRescheduledPayload) isPayload() {}
func (*EmailReceivedPayload) isPayload()            {}
func (*TaskPayload) isPayload()                     {}
func (*AccountPayload) isPayload()                  {}
func (*RecordDeletedPayload) isPayload()            {}
func (*ProposalCreatedPayload) isPayload()          {}
func (*ProposalDecisionPayload) isPayload()         {}
func (*ProposalExpiredPayload) isPayload()          {}
func (*ProposalAppliedPayload) isPayload()          {}

// Checker is implemented by payloads with rules a schema cannot express.
type Checker interface {
	Check() error
}

func (p *CalendarEventPayload) Check() error {
	if !p.EndAt.After(p.StartAt) {
		return errs.NewValidation("endAt", "must be after startAt")
	}
	return nil
}

func (p *CalendarEventRescheduledPayload) Check() error {
	if !p.EndAt.After(p.StartAt) {
		return errs.NewValidation("endAt", "must be after startAt")
	}
	return nil
}

// DeletionPayload builds the body recorded with a soft deletion of kind.
func DeletionPayload(kind TombstoneKind, refID, tombstoneID string, reason *string) Payload {
	if kind == KindEvent {
		return &CalendarEventDeletedPayload{EventID: refID, TombstoneID: tombstoneID, Reason: reason}
	}
	return &RecordDeletedPayload{Kind: kind, RefID: refID, TombstoneID: tombstoneID, Reason: reason}
}
