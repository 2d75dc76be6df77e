package entity

import "sort"

type EventType string

const (
	CalendarEventUpserted    EventType = "calendar.event.upserted"
	CalendarEventEdited      EventType = "calendar.event.edited"
	CalendarEventDeleted     EventType = "calendar.event.deleted"
	CalendarEventRescheduled EventType = "calendar.event.rescheduled"

	EmailReceived EventType = "email.received"

	TaskUpserted EventType = "task.upserted"
	TaskDeleted  EventType = "task.deleted"

	AccountUpserted EventType = "account.upserted"
	AccountDeleted  EventType = "account.deleted"

	ProposalCreated            EventType = "proposal.created"
	ProposalApproved           EventType = "proposal.approved"
	ProposalRejected           EventType = "proposal.rejected"
	ProposalAlternateSuggested EventType = "proposal.alternate_suggested"
	ProposalExpired            EventType = "proposal.expired"
	ProposalApplied            EventType = "proposal.applied"
	ProposalDeleted            EventType = "proposal.deleted"
)

// EventTypeSpec is the static registry row for one event type.
type EventTypeSpec struct {
	Type          EventType
	Version       int
	DefaultStatus ProcessingStatus
	NewPayload    func() Payload
}

var eventTypes = map[EventType]EventTypeSpec{
	CalendarEventUpserted:      {CalendarEventUpserted, 1, Pending, func() Payload { return &CalendarEventPayload{} }},
	CalendarEventEdited:        {CalendarEventEdited, 1, Pending, func() Payload { return &CalendarEventPayload{} }},
	CalendarEventDeleted:       {CalendarEventDeleted, 1, Skipped, func() Payload { return &CalendarEventDeletedPayload{} }},
	CalendarEventRescheduled:   {CalendarEventRescheduled, 1, Skipped, func() Payload { return &CalendarEventRescheduledPayload{} }},
	EmailReceived:              {EmailReceived, 1, Pending, func() Payload { return &EmailReceivedPayload{} }},
	TaskUpserted:               {TaskUpserted, 1, Skipped, func() Payload { return &TaskPayload{} }},
	TaskDeleted:                {TaskDeleted, 1, Skipped, func() Payload { return &RecordDeletedPayload{} }},
	AccountUpserted:            {AccountUpserted, 1, Skipped, func() Payload { return &AccountPayload{} }},
	AccountDeleted:             {AccountDeleted, 1, Skipped, func() Payload { return &RecordDeletedPayload{} }},
	ProposalCreated:            {ProposalCreated, 1, Skipped, func() Payload { return &ProposalCreatedPayload{} }},
	ProposalApproved:           {ProposalApproved, 1, Skipped, func() Payload { return &ProposalDecisionPayload{} }},
	ProposalRejected:           {ProposalRejected, 1, Skipped, func() Payload { return &ProposalDecisionPayload{} }},
	ProposalAlternateSuggested: {ProposalAlternateSuggested, 1, Skipped, func() Payload { return &ProposalDecisionPayload{} }},
	ProposalExpired:            {ProposalExpired, 1, Skipped, func() Payload { return &ProposalExpiredPayload{} }},
	ProposalApplied:            {ProposalApplied, 1, Skipped, func() Payload { return &ProposalAppliedPayload{} }},
	ProposalDeleted:            {ProposalDeleted, 1, Skipped, func() Payload { return &RecordDeletedPayload{} }},
}

func LookupEventType(t EventType) (EventTypeSpec, bool) {
	spec, ok := eventTypes[t]
	return spec, ok
}

// EventTypes lists the registry in a stable order.
func EventTypes() []EventType {
	types := make([]EventType, 0, len(eventTypes))
	for t := range eventTypes {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// ingestible are the types connectors may push; the rest are written by the engine itself.
var ingestible = map[EventType]bool{
	CalendarEventUpserted: true,
	CalendarEventEdited:   true,
	CalendarEventDeleted:  true,
	EmailReceived:         true,
	TaskUpserted:          true,
	TaskDeleted:           true,
	AccountUpserted:       true,
	AccountDeleted:        true,
}

func (t EventType) Ingestible() bool {
	return ingestible[t]
}

// DeletedEventType maps a tombstone kind to the event recorded for its deletion.
func DeletedEventType(kind TombstoneKind) EventType {
	switch kind {
	case KindEvent:
		return CalendarEventDeleted
	case KindTask:
		return TaskDeleted
	case KindAccount:
		return AccountDeleted
	default:
		return ProposalDeleted
	}
}
