package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()

	v, err := New()
	require.NoError(t, err)

	return v
}

func TestEveryEventTypeHasSchema(t *testing.T) {
	v := newValidator(t)

	for _, et := range entity.EventTypes() {
		assert.Contains(t, v.schemas, et)
	}
}

func TestValidateCalendarEvent(t *testing.T) {
	v := newValidator(t)

	raw := json.RawMessage(`{
		"accountRef": "acc-1",
		"providerEventId": "g-123",
		"title": "Design review",
		"startAt": "2026-03-02T10:00:00Z",
		"endAt": "2026-03-02T11:00:00Z",
		"timezone": "Europe/Berlin",
		"attendees": ["a@example.com"],
		"organizer": "a@example.com",
		"policy": {"lockState": "flexible", "maxShiftMinutes": 90}
	}`)

	payload, err := v.Validate(entity.CalendarEventUpserted, raw)
	require.NoError(t, err)

	ce, ok := payload.(*entity.CalendarEventPayload)
	require.True(t, ok)
	assert.Equal(t, "g-123", ce.ProviderEventID)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), ce.StartAt.UTC())
	require.NotNil(t, ce.Policy)
	assert.Equal(t, entity.LockFlexible, ce.Policy.LockState)
	require.NotNil(t, ce.Policy.MaxShiftMinutes)
	assert.Equal(t, 90, *ce.Policy.MaxShiftMinutes)
}

func TestValidateRejects(t *testing.T) {
	v := newValidator(t)

	cases := map[string]struct {
		typ entity.EventType
		raw string
	}{
		"missing provider id": {entity.CalendarEventUpserted, `{"accountRef":"a","startAt":"2026-03-02T10:00:00Z","endAt":"2026-03-02T11:00:00Z"}`},
		"bad timestamp":       {entity.CalendarEventUpserted, `{"accountRef":"a","providerEventId":"p","startAt":"yesterday","endAt":"2026-03-02T11:00:00Z"}`},
		"end before start":    {entity.CalendarEventUpserted, `{"accountRef":"a","providerEventId":"p","startAt":"2026-03-02T12:00:00Z","endAt":"2026-03-02T11:00:00Z"}`},
		"bad lock state":      {entity.CalendarEventEdited, `{"accountRef":"a","providerEventId":"p","startAt":"2026-03-02T10:00:00Z","endAt":"2026-03-02T11:00:00Z","policy":{"lockState":"frozen"}}`},
		"not an object":       {entity.TaskUpserted, `[1,2,3]`},
		"malformed":           {entity.TaskUpserted, `{"id":`},
		"deleted without ref": {entity.CalendarEventDeleted, `{"reason":"gone"}`},
		"negative shift":      {entity.CalendarEventUpserted, `{"accountRef":"a","providerEventId":"p","startAt":"2026-03-02T10:00:00Z","endAt":"2026-03-02T11:00:00Z","policy":{"lockState":"flexible","maxShiftDays":-1}}`},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Validate(tc.typ, json.RawMessage(tc.raw))
			assert.ErrorIs(t, err, errs.ErrValidation)
		})
	}
}

func TestValidateUnknownType(t *testing.T) {
	v := newValidator(t)

	_, err := v.Validate("calendar.event.teleported", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, errs.ErrUnknownEventType)
}

func TestInProcessPayloadsMatchSchemas(t *testing.T) {
	v := newValidator(t)

	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	chosen := 1
	reason := "cleanup"

	payloads := map[entity.EventType]entity.Payload{
		entity.ProposalCreated:            &entity.ProposalCreatedPayload{ProposalID: "p-1", EventID: "e_42", CreatedBy: entity.CreatedByAssistant, OptionCount: 2},
		entity.ProposalApproved:           &entity.ProposalDecisionPayload{ProposalID: "p-1", Actor: "owner", Decision: entity.DecisionApproved, ChosenOptionIndex: &chosen},
		entity.ProposalAlternateSuggested: &entity.ProposalDecisionPayload{ProposalID: "p-1", Actor: "owner", Decision: entity.DecisionAlternate, AlternateSlot: &entity.TimeSlot{StartAt: at, EndAt: at.Add(time.Hour)}},
		entity.ProposalExpired:            &entity.ProposalExpiredPayload{ProposalID: "p-1"},
		entity.ProposalApplied:            &entity.ProposalAppliedPayload{ProposalID: "p-1", EventID: "e_42", ChosenOptionIndex: 1, StartAt: at, EndAt: at.Add(time.Hour)},
		entity.CalendarEventRescheduled:   &entity.CalendarEventRescheduledPayload{EventID: "e_42", ProposalID: "p-1", PreviousStartAt: at, PreviousEndAt: at.Add(time.Hour), StartAt: at.Add(time.Hour), EndAt: at.Add(2 * time.Hour)},
		entity.CalendarEventDeleted:       entity.DeletionPayload(entity.KindEvent, "e_42", "ts-1", &reason),
		entity.TaskDeleted:                entity.DeletionPayload(entity.KindTask, "t_1", "ts-2", nil),
		entity.ProposalDeleted:            entity.DeletionPayload(entity.KindProposal, "p-1", "ts-3", nil),
	}

	for et, p := range payloads {
		raw, err := json.Marshal(p)
		require.NoError(t, err)

		_, err = v.Validate(et, raw)
		assert.NoError(t, err, et)
	}
}
