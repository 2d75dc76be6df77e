package proposal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/internal/infrastructure/schema"
	"github.com/andreyxaxa/Reschedule-Engine/internal/infrastructure/token"
	"github.com/andreyxaxa/Reschedule-Engine/internal/repo/inmemory"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase/eventlog"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase/idempotency"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase/outbox"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func at(min int) time.Time {
	return _t0.Add(time.Duration(min) * time.Minute)
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

type fixture struct {
	uc     *ProposalUseCase
	store  *inmemory.Store
	signer *token.ApprovalSigner
	now    time.Time
}

func newValidator(t *testing.T) *schema.Validator {
	t.Helper()

	v, err := schema.New()
	require.NoError(t, err)

	return v
}

func newFixture(v *schema.Validator) *fixture {
	store := inmemory.New()
	l := logger.Nop()

	ledger := idempotency.New(store.Idempotency(), l)
	events := eventlog.New(store.Events(), ledger, v, l)
	notifications := outbox.New(store.Notifications(), nil, l)
	signer := token.NewApprovalSigner("approval-secret")

	f := &fixture{store: store, signer: signer, now: _t0}
	f.uc = New(
		store.Proposals(),
		store.Approvals(),
		store.CalendarEvents(),
		events,
		notifications,
		ledger,
		signer,
		store,
		24*time.Hour,
		0,
		l,
	)
	f.uc.now = func() time.Time { return f.now }

	return f
}

func (f *fixture) calendarEvent(t *testing.T, id string, p *entity.Policy) {
	t.Helper()

	_, err := f.store.CalendarEvents().Upsert(context.Background(), &entity.CalendarEvent{
		ID:              id,
		TenantID:        "t1",
		AccountRef:      "acc-1",
		ProviderEventID: "g-" + id,
		Title:           "Quarterly planning",
		StartAt:         at(0),
		EndAt:           at(60),
		Organizer:       "owner@example.com",
		Policy:          p,
		UpdatedAt:       _t0,
	})
	require.NoError(t, err)
}

func twoOptions() []entity.ProposalOption {
	return []entity.ProposalOption{
		{StartAt: at(100), EndAt: at(160)},
		{StartAt: at(200), EndAt: at(260)},
	}
}

func (f *fixture) templates(t *testing.T) []string {
	t.Helper()

	out, err := f.store.Notifications().List(context.Background(), dto.NotificationFilter{})
	require.NoError(t, err)

	templates := make([]string, 0, len(out))
	for _, n := range out {
		templates = append(templates, n.TemplateID)
	}
	return templates
}

func TestExternalApprovalScenario(t *testing.T) {
	f := newFixture(newValidator(t))
	ctx := context.Background()
	f.calendarEvent(t, "e_42", &entity.Policy{LockState: entity.LockNegotiable})

	created, err := f.uc.Create(ctx, dto.CreateProposal{
		TenantID:                 "t1",
		EventID:                  "e_42",
		CreatedBy:                entity.CreatedByAssistant,
		Rationale:                "conflicts with travel",
		Options:                  twoOptions(),
		RequiresExternalApprover: true,
		Approver:                 strPtr("boss@example.com"),
	})
	require.NoError(t, err)
	require.NotNil(t, created.ApprovalToken)
	assert.False(t, created.AutoApplicable)

	p := created.Proposal
	assert.Equal(t, entity.ProposalStatusPending, p.Status)
	require.NotNil(t, p.TokenExpiresAt)
	assert.Equal(t, _t0.Add(24*time.Hour), *p.TokenExpiresAt)
	require.NotNil(t, p.ApprovalTokenHash)
	assert.NotEqual(t, *created.ApprovalToken, *p.ApprovalTokenHash)

	// запрос согласующему хранится без токена
	pending, err := f.store.Notifications().List(ctx, dto.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, entity.TemplateApprovalRequest, pending[0].TemplateID)
	assert.Equal(t, "boss@example.com", pending[0].To)
	assert.NotContains(t, string(pending[0].Payload), *created.ApprovalToken)

	// решение через час по публичному токену
	f.now = _t0.Add(time.Hour)
	decided, err := f.uc.Decide(ctx, dto.Decide{
		ProposalID:        p.ID,
		Actor:             "boss@example.com",
		Decision:          entity.DecisionApproved,
		ChosenOptionIndex: intPtr(1),
		Token:             created.ApprovalToken,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.ProposalStatusApproved, decided.Status)
	require.NotNil(t, decided.ChosenOptionIndex)
	assert.Equal(t, 1, *decided.ChosenOptionIndex)

	applied, err := f.uc.Apply(ctx, "t1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ProposalStatusApplied, applied.Status)

	event, err := f.store.CalendarEvents().GetByID(ctx, "t1", "e_42")
	require.NoError(t, err)
	assert.Equal(t, at(200), event.StartAt)
	assert.Equal(t, at(260), event.EndAt)

	_, err = f.uc.Apply(ctx, "t1", p.ID)
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)

	view, err := f.uc.Get(ctx, "t1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ProposalStatusApplied, view.Proposal.Status)
	require.Len(t, view.Approvals, 1)
	assert.Equal(t, "boss@example.com", view.Approvals[0].Actor)

	log, err := f.store.Events().List(ctx, dto.EventFilter{TenantID: "t1"})
	require.NoError(t, err)
	types := make([]entity.EventType, 0, len(log))
	for _, e := range log {
		types = append(types, e.Type)
	}
	assert.Equal(t, []entity.EventType{
		entity.ProposalCreated,
		entity.ProposalApproved,
		entity.ProposalApplied,
		entity.CalendarEventRescheduled,
	}, types)

	assert.Equal(t, []string{
		entity.TemplateApprovalRequest,
		entity.TemplateProposalDecided,
		entity.TemplateProposalApplied,
	}, f.templates(t))
}

func TestDecideExpiredToken(t *testing.T) {
	f := newFixture(newValidator(t))
	ctx := context.Background()
	f.calendarEvent(t, "e_1", nil)

	created, err := f.uc.Create(ctx, dto.CreateProposal{
		TenantID:                 "t1",
		EventID:                  "e_1",
		CreatedBy:                entity.CreatedByUser,
		Options:                  twoOptions(),
		RequiresExternalApprover: true,
		Approver:                 strPtr("boss@example.com"),
	})
	require.NoError(t, err)

	f.now = _t0.Add(24 * time.Hour)
	_, err = f.uc.Decide(ctx, dto.Decide{
		ProposalID:        created.Proposal.ID,
		Actor:             "boss@example.com",
		Decision:          entity.DecisionApproved,
		ChosenOptionIndex: intPtr(0),
		Token:             created.ApprovalToken,
	})
	require.ErrorIs(t, err, errs.ErrTokenExpired)

	p, err := f.store.Proposals().GetByID(ctx, "t1", created.Proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ProposalStatusExpired, p.Status)

	expired, err := f.store.Events().List(ctx, dto.EventFilter{TenantID: "t1", Types: []entity.EventType{entity.ProposalExpired}})
	require.NoError(t, err)
	assert.Len(t, expired, 1)

	_, err = f.uc.Decide(ctx, dto.Decide{
		ProposalID:        created.Proposal.ID,
		Actor:             "boss@example.com",
		Decision:          entity.DecisionApproved,
		ChosenOptionIndex: intPtr(0),
		Token:             created.ApprovalToken,
	})
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestDecideAccessDenied(t *testing.T) {
	f := newFixture(newValidator(t))
	ctx := context.Background()
	f.calendarEvent(t, "e_1", nil)

	created, err := f.uc.Create(ctx, dto.CreateProposal{
		TenantID:                 "t1",
		EventID:                  "e_1",
		CreatedBy:                entity.CreatedByUser,
		Options:                  twoOptions(),
		RequiresExternalApprover: true,
		Approver:                 strPtr("boss@example.com"),
	})
	require.NoError(t, err)
	id := created.Proposal.ID

	forged, err := token.NewApprovalSigner("other-secret").Issue(id, _t0.Add(time.Hour))
	require.NoError(t, err)
	foreign, err := f.signer.Issue("someone-else", _t0.Add(time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name string
		in   dto.Decide
		want error
	}{
		{name: "forged signature", in: dto.Decide{ProposalID: id, Token: &forged}, want: errs.ErrNotFoundOrAccessDenied},
		{name: "token for another proposal", in: dto.Decide{ProposalID: id, Token: &foreign}, want: errs.ErrNotFoundOrAccessDenied},
		{name: "other tenant", in: dto.Decide{TenantID: "t2", ProposalID: id, Token: created.ApprovalToken}, want: errs.ErrNotFoundOrAccessDenied},
		{name: "owner without token", in: dto.Decide{TenantID: "t1", ProposalID: id}, want: errs.ErrValidation},
		{name: "public without token", in: dto.Decide{ProposalID: id}, want: errs.ErrValidation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.in.Actor = "boss@example.com"
			tc.in.Decision = entity.DecisionRejected

			_, err := f.uc.Decide(ctx, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err = f.uc.Create(ctx, dto.CreateProposal{TenantID: "t2", EventID: "e_1", CreatedBy: entity.CreatedByUser, Options: twoOptions()})
	assert.ErrorIs(t, err, errs.ErrNotFoundOrAccessDenied)
}

func TestRejectAndAlternate(t *testing.T) {
	f := newFixture(newValidator(t))
	ctx := context.Background()
	f.calendarEvent(t, "e_1", nil)

	created, err := f.uc.Create(ctx, dto.CreateProposal{TenantID: "t1", EventID: "e_1", CreatedBy: entity.CreatedByAssistant, Options: twoOptions()})
	require.NoError(t, err)
	assert.Nil(t, created.ApprovalToken)
	id := created.Proposal.ID

	alt := &entity.TimeSlot{StartAt: at(300), EndAt: at(360)}
	p, err := f.uc.Decide(ctx, dto.Decide{TenantID: "t1", ProposalID: id, Actor: "owner", Decision: entity.DecisionAlternate, AlternateSlot: alt})
	require.NoError(t, err)
	assert.Equal(t, entity.ProposalStatusPending, p.Status)

	_, err = f.uc.Decide(ctx, dto.Decide{TenantID: "t1", ProposalID: id, Actor: "owner", Decision: entity.DecisionApproved, ChosenOptionIndex: intPtr(2)})
	assert.ErrorIs(t, err, errs.ErrValidation)

	p, err = f.uc.Decide(ctx, dto.Decide{TenantID: "t1", ProposalID: id, Actor: "owner", Decision: entity.DecisionRejected})
	require.NoError(t, err)
	assert.Equal(t, entity.ProposalStatusRejected, p.Status)

	_, err = f.uc.Apply(ctx, "t1", id)
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)

	view, err := f.uc.Get(ctx, "t1", id)
	require.NoError(t, err)
	require.Len(t, view.Approvals, 2)
	assert.Equal(t, entity.DecisionAlternate, view.Approvals[0].Decision)
	assert.Equal(t, alt, view.Approvals[0].AlternateSlot)
	assert.Equal(t, entity.DecisionRejected, view.Approvals[1].Decision)

	event, err := f.store.CalendarEvents().GetByID(ctx, "t1", "e_1")
	require.NoError(t, err)
	assert.Equal(t, at(0), event.StartAt, "rejection leaves the event in place")
}

func TestAutoApply(t *testing.T) {
	f := newFixture(newValidator(t))
	ctx := context.Background()
	f.calendarEvent(t, "e_1", &entity.Policy{LockState: entity.LockFlexible, MaxShiftMinutes: intPtr(120)})

	created, err := f.uc.Create(ctx, dto.CreateProposal{
		TenantID:  "t1",
		EventID:   "e_1",
		CreatedBy: entity.CreatedByAssistant,
		Options:   twoOptions(),
		AutoApply: true,
	})
	require.NoError(t, err)
	assert.True(t, created.AutoApplicable)
	assert.True(t, created.AutoApplied)
	assert.Equal(t, entity.ProposalStatusApplied, created.Proposal.Status)

	event, err := f.store.CalendarEvents().GetByID(ctx, "t1", "e_1")
	require.NoError(t, err)
	assert.Equal(t, at(100), event.StartAt)

	approvals, err := f.store.Approvals().ListByProposal(ctx, created.Proposal.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, ActorPolicy, approvals[0].Actor)
}

func TestAutoApplyRefusedByPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy *entity.Policy
	}{
		{name: "locked", policy: &entity.Policy{LockState: entity.LockLocked}},
		{name: "negotiable", policy: &entity.Policy{LockState: entity.LockNegotiable}},
		{name: "shift too large", policy: &entity.Policy{LockState: entity.LockFlexible, MaxShiftMinutes: intPtr(30)}},
		{name: "no policy", policy: nil},
	}

	v := newValidator(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(v)
			ctx := context.Background()
			f.calendarEvent(t, "e_1", tc.policy)

			created, err := f.uc.Create(ctx, dto.CreateProposal{
				TenantID:  "t1",
				EventID:   "e_1",
				CreatedBy: entity.CreatedByAssistant,
				Options:   twoOptions(),
				AutoApply: true,
			})
			require.NoError(t, err)
			assert.False(t, created.AutoApplied)
			assert.Equal(t, entity.ProposalStatusPending, created.Proposal.Status)

			event, err := f.store.CalendarEvents().GetByID(ctx, "t1", "e_1")
			require.NoError(t, err)
			assert.Equal(t, at(0), event.StartAt)
		})
	}
}

func TestCreateSpecificApprover(t *testing.T) {
	v := newValidator(t)
	ctx := context.Background()

	f := newFixture(v)
	f.calendarEvent(t, "e_1", &entity.Policy{LockState: entity.LockNegotiable, MovePermissions: entity.MoveSpecificApprover})
	_, err := f.uc.Create(ctx, dto.CreateProposal{TenantID: "t1", EventID: "e_1", CreatedBy: entity.CreatedByUser, Options: twoOptions()})
	require.ErrorIs(t, err, errs.ErrValidation)

	f = newFixture(v)
	f.calendarEvent(t, "e_1", &entity.Policy{
		LockState:       entity.LockSensitive,
		MovePermissions: entity.MoveSpecificApprover,
		Approver:        strPtr("assistant@example.com"),
	})
	created, err := f.uc.Create(ctx, dto.CreateProposal{
		TenantID:  "t1",
		EventID:   "e_1",
		CreatedBy: entity.CreatedByUser,
		Rationale: "private reason",
		Options:   twoOptions(),
	})
	require.NoError(t, err)
	assert.True(t, created.Proposal.RequiresExternalApprover)
	require.NotNil(t, created.Proposal.Approver)
	assert.Equal(t, "assistant@example.com", *created.Proposal.Approver)

	out, err := f.store.Notifications().List(ctx, dto.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, out, 1)

	var req dto.ApprovalRequest
	require.NoError(t, json.Unmarshal(out[0].Payload, &req))
	assert.Empty(t, req.Title, "sensitive events do not share details")
	assert.Empty(t, req.Rationale)
	assert.Len(t, req.Options, 2)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(newValidator(t))
	ctx := context.Background()
	f.calendarEvent(t, "e_1", nil)

	tests := []struct {
		name string
		in   dto.CreateProposal
	}{
		{name: "no options", in: dto.CreateProposal{TenantID: "t1", EventID: "e_1", CreatedBy: entity.CreatedByUser}},
		{name: "bad creator", in: dto.CreateProposal{TenantID: "t1", EventID: "e_1", CreatedBy: "robot", Options: twoOptions()}},
		{
			name: "empty option",
			in: dto.CreateProposal{TenantID: "t1", EventID: "e_1", CreatedBy: entity.CreatedByUser, Options: []entity.ProposalOption{
				{StartAt: at(10), EndAt: at(10)},
			}},
		},
		{
			name: "external without approver",
			in:   dto.CreateProposal{TenantID: "t1", EventID: "e_1", CreatedBy: entity.CreatedByUser, Options: twoOptions(), RequiresExternalApprover: true},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.uc.Create(ctx, tc.in)
			assert.ErrorIs(t, err, errs.ErrValidation)
		})
	}
}

func TestCreateIdempotent(t *testing.T) {
	f := newFixture(newValidator(t))
	ctx := context.Background()
	f.calendarEvent(t, "e_1", nil)

	in := dto.CreateProposal{
		TenantID:                 "t1",
		EventID:                  "e_1",
		CreatedBy:                entity.CreatedByAssistant,
		Options:                  twoOptions(),
		RequiresExternalApprover: true,
		Approver:                 strPtr("boss@example.com"),
		IdempotencyKey:           strPtr("engine-run-7"),
	}

	first, err := f.uc.Create(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, first.ApprovalToken)

	second, err := f.uc.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.Proposal.ID, second.Proposal.ID)
	assert.Nil(t, second.ApprovalToken, "the raw token is handed out once")

	created, err := f.store.Events().List(ctx, dto.EventFilter{TenantID: "t1", Types: []entity.EventType{entity.ProposalCreated}})
	require.NoError(t, err)
	assert.Len(t, created, 1)
}

func TestExpireStale(t *testing.T) {
	f := newFixture(newValidator(t))
	ctx := context.Background()
	f.calendarEvent(t, "e_1", nil)

	ttl := time.Hour
	for i := 0; i < 2; i++ {
		_, err := f.uc.Create(ctx, dto.CreateProposal{
			TenantID:                 "t1",
			EventID:                  "e_1",
			CreatedBy:                entity.CreatedByUser,
			Options:                  twoOptions(),
			RequiresExternalApprover: true,
			Approver:                 strPtr("boss@example.com"),
			TokenTTL:                 &ttl,
		})
		require.NoError(t, err)
	}
	_, err := f.uc.Create(ctx, dto.CreateProposal{TenantID: "t1", EventID: "e_1", CreatedBy: entity.CreatedByUser, Options: twoOptions()})
	require.NoError(t, err)

	n, err := f.uc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.now = _t0.Add(time.Hour)
	n, err = f.uc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = f.uc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpireStaleHonorsBatch(t *testing.T) {
	f := newFixture(newValidator(t))
	ctx := context.Background()
	f.calendarEvent(t, "e_1", nil)
	assert.Equal(t, DefaultExpireBatch, f.uc.expireBatch)
	f.uc.expireBatch = 2

	ttl := time.Hour
	for i := 0; i < 3; i++ {
		_, err := f.uc.Create(ctx, dto.CreateProposal{
			TenantID:                 "t1",
			EventID:                  "e_1",
			CreatedBy:                entity.CreatedByUser,
			Options:                  twoOptions(),
			RequiresExternalApprover: true,
			Approver:                 strPtr("boss@example.com"),
			TokenTTL:                 &ttl,
		})
		require.NoError(t, err)
	}

	f.now = _t0.Add(time.Hour)
	n, err := f.uc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = f.uc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
