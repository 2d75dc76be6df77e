package proposal

import (
	"context"
	"errors"
	"fmt"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/google/uuid"
)

type decision struct {
	actor     string
	decision  entity.Decision
	chosen    *int
	alternate *entity.TimeSlot
	comment   *string
}

// Decide records one approval decision. An expired token moves the proposal to
// expired before the caller gets ErrTokenExpired.
func (uc *ProposalUseCase) Decide(ctx context.Context, in dto.Decide) (*entity.Proposal, error) {
	if err := validateDecide(in); err != nil {
		return nil, err
	}

	// 1. поиск с проверкой доступа
	p, err := uc.locate(ctx, in)
	if err != nil {
		return nil, err
	}

	if p.Status != entity.ProposalStatusPending {
		return nil, fmt.Errorf("ProposalUseCase - Decide - status %s: %w", p.Status, errs.ErrInvalidTransition)
	}

	// 2. истёкший токен
	if p.TokenExpired(uc.now()) {
		if err := uc.expire(ctx, p); err != nil && !errors.Is(err, errs.ErrInvalidTransition) {
			return nil, fmt.Errorf("ProposalUseCase - Decide - uc.expire: %w", err)
		}
		return nil, fmt.Errorf("ProposalUseCase - Decide: %w", errs.ErrTokenExpired)
	}

	if in.ChosenOptionIndex != nil && *in.ChosenOptionIndex >= len(p.Options) {
		return nil, errs.NewValidation("chosenOptionIndex", fmt.Sprintf("out of range, proposal has %d options", len(p.Options)))
	}

	// 3. решение
	err = uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		return uc.recordDecision(ctx, p, decision{
			actor:     in.Actor,
			decision:  in.Decision,
			chosen:    in.ChosenOptionIndex,
			alternate: in.AlternateSlot,
			comment:   in.Comment,
		})
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

// locate finds the proposal a decision is about; every failure looks the same to the caller.
func (uc *ProposalUseCase) locate(ctx context.Context, in dto.Decide) (*entity.Proposal, error) {
	if in.TenantID == "" {
		if in.Token == nil || *in.Token == "" {
			return nil, errs.NewValidation("token", "required")
		}

		pid, err := uc.tokens.ProposalID(*in.Token)
		if err != nil || pid != in.ProposalID {
			return nil, errs.ErrNotFoundOrAccessDenied
		}

		p, err := uc.proposals.GetByTokenHash(ctx, uc.tokens.Hash(*in.Token))
		if err != nil {
			if errors.Is(err, errs.ErrRecordNotFound) {
				return nil, errs.ErrNotFoundOrAccessDenied
			}
			return nil, fmt.Errorf("ProposalUseCase - locate - uc.proposals.GetByTokenHash: %w", err)
		}
		if p.ID != in.ProposalID {
			return nil, errs.ErrNotFoundOrAccessDenied
		}

		return p, nil
	}

	p, err := uc.load(ctx, in.TenantID, in.ProposalID)
	if err != nil {
		return nil, err
	}

	if p.RequiresExternalApprover {
		if in.Token == nil || *in.Token == "" {
			return nil, errs.NewValidation("token", "required for proposals awaiting an external approver")
		}
		if p.ApprovalTokenHash == nil || uc.tokens.Hash(*in.Token) != *p.ApprovalTokenHash {
			return nil, errs.ErrNotFoundOrAccessDenied
		}
	}

	return p, nil
}

// recordDecision must run inside a transaction; it updates p in place.
func (uc *ProposalUseCase) recordDecision(ctx context.Context, p *entity.Proposal, d decision) error {
	now := uc.now()

	// 1. переход состояния (CAS по статусу)
	var eventType entity.EventType
	switch d.decision {
	case entity.DecisionApproved:
		if err := uc.proposals.Transition(ctx, p.TenantID, p.ID, entity.ProposalStatusPending, entity.ProposalStatusApproved, d.chosen, now); err != nil {
			return fmt.Errorf("ProposalUseCase - recordDecision - uc.proposals.Transition: %w", err)
		}
		chosen := *d.chosen
		p.Status = entity.ProposalStatusApproved
		p.ChosenOptionIndex = &chosen
		p.UpdatedAt = now
		eventType = entity.ProposalApproved
	case entity.DecisionRejected:
		if err := uc.proposals.Transition(ctx, p.TenantID, p.ID, entity.ProposalStatusPending, entity.ProposalStatusRejected, nil, now); err != nil {
			return fmt.Errorf("ProposalUseCase - recordDecision - uc.proposals.Transition: %w", err)
		}
		p.Status = entity.ProposalStatusRejected
		p.UpdatedAt = now
		eventType = entity.ProposalRejected
	default:
		eventType = entity.ProposalAlternateSuggested
	}

	// 2. запись решения
	approval := &entity.Approval{
		ID:                uuid.NewString(),
		ProposalRef:       p.ID,
		Actor:             d.actor,
		Decision:          d.decision,
		ChosenOptionIndex: d.chosen,
		AlternateSlot:     d.alternate,
		Comment:           d.comment,
		CreatedAt:         now,
	}
	if err := uc.approvals.Create(ctx, approval); err != nil {
		return fmt.Errorf("ProposalUseCase - recordDecision - uc.approvals.Create: %w", err)
	}

	// 3. событие
	_, _, err := uc.events.Append(ctx, dto.AppendEvent{
		TenantID: p.TenantID,
		Type:     eventType,
		Payload: &entity.ProposalDecisionPayload{
			ProposalID:        p.ID,
			Actor:             d.actor,
			Decision:          d.decision,
			ChosenOptionIndex: d.chosen,
			AlternateSlot:     d.alternate,
		},
	})
	if err != nil {
		return fmt.Errorf("ProposalUseCase - recordDecision - uc.events.Append: %w", err)
	}

	// 4. уведомление владельцу
	return uc.notifyOwner(ctx, p, entity.TemplateProposalDecided, dto.ProposalNotice{
		ProposalID:        p.ID,
		EventID:           p.EventRef,
		Status:            p.Status,
		Actor:             d.actor,
		Decision:          d.decision,
		ChosenOptionIndex: d.chosen,
		AlternateSlot:     d.alternate,
	})
}

func (uc *ProposalUseCase) Apply(ctx context.Context, tenantID, id string) (*entity.Proposal, error) {
	p, err := uc.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	err = uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		return uc.apply(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

// apply moves the calendar event to the chosen option; must run inside a transaction.
func (uc *ProposalUseCase) apply(ctx context.Context, p *entity.Proposal) error {
	if p.Status != entity.ProposalStatusApproved || p.ChosenOptionIndex == nil {
		return fmt.Errorf("ProposalUseCase - apply - status %s: %w", p.Status, errs.ErrInvalidTransition)
	}

	idx := *p.ChosenOptionIndex
	if idx < 0 || idx >= len(p.Options) {
		return errs.NewValidation("chosenOptionIndex", "out of range")
	}
	option := p.Options[idx]

	event, err := uc.calendar.GetByID(ctx, p.TenantID, p.EventRef)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return errs.ErrNotFoundOrAccessDenied
		}
		return fmt.Errorf("ProposalUseCase - apply - uc.calendar.GetByID: %w", err)
	}

	now := uc.now()

	// 1. CAS approved -> applied, второй вызов упирается сюда
	if err := uc.proposals.Transition(ctx, p.TenantID, p.ID, entity.ProposalStatusApproved, entity.ProposalStatusApplied, nil, now); err != nil {
		return fmt.Errorf("ProposalUseCase - apply - uc.proposals.Transition: %w", err)
	}
	p.Status = entity.ProposalStatusApplied
	p.UpdatedAt = now

	// 2. переносим событие календаря
	if err := uc.calendar.UpdateSlot(ctx, p.TenantID, event.ID, option.Slot(), now); err != nil {
		return fmt.Errorf("ProposalUseCase - apply - uc.calendar.UpdateSlot: %w", err)
	}

	// 3. события журнала
	appends := []dto.AppendEvent{
		{
			TenantID: p.TenantID,
			Type:     entity.ProposalApplied,
			Payload: &entity.ProposalAppliedPayload{
				ProposalID:        p.ID,
				EventID:           event.ID,
				ChosenOptionIndex: idx,
				StartAt:           option.StartAt,
				EndAt:             option.EndAt,
			},
		},
		{
			TenantID: p.TenantID,
			Type:     entity.CalendarEventRescheduled,
			Payload: &entity.CalendarEventRescheduledPayload{
				EventID:         event.ID,
				ProposalID:      p.ID,
				PreviousStartAt: event.StartAt,
				PreviousEndAt:   event.EndAt,
				StartAt:         option.StartAt,
				EndAt:           option.EndAt,
			},
		},
	}
	for _, in := range appends {
		if _, _, err := uc.events.Append(ctx, in); err != nil {
			return fmt.Errorf("ProposalUseCase - apply - uc.events.Append: %w", err)
		}
	}

	// 4. уведомление
	return uc.notifyOwner(ctx, p, entity.TemplateProposalApplied, dto.ProposalNotice{
		ProposalID:        p.ID,
		EventID:           p.EventRef,
		Status:            p.Status,
		ChosenOptionIndex: p.ChosenOptionIndex,
	})
}

// ExpireStale closes every pending proposal whose approval window has passed.
func (uc *ProposalUseCase) ExpireStale(ctx context.Context) (int64, error) {
	stale, err := uc.proposals.ListExpirable(ctx, uc.now(), uc.expireBatch)
	if err != nil {
		return 0, fmt.Errorf("ProposalUseCase - ExpireStale - uc.proposals.ListExpirable: %w", err)
	}

	var n int64
	for _, p := range stale {
		err := uc.expire(ctx, p)
		if errors.Is(err, errs.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return n, fmt.Errorf("ProposalUseCase - ExpireStale - uc.expire: %w", err)
		}
		n++
	}

	return n, nil
}

func (uc *ProposalUseCase) expire(ctx context.Context, p *entity.Proposal) error {
	return uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		now := uc.now()

		if err := uc.proposals.Transition(ctx, p.TenantID, p.ID, entity.ProposalStatusPending, entity.ProposalStatusExpired, nil, now); err != nil {
			return fmt.Errorf("ProposalUseCase - expire - uc.proposals.Transition: %w", err)
		}
		p.Status = entity.ProposalStatusExpired
		p.UpdatedAt = now

		_, _, err := uc.events.Append(ctx, dto.AppendEvent{
			TenantID: p.TenantID,
			Type:     entity.ProposalExpired,
			Payload:  &entity.ProposalExpiredPayload{ProposalID: p.ID},
		})
		if err != nil {
			return fmt.Errorf("ProposalUseCase - expire - uc.events.Append: %w", err)
		}

		return uc.notifyOwner(ctx, p, entity.TemplateProposalExpired, dto.ProposalNotice{
			ProposalID: p.ID,
			EventID:    p.EventRef,
			Status:     p.Status,
		})
	})
}
