package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/internal/repo"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DispatchUseCase is the lease side of the event log: claims hand events to the
// reasoning engine and every claim ends in complete, fail or a stuck-lease reset.
type DispatchUseCase struct {
	events     repo.EventRepo
	proposals  usecase.ProposalUseCase
	transactor repo.Transactor

	tracer trace.Tracer
	logger logger.Interface
	now    func() time.Time
}

func New(
	events repo.EventRepo,
	proposals usecase.ProposalUseCase,
	transactor repo.Transactor,
	l logger.Interface,
) *DispatchUseCase {
	return &DispatchUseCase{
		events:     events,
		proposals:  proposals,
		transactor: transactor,
		tracer:     otel.Tracer("reschedule-engine/dispatch"),
		logger:     l,
		now:        time.Now,
	}
}

func (uc *DispatchUseCase) ClaimBatch(ctx context.Context, filter dto.ClaimFilter, limit int) ([]*entity.Event, error) {
	if limit <= 0 {
		return nil, errs.NewValidation("limit", "must be positive")
	}
	for _, t := range filter.Types {
		if _, ok := entity.LookupEventType(t); !ok {
			return nil, fmt.Errorf("DispatchUseCase - ClaimBatch - %s: %w", t, errs.ErrUnknownEventType)
		}
	}

	ctx, span := uc.tracer.Start(ctx, "DispatchUseCase.ClaimBatch")
	defer span.End()

	out, err := uc.events.ClaimBatch(ctx, filter, limit, uc.now())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("DispatchUseCase - ClaimBatch - uc.events.ClaimBatch: %w", err)
	}

	span.SetAttributes(attribute.Int("dispatch.limit", limit), attribute.Int("dispatch.claimed", len(out)))

	return out, nil
}

// Claim takes one specific event; losing the race is ErrLeaseConflict.
func (uc *DispatchUseCase) Claim(ctx context.Context, tenantID, id string) (*entity.Event, error) {
	e, err := uc.events.Claim(ctx, tenantID, id, uc.now())
	if err != nil {
		return nil, fmt.Errorf("DispatchUseCase - Claim - uc.events.Claim: %w", notFound(err))
	}

	return e, nil
}

// Complete closes a claim; a proposal in the outcome is created in the same transaction.
func (uc *DispatchUseCase) Complete(ctx context.Context, tenantID, id string, outcome dto.EventOutcome) (*dto.CreatedProposal, error) {
	if outcome.Status != entity.Processed && outcome.Status != entity.Skipped {
		return nil, errs.NewValidation("status", "must be processed or skipped")
	}

	var created *dto.CreatedProposal

	err := uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if outcome.Proposal != nil {
			// 1. аренда ещё наша
			e, err := uc.events.GetByID(ctx, tenantID, id)
			if err != nil {
				return fmt.Errorf("DispatchUseCase - Complete - uc.events.GetByID: %w", notFound(err))
			}
			if e.ProcessingStatus != entity.Processing {
				return fmt.Errorf("DispatchUseCase - Complete - status %s: %w", e.ProcessingStatus, errs.ErrLeaseConflict)
			}

			// 2. предложение от движка
			in := *outcome.Proposal
			in.TenantID = tenantID
			created, err = uc.proposals.Create(ctx, in)
			if err != nil {
				return fmt.Errorf("DispatchUseCase - Complete - uc.proposals.Create: %w", err)
			}
		}

		// 3. закрываем аренду
		if err := uc.events.Complete(ctx, tenantID, id, outcome.Status, uc.now()); err != nil {
			return fmt.Errorf("DispatchUseCase - Complete - uc.events.Complete: %w", notFound(err))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (uc *DispatchUseCase) Fail(ctx context.Context, tenantID, id, reason string) error {
	if reason == "" {
		reason = "unspecified"
	}

	if err := uc.events.Fail(ctx, tenantID, id, reason, uc.now()); err != nil {
		return fmt.Errorf("DispatchUseCase - Fail - uc.events.Fail: %w", notFound(err))
	}

	return nil
}

func (uc *DispatchUseCase) ResetStuck(ctx context.Context, threshold time.Duration) (int64, error) {
	if threshold <= 0 {
		return 0, errs.NewValidation("threshold", "must be positive")
	}

	n, err := uc.events.ResetStuck(ctx, uc.now().Add(-threshold))
	if err != nil {
		return 0, fmt.Errorf("DispatchUseCase - ResetStuck - uc.events.ResetStuck: %w", err)
	}

	if n > 0 {
		uc.logger.Info("DispatchUseCase - ResetStuck - returned %d events to pending", n)
	}

	return n, nil
}

// RetryFailed is the operator's only way out of failed; events are never retried on their own.
func (uc *DispatchUseCase) RetryFailed(ctx context.Context, tenantID *string) (int64, error) {
	n, err := uc.events.RetryFailed(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("DispatchUseCase - RetryFailed - uc.events.RetryFailed: %w", err)
	}

	return n, nil
}

func notFound(err error) error {
	if errors.Is(err, errs.ErrRecordNotFound) {
		return errs.ErrNotFoundOrAccessDenied
	}
	return err
}
