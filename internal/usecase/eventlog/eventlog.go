package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/internal/infrastructure"
	"github.com/andreyxaxa/Reschedule-Engine/internal/repo"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/google/uuid"
)

const _ledgerPrefix = "event:"

type EventLogUseCase struct {
	repo      repo.EventRepo
	ledger    usecase.LedgerUseCase
	validator infrastructure.PayloadValidator

	logger logger.Interface
	now    func() time.Time
}

func New(
	r repo.EventRepo,
	ledger usecase.LedgerUseCase,
	validator infrastructure.PayloadValidator,
	l logger.Interface,
) *EventLogUseCase {
	return &EventLogUseCase{
		repo:      r,
		ledger:    ledger,
		validator: validator,
		logger:    l,
		now:       time.Now,
	}
}

func (uc *EventLogUseCase) Append(ctx context.Context, in dto.AppendEvent) (*entity.Event, bool, error) {
	spec, ok := entity.LookupEventType(in.Type)
	if !ok {
		return nil, false, fmt.Errorf("EventLogUseCase - Append - %s: %w", in.Type, errs.ErrUnknownEventType)
	}

	if in.TenantID == "" {
		return nil, false, errs.NewValidation("tenantId", "required")
	}

	// 1. повтор по ключу идемпотентности
	if in.IdempotencyKey != nil {
		if *in.IdempotencyKey == "" {
			return nil, false, errs.NewValidation("idempotencyKey", "must not be empty")
		}

		event, err := uc.replay(ctx, in.TenantID, *in.IdempotencyKey)
		if err != nil {
			return nil, false, fmt.Errorf("EventLogUseCase - Append - uc.replay: %w", err)
		}
		if event != nil {
			return event, true, nil
		}
	}

	// 2. payload проверяется схемой типа, даже если собран внутри процесса
	raw, err := uc.payloadBytes(in)
	if err != nil {
		return nil, false, err
	}
	if _, err := uc.validator.Validate(in.Type, raw); err != nil {
		return nil, false, fmt.Errorf("EventLogUseCase - Append - uc.validator.Validate: %w", err)
	}

	// 3. статус
	status := spec.DefaultStatus
	if in.StatusOverride != nil {
		if !in.StatusOverride.Valid() || *in.StatusOverride == entity.Processing {
			return nil, false, errs.NewValidation("processingStatus", fmt.Sprintf("%q is not allowed at append", *in.StatusOverride))
		}
		status = *in.StatusOverride
	}

	now := uc.now()
	occurredAt := now
	if in.OccurredAt != nil {
		occurredAt = in.OccurredAt.UTC()
	}

	event := &entity.Event{
		ID:               uuid.NewString(),
		TenantID:         in.TenantID,
		Type:             in.Type,
		SchemaVersion:    spec.Version,
		Payload:          raw,
		OccurredAt:       occurredAt,
		IdempotencyKey:   in.IdempotencyKey,
		ProcessingStatus: status,
		CreatedAt:        now,
	}

	// 4. запись
	if err := uc.repo.Create(ctx, event); err != nil {
		return nil, false, fmt.Errorf("EventLogUseCase - Append - uc.repo.Create: %w", err)
	}

	// 5. фиксируем ключ
	if in.IdempotencyKey != nil {
		if err := uc.ledger.Commit(ctx, in.TenantID, _ledgerPrefix+*in.IdempotencyKey, []byte(event.ID)); err != nil {
			return nil, false, fmt.Errorf("EventLogUseCase - Append - uc.ledger.Commit: %w", err)
		}
	}

	return event, false, nil
}

// replay returns the event recorded under key, or nil when the key is fresh.
func (uc *EventLogUseCase) replay(ctx context.Context, tenantID, key string) (*entity.Event, error) {
	cached, hit, err := uc.ledger.Check(ctx, tenantID, _ledgerPrefix+key)
	if err != nil || !hit {
		return nil, err
	}

	event, err := uc.repo.GetByID(ctx, tenantID, string(cached))
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			uc.logger.Warn("EventLogUseCase - replay - key %s points at missing event %s", key, string(cached))
			return nil, nil
		}
		return nil, err
	}

	return event, nil
}

func (uc *EventLogUseCase) payloadBytes(in dto.AppendEvent) (json.RawMessage, error) {
	switch {
	case in.Payload != nil && in.Raw != nil:
		return nil, errs.NewValidation("payload", "raw and typed payload are mutually exclusive")
	case in.Payload != nil:
		raw, err := json.Marshal(in.Payload)
		if err != nil {
			return nil, fmt.Errorf("EventLogUseCase - payloadBytes - json.Marshal: %w", err)
		}
		return raw, nil
	case len(in.Raw) > 0:
		return in.Raw, nil
	default:
		return nil, errs.NewValidation("payload", "required")
	}
}

func (uc *EventLogUseCase) GetByID(ctx context.Context, tenantID, id string) (*entity.Event, error) {
	event, err := uc.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return nil, errs.ErrNotFoundOrAccessDenied
		}
		return nil, fmt.Errorf("EventLogUseCase - GetByID - uc.repo.GetByID: %w", err)
	}

	return event, nil
}

func (uc *EventLogUseCase) List(ctx context.Context, filter dto.EventFilter) ([]*entity.Event, error) {
	for _, t := range filter.Types {
		if _, ok := entity.LookupEventType(t); !ok {
			return nil, fmt.Errorf("EventLogUseCase - List - %s: %w", t, errs.ErrUnknownEventType)
		}
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, errs.NewValidation("status", "unknown processing status")
	}
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		return nil, errs.NewValidation("to", "must be after from")
	}

	events, err := uc.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("EventLogUseCase - List - uc.repo.List: %w", err)
	}

	return events, nil
}
