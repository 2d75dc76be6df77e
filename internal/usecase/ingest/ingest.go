package ingest

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
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase/policy"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	MaxBatch = 500

	_ledgerPrefix = "ingest:"
)

type IngestUseCase struct {
	events     usecase.EventLogUseCase
	tombstones usecase.TombstoneUseCase
	ledger     usecase.LedgerUseCase
	validator  infrastructure.PayloadValidator
	calendar   repo.CalendarEventRepo
	tasks      repo.TaskRepo
	accounts   repo.AccountRepo
	transactor repo.Transactor

	tracer trace.Tracer
	logger logger.Interface
	now    func() time.Time
}

func New(
	events usecase.EventLogUseCase,
	tombstones usecase.TombstoneUseCase,
	ledger usecase.LedgerUseCase,
	validator infrastructure.PayloadValidator,
	calendar repo.CalendarEventRepo,
	tasks repo.TaskRepo,
	accounts repo.AccountRepo,
	transactor repo.Transactor,
	l logger.Interface,
) *IngestUseCase {
	return &IngestUseCase{
		events:     events,
		tombstones: tombstones,
		ledger:     ledger,
		validator:  validator,
		calendar:   calendar,
		tasks:      tasks,
		accounts:   accounts,
		transactor: transactor,
		tracer:     otel.Tracer("reschedule-engine/ingest"),
		logger:     l,
		now:        time.Now,
	}
}

// Ingest validates the whole batch before writing anything, then applies items
// in order. Every item result is cached under its idempotency key, so a replayed
// batch returns the same bytes.
func (uc *IngestUseCase) Ingest(ctx context.Context, tenantID string, items []dto.IngestItem) ([]json.RawMessage, error) {
	switch {
	case tenantID == "":
		return nil, errs.NewValidation("tenantId", "required")
	case len(items) == 0:
		return nil, errs.NewValidation("items", "must not be empty")
	case len(items) > MaxBatch:
		return nil, errs.NewValidation("items", fmt.Sprintf("at most %d per batch", MaxBatch))
	}

	ctx, span := uc.tracer.Start(ctx, "IngestUseCase.Ingest", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.Int("ingest.items", len(items)),
	))
	defer span.End()

	// 1. проверяем весь батч
	payloads := make([]entity.Payload, len(items))
	for i, item := range items {
		p, err := uc.check(item)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("IngestUseCase - Ingest - item %d: %w", i, err)
		}
		payloads[i] = p
	}

	// 2. применяем по одному
	results := make([]json.RawMessage, len(items))
	replayed := 0
	for i, item := range items {
		res, replay, err := uc.ingestItem(ctx, tenantID, item, payloads[i])
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("IngestUseCase - Ingest - item %d: %w", i, err)
		}
		if replay {
			replayed++
		}
		results[i] = res
	}

	span.SetAttributes(attribute.Int("ingest.replayed", replayed))

	return results, nil
}

func (uc *IngestUseCase) check(item dto.IngestItem) (entity.Payload, error) {
	if _, ok := entity.LookupEventType(item.Type); !ok {
		return nil, fmt.Errorf("%s: %w", item.Type, errs.ErrUnknownEventType)
	}
	if !item.Type.Ingestible() {
		return nil, errs.NewValidation("type", fmt.Sprintf("%s is recorded by the engine and cannot be ingested", item.Type))
	}
	if item.IdempotencyKey != nil && *item.IdempotencyKey == "" {
		return nil, errs.NewValidation("idempotencyKey", "must not be empty")
	}
	if item.ProcessingStatus != nil && (!item.ProcessingStatus.Valid() || *item.ProcessingStatus == entity.Processing) {
		return nil, errs.NewValidation("processingStatus", fmt.Sprintf("%q is not allowed at ingest", *item.ProcessingStatus))
	}

	return uc.validator.Validate(item.Type, item.Payload)
}

func (uc *IngestUseCase) ingestItem(ctx context.Context, tenantID string, item dto.IngestItem, payload entity.Payload) (json.RawMessage, bool, error) {
	var key string
	if item.IdempotencyKey != nil {
		key = _ledgerPrefix + *item.IdempotencyKey

		cached, hit, err := uc.ledger.Check(ctx, tenantID, key)
		if err != nil {
			return nil, false, fmt.Errorf("IngestUseCase - ingestItem - uc.ledger.Check: %w", err)
		}
		if hit {
			return cached, true, nil
		}
	}

	var res *dto.IngestResult
	err := uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error

		switch p := payload.(type) {
		case *entity.CalendarEventPayload:
			res, err = uc.upsertCalendarEvent(ctx, tenantID, item, p)
		case *entity.CalendarEventDeletedPayload:
			res, err = uc.deleteCalendarEvent(ctx, tenantID, item, p)
		case *entity.TaskPayload:
			res, err = uc.upsertTask(ctx, tenantID, item, p)
		case *entity.AccountPayload:
			res, err = uc.upsertAccount(ctx, tenantID, item, p)
		case *entity.RecordDeletedPayload:
			res, err = uc.deleteRecord(ctx, tenantID, item, p)
		default:
			res, err = uc.append(ctx, tenantID, item, nil)
		}

		return err
	})
	if err != nil {
		return nil, false, err
	}

	body, err := json.Marshal(res)
	if err != nil {
		return nil, false, fmt.Errorf("IngestUseCase - ingestItem - json.Marshal: %w", err)
	}

	if key != "" {
		if err := uc.ledger.Commit(ctx, tenantID, key, body); err != nil {
			return nil, false, fmt.Errorf("IngestUseCase - ingestItem - uc.ledger.Commit: %w", err)
		}
	}

	return body, false, nil
}

// append writes the item's event; a nil payload keeps the connector's original bytes.
func (uc *IngestUseCase) append(ctx context.Context, tenantID string, item dto.IngestItem, payload entity.Payload) (*dto.IngestResult, error) {
	in := dto.AppendEvent{
		TenantID:       tenantID,
		Type:           item.Type,
		StatusOverride: item.ProcessingStatus,
		IdempotencyKey: item.IdempotencyKey,
		OccurredAt:     item.OccurredAt,
	}
	if payload != nil {
		in.Payload = payload
	} else {
		in.Raw = item.Payload
	}

	event, _, err := uc.events.Append(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("IngestUseCase - append - uc.events.Append: %w", err)
	}

	return resultOf(event), nil
}

func (uc *IngestUseCase) upsertCalendarEvent(
	ctx context.Context,
	tenantID string,
	item dto.IngestItem,
	p *entity.CalendarEventPayload,
) (*dto.IngestResult, error) {
	if err := policy.CheckShape(p.Policy); err != nil {
		return nil, err
	}

	attendees := p.Attendees
	if attendees == nil {
		attendees = []string{}
	}

	stored, err := uc.calendar.Upsert(ctx, &entity.CalendarEvent{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		AccountRef:      p.AccountRef,
		ProviderEventID: p.ProviderEventID,
		Title:           p.Title,
		Location:        p.Location,
		StartAt:         p.StartAt.UTC(),
		EndAt:           p.EndAt.UTC(),
		Timezone:        p.Timezone,
		Attendees:       attendees,
		Organizer:       p.Organizer,
		Visibility:      p.Visibility,
		Policy:          p.Policy,
		UpdatedAt:       uc.now(),
	})
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return nil, errs.ErrNotFoundOrAccessDenied
		}
		return nil, fmt.Errorf("IngestUseCase - upsertCalendarEvent - uc.calendar.Upsert: %w", err)
	}

	if stored.DeletedAt != nil {
		uc.logger.Debug("IngestUseCase - upsertCalendarEvent - event %s is deleted, read model unchanged", stored.ID)
	}

	enriched := *p
	enriched.EventID = stored.ID

	res, err := uc.append(ctx, tenantID, item, &enriched)
	if err != nil {
		return nil, err
	}
	res.RecordID = stored.ID

	return res, nil
}

func (uc *IngestUseCase) deleteCalendarEvent(
	ctx context.Context,
	tenantID string,
	item dto.IngestItem,
	p *entity.CalendarEventDeletedPayload,
) (*dto.IngestResult, error) {
	id := p.EventID
	if id == "" {
		event, err := uc.calendar.GetByProviderID(ctx, tenantID, p.AccountRef, p.ProviderEventID)
		if err != nil {
			if errors.Is(err, errs.ErrRecordNotFound) {
				return nil, errs.ErrNotFoundOrAccessDenied
			}
			return nil, fmt.Errorf("IngestUseCase - deleteCalendarEvent - uc.calendar.GetByProviderID: %w", err)
		}
		id = event.ID
	}

	return uc.softDelete(ctx, tenantID, item, entity.KindEvent, id, p.Reason)
}

func (uc *IngestUseCase) deleteRecord(
	ctx context.Context,
	tenantID string,
	item dto.IngestItem,
	p *entity.RecordDeletedPayload,
) (*dto.IngestResult, error) {
	kind := entity.KindTask
	if item.Type == entity.AccountDeleted {
		kind = entity.KindAccount
	}
	if p.Kind != "" && p.Kind != kind {
		return nil, errs.NewValidation("payload.kind", fmt.Sprintf("%s cannot delete a %s", item.Type, p.Kind))
	}

	return uc.softDelete(ctx, tenantID, item, kind, p.RefID, p.Reason)
}

func (uc *IngestUseCase) softDelete(
	ctx context.Context,
	tenantID string,
	item dto.IngestItem,
	kind entity.TombstoneKind,
	refID string,
	reason *string,
) (*dto.IngestResult, error) {
	tomb, event, err := uc.tombstones.SoftDelete(ctx, dto.SoftDelete{
		TenantID: tenantID,
		Kind:     kind,
		RefID:    refID,
		Reason:   reason,
	})
	if err != nil {
		return nil, fmt.Errorf("IngestUseCase - softDelete - uc.tombstones.SoftDelete: %w", err)
	}

	res := &dto.IngestResult{Type: item.Type}
	if event != nil {
		res = resultOf(event)
	}
	res.RecordID = refID
	res.TombstoneID = tomb.ID

	return res, nil
}

func (uc *IngestUseCase) upsertTask(ctx context.Context, tenantID string, item dto.IngestItem, p *entity.TaskPayload) (*dto.IngestResult, error) {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	status := p.Status
	if status == "" {
		status = "open"
	}

	err := uc.tasks.Upsert(ctx, &entity.Task{
		ID:        id,
		TenantID:  tenantID,
		Title:     p.Title,
		DueAt:     p.DueAt,
		Status:    status,
		UpdatedAt: uc.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("IngestUseCase - upsertTask - uc.tasks.Upsert: %w", notFound(err))
	}

	res, err := uc.append(ctx, tenantID, item, nil)
	if err != nil {
		return nil, err
	}
	res.RecordID = id

	return res, nil
}

func (uc *IngestUseCase) upsertAccount(ctx context.Context, tenantID string, item dto.IngestItem, p *entity.AccountPayload) (*dto.IngestResult, error) {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	err := uc.accounts.Upsert(ctx, &entity.Account{
		ID:        id,
		TenantID:  tenantID,
		Provider:  p.Provider,
		Email:     p.Email,
		UpdatedAt: uc.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("IngestUseCase - upsertAccount - uc.accounts.Upsert: %w", notFound(err))
	}

	res, err := uc.append(ctx, tenantID, item, nil)
	if err != nil {
		return nil, err
	}
	res.RecordID = id

	return res, nil
}

func (uc *IngestUseCase) GetCalendarEvent(ctx context.Context, tenantID, id string) (*entity.CalendarEvent, error) {
	event, err := uc.calendar.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("IngestUseCase - GetCalendarEvent - uc.calendar.GetByID: %w", notFound(err))
	}

	return event, nil
}

func resultOf(e *entity.Event) *dto.IngestResult {
	occurredAt := e.OccurredAt

	return &dto.IngestResult{
		EventID:          e.ID,
		Type:             e.Type,
		ProcessingStatus: e.ProcessingStatus,
		OccurredAt:       &occurredAt,
	}
}

func notFound(err error) error {
	if errors.Is(err, errs.ErrRecordNotFound) {
		return errs.ErrNotFoundOrAccessDenied
	}
	return err
}
