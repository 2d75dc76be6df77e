package persistent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/postgres"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/jackc/pgx/v5"
)

const (
	// Table
	eventsTable = "events"

	// Columns
	eventIDColumn               = "id"
	eventTenantIDColumn         = "tenant_id"
	eventTypeColumn             = "type"
	eventSchemaVersionColumn    = "schema_version"
	eventPayloadColumn          = "payload"
	eventOccurredAtColumn       = "occurred_at"
	eventIdempotencyKeyColumn   = "idempotency_key"
	eventProcessingStatusColumn = "processing_status"
	eventErrorInfoColumn        = "error_info"
	eventClaimedAtColumn        = "claimed_at"
	eventProcessedAtColumn      = "processed_at"
	eventCreatedAtColumn        = "created_at"

	_defaultListLimit = 100
	_maxListLimit     = 1000
)

var eventColumns = []string{
	eventIDColumn,
	eventTenantIDColumn,
	eventTypeColumn,
	eventSchemaVersionColumn,
	eventPayloadColumn,
	eventOccurredAtColumn,
	eventIdempotencyKeyColumn,
	eventProcessingStatusColumn,
	eventErrorInfoColumn,
	eventClaimedAtColumn,
	eventProcessedAtColumn,
	eventCreatedAtColumn,
}

type EventRepo struct {
	*postgres.Postgres
}

func NewEventRepo(pg *postgres.Postgres) *EventRepo {
	return &EventRepo{pg}
}

func (r *EventRepo) Create(ctx context.Context, event *entity.Event) error {
	sql, args, err := r.Builder.
		Insert(eventsTable).
		Columns(eventColumns...).
		Values(
			event.ID,
			event.TenantID,
			event.Type,
			event.SchemaVersion,
			event.Payload,
			event.OccurredAt,
			event.IdempotencyKey,
			event.ProcessingStatus,
			event.ErrorInfo,
			event.ClaimedAt,
			event.ProcessedAt,
			event.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("EventRepo - Create - r.Builder.ToSql: %w", err)
	}

	_, err = r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("EventRepo - Create - executor.Exec: %w", err)
	}

	return nil
}

func (r *EventRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.Event, error) {
	return r.getOne(ctx, "GetByID", squirrel.Eq{eventTenantIDColumn: tenantID, eventIDColumn: id})
}

// GetByIdempotencyKey returns the newest event appended under key.
func (r *EventRepo) GetByIdempotencyKey(ctx context.Context, tenantID, key string) (*entity.Event, error) {
	return r.getOne(ctx, "GetByIdempotencyKey", squirrel.Eq{eventTenantIDColumn: tenantID, eventIdempotencyKeyColumn: key})
}

func (r *EventRepo) getOne(ctx context.Context, op string, where squirrel.Eq) (*entity.Event, error) {
	sql, args, err := r.Builder.
		Select(eventColumns...).
		From(eventsTable).
		Where(where).
		OrderBy(eventCreatedAtColumn + " DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("EventRepo - %s - r.Builder.ToSql: %w", op, err)
	}

	event, err := scanEvent(r.GetExecutor(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("EventRepo - %s: %w", op, errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("EventRepo - %s - executor.QueryRow: %w", op, err)
	}

	return event, nil
}

func (r *EventRepo) List(ctx context.Context, filter dto.EventFilter) ([]*entity.Event, error) {
	sql, args, err := listEventsQuery(r.Builder, filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("EventRepo - List - r.Builder.ToSql: %w", err)
	}

	events, err := r.query(ctx, sql, args)
	if err != nil {
		return nil, fmt.Errorf("EventRepo - List: %w", err)
	}

	return events, nil
}

func listEventsQuery(b squirrel.StatementBuilderType, filter dto.EventFilter) squirrel.SelectBuilder {
	where := squirrel.And{squirrel.Eq{eventTenantIDColumn: filter.TenantID}}
	if len(filter.Types) > 0 {
		where = append(where, squirrel.Eq{eventTypeColumn: filter.Types})
	}
	if filter.Status != nil {
		where = append(where, squirrel.Eq{eventProcessingStatusColumn: *filter.Status})
	}
	if filter.From != nil {
		where = append(where, squirrel.GtOrEq{eventOccurredAtColumn: *filter.From})
	}
	if filter.To != nil {
		where = append(where, squirrel.Lt{eventOccurredAtColumn: *filter.To})
	}

	return b.
		Select(eventColumns...).
		From(eventsTable).
		Where(where).
		OrderBy(eventOccurredAtColumn+" ASC", eventCreatedAtColumn+" ASC").
		Limit(clampLimit(filter.Limit))
}

// ClaimBatch flips up to limit pending events to processing in the statement that
// selects them; SKIP LOCKED keeps concurrent claimers on disjoint rows.
func (r *EventRepo) ClaimBatch(ctx context.Context, filter dto.ClaimFilter, limit int, now time.Time) ([]*entity.Event, error) {
	sql, args, err := claimEventsQuery(r.Builder, filter, limit, now)
	if err != nil {
		return nil, fmt.Errorf("EventRepo - ClaimBatch - claimEventsQuery: %w", err)
	}

	events, err := r.query(ctx, sql, args)
	if err != nil {
		return nil, fmt.Errorf("EventRepo - ClaimBatch: %w", err)
	}

	return events, nil
}

func claimEventsQuery(b squirrel.StatementBuilderType, filter dto.ClaimFilter, limit int, now time.Time) (string, []any, error) {
	where := squirrel.And{squirrel.Eq{eventProcessingStatusColumn: entity.Pending}}
	if filter.TenantID != nil {
		where = append(where, squirrel.Eq{eventTenantIDColumn: *filter.TenantID})
	}
	if len(filter.Types) > 0 {
		where = append(where, squirrel.Eq{eventTypeColumn: filter.Types})
	}

	subSQL, subArgs, err := squirrel.
		Select(eventIDColumn).
		From(eventsTable).
		Where(where).
		OrderBy(eventOccurredAtColumn + " ASC").
		Limit(clampLimit(limit)).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return "", nil, err
	}

	return b.
		Update(eventsTable).
		Set(eventProcessingStatusColumn, entity.Processing).
		Set(eventClaimedAtColumn, now).
		Where(squirrel.Expr(eventIDColumn+" IN ("+subSQL+")", subArgs...)).
		Suffix(returning(eventColumns)).
		ToSql()
}

func (r *EventRepo) Claim(ctx context.Context, tenantID, id string, now time.Time) (*entity.Event, error) {
	sql, args, err := r.Builder.
		Update(eventsTable).
		Set(eventProcessingStatusColumn, entity.Processing).
		Set(eventClaimedAtColumn, now).
		Where(squirrel.Eq{
			eventTenantIDColumn:         tenantID,
			eventIDColumn:               id,
			eventProcessingStatusColumn: entity.Pending,
		}).
		Suffix(returning(eventColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("EventRepo - Claim - r.Builder.ToSql: %w", err)
	}

	event, err := scanEvent(r.GetExecutor(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.missOrConflict(ctx, "Claim", tenantID, id)
		}
		return nil, fmt.Errorf("EventRepo - Claim - executor.QueryRow: %w", err)
	}

	return event, nil
}

func (r *EventRepo) Complete(ctx context.Context, tenantID, id string, status entity.ProcessingStatus, now time.Time) error {
	sql, args, err := r.Builder.
		Update(eventsTable).
		Set(eventProcessingStatusColumn, status).
		Set(eventProcessedAtColumn, now).
		Set(eventErrorInfoColumn, nil).
		Where(squirrel.Eq{
			eventTenantIDColumn:         tenantID,
			eventIDColumn:               id,
			eventProcessingStatusColumn: entity.Processing,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("EventRepo - Complete - r.Builder.ToSql: %w", err)
	}

	return r.execCAS(ctx, "Complete", tenantID, id, sql, args)
}

func (r *EventRepo) Fail(ctx context.Context, tenantID, id, errorInfo string, now time.Time) error {
	sql, args, err := r.Builder.
		Update(eventsTable).
		Set(eventProcessingStatusColumn, entity.Failed).
		Set(eventErrorInfoColumn, errorInfo).
		Set(eventProcessedAtColumn, now).
		Where(squirrel.Eq{
			eventTenantIDColumn:         tenantID,
			eventIDColumn:               id,
			eventProcessingStatusColumn: entity.Processing,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("EventRepo - Fail - r.Builder.ToSql: %w", err)
	}

	return r.execCAS(ctx, "Fail", tenantID, id, sql, args)
}

func (r *EventRepo) ResetStuck(ctx context.Context, claimedBefore time.Time) (int64, error) {
	sql, args, err := r.Builder.
		Update(eventsTable).
		Set(eventProcessingStatusColumn, entity.Pending).
		Set(eventClaimedAtColumn, nil).
		Where(squirrel.And{
			squirrel.Eq{eventProcessingStatusColumn: entity.Processing},
			squirrel.LtOrEq{eventClaimedAtColumn: claimedBefore},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("EventRepo - ResetStuck - r.Builder.ToSql: %w", err)
	}

	tag, err := r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("EventRepo - ResetStuck - executor.Exec: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *EventRepo) RetryFailed(ctx context.Context, tenantID *string) (int64, error) {
	where := squirrel.And{squirrel.Eq{eventProcessingStatusColumn: entity.Failed}}
	if tenantID != nil {
		where = append(where, squirrel.Eq{eventTenantIDColumn: *tenantID})
	}

	sql, args, err := r.Builder.
		Update(eventsTable).
		Set(eventProcessingStatusColumn, entity.Pending).
		Set(eventClaimedAtColumn, nil).
		Set(eventProcessedAtColumn, nil).
		Where(where).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("EventRepo - RetryFailed - r.Builder.ToSql: %w", err)
	}

	tag, err := r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("EventRepo - RetryFailed - executor.Exec: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *EventRepo) execCAS(ctx context.Context, op, tenantID, id, sql string, args []any) error {
	tag, err := r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("EventRepo - %s - executor.Exec: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return r.missOrConflict(ctx, op, tenantID, id)
	}

	return nil
}

// missOrConflict tells a missing event apart from one whose status moved on.
func (r *EventRepo) missOrConflict(ctx context.Context, op, tenantID, id string) error {
	_, err := r.GetByID(ctx, tenantID, id)
	if err != nil {
		return fmt.Errorf("EventRepo - %s: %w", op, err)
	}

	return fmt.Errorf("EventRepo - %s: %w", op, errs.ErrLeaseConflict)
}

func (r *EventRepo) query(ctx context.Context, sql string, args []any) ([]*entity.Event, error) {
	rows, err := r.GetExecutor(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("executor.Query: %w", err)
	}
	defer rows.Close()

	events := make([]*entity.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return events, nil
}

func scanEvent(row pgx.Row) (*entity.Event, error) {
	var event entity.Event
	err := row.Scan(
		&event.ID,
		&event.TenantID,
		&event.Type,
		&event.SchemaVersion,
		&event.Payload,
		&event.OccurredAt,
		&event.IdempotencyKey,
		&event.ProcessingStatus,
		&event.ErrorInfo,
		&event.ClaimedAt,
		&event.ProcessedAt,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &event, nil
}
