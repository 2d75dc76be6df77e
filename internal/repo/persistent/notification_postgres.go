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
	outboxTable = "outbox_notifications"

	// Columns
	outboxIDColumn         = "id"
	outboxTenantIDColumn   = "tenant_id"
	outboxChannelColumn    = "channel"
	outboxRecipientColumn  = "recipient"
	outboxTemplateIDColumn = "template_id"
	outboxPayloadColumn    = "payload"
	outboxStatusColumn     = "status"
	outboxAttemptsColumn   = "attempts"
	outboxLastErrorColumn  = "last_error"
	outboxClaimedAtColumn  = "claimed_at"
	outboxCreatedAtColumn  = "created_at"
	outboxUpdatedAtColumn  = "updated_at"
)

var outboxColumns = []string{
	outboxIDColumn,
	outboxTenantIDColumn,
	outboxChannelColumn,
	outboxRecipientColumn,
	outboxTemplateIDColumn,
	outboxPayloadColumn,
	outboxStatusColumn,
	outboxAttemptsColumn,
	outboxLastErrorColumn,
	outboxClaimedAtColumn,
	outboxCreatedAtColumn,
	outboxUpdatedAtColumn,
}

type NotificationRepo struct {
	*postgres.Postgres
}

func NewNotificationRepo(pg *postgres.Postgres) *NotificationRepo {
	return &NotificationRepo{pg}
}

func (r *NotificationRepo) Create(ctx context.Context, n *entity.OutboxNotification) error {
	sql, args, err := r.Builder.
		Insert(outboxTable).
		Columns(outboxColumns...).
		Values(
			n.ID,
			n.TenantID,
			n.Channel,
			n.To,
			n.TemplateID,
			n.Payload,
			n.Status,
			n.Attempts,
			n.LastError,
			n.ClaimedAt,
			n.CreatedAt,
			n.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("NotificationRepo - Create - r.Builder.ToSql: %w", err)
	}

	_, err = r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("NotificationRepo - Create - executor.Exec: %w", err)
	}

	return nil
}

func (r *NotificationRepo) List(ctx context.Context, filter dto.NotificationFilter) ([]*entity.OutboxNotification, error) {
	where := squirrel.And{}
	if filter.TenantID != nil {
		where = append(where, squirrel.Eq{outboxTenantIDColumn: *filter.TenantID})
	}
	if filter.Status != nil {
		where = append(where, squirrel.Eq{outboxStatusColumn: *filter.Status})
	}

	sql, args, err := r.Builder.
		Select(outboxColumns...).
		From(outboxTable).
		Where(where).
		OrderBy(outboxCreatedAtColumn + " ASC").
		Limit(clampLimit(filter.Limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("NotificationRepo - List - r.Builder.ToSql: %w", err)
	}

	notifications, err := r.query(ctx, sql, args)
	if err != nil {
		return nil, fmt.Errorf("NotificationRepo - List: %w", err)
	}

	return notifications, nil
}

// ClaimBatch moves pending rows to processing and counts the attempt in one statement.
func (r *NotificationRepo) ClaimBatch(ctx context.Context, limit int, now time.Time) ([]*entity.OutboxNotification, error) {
	sql, args, err := claimNotificationsQuery(r.Builder, limit, now)
	if err != nil {
		return nil, fmt.Errorf("NotificationRepo - ClaimBatch - claimNotificationsQuery: %w", err)
	}

	notifications, err := r.query(ctx, sql, args)
	if err != nil {
		return nil, fmt.Errorf("NotificationRepo - ClaimBatch: %w", err)
	}

	return notifications, nil
}

func claimNotificationsQuery(b squirrel.StatementBuilderType, limit int, now time.Time) (string, []any, error) {
	subSQL, subArgs, err := squirrel.
		Select(outboxIDColumn).
		From(outboxTable).
		Where(squirrel.Eq{outboxStatusColumn: entity.NotificationPending}).
		OrderBy(outboxCreatedAtColumn + " ASC").
		Limit(clampLimit(limit)).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return "", nil, err
	}

	return b.
		Update(outboxTable).
		Set(outboxStatusColumn, entity.NotificationProcessing).
		Set(outboxAttemptsColumn, squirrel.Expr(outboxAttemptsColumn+" + 1")).
		Set(outboxClaimedAtColumn, now).
		Set(outboxUpdatedAtColumn, now).
		Where(squirrel.Expr(outboxIDColumn+" IN ("+subSQL+")", subArgs...)).
		Suffix(returning(outboxColumns)).
		ToSql()
}

func (r *NotificationRepo) MarkSent(ctx context.Context, id string, now time.Time) error {
	sql, args, err := r.Builder.
		Update(outboxTable).
		Set(outboxStatusColumn, entity.NotificationSent).
		Set(outboxLastErrorColumn, nil).
		Set(outboxUpdatedAtColumn, now).
		Where(squirrel.Eq{outboxIDColumn: id, outboxStatusColumn: entity.NotificationProcessing}).
		ToSql()
	if err != nil {
		return fmt.Errorf("NotificationRepo - MarkSent - r.Builder.ToSql: %w", err)
	}

	return r.execCAS(ctx, "MarkSent", id, sql, args)
}

// Fail returns the row to pending while attempts < maxAttempts, otherwise dead-letters it.
func (r *NotificationRepo) Fail(ctx context.Context, id, lastError string, maxAttempts int, now time.Time) (entity.NotificationStatus, error) {
	sql, args, err := r.Builder.
		Update(outboxTable).
		Set(outboxStatusColumn, squirrel.Expr(
			"CASE WHEN "+outboxAttemptsColumn+" >= ? THEN ? ELSE ? END",
			maxAttempts, entity.NotificationFailed, entity.NotificationPending,
		)).
		Set(outboxLastErrorColumn, lastError).
		Set(outboxClaimedAtColumn, nil).
		Set(outboxUpdatedAtColumn, now).
		Where(squirrel.Eq{outboxIDColumn: id, outboxStatusColumn: entity.NotificationProcessing}).
		Suffix("RETURNING " + outboxStatusColumn).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("NotificationRepo - Fail - r.Builder.ToSql: %w", err)
	}

	var status entity.NotificationStatus
	err = r.GetExecutor(ctx).QueryRow(ctx, sql, args...).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", r.missOrConflict(ctx, "Fail", id)
		}
		return "", fmt.Errorf("NotificationRepo - Fail - executor.QueryRow: %w", err)
	}

	return status, nil
}

func (r *NotificationRepo) Cancel(ctx context.Context, id string, now time.Time) error {
	sql, args, err := r.Builder.
		Update(outboxTable).
		Set(outboxStatusColumn, entity.NotificationCancelled).
		Set(outboxUpdatedAtColumn, now).
		Where(squirrel.Eq{
			outboxIDColumn:     id,
			outboxStatusColumn: []entity.NotificationStatus{entity.NotificationPending, entity.NotificationProcessing},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("NotificationRepo - Cancel - r.Builder.ToSql: %w", err)
	}

	return r.execCAS(ctx, "Cancel", id, sql, args)
}

func (r *NotificationRepo) ResetStuck(ctx context.Context, claimedBefore time.Time, maxAttempts int, now time.Time) (int64, error) {
	sql, args, err := r.Builder.
		Update(outboxTable).
		Set(outboxStatusColumn, squirrel.Expr(
			"CASE WHEN "+outboxAttemptsColumn+" >= ? THEN ? ELSE ? END",
			maxAttempts, entity.NotificationFailed, entity.NotificationPending,
		)).
		Set(outboxClaimedAtColumn, nil).
		Set(outboxUpdatedAtColumn, now).
		Where(squirrel.And{
			squirrel.Eq{outboxStatusColumn: entity.NotificationProcessing},
			squirrel.LtOrEq{outboxClaimedAtColumn: claimedBefore},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("NotificationRepo - ResetStuck - r.Builder.ToSql: %w", err)
	}

	tag, err := r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("NotificationRepo - ResetStuck - executor.Exec: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *NotificationRepo) RetryFailed(ctx context.Context, now time.Time) (int64, error) {
	sql, args, err := r.Builder.
		Update(outboxTable).
		Set(outboxStatusColumn, entity.NotificationPending).
		Set(outboxAttemptsColumn, 0).
		Set(outboxUpdatedAtColumn, now).
		Where(squirrel.Eq{outboxStatusColumn: entity.NotificationFailed}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("NotificationRepo - RetryFailed - r.Builder.ToSql: %w", err)
	}

	tag, err := r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("NotificationRepo - RetryFailed - executor.Exec: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *NotificationRepo) DeleteDelivered(ctx context.Context, before time.Time) (int64, error) {
	sql, args, err := r.Builder.
		Delete(outboxTable).
		Where(squirrel.And{
			squirrel.Eq{outboxStatusColumn: []entity.NotificationStatus{entity.NotificationSent, entity.NotificationCancelled}},
			squirrel.Lt{outboxUpdatedAtColumn: before},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("NotificationRepo - DeleteDelivered - r.Builder.ToSql: %w", err)
	}

	tag, err := r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("NotificationRepo - DeleteDelivered - executor.Exec: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *NotificationRepo) execCAS(ctx context.Context, op, id, sql string, args []any) error {
	tag, err := r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("NotificationRepo - %s - executor.Exec: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return r.missOrConflict(ctx, op, id)
	}

	return nil
}

func (r *NotificationRepo) missOrConflict(ctx context.Context, op, id string) error {
	sql, args, err := r.Builder.
		Select(outboxIDColumn).
		From(outboxTable).
		Where(squirrel.Eq{outboxIDColumn: id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("NotificationRepo - %s - r.Builder.ToSql: %w", op, err)
	}

	var found string
	err = r.GetExecutor(ctx).QueryRow(ctx, sql, args...).Scan(&found)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("NotificationRepo - %s: %w", op, errs.ErrRecordNotFound)
		}
		return fmt.Errorf("NotificationRepo - %s - executor.QueryRow: %w", op, err)
	}

	return fmt.Errorf("NotificationRepo - %s: %w", op, errs.ErrLeaseConflict)
}

func (r *NotificationRepo) query(ctx context.Context, sql string, args []any) ([]*entity.OutboxNotification, error) {
	rows, err := r.GetExecutor(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("executor.Query: %w", err)
	}
	defer rows.Close()

	notifications := make([]*entity.OutboxNotification, 0)
	for rows.Next() {
		var n entity.OutboxNotification
		err = rows.Scan(
			&n.ID,
			&n.TenantID,
			&n.Channel,
			&n.To,
			&n.TemplateID,
			&n.Payload,
			&n.Status,
			&n.Attempts,
			&n.LastError,
			&n.ClaimedAt,
			&n.CreatedAt,
			&n.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		notifications = append(notifications, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return notifications, nil
}
