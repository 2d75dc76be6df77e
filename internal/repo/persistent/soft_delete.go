package persistent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/postgres"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/jackc/pgx/v5"
)

// Every soft-deletable table shares the (tenant_id, id, deleted_at) columns.
const (
	softTenantIDColumn  = "tenant_id"
	softIDColumn        = "id"
	softDeletedAtColumn = "deleted_at"
)

func deletionState(ctx context.Context, pg *postgres.Postgres, table, tenantID, id string) (*time.Time, error) {
	sql, args, err := pg.Builder.
		Select(softDeletedAtColumn).
		From(table).
		Where(squirrel.Eq{softTenantIDColumn: tenantID, softIDColumn: id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s - DeletionState - pg.Builder.ToSql: %w", table, err)
	}

	var deletedAt *time.Time
	err = pg.GetExecutor(ctx).QueryRow(ctx, sql, args...).Scan(&deletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s - DeletionState: %w", table, errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("%s - DeletionState - executor.QueryRow: %w", table, err)
	}

	return deletedAt, nil
}

// markDeleted keeps the first deleted_at; repeating it is a no-op.
func markDeleted(ctx context.Context, pg *postgres.Postgres, table, tenantID, id string, at time.Time) error {
	sql, args, err := pg.Builder.
		Update(table).
		Set(softDeletedAtColumn, squirrel.Expr("COALESCE("+softDeletedAtColumn+", ?)", at)).
		Where(squirrel.Eq{softTenantIDColumn: tenantID, softIDColumn: id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s - MarkDeleted - pg.Builder.ToSql: %w", table, err)
	}

	tag, err := pg.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s - MarkDeleted - executor.Exec: %w", table, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s - MarkDeleted: %w", table, errs.ErrRecordNotFound)
	}

	return nil
}
