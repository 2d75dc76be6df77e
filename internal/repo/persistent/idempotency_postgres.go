package persistent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/postgres"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/jackc/pgx/v5"
)

const (
	// Table
	idempotencyTable = "idempotency_records"

	// Columns
	idemTenantIDColumn     = "tenant_id"
	idemKeyColumn          = "key"
	idemCachedResultColumn = "cached_result"
	idemCreatedAtColumn    = "created_at"
	idemExpiresAtColumn    = "expires_at"
)

// An expired record may be replaced, a live one never is.
const idempotencyUpsertSuffix = "ON CONFLICT (" + idemTenantIDColumn + ", " + idemKeyColumn + ") DO UPDATE SET " +
	idemCachedResultColumn + " = EXCLUDED." + idemCachedResultColumn + ", " +
	idemCreatedAtColumn + " = EXCLUDED." + idemCreatedAtColumn + ", " +
	idemExpiresAtColumn + " = EXCLUDED." + idemExpiresAtColumn +
	" WHERE " + idempotencyTable + "." + idemExpiresAtColumn + " <= EXCLUDED." + idemCreatedAtColumn

type IdempotencyRepo struct {
	*postgres.Postgres
}

func NewIdempotencyRepo(pg *postgres.Postgres) *IdempotencyRepo {
	return &IdempotencyRepo{pg}
}

func (r *IdempotencyRepo) Get(ctx context.Context, tenantID, key string) (*entity.IdempotencyRecord, error) {
	sql, args, err := r.Builder.
		Select(idemTenantIDColumn, idemKeyColumn, idemCachedResultColumn, idemCreatedAtColumn, idemExpiresAtColumn).
		From(idempotencyTable).
		Where(squirrel.Eq{idemTenantIDColumn: tenantID, idemKeyColumn: key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("IdempotencyRepo - Get - r.Builder.ToSql: %w", err)
	}

	var rec entity.IdempotencyRecord
	err = r.GetExecutor(ctx).QueryRow(ctx, sql, args...).Scan(
		&rec.TenantID,
		&rec.Key,
		&rec.CachedResult,
		&rec.CreatedAt,
		&rec.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("IdempotencyRepo - Get: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("IdempotencyRepo - Get - executor.QueryRow: %w", err)
	}

	return &rec, nil
}

func (r *IdempotencyRepo) Create(ctx context.Context, rec *entity.IdempotencyRecord) (bool, error) {
	sql, args, err := r.Builder.
		Insert(idempotencyTable).
		Columns(idemTenantIDColumn, idemKeyColumn, idemCachedResultColumn, idemCreatedAtColumn, idemExpiresAtColumn).
		Values(rec.TenantID, rec.Key, rec.CachedResult, rec.CreatedAt, rec.ExpiresAt).
		Suffix(idempotencyUpsertSuffix).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("IdempotencyRepo - Create - r.Builder.ToSql: %w", err)
	}

	tag, err := r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("IdempotencyRepo - Create - executor.Exec: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *IdempotencyRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	sql, args, err := r.Builder.
		Delete(idempotencyTable).
		Where(squirrel.LtOrEq{idemExpiresAtColumn: now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("IdempotencyRepo - DeleteExpired - r.Builder.ToSql: %w", err)
	}

	tag, err := r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("IdempotencyRepo - DeleteExpired - executor.Exec: %w", err)
	}

	return tag.RowsAffected(), nil
}
