package persistent

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/postgres"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/jackc/pgx/v5"
)

const (
	// Table
	tombstonesTable = "tombstones"

	// Columns
	tombIDColumn        = "id"
	tombTenantIDColumn  = "tenant_id"
	tombKindColumn      = "kind"
	tombRefIDColumn     = "ref_id"
	tombReasonColumn    = "reason"
	tombCreatedAtColumn = "created_at"
	tombTxIDColumn      = "txid"
	tombSeqColumn       = "seq"
)

var tombstoneColumns = []string{
	tombIDColumn,
	tombTenantIDColumn,
	tombKindColumn,
	tombRefIDColumn,
	tombReasonColumn,
	tombCreatedAtColumn,
}

// txid and seq are filled by column defaults, so they are read but never inserted.
var tombstoneSelectColumns = append(append([]string{}, tombstoneColumns...),
	tombTxIDColumn+"::text",
	tombSeqColumn,
)

// tombVisibleExpr keeps rows of transactions older than every one still running.
// A row that is not yet visible can then only land after the current cursor.
const tombVisibleExpr = tombTxIDColumn + " < pg_snapshot_xmin(pg_current_snapshot())"

type TombstoneRepo struct {
	*postgres.Postgres
}

func NewTombstoneRepo(pg *postgres.Postgres) *TombstoneRepo {
	return &TombstoneRepo{pg}
}

func (r *TombstoneRepo) Create(ctx context.Context, t *entity.Tombstone) (bool, error) {
	sql, args, err := r.Builder.
		Insert(tombstonesTable).
		Columns(tombstoneColumns...).
		Values(t.ID, t.TenantID, t.Kind, t.RefID, t.Reason, t.CreatedAt).
		Suffix("ON CONFLICT (" + tombTenantIDColumn + ", " + tombKindColumn + ", " + tombRefIDColumn + ") DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("TombstoneRepo - Create - r.Builder.ToSql: %w", err)
	}

	tag, err := r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("TombstoneRepo - Create - executor.Exec: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *TombstoneRepo) Get(ctx context.Context, tenantID string, kind entity.TombstoneKind, refID string) (*entity.Tombstone, error) {
	sql, args, err := r.Builder.
		Select(tombstoneSelectColumns...).
		From(tombstonesTable).
		Where(squirrel.Eq{tombTenantIDColumn: tenantID, tombKindColumn: kind, tombRefIDColumn: refID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("TombstoneRepo - Get - r.Builder.ToSql: %w", err)
	}

	t, err := scanTombstone(r.GetExecutor(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("TombstoneRepo - Get: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("TombstoneRepo - Get - executor.QueryRow: %w", err)
	}

	return t, nil
}

func (r *TombstoneRepo) List(ctx context.Context, filter dto.TombstoneFilter) ([]*entity.Tombstone, error) {
	sql, args, err := listTombstonesQuery(r.Builder, filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("TombstoneRepo - List - r.Builder.ToSql: %w", err)
	}

	rows, err := r.GetExecutor(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("TombstoneRepo - List - executor.Query: %w", err)
	}
	defer rows.Close()

	tombstones := make([]*entity.Tombstone, 0)
	for rows.Next() {
		t, err := scanTombstone(rows)
		if err != nil {
			return nil, fmt.Errorf("TombstoneRepo - List - rows.Scan: %w", err)
		}
		tombstones = append(tombstones, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("TombstoneRepo - List - rows.Err: %w", err)
	}

	return tombstones, nil
}

// listTombstonesQuery pages on (txid, seq) and never on created_at: a
// transaction can commit long after it stamped its rows.
func listTombstonesQuery(b squirrel.StatementBuilderType, filter dto.TombstoneFilter) squirrel.SelectBuilder {
	where := squirrel.And{
		squirrel.Eq{tombTenantIDColumn: filter.TenantID},
		squirrel.Expr(tombVisibleExpr),
	}
	if filter.Kind != nil {
		where = append(where, squirrel.Eq{tombKindColumn: *filter.Kind})
	}
	if filter.Since != nil {
		where = append(where, squirrel.GtOrEq{tombCreatedAtColumn: *filter.Since})
	}
	if filter.After != nil {
		where = append(where, squirrel.Expr(
			"("+tombTxIDColumn+", "+tombSeqColumn+") > (?::text::xid8, ?)",
			strconv.FormatUint(filter.After.TxID, 10), filter.After.Seq,
		))
	}

	return b.
		Select(tombstoneSelectColumns...).
		From(tombstonesTable).
		Where(where).
		OrderBy(tombTxIDColumn+" ASC", tombSeqColumn+" ASC").
		Limit(clampLimit(filter.Limit))
}

func scanTombstone(row pgx.Row) (*entity.Tombstone, error) {
	var (
		t    entity.Tombstone
		txid string
	)
	err := row.Scan(&t.ID, &t.TenantID, &t.Kind, &t.RefID, &t.Reason, &t.CreatedAt, &txid, &t.Position.Seq)
	if err != nil {
		return nil, err
	}

	t.Position.TxID, err = strconv.ParseUint(txid, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("txid %q: %w", txid, err)
	}

	return &t, nil
}
