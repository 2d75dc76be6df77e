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
	proposalsTable = "proposals"

	// Columns
	propIDColumn                = "id"
	propTenantIDColumn          = "tenant_id"
	propEventRefColumn          = "event_ref"
	propCreatedByColumn         = "created_by"
	propStatusColumn            = "status"
	propRationaleColumn         = "rationale"
	propOptionsColumn           = "options"
	propRequiresExternalColumn  = "requires_external_approver"
	propApproverColumn          = "approver"
	propTokenHashColumn         = "approval_token_hash"
	propTokenExpiresAtColumn    = "token_expires_at"
	propChosenOptionIndexColumn = "chosen_option_index"
	propCreatedAtColumn         = "created_at"
	propUpdatedAtColumn         = "updated_at"
	propDeletedAtColumn         = "deleted_at"
)

var proposalColumns = []string{
	propIDColumn,
	propTenantIDColumn,
	propEventRefColumn,
	propCreatedByColumn,
	propStatusColumn,
	propRationaleColumn,
	propOptionsColumn,
	propRequiresExternalColumn,
	propApproverColumn,
	propTokenHashColumn,
	propTokenExpiresAtColumn,
	propChosenOptionIndexColumn,
	propCreatedAtColumn,
	propUpdatedAtColumn,
	propDeletedAtColumn,
}

type ProposalRepo struct {
	*postgres.Postgres
}

func NewProposalRepo(pg *postgres.Postgres) *ProposalRepo {
	return &ProposalRepo{pg}
}

func (r *ProposalRepo) Create(ctx context.Context, p *entity.Proposal) error {
	sql, args, err := r.Builder.
		Insert(proposalsTable).
		Columns(proposalColumns...).
		Values(
			p.ID,
			p.TenantID,
			p.EventRef,
			p.CreatedBy,
			p.Status,
			p.Rationale,
			p.Options,
			p.RequiresExternalApprover,
			p.Approver,
			p.ApprovalTokenHash,
			p.TokenExpiresAt,
			p.ChosenOptionIndex,
			p.CreatedAt,
			p.UpdatedAt,
			p.DeletedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("ProposalRepo - Create - r.Builder.ToSql: %w", err)
	}

	_, err = r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("ProposalRepo - Create - executor.Exec: %w", err)
	}

	return nil
}

func (r *ProposalRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.Proposal, error) {
	return r.getOne(ctx, "GetByID", squirrel.Eq{propTenantIDColumn: tenantID, propIDColumn: id, propDeletedAtColumn: nil})
}

func (r *ProposalRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*entity.Proposal, error) {
	return r.getOne(ctx, "GetByTokenHash", squirrel.Eq{propTokenHashColumn: tokenHash, propDeletedAtColumn: nil})
}

func (r *ProposalRepo) getOne(ctx context.Context, op string, where squirrel.Eq) (*entity.Proposal, error) {
	sql, args, err := r.Builder.
		Select(proposalColumns...).
		From(proposalsTable).
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ProposalRepo - %s - r.Builder.ToSql: %w", op, err)
	}

	p, err := scanProposal(r.GetExecutor(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ProposalRepo - %s: %w", op, errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("ProposalRepo - %s - executor.QueryRow: %w", op, err)
	}

	return p, nil
}

func (r *ProposalRepo) Transition(
	ctx context.Context,
	tenantID, id string,
	from, to entity.ProposalStatus,
	chosen *int,
	now time.Time,
) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("ProposalRepo - Transition - %s -> %s: %w", from, to, errs.ErrInvalidTransition)
	}

	sql, args, err := transitionProposalQuery(r.Builder, tenantID, id, from, to, chosen, now).ToSql()
	if err != nil {
		return fmt.Errorf("ProposalRepo - Transition - r.Builder.ToSql: %w", err)
	}

	tag, err := r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("ProposalRepo - Transition - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, tenantID, id); err != nil {
			return fmt.Errorf("ProposalRepo - Transition: %w", err)
		}
		return fmt.Errorf("ProposalRepo - Transition - %s -> %s: %w", from, to, errs.ErrInvalidTransition)
	}

	return nil
}

// transitionProposalQuery is a compare-and-swap on status.
func transitionProposalQuery(
	b squirrel.StatementBuilderType,
	tenantID, id string,
	from, to entity.ProposalStatus,
	chosen *int,
	now time.Time,
) squirrel.UpdateBuilder {
	q := b.
		Update(proposalsTable).
		Set(propStatusColumn, to).
		Set(propUpdatedAtColumn, now)

	if to == entity.ProposalStatusApproved {
		q = q.Set(propChosenOptionIndexColumn, chosen)
	}

	return q.Where(squirrel.Eq{
		propTenantIDColumn:  tenantID,
		propIDColumn:        id,
		propStatusColumn:    from,
		propDeletedAtColumn: nil,
	})
}

func (r *ProposalRepo) ListExpirable(ctx context.Context, now time.Time, limit int) ([]*entity.Proposal, error) {
	sql, args, err := r.Builder.
		Select(proposalColumns...).
		From(proposalsTable).
		Where(squirrel.And{
			squirrel.Eq{propStatusColumn: entity.ProposalStatusPending, propDeletedAtColumn: nil},
			squirrel.LtOrEq{propTokenExpiresAtColumn: now},
		}).
		OrderBy(propTokenExpiresAtColumn + " ASC").
		Limit(clampLimit(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ProposalRepo - ListExpirable - r.Builder.ToSql: %w", err)
	}

	rows, err := r.GetExecutor(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("ProposalRepo - ListExpirable - executor.Query: %w", err)
	}
	defer rows.Close()

	proposals := make([]*entity.Proposal, 0)
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("ProposalRepo - ListExpirable - rows.Scan: %w", err)
		}
		proposals = append(proposals, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ProposalRepo - ListExpirable - rows.Err: %w", err)
	}

	return proposals, nil
}

func (r *ProposalRepo) DeletionState(ctx context.Context, tenantID, id string) (*time.Time, error) {
	return deletionState(ctx, r.Postgres, proposalsTable, tenantID, id)
}

func (r *ProposalRepo) MarkDeleted(ctx context.Context, tenantID, id string, at time.Time) error {
	return markDeleted(ctx, r.Postgres, proposalsTable, tenantID, id, at)
}

func scanProposal(row pgx.Row) (*entity.Proposal, error) {
	var p entity.Proposal
	err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.EventRef,
		&p.CreatedBy,
		&p.Status,
		&p.Rationale,
		&p.Options,
		&p.RequiresExternalApprover,
		&p.Approver,
		&p.ApprovalTokenHash,
		&p.TokenExpiresAt,
		&p.ChosenOptionIndex,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}
