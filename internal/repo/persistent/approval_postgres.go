package persistent

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/postgres"
)

const (
	// Table
	approvalsTable = "approvals"

	// Columns
	apprIDColumn                = "id"
	apprProposalRefColumn       = "proposal_ref"
	apprActorColumn             = "actor"
	apprDecisionColumn          = "decision"
	apprChosenOptionIndexColumn = "chosen_option_index"
	apprAlternateSlotColumn     = "alternate_slot"
	apprCommentColumn           = "comment"
	apprCreatedAtColumn         = "created_at"
)

type ApprovalRepo struct {
	*postgres.Postgres
}

func NewApprovalRepo(pg *postgres.Postgres) *ApprovalRepo {
	return &ApprovalRepo{pg}
}

func (r *ApprovalRepo) Create(ctx context.Context, a *entity.Approval) error {
	sql, args, err := r.Builder.
		Insert(approvalsTable).
		Columns(
			apprIDColumn,
			apprProposalRefColumn,
			apprActorColumn,
			apprDecisionColumn,
			apprChosenOptionIndexColumn,
			apprAlternateSlotColumn,
			apprCommentColumn,
			apprCreatedAtColumn,
		).
		Values(
			a.ID,
			a.ProposalRef,
			a.Actor,
			a.Decision,
			a.ChosenOptionIndex,
			a.AlternateSlot,
			a.Comment,
			a.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("ApprovalRepo - Create - r.Builder.ToSql: %w", err)
	}

	_, err = r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("ApprovalRepo - Create - executor.Exec: %w", err)
	}

	return nil
}

func (r *ApprovalRepo) ListByProposal(ctx context.Context, proposalID string) ([]*entity.Approval, error) {
	sql, args, err := r.Builder.
		Select(
			apprIDColumn,
			apprProposalRefColumn,
			apprActorColumn,
			apprDecisionColumn,
			apprChosenOptionIndexColumn,
			apprAlternateSlotColumn,
			apprCommentColumn,
			apprCreatedAtColumn,
		).
		From(approvalsTable).
		Where(squirrel.Eq{apprProposalRefColumn: proposalID}).
		OrderBy(apprCreatedAtColumn + " ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ApprovalRepo - ListByProposal - r.Builder.ToSql: %w", err)
	}

	rows, err := r.GetExecutor(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("ApprovalRepo - ListByProposal - executor.Query: %w", err)
	}
	defer rows.Close()

	approvals := make([]*entity.Approval, 0)
	for rows.Next() {
		var a entity.Approval
		err = rows.Scan(
			&a.ID,
			&a.ProposalRef,
			&a.Actor,
			&a.Decision,
			&a.ChosenOptionIndex,
			&a.AlternateSlot,
			&a.Comment,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ApprovalRepo - ListByProposal - rows.Scan: %w", err)
		}
		approvals = append(approvals, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ApprovalRepo - ListByProposal - rows.Err: %w", err)
	}

	return approvals, nil
}
