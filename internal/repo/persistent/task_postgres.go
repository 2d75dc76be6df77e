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
	// Tables
	tasksTable    = "tasks"
	accountsTable = "accounts"

	// Columns
	taskTitleColumn       = "title"
	taskDueAtColumn       = "due_at"
	taskStatusColumn      = "status"
	accountProviderColumn = "provider"
	accountEmailColumn    = "email"
	updatedAtColumn       = "updated_at"
)

type TaskRepo struct {
	*postgres.Postgres
}

func NewTaskRepo(pg *postgres.Postgres) *TaskRepo {
	return &TaskRepo{pg}
}

func (r *TaskRepo) Upsert(ctx context.Context, task *entity.Task) error {
	sql, args, err := r.Builder.
		Insert(tasksTable).
		Columns(softIDColumn, softTenantIDColumn, taskTitleColumn, taskDueAtColumn, taskStatusColumn, updatedAtColumn).
		Values(task.ID, task.TenantID, task.Title, task.DueAt, task.Status, task.UpdatedAt).
		Suffix("ON CONFLICT (" + softTenantIDColumn + ", " + softIDColumn + ") DO UPDATE SET " +
			excluded(taskTitleColumn) + ", " + excluded(taskDueAtColumn) + ", " +
			excluded(taskStatusColumn) + ", " + excluded(updatedAtColumn) +
			" WHERE " + tasksTable + "." + softDeletedAtColumn + " IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("TaskRepo - Upsert - r.Builder.ToSql: %w", err)
	}

	_, err = r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("TaskRepo - Upsert - executor.Exec: %w", err)
	}

	return nil
}

func (r *TaskRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.Task, error) {
	sql, args, err := r.Builder.
		Select(softIDColumn, softTenantIDColumn, taskTitleColumn, taskDueAtColumn, taskStatusColumn, updatedAtColumn, softDeletedAtColumn).
		From(tasksTable).
		Where(squirrel.Eq{softTenantIDColumn: tenantID, softIDColumn: id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("TaskRepo - GetByID - r.Builder.ToSql: %w", err)
	}

	var task entity.Task
	err = r.GetExecutor(ctx).QueryRow(ctx, sql, args...).Scan(
		&task.ID,
		&task.TenantID,
		&task.Title,
		&task.DueAt,
		&task.Status,
		&task.UpdatedAt,
		&task.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("TaskRepo - GetByID: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("TaskRepo - GetByID - executor.QueryRow: %w", err)
	}

	return &task, nil
}

func (r *TaskRepo) DeletionState(ctx context.Context, tenantID, id string) (*time.Time, error) {
	return deletionState(ctx, r.Postgres, tasksTable, tenantID, id)
}

func (r *TaskRepo) MarkDeleted(ctx context.Context, tenantID, id string, at time.Time) error {
	return markDeleted(ctx, r.Postgres, tasksTable, tenantID, id, at)
}

type AccountRepo struct {
	*postgres.Postgres
}

func NewAccountRepo(pg *postgres.Postgres) *AccountRepo {
	return &AccountRepo{pg}
}

func (r *AccountRepo) Upsert(ctx context.Context, account *entity.Account) error {
	sql, args, err := r.Builder.
		Insert(accountsTable).
		Columns(softIDColumn, softTenantIDColumn, accountProviderColumn, accountEmailColumn, updatedAtColumn).
		Values(account.ID, account.TenantID, account.Provider, account.Email, account.UpdatedAt).
		Suffix("ON CONFLICT (" + softTenantIDColumn + ", " + softIDColumn + ") DO UPDATE SET " +
			excluded(accountProviderColumn) + ", " + excluded(accountEmailColumn) + ", " + excluded(updatedAtColumn) +
			" WHERE " + accountsTable + "." + softDeletedAtColumn + " IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("AccountRepo - Upsert - r.Builder.ToSql: %w", err)
	}

	_, err = r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("AccountRepo - Upsert - executor.Exec: %w", err)
	}

	return nil
}

func (r *AccountRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.Account, error) {
	sql, args, err := r.Builder.
		Select(softIDColumn, softTenantIDColumn, accountProviderColumn, accountEmailColumn, updatedAtColumn, softDeletedAtColumn).
		From(accountsTable).
		Where(squirrel.Eq{softTenantIDColumn: tenantID, softIDColumn: id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("AccountRepo - GetByID - r.Builder.ToSql: %w", err)
	}

	var account entity.Account
	err = r.GetExecutor(ctx).QueryRow(ctx, sql, args...).Scan(
		&account.ID,
		&account.TenantID,
		&account.Provider,
		&account.Email,
		&account.UpdatedAt,
		&account.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("AccountRepo - GetByID: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("AccountRepo - GetByID - executor.QueryRow: %w", err)
	}

	return &account, nil
}

func (r *AccountRepo) DeletionState(ctx context.Context, tenantID, id string) (*time.Time, error) {
	return deletionState(ctx, r.Postgres, accountsTable, tenantID, id)
}

func (r *AccountRepo) MarkDeleted(ctx context.Context, tenantID, id string, at time.Time) error {
	return markDeleted(ctx, r.Postgres, accountsTable, tenantID, id, at)
}
