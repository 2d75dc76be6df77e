package inmemory

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
)

type TaskRepo struct {
	s *Store
}

func (r *TaskRepo) Upsert(_ context.Context, task *entity.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := tenantKey{task.TenantID, task.ID}
	if cur, ok := r.s.tasks[k]; ok && cur.DeletedAt != nil {
		return nil
	}

	cp := *task
	r.s.tasks[k] = &cp

	return nil
}

func (r *TaskRepo) GetByID(_ context.Context, tenantID, id string) (*entity.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[tenantKey{tenantID, id}]
	if !ok || t.DeletedAt != nil {
		return nil, fmt.Errorf("TaskRepo - GetByID: %w", errs.ErrRecordNotFound)
	}

	cp := *t
	return &cp, nil
}

func (r *TaskRepo) DeletionState(_ context.Context, tenantID, id string) (*time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[tenantKey{tenantID, id}]
	if !ok {
		return nil, fmt.Errorf("TaskRepo - DeletionState: %w", errs.ErrRecordNotFound)
	}

	return t.DeletedAt, nil
}

func (r *TaskRepo) MarkDeleted(_ context.Context, tenantID, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[tenantKey{tenantID, id}]
	if !ok {
		return fmt.Errorf("TaskRepo - MarkDeleted: %w", errs.ErrRecordNotFound)
	}
	if t.DeletedAt == nil {
		deletedAt := at
		t.DeletedAt = &deletedAt
		t.UpdatedAt = at
	}

	return nil
}

type AccountRepo struct {
	s *Store
}

func (r *AccountRepo) Upsert(_ context.Context, account *entity.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := tenantKey{account.TenantID, account.ID}
	if cur, ok := r.s.accounts[k]; ok && cur.DeletedAt != nil {
		return nil
	}

	cp := *account
	r.s.accounts[k] = &cp

	return nil
}

func (r *AccountRepo) GetByID(_ context.Context, tenantID, id string) (*entity.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[tenantKey{tenantID, id}]
	if !ok || a.DeletedAt != nil {
		return nil, fmt.Errorf("AccountRepo - GetByID: %w", errs.ErrRecordNotFound)
	}

	cp := *a
	return &cp, nil
}

func (r *AccountRepo) DeletionState(_ context.Context, tenantID, id string) (*time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[tenantKey{tenantID, id}]
	if !ok {
		return nil, fmt.Errorf("AccountRepo - DeletionState: %w", errs.ErrRecordNotFound)
	}

	return a.DeletedAt, nil
}

func (r *AccountRepo) MarkDeleted(_ context.Context, tenantID, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[tenantKey{tenantID, id}]
	if !ok {
		return fmt.Errorf("AccountRepo - MarkDeleted: %w", errs.ErrRecordNotFound)
	}
	if a.DeletedAt == nil {
		deletedAt := at
		a.DeletedAt = &deletedAt
		a.UpdatedAt = at
	}

	return nil
}
