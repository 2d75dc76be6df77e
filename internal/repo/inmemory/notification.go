package inmemory

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
)

type NotificationRepo struct {
	s *Store
}

func (r *NotificationRepo) Create(_ context.Context, n *entity.OutboxNotification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *n
	r.s.outbox = append(r.s.outbox, &cp)

	return nil
}

func (r *NotificationRepo) List(_ context.Context, filter dto.NotificationFilter) ([]*entity.OutboxNotification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	limit := clampLimit(filter.Limit)
	out := make([]*entity.OutboxNotification, 0)
	for _, n := range r.s.outbox {
		if len(out) == limit {
			break
		}
		if filter.TenantID != nil && n.TenantID != *filter.TenantID {
			continue
		}
		if filter.Status != nil && n.Status != *filter.Status {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}

	return out, nil
}

func (r *NotificationRepo) ClaimBatch(_ context.Context, limit int, now time.Time) ([]*entity.OutboxNotification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	limit = clampLimit(limit)
	out := make([]*entity.OutboxNotification, 0)
	for _, n := range r.s.outbox {
		if len(out) == limit {
			break
		}
		if n.Status != entity.NotificationPending {
			continue
		}
		claimedAt := now
		n.Status = entity.NotificationProcessing
		n.Attempts++
		n.ClaimedAt = &claimedAt
		n.UpdatedAt = now
		cp := *n
		out = append(out, &cp)
	}

	return out, nil
}

func (r *NotificationRepo) MarkSent(_ context.Context, id string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, err := r.claimed("MarkSent", id)
	if err != nil {
		return err
	}

	n.Status = entity.NotificationSent
	n.LastError = nil
	n.UpdatedAt = now

	return nil
}

func (r *NotificationRepo) Fail(_ context.Context, id, lastError string, maxAttempts int, now time.Time) (entity.NotificationStatus, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, err := r.claimed("Fail", id)
	if err != nil {
		return "", err
	}

	n.Status = nextAfterFailure(n.Attempts, maxAttempts)
	n.LastError = &lastError
	n.ClaimedAt = nil
	n.UpdatedAt = now

	return n.Status, nil
}

func (r *NotificationRepo) Cancel(_ context.Context, id string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := r.find(id)
	if n == nil {
		return fmt.Errorf("NotificationRepo - Cancel: %w", errs.ErrRecordNotFound)
	}
	if n.Status.Terminal() {
		return fmt.Errorf("NotificationRepo - Cancel: %w", errs.ErrLeaseConflict)
	}

	n.Status = entity.NotificationCancelled
	n.UpdatedAt = now

	return nil
}

func (r *NotificationRepo) ResetStuck(_ context.Context, claimedBefore time.Time, maxAttempts int, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var count int64
	for _, n := range r.s.outbox {
		if n.Status == entity.NotificationProcessing && n.ClaimedAt != nil && !n.ClaimedAt.After(claimedBefore) {
			n.Status = nextAfterFailure(n.Attempts, maxAttempts)
			n.ClaimedAt = nil
			n.UpdatedAt = now
			count++
		}
	}

	return count, nil
}

func (r *NotificationRepo) RetryFailed(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var count int64
	for _, n := range r.s.outbox {
		if n.Status == entity.NotificationFailed {
			n.Status = entity.NotificationPending
			n.Attempts = 0
			n.UpdatedAt = now
			count++
		}
	}

	return count, nil
}

func (r *NotificationRepo) DeleteDelivered(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var count int64
	kept := r.s.outbox[:0]
	for _, n := range r.s.outbox {
		delivered := n.Status == entity.NotificationSent || n.Status == entity.NotificationCancelled
		if delivered && n.UpdatedAt.Before(before) {
			count++
			continue
		}
		kept = append(kept, n)
	}
	r.s.outbox = kept

	return count, nil
}

func (r *NotificationRepo) claimed(op, id string) (*entity.OutboxNotification, error) {
	n := r.find(id)
	if n == nil {
		return nil, fmt.Errorf("NotificationRepo - %s: %w", op, errs.ErrRecordNotFound)
	}
	if n.Status != entity.NotificationProcessing {
		return nil, fmt.Errorf("NotificationRepo - %s: %w", op, errs.ErrLeaseConflict)
	}
	return n, nil
}

func (r *NotificationRepo) find(id string) *entity.OutboxNotification {
	for _, n := range r.s.outbox {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func nextAfterFailure(attempts, maxAttempts int) entity.NotificationStatus {
	if attempts >= maxAttempts {
		return entity.NotificationFailed
	}
	return entity.NotificationPending
}
