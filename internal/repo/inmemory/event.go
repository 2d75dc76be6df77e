package inmemory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
)

type EventRepo struct {
	s *Store
}

func (r *EventRepo) Create(_ context.Context, event *entity.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.find(event.TenantID, event.ID) != nil {
		return fmt.Errorf("EventRepo - Create: duplicate id %s", event.ID)
	}

	cp := *event
	r.s.events = append(r.s.events, &cp)

	return nil
}

func (r *EventRepo) GetByID(_ context.Context, tenantID, id string) (*entity.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e := r.find(tenantID, id)
	if e == nil {
		return nil, fmt.Errorf("EventRepo - GetByID: %w", errs.ErrRecordNotFound)
	}

	cp := *e
	return &cp, nil
}

func (r *EventRepo) GetByIdempotencyKey(_ context.Context, tenantID, key string) (*entity.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i := len(r.s.events) - 1; i >= 0; i-- {
		e := r.s.events[i]
		if e.TenantID == tenantID && e.IdempotencyKey != nil && *e.IdempotencyKey == key {
			cp := *e
			return &cp, nil
		}
	}

	return nil, fmt.Errorf("EventRepo - GetByIdempotencyKey: %w", errs.ErrRecordNotFound)
}

func (r *EventRepo) List(_ context.Context, filter dto.EventFilter) ([]*entity.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*entity.Event, 0)
	for _, e := range r.s.events {
		if e.TenantID != filter.TenantID {
			continue
		}
		if len(filter.Types) > 0 && !slices.Contains(filter.Types, e.Type) {
			continue
		}
		if filter.Status != nil && e.ProcessingStatus != *filter.Status {
			continue
		}
		if filter.From != nil && e.OccurredAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !e.OccurredAt.Before(*filter.To) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })

	if limit := clampLimit(filter.Limit); len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (r *EventRepo) ClaimBatch(_ context.Context, filter dto.ClaimFilter, limit int, now time.Time) ([]*entity.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	candidates := make([]*entity.Event, 0)
	for _, e := range r.s.events {
		if e.ProcessingStatus != entity.Pending {
			continue
		}
		if filter.TenantID != nil && e.TenantID != *filter.TenantID {
			continue
		}
		if len(filter.Types) > 0 && !slices.Contains(filter.Types, e.Type) {
			continue
		}
		candidates = append(candidates, e)
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].OccurredAt.Before(candidates[j].OccurredAt) })

	if n := clampLimit(limit); len(candidates) > n {
		candidates = candidates[:n]
	}

	out := make([]*entity.Event, 0, len(candidates))
	for _, e := range candidates {
		claimedAt := now
		e.ProcessingStatus = entity.Processing
		e.ClaimedAt = &claimedAt
		cp := *e
		out = append(out, &cp)
	}

	return out, nil
}

func (r *EventRepo) Claim(_ context.Context, tenantID, id string, now time.Time) (*entity.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e := r.find(tenantID, id)
	if e == nil {
		return nil, fmt.Errorf("EventRepo - Claim: %w", errs.ErrRecordNotFound)
	}
	if e.ProcessingStatus != entity.Pending {
		return nil, fmt.Errorf("EventRepo - Claim: %w", errs.ErrLeaseConflict)
	}

	claimedAt := now
	e.ProcessingStatus = entity.Processing
	e.ClaimedAt = &claimedAt

	cp := *e
	return &cp, nil
}

func (r *EventRepo) Complete(_ context.Context, tenantID, id string, status entity.ProcessingStatus, now time.Time) error {
	return r.finish("Complete", tenantID, id, func(e *entity.Event) {
		processedAt := now
		e.ProcessingStatus = status
		e.ProcessedAt = &processedAt
		e.ErrorInfo = nil
	})
}

func (r *EventRepo) Fail(_ context.Context, tenantID, id, errorInfo string, now time.Time) error {
	return r.finish("Fail", tenantID, id, func(e *entity.Event) {
		processedAt := now
		e.ProcessingStatus = entity.Failed
		e.ProcessedAt = &processedAt
		e.ErrorInfo = &errorInfo
	})
}

func (r *EventRepo) finish(op, tenantID, id string, apply func(e *entity.Event)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e := r.find(tenantID, id)
	if e == nil {
		return fmt.Errorf("EventRepo - %s: %w", op, errs.ErrRecordNotFound)
	}
	if e.ProcessingStatus != entity.Processing {
		return fmt.Errorf("EventRepo - %s: %w", op, errs.ErrLeaseConflict)
	}

	apply(e)

	return nil
}

func (r *EventRepo) ResetStuck(_ context.Context, claimedBefore time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, e := range r.s.events {
		if e.ProcessingStatus == entity.Processing && e.ClaimedAt != nil && !e.ClaimedAt.After(claimedBefore) {
			e.ProcessingStatus = entity.Pending
			e.ClaimedAt = nil
			n++
		}
	}

	return n, nil
}

func (r *EventRepo) RetryFailed(_ context.Context, tenantID *string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, e := range r.s.events {
		if e.ProcessingStatus != entity.Failed {
			continue
		}
		if tenantID != nil && e.TenantID != *tenantID {
			continue
		}
		e.ProcessingStatus = entity.Pending
		e.ClaimedAt = nil
		e.ProcessedAt = nil
		n++
	}

	return n, nil
}

func (r *EventRepo) find(tenantID, id string) *entity.Event {
	for _, e := range r.s.events {
		if e.TenantID == tenantID && e.ID == id {
			return e
		}
	}
	return nil
}
