package inmemory

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
)

type IdempotencyRepo struct {
	s *Store
}

func (r *IdempotencyRepo) Get(_ context.Context, tenantID, key string) (*entity.IdempotencyRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.idempotency[tenantKey{tenantID, key}]
	if !ok {
		return nil, fmt.Errorf("IdempotencyRepo - Get: %w", errs.ErrRecordNotFound)
	}

	cp := *rec
	return &cp, nil
}

func (r *IdempotencyRepo) Create(_ context.Context, rec *entity.IdempotencyRecord) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := tenantKey{rec.TenantID, rec.Key}
	if existing, ok := r.s.idempotency[k]; ok && !existing.Expired(rec.CreatedAt) {
		return false, nil
	}

	cp := *rec
	cp.CachedResult = append([]byte(nil), rec.CachedResult...)
	r.s.idempotency[k] = &cp

	return true, nil
}

func (r *IdempotencyRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for k, rec := range r.s.idempotency {
		if rec.Expired(now) {
			delete(r.s.idempotency, k)
			n++
		}
	}

	return n, nil
}
