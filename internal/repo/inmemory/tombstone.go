package inmemory

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
)

type TombstoneRepo struct {
	s *Store
}

func (r *TombstoneRepo) Create(_ context.Context, t *entity.Tombstone) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := tombstoneKey{t.TenantID, t.Kind, t.RefID}
	if _, ok := r.s.tombIndex[k]; ok {
		return false, nil
	}

	r.s.tombSeq++
	t.Position = entity.TombstonePosition{Seq: r.s.tombSeq}

	cp := *t
	r.s.tombstones = append(r.s.tombstones, &cp)
	r.s.tombIndex[k] = &cp

	return true, nil
}

func (r *TombstoneRepo) Get(_ context.Context, tenantID string, kind entity.TombstoneKind, refID string) (*entity.Tombstone, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tombIndex[tombstoneKey{tenantID, kind, refID}]
	if !ok {
		return nil, fmt.Errorf("TombstoneRepo - Get: %w", errs.ErrRecordNotFound)
	}

	cp := *t
	return &cp, nil
}

// List returns tombstones in insertion order. Rows are visible as soon as they
// are appended, so a Seq cursor never passes a row that shows up later.
func (r *TombstoneRepo) List(_ context.Context, filter dto.TombstoneFilter) ([]*entity.Tombstone, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	limit := clampLimit(filter.Limit)
	out := make([]*entity.Tombstone, 0)
	for _, t := range r.s.tombstones {
		if len(out) == limit {
			break
		}
		if t.TenantID != filter.TenantID {
			continue
		}
		if filter.Kind != nil && t.Kind != *filter.Kind {
			continue
		}
		if filter.Since != nil && t.CreatedAt.Before(*filter.Since) {
			continue
		}
		if filter.After != nil && !t.Position.After(*filter.After) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}

	return out, nil
}
