package inmemory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
)

type CalendarEventRepo struct {
	s *Store
}

// Upsert keeps the stored id and policy (when the update carries none) and never
// revives a deleted row or touches another tenant's row.
func (r *CalendarEventRepo) Upsert(_ context.Context, e *entity.CalendarEvent) (*entity.CalendarEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, cur := range r.s.calendar {
		if cur.AccountRef != e.AccountRef || cur.ProviderEventID != e.ProviderEventID {
			continue
		}
		if cur.TenantID != e.TenantID {
			return nil, fmt.Errorf("CalendarEventRepo - Upsert: %w", errs.ErrRecordNotFound)
		}
		if cur.DeletedAt != nil {
			return copyCalendarEvent(cur), nil
		}

		id, policy := cur.ID, cur.Policy
		*cur = *copyCalendarEvent(e)
		cur.ID = id
		if cur.Policy == nil {
			cur.Policy = policy
		}

		return copyCalendarEvent(cur), nil
	}

	r.s.calendar = append(r.s.calendar, copyCalendarEvent(e))

	return copyCalendarEvent(e), nil
}

func (r *CalendarEventRepo) GetByID(_ context.Context, tenantID, id string) (*entity.CalendarEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e := r.find(tenantID, id)
	if e == nil || e.DeletedAt != nil {
		return nil, fmt.Errorf("CalendarEventRepo - GetByID: %w", errs.ErrRecordNotFound)
	}

	return copyCalendarEvent(e), nil
}

func (r *CalendarEventRepo) GetByProviderID(_ context.Context, tenantID, accountRef, providerEventID string) (*entity.CalendarEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, e := range r.s.calendar {
		if e.TenantID == tenantID && e.AccountRef == accountRef && e.ProviderEventID == providerEventID {
			return copyCalendarEvent(e), nil
		}
	}

	return nil, fmt.Errorf("CalendarEventRepo - GetByProviderID: %w", errs.ErrRecordNotFound)
}

func (r *CalendarEventRepo) UpdateSlot(_ context.Context, tenantID, id string, slot entity.TimeSlot, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e := r.find(tenantID, id)
	if e == nil || e.DeletedAt != nil {
		return fmt.Errorf("CalendarEventRepo - UpdateSlot: %w", errs.ErrRecordNotFound)
	}

	e.StartAt, e.EndAt = slot.StartAt, slot.EndAt
	e.UpdatedAt = now

	return nil
}

func (r *CalendarEventRepo) DeletionState(_ context.Context, tenantID, id string) (*time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e := r.find(tenantID, id)
	if e == nil {
		return nil, fmt.Errorf("CalendarEventRepo - DeletionState: %w", errs.ErrRecordNotFound)
	}

	return e.DeletedAt, nil
}

func (r *CalendarEventRepo) MarkDeleted(_ context.Context, tenantID, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e := r.find(tenantID, id)
	if e == nil {
		return fmt.Errorf("CalendarEventRepo - MarkDeleted: %w", errs.ErrRecordNotFound)
	}
	if e.DeletedAt == nil {
		deletedAt := at
		e.DeletedAt = &deletedAt
		e.UpdatedAt = at
	}

	return nil
}

func (r *CalendarEventRepo) find(tenantID, id string) *entity.CalendarEvent {
	for _, e := range r.s.calendar {
		if e.TenantID == tenantID && e.ID == id {
			return e
		}
	}
	return nil
}

func copyCalendarEvent(e *entity.CalendarEvent) *entity.CalendarEvent {
	cp := *e
	cp.Attendees = slices.Clone(e.Attendees)
	if e.Policy != nil {
		p := *e.Policy
		p.AllowedWindows = slices.Clone(e.Policy.AllowedWindows)
		cp.Policy = &p
	}
	return &cp
}
