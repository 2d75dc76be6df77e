package persistent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/postgres"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/jackc/pgx/v5"
)

const (
	// Table
	calendarEventsTable = "calendar_events"

	// Columns
	calIDColumn              = "id"
	calTenantIDColumn        = "tenant_id"
	calAccountRefColumn      = "account_ref"
	calProviderEventIDColumn = "provider_event_id"
	calTitleColumn           = "title"
	calLocationColumn        = "location"
	calStartAtColumn         = "start_at"
	calEndAtColumn           = "end_at"
	calTimezoneColumn        = "timezone"
	calAttendeesColumn       = "attendees"
	calOrganizerColumn       = "organizer"
	calVisibilityColumn      = "visibility"
	calPolicyColumn          = "policy"
	calUpdatedAtColumn       = "updated_at"
	calDeletedAtColumn       = "deleted_at"
)

var calendarEventColumns = []string{
	calIDColumn,
	calTenantIDColumn,
	calAccountRefColumn,
	calProviderEventIDColumn,
	calTitleColumn,
	calLocationColumn,
	calStartAtColumn,
	calEndAtColumn,
	calTimezoneColumn,
	calAttendeesColumn,
	calOrganizerColumn,
	calVisibilityColumn,
	calPolicyColumn,
	calUpdatedAtColumn,
	calDeletedAtColumn,
}

// calendarUpsertSuffix never touches another tenant's row nor revives a deleted one;
// a missing policy keeps the stored one.
var calendarUpsertSuffix = "ON CONFLICT (" + calAccountRefColumn + ", " + calProviderEventIDColumn + ") DO UPDATE SET " +
	strings.Join([]string{
		excluded(calTitleColumn),
		excluded(calLocationColumn),
		excluded(calStartAtColumn),
		excluded(calEndAtColumn),
		excluded(calTimezoneColumn),
		excluded(calAttendeesColumn),
		excluded(calOrganizerColumn),
		excluded(calVisibilityColumn),
		calPolicyColumn + " = COALESCE(EXCLUDED." + calPolicyColumn + ", " + calendarEventsTable + "." + calPolicyColumn + ")",
		excluded(calUpdatedAtColumn),
	}, ", ") +
	" WHERE " + calendarEventsTable + "." + calTenantIDColumn + " = EXCLUDED." + calTenantIDColumn +
	" AND " + calendarEventsTable + "." + calDeletedAtColumn + " IS NULL " +
	returning(calendarEventColumns)

type CalendarEventRepo struct {
	*postgres.Postgres
}

func NewCalendarEventRepo(pg *postgres.Postgres) *CalendarEventRepo {
	return &CalendarEventRepo{pg}
}

func (r *CalendarEventRepo) Upsert(ctx context.Context, event *entity.CalendarEvent) (*entity.CalendarEvent, error) {
	attendees := event.Attendees
	if attendees == nil {
		attendees = []string{}
	}

	sql, args, err := r.Builder.
		Insert(calendarEventsTable).
		Columns(calendarEventColumns...).
		Values(
			event.ID,
			event.TenantID,
			event.AccountRef,
			event.ProviderEventID,
			event.Title,
			event.Location,
			event.StartAt,
			event.EndAt,
			event.Timezone,
			attendees,
			event.Organizer,
			event.Visibility,
			event.Policy,
			event.UpdatedAt,
			nil,
		).
		Suffix(calendarUpsertSuffix).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("CalendarEventRepo - Upsert - r.Builder.ToSql: %w", err)
	}

	stored, err := scanCalendarEvent(r.GetExecutor(ctx).QueryRow(ctx, sql, args...))
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("CalendarEventRepo - Upsert - executor.QueryRow: %w", err)
	}

	// The conflict guard rejected the update: either a tombstoned row or a foreign tenant.
	stored, err = r.GetByProviderID(ctx, event.TenantID, event.AccountRef, event.ProviderEventID)
	if err != nil {
		return nil, fmt.Errorf("CalendarEventRepo - Upsert: %w", err)
	}

	return stored, nil
}

func (r *CalendarEventRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.CalendarEvent, error) {
	return r.getOne(ctx, "GetByID", squirrel.Eq{calTenantIDColumn: tenantID, calIDColumn: id})
}

func (r *CalendarEventRepo) GetByProviderID(ctx context.Context, tenantID, accountRef, providerEventID string) (*entity.CalendarEvent, error) {
	return r.getOne(ctx, "GetByProviderID", squirrel.Eq{
		calTenantIDColumn:        tenantID,
		calAccountRefColumn:      accountRef,
		calProviderEventIDColumn: providerEventID,
	})
}

func (r *CalendarEventRepo) getOne(ctx context.Context, op string, where squirrel.Eq) (*entity.CalendarEvent, error) {
	sql, args, err := r.Builder.
		Select(calendarEventColumns...).
		From(calendarEventsTable).
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("CalendarEventRepo - %s - r.Builder.ToSql: %w", op, err)
	}

	event, err := scanCalendarEvent(r.GetExecutor(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("CalendarEventRepo - %s: %w", op, errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("CalendarEventRepo - %s - executor.QueryRow: %w", op, err)
	}

	return event, nil
}

func (r *CalendarEventRepo) UpdateSlot(ctx context.Context, tenantID, id string, slot entity.TimeSlot, now time.Time) error {
	sql, args, err := r.Builder.
		Update(calendarEventsTable).
		Set(calStartAtColumn, slot.StartAt).
		Set(calEndAtColumn, slot.EndAt).
		Set(calUpdatedAtColumn, now).
		Where(squirrel.Eq{calTenantIDColumn: tenantID, calIDColumn: id, calDeletedAtColumn: nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("CalendarEventRepo - UpdateSlot - r.Builder.ToSql: %w", err)
	}

	tag, err := r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("CalendarEventRepo - UpdateSlot - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("CalendarEventRepo - UpdateSlot: %w", errs.ErrRecordNotFound)
	}

	return nil
}

func (r *CalendarEventRepo) DeletionState(ctx context.Context, tenantID, id string) (*time.Time, error) {
	return deletionState(ctx, r.Postgres, calendarEventsTable, tenantID, id)
}

func (r *CalendarEventRepo) MarkDeleted(ctx context.Context, tenantID, id string, at time.Time) error {
	return markDeleted(ctx, r.Postgres, calendarEventsTable, tenantID, id, at)
}

func scanCalendarEvent(row pgx.Row) (*entity.CalendarEvent, error) {
	var event entity.CalendarEvent
	err := row.Scan(
		&event.ID,
		&event.TenantID,
		&event.AccountRef,
		&event.ProviderEventID,
		&event.Title,
		&event.Location,
		&event.StartAt,
		&event.EndAt,
		&event.Timezone,
		&event.Attendees,
		&event.Organizer,
		&event.Visibility,
		&event.Policy,
		&event.UpdatedAt,
		&event.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	return &event, nil
}

func excluded(column string) string {
	return column + " = EXCLUDED." + column
}
