package repo

import (
	"context"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
)

// Lookups return errs.ErrRecordNotFound when no row matches the tenant-scoped key.
// Compare-and-swap updates return errs.ErrLeaseConflict or errs.ErrInvalidTransition
// when the expected current status no longer holds.
type (
	Transactor interface {
		WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error
	}

	IdempotencyRepo interface {
		Get(ctx context.Context, tenantID, key string) (*entity.IdempotencyRecord, error)
		// Create stores rec unless a live record holds the key; it reports whether rec was stored.
		Create(ctx context.Context, rec *entity.IdempotencyRecord) (bool, error)
		DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	}

	EventRepo interface {
		Create(ctx context.Context, event *entity.Event) error
		GetByID(ctx context.Context, tenantID, id string) (*entity.Event, error)
		GetByIdempotencyKey(ctx context.Context, tenantID, key string) (*entity.Event, error)
		List(ctx context.Context, filter dto.EventFilter) ([]*entity.Event, error)

		ClaimBatch(ctx context.Context, filter dto.ClaimFilter, limit int, now time.Time) ([]*entity.Event, error)
		Claim(ctx context.Context, tenantID, id string, now time.Time) (*entity.Event, error)
		Complete(ctx context.Context, tenantID, id string, status entity.ProcessingStatus, now time.Time) error
		Fail(ctx context.Context, tenantID, id, errorInfo string, now time.Time) error
		ResetStuck(ctx context.Context, claimedBefore time.Time) (int64, error)
		RetryFailed(ctx context.Context, tenantID *string) (int64, error)
	}

	// SoftDeletable is implemented by every store that a Tombstone can reference.
	SoftDeletable interface {
		// DeletionState returns the row's deleted_at (nil while live).
		DeletionState(ctx context.Context, tenantID, id string) (*time.Time, error)
		MarkDeleted(ctx context.Context, tenantID, id string, at time.Time) error
	}

	CalendarEventRepo interface {
		SoftDeletable
		// Upsert matches on (AccountRef, ProviderEventID) and returns the stored row.
		Upsert(ctx context.Context, event *entity.CalendarEvent) (*entity.CalendarEvent, error)
		GetByID(ctx context.Context, tenantID, id string) (*entity.CalendarEvent, error)
		GetByProviderID(ctx context.Context, tenantID, accountRef, providerEventID string) (*entity.CalendarEvent, error)
		UpdateSlot(ctx context.Context, tenantID, id string, slot entity.TimeSlot, now time.Time) error
	}

	TaskRepo interface {
		SoftDeletable
		Upsert(ctx context.Context, task *entity.Task) error
		GetByID(ctx context.Context, tenantID, id string) (*entity.Task, error)
	}

	AccountRepo interface {
		SoftDeletable
		Upsert(ctx context.Context, account *entity.Account) error
		GetByID(ctx context.Context, tenantID, id string) (*entity.Account, error)
	}

	ProposalRepo interface {
		SoftDeletable
		Create(ctx context.Context, proposal *entity.Proposal) error
		GetByID(ctx context.Context, tenantID, id string) (*entity.Proposal, error)
		GetByTokenHash(ctx context.Context, tokenHash string) (*entity.Proposal, error)
		// Transition moves from -> to; chosen is written when to carries a chosen option.
		Transition(ctx context.Context, tenantID, id string, from, to entity.ProposalStatus, chosen *int, now time.Time) error
		ListExpirable(ctx context.Context, now time.Time, limit int) ([]*entity.Proposal, error)
	}

	ApprovalRepo interface {
		Create(ctx context.Context, approval *entity.Approval) error
		ListByProposal(ctx context.Context, proposalID string) ([]*entity.Approval, error)
	}

	TombstoneRepo interface {
		// Create inserts unless (tenant, kind, ref) already has one; it reports whether it inserted.
		Create(ctx context.Context, tombstone *entity.Tombstone) (bool, error)
		Get(ctx context.Context, tenantID string, kind entity.TombstoneKind, refID string) (*entity.Tombstone, error)
		List(ctx context.Context, filter dto.TombstoneFilter) ([]*entity.Tombstone, error)
	}

	NotificationRepo interface {
		Create(ctx context.Context, notification *entity.OutboxNotification) error
		List(ctx context.Context, filter dto.NotificationFilter) ([]*entity.OutboxNotification, error)

		ClaimBatch(ctx context.Context, limit int, now time.Time) ([]*entity.OutboxNotification, error)
		MarkSent(ctx context.Context, id string, now time.Time) error
		// Fail returns the status the notification ended in (pending or failed).
		Fail(ctx context.Context, id, lastError string, maxAttempts int, now time.Time) (entity.NotificationStatus, error)
		Cancel(ctx context.Context, id string, now time.Time) error
		ResetStuck(ctx context.Context, claimedBefore time.Time, maxAttempts int, now time.Time) (int64, error)
		RetryFailed(ctx context.Context, now time.Time) (int64, error)
		DeleteDelivered(ctx context.Context, before time.Time) (int64, error)
	}

	ArchiveRepo interface {
		Upload(ctx context.Context, key string, data []byte, contentType string) error
	}
)
