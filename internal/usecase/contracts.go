package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
)

type (
	LedgerUseCase interface {
		// Check returns the cached result of a live record under key.
		Check(ctx context.Context, tenantID, key string) ([]byte, bool, error)
		Commit(ctx context.Context, tenantID, key string, result []byte) error
		Sweep(ctx context.Context) (int64, error)
	}

	EventLogUseCase interface {
		// Append reports true when the event was already recorded under the same idempotency key.
		Append(ctx context.Context, in dto.AppendEvent) (*entity.Event, bool, error)
		GetByID(ctx context.Context, tenantID, id string) (*entity.Event, error)
		List(ctx context.Context, filter dto.EventFilter) ([]*entity.Event, error)
	}

	IngestUseCase interface {
		Ingest(ctx context.Context, tenantID string, items []dto.IngestItem) ([]json.RawMessage, error)
		GetCalendarEvent(ctx context.Context, tenantID, id string) (*entity.CalendarEvent, error)
	}

	DispatchUseCase interface {
		ClaimBatch(ctx context.Context, filter dto.ClaimFilter, limit int) ([]*entity.Event, error)
		Claim(ctx context.Context, tenantID, id string) (*entity.Event, error)
		Complete(ctx context.Context, tenantID, id string, outcome dto.EventOutcome) (*dto.CreatedProposal, error)
		Fail(ctx context.Context, tenantID, id, reason string) error
		ResetStuck(ctx context.Context, threshold time.Duration) (int64, error)
		RetryFailed(ctx context.Context, tenantID *string) (int64, error)
	}

	OutboxUseCase interface {
		Enqueue(ctx context.Context, in dto.EnqueueNotification) (*entity.OutboxNotification, error)
		List(ctx context.Context, filter dto.NotificationFilter) ([]*entity.OutboxNotification, error)
		ClaimBatch(ctx context.Context, limit int) ([]*entity.OutboxNotification, error)
		MarkSent(ctx context.Context, id string) error
		Fail(ctx context.Context, id, reason string) (entity.NotificationStatus, error)
		Cancel(ctx context.Context, id string) error
		ResetStuck(ctx context.Context, threshold time.Duration) (int64, error)
		RetryFailed(ctx context.Context) (int64, error)
		Cleanup(ctx context.Context, retention time.Duration) (int64, error)
	}

	ProposalUseCase interface {
		Create(ctx context.Context, in dto.CreateProposal) (*dto.CreatedProposal, error)
		Decide(ctx context.Context, in dto.Decide) (*entity.Proposal, error)
		Apply(ctx context.Context, tenantID, id string) (*entity.Proposal, error)
		Get(ctx context.Context, tenantID, id string) (*dto.ProposalView, error)
		ExpireStale(ctx context.Context) (int64, error)
	}

	TombstoneUseCase interface {
		// SoftDelete returns the deletion event only when this call performed the deletion.
		SoftDelete(ctx context.Context, in dto.SoftDelete) (*entity.Tombstone, *entity.Event, error)
		List(ctx context.Context, filter dto.TombstoneFilter) (*dto.TombstonePage, error)
	}

	ArchiveUseCase interface {
		ExportAudit(ctx context.Context, tenantID string, from, to time.Time) (*dto.AuditExport, error)
	}
)
