package tombstone

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/internal/repo"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/google/uuid"
)

type TombstoneUseCase struct {
	tombstones repo.TombstoneRepo
	stores     map[entity.TombstoneKind]repo.SoftDeletable
	events     usecase.EventLogUseCase
	transactor repo.Transactor

	logger logger.Interface
	now    func() time.Time
}

// Stores names the repository behind each tombstone kind.
type Stores struct {
	Events    repo.SoftDeletable
	Tasks     repo.SoftDeletable
	Proposals repo.SoftDeletable
	Accounts  repo.SoftDeletable
}

func New(
	tombstones repo.TombstoneRepo,
	stores Stores,
	events usecase.EventLogUseCase,
	transactor repo.Transactor,
	l logger.Interface,
) *TombstoneUseCase {
	return &TombstoneUseCase{
		tombstones: tombstones,
		stores: map[entity.TombstoneKind]repo.SoftDeletable{
			entity.KindEvent:    stores.Events,
			entity.KindTask:     stores.Tasks,
			entity.KindProposal: stores.Proposals,
			entity.KindAccount:  stores.Accounts,
		},
		events:     events,
		transactor: transactor,
		logger:     l,
		now:        time.Now,
	}
}

// SoftDelete is idempotent: deleting an already deleted record returns its
// existing tombstone and appends nothing.
func (uc *TombstoneUseCase) SoftDelete(ctx context.Context, in dto.SoftDelete) (*entity.Tombstone, *entity.Event, error) {
	if !in.Kind.Valid() {
		return nil, nil, errs.NewValidation("kind", fmt.Sprintf("unknown kind %q", in.Kind))
	}
	if in.RefID == "" {
		return nil, nil, errs.NewValidation("refId", "required")
	}

	store := uc.stores[in.Kind]

	var (
		tomb  *entity.Tombstone
		event *entity.Event
	)

	err := uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		// 1. запись должна принадлежать тенанту
		deletedAt, err := store.DeletionState(ctx, in.TenantID, in.RefID)
		if err != nil {
			if errors.Is(err, errs.ErrRecordNotFound) {
				return errs.ErrNotFoundOrAccessDenied
			}
			return fmt.Errorf("TombstoneUseCase - SoftDelete - store.DeletionState: %w", err)
		}

		// 2. сначала надгробие, затем пометка deleted_at
		now := uc.now()
		candidate := &entity.Tombstone{
			ID:        uuid.NewString(),
			TenantID:  in.TenantID,
			Kind:      in.Kind,
			RefID:     in.RefID,
			Reason:    in.Reason,
			CreatedAt: now,
		}

		inserted, err := uc.tombstones.Create(ctx, candidate)
		if err != nil {
			return fmt.Errorf("TombstoneUseCase - SoftDelete - uc.tombstones.Create: %w", err)
		}

		if !inserted {
			tomb, err = uc.tombstones.Get(ctx, in.TenantID, in.Kind, in.RefID)
			if err != nil {
				return fmt.Errorf("TombstoneUseCase - SoftDelete - uc.tombstones.Get: %w", err)
			}
		} else {
			tomb = candidate
		}

		// 3. повторное удаление ничего не дописывает
		if deletedAt != nil && !inserted {
			return nil
		}

		if deletedAt == nil {
			if err := store.MarkDeleted(ctx, in.TenantID, in.RefID, now); err != nil {
				return fmt.Errorf("TombstoneUseCase - SoftDelete - store.MarkDeleted: %w", err)
			}
		}

		// 4. событие удаления
		event, _, err = uc.events.Append(ctx, dto.AppendEvent{
			TenantID: in.TenantID,
			Type:     entity.DeletedEventType(in.Kind),
			Payload:  entity.DeletionPayload(in.Kind, in.RefID, tomb.ID, in.Reason),
		})
		if err != nil {
			return fmt.Errorf("TombstoneUseCase - SoftDelete - uc.events.Append: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return tomb, event, nil
}

func (uc *TombstoneUseCase) List(ctx context.Context, filter dto.TombstoneFilter) (*dto.TombstonePage, error) {
	if filter.Kind != nil && !filter.Kind.Valid() {
		return nil, errs.NewValidation("kind", fmt.Sprintf("unknown kind %q", *filter.Kind))
	}

	out, err := uc.tombstones.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("TombstoneUseCase - List - uc.tombstones.List: %w", err)
	}

	page := &dto.TombstonePage{Tombstones: out}
	switch {
	case len(out) > 0:
		page.NextCursor = dto.EncodeTombstoneCursor(out[len(out)-1].Position)
	case filter.After != nil:
		page.NextCursor = dto.EncodeTombstoneCursor(*filter.After)
	}

	return page, nil
}
