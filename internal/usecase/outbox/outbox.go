package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/internal/infrastructure"
	"github.com/andreyxaxa/Reschedule-Engine/internal/repo"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/google/uuid"
)

// MaxAttempts is the delivery ceiling; the next failure after it dead-letters the row.
const MaxAttempts = 3

type OutboxUseCase struct {
	repo   repo.NotificationRepo
	minter infrastructure.NotificationMinter

	logger logger.Interface
	now    func() time.Time
}

// New builds the outbox queue. With a nil minter claimed rows are returned as stored.
func New(r repo.NotificationRepo, minter infrastructure.NotificationMinter, l logger.Interface) *OutboxUseCase {
	return &OutboxUseCase{
		repo:   r,
		minter: minter,
		logger: l,
		now:    time.Now,
	}
}

func (uc *OutboxUseCase) Enqueue(ctx context.Context, in dto.EnqueueNotification) (*entity.OutboxNotification, error) {
	switch {
	case in.TenantID == "":
		return nil, errs.NewValidation("tenantId", "required")
	case in.Channel != entity.ChannelEmail && in.Channel != entity.ChannelPush:
		return nil, errs.NewValidation("channel", fmt.Sprintf("unknown channel %q", in.Channel))
	case in.To == "":
		return nil, errs.NewValidation("to", "required")
	case in.TemplateID == "":
		return nil, errs.NewValidation("templateId", "required")
	}

	payload, err := json.Marshal(in.Payload)
	if err != nil {
		return nil, fmt.Errorf("OutboxUseCase - Enqueue - json.Marshal: %w", err)
	}

	now := uc.now()
	n := &entity.OutboxNotification{
		ID:         uuid.NewString(),
		TenantID:   in.TenantID,
		Channel:    in.Channel,
		To:         in.To,
		TemplateID: in.TemplateID,
		Payload:    payload,
		Status:     entity.NotificationPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := uc.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("OutboxUseCase - Enqueue - uc.repo.Create: %w", err)
	}

	return n, nil
}

func (uc *OutboxUseCase) List(ctx context.Context, filter dto.NotificationFilter) ([]*entity.OutboxNotification, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, errs.NewValidation("status", "unknown notification status")
	}

	out, err := uc.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("OutboxUseCase - List - uc.repo.List: %w", err)
	}

	return out, nil
}

// ClaimBatch leases up to limit rows. Every claimer, in-process relay or HTTP
// drainer, gets the rows ready to deliver: approval requests carry their token.
func (uc *OutboxUseCase) ClaimBatch(ctx context.Context, limit int) ([]*entity.OutboxNotification, error) {
	if limit <= 0 {
		return nil, errs.NewValidation("limit", "must be positive")
	}

	now := uc.now()
	claimed, err := uc.repo.ClaimBatch(ctx, limit, now)
	if err != nil {
		return nil, fmt.Errorf("OutboxUseCase - ClaimBatch - uc.repo.ClaimBatch: %w", err)
	}
	if uc.minter == nil {
		return claimed, nil
	}

	out := make([]*entity.OutboxNotification, 0, len(claimed))
	for _, n := range claimed {
		minted, err := uc.minter.Mint(n)
		if err != nil {
			// без токена строку не отдаём
			uc.logger.Error(err, "OutboxUseCase - ClaimBatch - uc.minter.Mint")
			if _, ferr := uc.repo.Fail(ctx, n.ID, "mint: "+err.Error(), MaxAttempts, now); ferr != nil {
				uc.logger.Error(ferr, "OutboxUseCase - ClaimBatch - uc.repo.Fail")
			}
			continue
		}
		out = append(out, minted)
	}

	return out, nil
}

func (uc *OutboxUseCase) MarkSent(ctx context.Context, id string) error {
	if err := uc.repo.MarkSent(ctx, id, uc.now()); err != nil {
		return fmt.Errorf("OutboxUseCase - MarkSent - uc.repo.MarkSent: %w", notFound(err))
	}

	return nil
}

// Fail records a delivery failure and returns pending while retries remain, failed after that.
func (uc *OutboxUseCase) Fail(ctx context.Context, id, reason string) (entity.NotificationStatus, error) {
	status, err := uc.repo.Fail(ctx, id, reason, MaxAttempts, uc.now())
	if err != nil {
		return "", fmt.Errorf("OutboxUseCase - Fail - uc.repo.Fail: %w", notFound(err))
	}

	if status == entity.NotificationFailed {
		uc.logger.Warn("OutboxUseCase - Fail - notification %s dead-lettered: %s", id, reason)
	}

	return status, nil
}

func (uc *OutboxUseCase) Cancel(ctx context.Context, id string) error {
	if err := uc.repo.Cancel(ctx, id, uc.now()); err != nil {
		return fmt.Errorf("OutboxUseCase - Cancel - uc.repo.Cancel: %w", notFound(err))
	}

	return nil
}

func (uc *OutboxUseCase) ResetStuck(ctx context.Context, threshold time.Duration) (int64, error) {
	if threshold <= 0 {
		return 0, errs.NewValidation("threshold", "must be positive")
	}

	now := uc.now()

	n, err := uc.repo.ResetStuck(ctx, now.Add(-threshold), MaxAttempts, now)
	if err != nil {
		return 0, fmt.Errorf("OutboxUseCase - ResetStuck - uc.repo.ResetStuck: %w", err)
	}

	return n, nil
}

func (uc *OutboxUseCase) RetryFailed(ctx context.Context) (int64, error) {
	n, err := uc.repo.RetryFailed(ctx, uc.now())
	if err != nil {
		return 0, fmt.Errorf("OutboxUseCase - RetryFailed - uc.repo.RetryFailed: %w", err)
	}

	return n, nil
}

// Cleanup drops delivered and cancelled rows older than retention.
func (uc *OutboxUseCase) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := uc.repo.DeleteDelivered(ctx, uc.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("OutboxUseCase - Cleanup - uc.repo.DeleteDelivered: %w", err)
	}

	return n, nil
}

// notFound hides missing rows behind the caller-facing sentinel; lease conflicts pass through.
func notFound(err error) error {
	if errors.Is(err, errs.ErrRecordNotFound) {
		return errs.ErrNotFoundOrAccessDenied
	}
	return err
}
