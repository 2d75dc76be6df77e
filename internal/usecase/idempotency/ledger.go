package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/internal/repo"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
)

type LedgerUseCase struct {
	repo repo.IdempotencyRepo
	ttl  time.Duration

	logger logger.Interface
	now    func() time.Time
}

func New(r repo.IdempotencyRepo, l logger.Interface) *LedgerUseCase {
	return &LedgerUseCase{
		repo:   r,
		ttl:    entity.IdempotencyTTL,
		logger: l,
		now:    time.Now,
	}
}

// Check reports a hit only for a record that is still live; an expired key
// behaves as if it had never been seen.
func (uc *LedgerUseCase) Check(ctx context.Context, tenantID, key string) ([]byte, bool, error) {
	rec, err := uc.repo.Get(ctx, tenantID, key)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("LedgerUseCase - Check - uc.repo.Get: %w", err)
	}

	if rec.Expired(uc.now()) {
		return nil, false, nil
	}

	return rec.CachedResult, true, nil
}

// Commit never replaces a live record: the first result under a key wins.
func (uc *LedgerUseCase) Commit(ctx context.Context, tenantID, key string, result []byte) error {
	now := uc.now()

	stored, err := uc.repo.Create(ctx, &entity.IdempotencyRecord{
		TenantID:     tenantID,
		Key:          key,
		CachedResult: result,
		CreatedAt:    now,
		ExpiresAt:    now.Add(uc.ttl),
	})
	if err != nil {
		return fmt.Errorf("LedgerUseCase - Commit - uc.repo.Create: %w", err)
	}

	if !stored {
		uc.logger.Debug("LedgerUseCase - Commit - key %s already holds a live result", key)
	}

	return nil
}

func (uc *LedgerUseCase) Sweep(ctx context.Context) (int64, error) {
	n, err := uc.repo.DeleteExpired(ctx, uc.now())
	if err != nil {
		return 0, fmt.Errorf("LedgerUseCase - Sweep - uc.repo.DeleteExpired: %w", err)
	}

	return n, nil
}
