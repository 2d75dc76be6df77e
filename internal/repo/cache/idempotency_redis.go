// Package cache keeps the idempotency ledger in Redis; key expiry replaces the sweep.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/redisclient"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/redis/go-redis/v9"
)

const _keyPrefix = "idempotency"

type IdempotencyRepo struct {
	*redisclient.Client
}

func NewIdempotencyRepo(c *redisclient.Client) *IdempotencyRepo {
	return &IdempotencyRepo{c}
}

func recordKey(tenantID, key string) string {
	return fmt.Sprintf("%s:%s:%s", _keyPrefix, tenantID, key)
}

func (r *IdempotencyRepo) Get(ctx context.Context, tenantID, key string) (*entity.IdempotencyRecord, error) {
	b, err := r.Redis.Get(ctx, recordKey(tenantID, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("IdempotencyRepo - Get: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("IdempotencyRepo - Get - r.Redis.Get: %w", err)
	}

	var rec entity.IdempotencyRecord
	err = json.Unmarshal(b, &rec)
	if err != nil {
		return nil, fmt.Errorf("IdempotencyRepo - Get - json.Unmarshal: %w", err)
	}

	return &rec, nil
}

// Create relies on SET NX: a live key is never overwritten and expiry frees it.
func (r *IdempotencyRepo) Create(ctx context.Context, rec *entity.IdempotencyRecord) (bool, error) {
	ttl := rec.ExpiresAt.Sub(rec.CreatedAt)
	if ttl <= 0 {
		return false, nil
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("IdempotencyRepo - Create - json.Marshal: %w", err)
	}

	stored, err := r.Redis.SetNX(ctx, recordKey(rec.TenantID, rec.Key), b, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("IdempotencyRepo - Create - r.Redis.SetNX: %w", err)
	}

	return stored, nil
}

// DeleteExpired is a no-op, Redis evicts expired keys itself.
func (r *IdempotencyRepo) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
