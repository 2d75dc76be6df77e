package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/repo/inmemory"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(now *time.Time) *LedgerUseCase {
	uc := New(inmemory.New().Idempotency(), logger.Nop())
	uc.now = func() time.Time { return *now }

	return uc
}

func TestLedgerCheckMiss(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	uc := newLedger(&now)

	_, hit, err := uc.Check(context.Background(), "t1", "k")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestLedgerFirstResultWins(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	uc := newLedger(&now)

	require.NoError(t, uc.Commit(ctx, "t1", "k", []byte(`{"a":1}`)))
	require.NoError(t, uc.Commit(ctx, "t1", "k", []byte(`{"a":2}`)))

	got, hit, err := uc.Check(ctx, "t1", "k")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, `{"a":1}`, string(got))
}

func TestLedgerScopedByTenant(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	uc := newLedger(&now)

	require.NoError(t, uc.Commit(ctx, "t1", "k", []byte("one")))

	_, hit, err := uc.Check(ctx, "t2", "k")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestLedgerExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	uc := newLedger(&now)

	require.NoError(t, uc.Commit(ctx, "t1", "k", []byte("old")))

	now = now.Add(24*time.Hour - time.Second)
	_, hit, err := uc.Check(ctx, "t1", "k")
	require.NoError(t, err)
	assert.True(t, hit)

	now = now.Add(time.Second)
	_, hit, err = uc.Check(ctx, "t1", "k")
	require.NoError(t, err)
	assert.False(t, hit, "a key at its TTL is treated as fresh")

	require.NoError(t, uc.Commit(ctx, "t1", "k", []byte("new")))
	got, hit, err := uc.Check(ctx, "t1", "k")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "new", string(got))
}

func TestLedgerSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	uc := newLedger(&now)

	require.NoError(t, uc.Commit(ctx, "t1", "a", []byte("1")))
	now = now.Add(time.Hour)
	require.NoError(t, uc.Commit(ctx, "t1", "b", []byte("2")))

	now = now.Add(23*time.Hour + time.Minute)
	n, err := uc.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, hit, err := uc.Check(ctx, "t1", "b")
	require.NoError(t, err)
	assert.True(t, hit)
}
