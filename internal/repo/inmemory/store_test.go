package inmemory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func pendingEvent(id string) *entity.Event {
	return &entity.Event{
		ID:               id,
		TenantID:         "tenant-a",
		Type:             entity.CalendarEventUpserted,
		SchemaVersion:    1,
		Payload:          []byte(`{}`),
		OccurredAt:       t0,
		ProcessingStatus: entity.Pending,
		CreatedAt:        t0,
	}
}

func TestEventClaimIsExclusive(t *testing.T) {
	ctx := context.Background()
	events := New().Events()
	require.NoError(t, events.Create(ctx, pendingEvent("e-1")))

	const claimers = 16

	var (
		wg        sync.WaitGroup
		won       atomic.Int32
		conflicts atomic.Int32
	)

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := events.Claim(ctx, "tenant-a", "e-1", t0)
			if err == nil {
				won.Add(1)
				return
			}
			if assert.ErrorIs(t, err, errs.ErrLeaseConflict) {
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), won.Load())
	assert.Equal(t, int32(claimers-1), conflicts.Load())
}

func TestEventClaimBatchDisjoint(t *testing.T) {
	ctx := context.Background()
	events := New().Events()
	for _, id := range []string{"e-1", "e-2", "e-3", "e-4"} {
		require.NoError(t, events.Create(ctx, pendingEvent(id)))
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]int{}
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch, err := events.ClaimBatch(ctx, dto.ClaimFilter{}, 1, t0)
			assert.NoError(t, err)
			mu.Lock()
			for _, e := range batch {
				seen[e.ID]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 4)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestEventResetStuckOnce(t *testing.T) {
	ctx := context.Background()
	events := New().Events()
	require.NoError(t, events.Create(ctx, pendingEvent("e-1")))

	_, err := events.Claim(ctx, "tenant-a", "e-1", t0)
	require.NoError(t, err)

	n, err := events.ResetStuck(ctx, t0.Add(-time.Second))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = events.ResetStuck(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = events.ResetStuck(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	e, err := events.GetByID(ctx, "tenant-a", "e-1")
	require.NoError(t, err)
	assert.Equal(t, entity.Pending, e.ProcessingStatus)
	assert.Nil(t, e.ClaimedAt)
}

func TestCompleteRequiresClaim(t *testing.T) {
	ctx := context.Background()
	events := New().Events()
	require.NoError(t, events.Create(ctx, pendingEvent("e-1")))

	err := events.Complete(ctx, "tenant-a", "e-1", entity.Processed, t0)
	assert.ErrorIs(t, err, errs.ErrLeaseConflict)

	err = events.Complete(ctx, "tenant-b", "e-1", entity.Processed, t0)
	assert.ErrorIs(t, err, errs.ErrRecordNotFound)
}

func TestIdempotencyNeverOverwritesLiveRecord(t *testing.T) {
	ctx := context.Background()
	ledger := New().Idempotency()

	first := &entity.IdempotencyRecord{TenantID: "tenant-a", Key: "k", CachedResult: []byte("1"), CreatedAt: t0, ExpiresAt: t0.Add(entity.IdempotencyTTL)}
	stored, err := ledger.Create(ctx, first)
	require.NoError(t, err)
	assert.True(t, stored)

	second := &entity.IdempotencyRecord{TenantID: "tenant-a", Key: "k", CachedResult: []byte("2"), CreatedAt: t0.Add(time.Hour), ExpiresAt: t0.Add(25 * time.Hour)}
	stored, err = ledger.Create(ctx, second)
	require.NoError(t, err)
	assert.False(t, stored)

	rec, err := ledger.Get(ctx, "tenant-a", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), rec.CachedResult)

	third := &entity.IdempotencyRecord{TenantID: "tenant-a", Key: "k", CachedResult: []byte("3"), CreatedAt: t0.Add(entity.IdempotencyTTL), ExpiresAt: t0.Add(48 * time.Hour)}
	stored, err = ledger.Create(ctx, third)
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestNotificationFailCeiling(t *testing.T) {
	ctx := context.Background()
	outbox := New().Notifications()
	require.NoError(t, outbox.Create(ctx, &entity.OutboxNotification{ID: "n-1", TenantID: "tenant-a", Status: entity.NotificationPending, CreatedAt: t0, UpdatedAt: t0}))

	for attempt := 1; attempt <= 3; attempt++ {
		batch, err := outbox.ClaimBatch(ctx, 10, t0)
		require.NoError(t, err)
		require.Len(t, batch, 1)
		assert.Equal(t, attempt, batch[0].Attempts)

		status, err := outbox.Fail(ctx, "n-1", "smtp down", 3, t0)
		require.NoError(t, err)
		if attempt < 3 {
			assert.Equal(t, entity.NotificationPending, status)
		} else {
			assert.Equal(t, entity.NotificationFailed, status)
		}
	}

	batch, err := outbox.ClaimBatch(ctx, 10, t0)
	require.NoError(t, err)
	assert.Empty(t, batch)

	n, err := outbox.RetryFailed(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	pending := entity.NotificationPending
	list, err := outbox.List(ctx, dto.NotificationFilter{Status: &pending})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Zero(t, list[0].Attempts)
}

func TestTombstoneCreateOnce(t *testing.T) {
	ctx := context.Background()
	tombs := New().Tombstones()

	tomb := &entity.Tombstone{ID: "ts-1", TenantID: "tenant-a", Kind: entity.KindTask, RefID: "t_1", CreatedAt: t0}
	inserted, err := tombs.Create(ctx, tomb)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := *tomb
	dup.ID = "ts-2"
	inserted, err = tombs.Create(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	list, err := tombs.List(ctx, dto.TombstoneFilter{TenantID: "tenant-a"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ts-1", list[0].ID)
}

func TestCalendarUpsertDoesNotReviveOrCrossTenants(t *testing.T) {
	ctx := context.Background()
	cal := New().CalendarEvents()

	e := &entity.CalendarEvent{ID: "e_42", TenantID: "tenant-a", AccountRef: "acc", ProviderEventID: "prov-1", Title: "Sync", StartAt: t0, EndAt: t0.Add(time.Hour)}
	_, err := cal.Upsert(ctx, e)
	require.NoError(t, err)

	foreign := *e
	foreign.ID = "other"
	foreign.TenantID = "tenant-b"
	_, err = cal.Upsert(ctx, &foreign)
	assert.ErrorIs(t, err, errs.ErrRecordNotFound)

	require.NoError(t, cal.MarkDeleted(ctx, "tenant-a", "e_42", t0))

	renamed := *e
	renamed.Title = "Renamed"
	stored, err := cal.Upsert(ctx, &renamed)
	require.NoError(t, err)
	assert.Equal(t, "Sync", stored.Title)
	assert.NotNil(t, stored.DeletedAt)
}

func TestWithinTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.Tasks().Upsert(ctx, &entity.Task{ID: "t_1", TenantID: "tenant-a", Title: "Report", UpdatedAt: t0}))

	boom := errors.New("boom")
	err := store.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := store.Tasks().MarkDeleted(ctx, "tenant-a", "t_1", t0); err != nil {
			return err
		}
		// вложенный вызов присоединяется к внешнему
		return store.WithinTransaction(ctx, func(ctx context.Context) error {
			if _, err := store.Tombstones().Create(ctx, &entity.Tombstone{ID: "ts-1", TenantID: "tenant-a", Kind: entity.KindTask, RefID: "t_1", CreatedAt: t0}); err != nil {
				return err
			}
			if err := store.Events().Create(ctx, pendingEvent("e-1")); err != nil {
				return err
			}
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	task, err := store.Tasks().GetByID(ctx, "tenant-a", "t_1")
	require.NoError(t, err)
	assert.Nil(t, task.DeletedAt)

	_, err = store.Tombstones().Get(ctx, "tenant-a", entity.KindTask, "t_1")
	assert.ErrorIs(t, err, errs.ErrRecordNotFound)

	events, err := store.Events().List(ctx, dto.EventFilter{TenantID: "tenant-a"})
	require.NoError(t, err)
	assert.Empty(t, events)

	// успешная транзакция сохраняет записи
	err = store.WithinTransaction(ctx, func(ctx context.Context) error {
		_, err := store.Tombstones().Create(ctx, &entity.Tombstone{ID: "ts-2", TenantID: "tenant-a", Kind: entity.KindTask, RefID: "t_1", CreatedAt: t0})
		return err
	})
	require.NoError(t, err)

	tomb, err := store.Tombstones().Get(ctx, "tenant-a", entity.KindTask, "t_1")
	require.NoError(t, err)
	assert.Equal(t, "ts-2", tomb.ID)
}
