package maintenance

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/internal/repo/inmemory"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase/dispatch"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase/idempotency"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase/outbox"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetStuckCoversBothQueues(t *testing.T) {
	store := inmemory.New()
	ctx := context.Background()
	l := logger.Nop()

	claimedAt := time.Now().Add(-time.Hour)
	require.NoError(t, store.Events().Create(ctx, &entity.Event{
		ID:               "e-1",
		TenantID:         "t1",
		Type:             entity.EmailReceived,
		Payload:          json.RawMessage(`{}`),
		OccurredAt:       claimedAt,
		ProcessingStatus: entity.Pending,
	}))
	_, err := store.Events().Claim(ctx, "t1", "e-1", claimedAt)
	require.NoError(t, err)

	notifications := outbox.New(store.Notifications(), nil, l)
	_, err = notifications.Enqueue(ctx, dto.EnqueueNotification{
		TenantID: "t1", Channel: entity.ChannelPush, To: "t1", TemplateID: entity.TemplateProposalApplied, Payload: struct{}{},
	})
	require.NoError(t, err)
	_, err = store.Notifications().ClaimBatch(ctx, 10, claimedAt)
	require.NoError(t, err)

	w := New(
		dispatch.New(store.Events(), nil, store, l),
		notifications,
		nil,
		idempotency.New(store.Idempotency(), l),
		l,
		Intervals{},
		5*time.Minute,
		24*time.Hour,
	)

	w.ResetStuck(ctx)
	w.ResetStuck(ctx)

	e, err := store.Events().GetByID(ctx, "t1", "e-1")
	require.NoError(t, err)
	assert.Equal(t, entity.Pending, e.ProcessingStatus)

	pending := entity.NotificationPending
	out, err := notifications.List(ctx, dto.NotificationFilter{Status: &pending})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestZeroIntervalsStartNothing(t *testing.T) {
	l := logger.Nop()
	w := New(nil, nil, nil, nil, l, Intervals{}, time.Minute, time.Hour)

	require.NoError(t, w.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, w.Shutdown(ctx))
}
