package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/internal/infrastructure/token"
	"github.com/andreyxaxa/Reschedule-Engine/internal/repo/inmemory"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newOutbox() (*OutboxUseCase, *clock) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	uc := New(inmemory.New().Notifications(), nil, logger.Nop())
	uc.now = c.now

	return uc, c
}

func enqueue(t *testing.T, uc *OutboxUseCase) *entity.OutboxNotification {
	t.Helper()

	n, err := uc.Enqueue(context.Background(), dto.EnqueueNotification{
		TenantID:   "t1",
		Channel:    entity.ChannelEmail,
		To:         "approver@example.com",
		TemplateID: entity.TemplateApprovalRequest,
		Payload:    map[string]string{"proposalId": "p-1"},
	})
	require.NoError(t, err)

	return n
}

func TestEnqueueValidates(t *testing.T) {
	uc, _ := newOutbox()
	ctx := context.Background()

	_, err := uc.Enqueue(ctx, dto.EnqueueNotification{TenantID: "t1", Channel: "fax", To: "x", TemplateID: "y"})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = uc.Enqueue(ctx, dto.EnqueueNotification{TenantID: "t1", Channel: entity.ChannelPush, TemplateID: "y"})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestDeliveryCeiling(t *testing.T) {
	uc, _ := newOutbox()
	ctx := context.Background()
	n := enqueue(t, uc)
	assert.Equal(t, entity.NotificationPending, n.Status)
	assert.JSONEq(t, `{"proposalId":"p-1"}`, string(n.Payload))

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		claimed, err := uc.ClaimBatch(ctx, 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1, "attempt %d", attempt)
		assert.Equal(t, attempt, claimed[0].Attempts)

		status, err := uc.Fail(ctx, n.ID, "smtp 451")
		require.NoError(t, err)
		if attempt < MaxAttempts {
			assert.Equal(t, entity.NotificationPending, status)
		} else {
			assert.Equal(t, entity.NotificationFailed, status)
		}
	}

	claimed, err := uc.ClaimBatch(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed, "dead-lettered rows are not claimed again")

	n2, err := uc.RetryFailed(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n2)

	claimed, err = uc.ClaimBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, 1, claimed[0].Attempts)
	require.NoError(t, uc.MarkSent(ctx, n.ID))
}

func TestMarkSentNeedsClaim(t *testing.T) {
	uc, _ := newOutbox()
	ctx := context.Background()
	n := enqueue(t, uc)

	assert.ErrorIs(t, uc.MarkSent(ctx, n.ID), errs.ErrLeaseConflict)
	assert.ErrorIs(t, uc.MarkSent(ctx, "missing"), errs.ErrNotFoundOrAccessDenied)
}

func TestCancel(t *testing.T) {
	uc, _ := newOutbox()
	ctx := context.Background()
	n := enqueue(t, uc)

	require.NoError(t, uc.Cancel(ctx, n.ID))

	claimed, err := uc.ClaimBatch(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	assert.ErrorIs(t, uc.Cancel(ctx, n.ID), errs.ErrLeaseConflict)
}

func TestResetStuckAndCleanup(t *testing.T) {
	uc, c := newOutbox()
	ctx := context.Background()
	n := enqueue(t, uc)

	_, err := uc.ClaimBatch(ctx, 10)
	require.NoError(t, err)

	c.advance(time.Minute)
	reset, err := uc.ResetStuck(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, reset)

	c.advance(5 * time.Minute)
	reset, err = uc.ResetStuck(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, reset)

	claimed, err := uc.ClaimBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, uc.MarkSent(ctx, n.ID))

	c.advance(time.Hour)
	deleted, err := uc.Cleanup(ctx, 2*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	c.advance(2 * time.Hour)
	deleted, err = uc.Cleanup(ctx, 2*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}

func TestResetStuckRejectsNonPositiveThreshold(t *testing.T) {
	uc, _ := newOutbox()

	for _, threshold := range []time.Duration{0, -time.Minute} {
		_, err := uc.ResetStuck(context.Background(), threshold)
		assert.ErrorIs(t, err, errs.ErrValidation, threshold)
	}
}

func TestClaimBatchMintsApprovalToken(t *testing.T) {
	signer := token.NewApprovalSigner("approval-secret")
	store := inmemory.New()
	uc := New(store.Notifications(), token.NewMinter(signer), logger.Nop())
	ctx := context.Background()

	exp := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	_, err := uc.Enqueue(ctx, dto.EnqueueNotification{
		TenantID:   "t1",
		Channel:    entity.ChannelEmail,
		To:         "approver@example.com",
		TemplateID: entity.TemplateApprovalRequest,
		Payload:    dto.ApprovalRequest{ProposalID: "p-1", Approver: "approver@example.com", ExpiresAt: exp},
	})
	require.NoError(t, err)
	broken, err := uc.Enqueue(ctx, dto.EnqueueNotification{
		TenantID:   "t1",
		Channel:    entity.ChannelEmail,
		To:         "approver@example.com",
		TemplateID: entity.TemplateApprovalRequest,
		Payload:    []string{"not", "a", "request"},
	})
	require.NoError(t, err)

	claimed, err := uc.ClaimBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1, "a row that cannot be minted is not handed out")

	var req dto.ApprovalRequest
	require.NoError(t, json.Unmarshal(claimed[0].Payload, &req))
	id, err := signer.ProposalID(req.Token)
	require.NoError(t, err)
	assert.Equal(t, "p-1", id)

	stored, err := uc.List(ctx, dto.NotificationFilter{})
	require.NoError(t, err)
	for _, n := range stored {
		assert.NotContains(t, string(n.Payload), req.Token, "the token is not kept at rest")
		if n.ID == broken.ID {
			assert.Equal(t, entity.NotificationPending, n.Status)
			require.NotNil(t, n.LastError)
			assert.Contains(t, *n.LastError, "mint")
		}
	}
}
