package persistent

import (
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	builder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	now     = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func TestClampLimit(t *testing.T) {
	assert.Equal(t, uint64(_defaultListLimit), clampLimit(0))
	assert.Equal(t, uint64(_defaultListLimit), clampLimit(-5))
	assert.Equal(t, uint64(25), clampLimit(25))
	assert.Equal(t, uint64(_maxListLimit), clampLimit(_maxListLimit+1))
}

func TestClaimEventsQuery(t *testing.T) {
	sql, args, err := claimEventsQuery(builder, dto.ClaimFilter{}, 10, now)
	require.NoError(t, err)

	assert.Contains(t, sql, "UPDATE events SET processing_status = $1, claimed_at = $2")
	assert.Contains(t, sql, "WHERE id IN (SELECT id FROM events WHERE (processing_status = $3)")
	assert.Contains(t, sql, "LIMIT 10 FOR UPDATE SKIP LOCKED)")
	assert.Contains(t, sql, "RETURNING id, tenant_id, type")
	assert.NotContains(t, sql, "?")
	assert.Equal(t, []any{entity.Processing, now, entity.Pending}, args)
}

func TestClaimEventsQueryScoped(t *testing.T) {
	tenant := "tenant-a"
	filter := dto.ClaimFilter{TenantID: &tenant, Types: []entity.EventType{entity.CalendarEventUpserted, entity.EmailReceived}}

	sql, args, err := claimEventsQuery(builder, filter, 0, now)
	require.NoError(t, err)

	assert.Contains(t, sql, "(processing_status = $3 AND tenant_id = $4 AND type IN ($5,$6))")
	assert.Contains(t, sql, "LIMIT 100")
	assert.Equal(t, []any{entity.Processing, now, entity.Pending, tenant, entity.CalendarEventUpserted, entity.EmailReceived}, args)
}

func TestListEventsQuery(t *testing.T) {
	status := entity.Failed
	from := now.Add(-time.Hour)

	sql, args, err := listEventsQuery(builder, dto.EventFilter{TenantID: "tenant-a", Status: &status, From: &from, Limit: 5}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE (tenant_id = $1 AND processing_status = $2 AND occurred_at >= $3)")
	assert.Contains(t, sql, "ORDER BY occurred_at ASC, created_at ASC LIMIT 5")
	assert.Equal(t, []any{"tenant-a", entity.Failed, from}, args)
}

func TestClaimNotificationsQuery(t *testing.T) {
	sql, args, err := claimNotificationsQuery(builder, 3, now)
	require.NoError(t, err)

	assert.Contains(t, sql, "UPDATE outbox_notifications SET status = $1, attempts = attempts + 1, claimed_at = $2, updated_at = $3")
	assert.Contains(t, sql, "WHERE id IN (SELECT id FROM outbox_notifications WHERE status = $4 ORDER BY created_at ASC LIMIT 3 FOR UPDATE SKIP LOCKED)")
	assert.Contains(t, sql, "RETURNING id, tenant_id, channel, recipient")
	assert.Equal(t, []any{entity.NotificationProcessing, now, now, entity.NotificationPending}, args)
}

func TestTransitionProposalQuery(t *testing.T) {
	chosen := 1

	sql, args, err := transitionProposalQuery(builder, "tenant-a", "p-1",
		entity.ProposalStatusPending, entity.ProposalStatusApproved, &chosen, now).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE proposals SET status = $1, updated_at = $2, chosen_option_index = $3 "+
			"WHERE deleted_at IS NULL AND id = $4 AND status = $5 AND tenant_id = $6",
		sql)
	assert.Equal(t, []any{entity.ProposalStatusApproved, now, &chosen, "p-1", entity.ProposalStatusPending, "tenant-a"}, args)
}

func TestTransitionProposalQueryKeepsChoice(t *testing.T) {
	sql, _, err := transitionProposalQuery(builder, "tenant-a", "p-1",
		entity.ProposalStatusApproved, entity.ProposalStatusApplied, nil, now).ToSql()
	require.NoError(t, err)

	assert.NotContains(t, sql, "chosen_option_index")
}

func TestListTombstonesQuery(t *testing.T) {
	kind := entity.KindTask
	since := now.Add(-24 * time.Hour)

	sql, args, err := listTombstonesQuery(builder, dto.TombstoneFilter{TenantID: "tenant-a", Kind: &kind, Since: &since}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "SELECT id, tenant_id, kind, ref_id, reason, created_at, txid::text, seq FROM tombstones")
	assert.Contains(t, sql, "WHERE (tenant_id = $1 AND txid < pg_snapshot_xmin(pg_current_snapshot()) AND kind = $2 AND created_at >= $3)")
	assert.Contains(t, sql, "ORDER BY txid ASC, seq ASC")
	assert.Equal(t, []any{"tenant-a", entity.KindTask, since}, args)
}

func TestListTombstonesQueryAfterCursor(t *testing.T) {
	after := entity.TombstonePosition{TxID: 9001, Seq: 42}

	sql, args, err := listTombstonesQuery(builder, dto.TombstoneFilter{TenantID: "tenant-a", After: &after, Limit: 2}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "(txid, seq) > ($2::text::xid8, $3)")
	assert.NotContains(t, sql, "created_at >=")
	assert.Contains(t, sql, "LIMIT 2")
	assert.Equal(t, []any{"tenant-a", "9001", int64(42)}, args)
}
