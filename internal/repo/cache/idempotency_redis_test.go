package cache

import (
	"testing"

	"github.com/andreyxaxa/Reschedule-Engine/internal/repo"
	"github.com/stretchr/testify/assert"
)

var _ repo.IdempotencyRepo = (*IdempotencyRepo)(nil)

func TestRecordKeyIsTenantScoped(t *testing.T) {
	assert.Equal(t, "idempotency:tenant-a:ingest:k1", recordKey("tenant-a", "ingest:k1"))
	assert.NotEqual(t, recordKey("tenant-a", "k"), recordKey("tenant-b", "k"))
}
