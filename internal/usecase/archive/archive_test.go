package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/internal/repo/inmemory"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upload struct {
	key         string
	data        []byte
	contentType string
}

type fakeArchive struct {
	uploads []upload
	err     error
}

func (f *fakeArchive) Upload(_ context.Context, key string, data []byte, contentType string) error {
	if f.err != nil {
		return f.err
	}
	f.uploads = append(f.uploads, upload{key, bytes.Clone(data), contentType})
	return nil
}

var _base = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *inmemory.Store, tenantID string, n int, step func(i int) time.Duration) {
	t.Helper()

	for i := 0; i < n; i++ {
		require.NoError(t, store.Events().Create(context.Background(), &entity.Event{
			ID:               fmt.Sprintf("%s-%04d", tenantID, i),
			TenantID:         tenantID,
			Type:             entity.EmailReceived,
			SchemaVersion:    1,
			Payload:          json.RawMessage(`{}`),
			OccurredAt:       _base.Add(step(i)),
			ProcessingStatus: entity.Pending,
			CreatedAt:        _base,
		}))
	}
}

func lines(t *testing.T, data []byte) []string {
	t.Helper()

	ids := make([]string, 0)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var e entity.Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		ids = append(ids, e.ID)
	}
	require.NoError(t, sc.Err())

	return ids
}

func TestExportAuditPagesWithoutDuplicates(t *testing.T) {
	store := inmemory.New()
	// three events per second, so page boundaries fall inside a timestamp
	seed(t, store, "t1", 2500, func(i int) time.Duration { return time.Duration(i/3) * time.Second })
	seed(t, store, "t2", 10, func(i int) time.Duration { return time.Duration(i) * time.Second })

	archive := &fakeArchive{}
	uc := New(store.Events(), archive, logger.Nop())
	uc.now = func() time.Time { return time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC) }

	res, err := uc.ExportAudit(context.Background(), "t1", _base, _base.Add(24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 2500, res.EventCount)
	assert.Equal(t, "audit/t1/20260305T093000Z.jsonl", res.Key)

	require.Len(t, archive.uploads, 1)
	assert.Equal(t, ContentType, archive.uploads[0].contentType)

	ids := lines(t, archive.uploads[0].data)
	require.Len(t, ids, 2500)

	unique := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	assert.Len(t, unique, 2500)
	assert.Equal(t, "t1-0000", ids[0])
}

func TestExportAuditRange(t *testing.T) {
	store := inmemory.New()
	seed(t, store, "t1", 10, func(i int) time.Duration { return time.Duration(i) * time.Hour })

	archive := &fakeArchive{}
	uc := New(store.Events(), archive, logger.Nop())

	res, err := uc.ExportAudit(context.Background(), "t1", _base.Add(2*time.Hour), _base.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, res.EventCount)
	assert.Equal(t, []string{"t1-0002", "t1-0003", "t1-0004"}, lines(t, archive.uploads[0].data))

	res, err = uc.ExportAudit(context.Background(), "t3", _base, _base.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, res.EventCount)
	assert.Empty(t, archive.uploads[1].data)
}

func TestExportAuditRejects(t *testing.T) {
	uc := New(inmemory.New().Events(), &fakeArchive{}, logger.Nop())
	ctx := context.Background()

	_, err := uc.ExportAudit(ctx, "", _base, _base.Add(time.Hour))
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = uc.ExportAudit(ctx, "t1", _base, _base)
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = uc.ExportAudit(ctx, "t1", _base, _base.Add(40*24*time.Hour))
	assert.ErrorIs(t, err, errs.ErrValidation)

	boom := errors.New("bucket unavailable")
	uc = New(inmemory.New().Events(), &fakeArchive{err: boom}, logger.Nop())
	_, err = uc.ExportAudit(ctx, "t1", _base, _base.Add(time.Hour))
	assert.ErrorIs(t, err, boom)
}
