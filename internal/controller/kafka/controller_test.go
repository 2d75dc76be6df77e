package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanReader struct {
	msgs    chan kafka.Message
	readErr error

	mu        sync.Mutex
	reads     int
	committed []int64
	closed    bool
}

func (r *chanReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	r.reads++
	r.mu.Unlock()

	if r.readErr != nil {
		return kafka.Message{}, r.readErr
	}

	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *chanReader) CommitMessage(_ context.Context, msg kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msg.Offset)
	return nil
}

func (r *chanReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *chanReader) offsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func (r *chanReader) readCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

// fakeIngest fails a tenant permanently through err, or for its first
// transient[tenant] calls.
type fakeIngest struct {
	mu        sync.Mutex
	tenants   []string
	err       map[string]error
	transient map[string]int
}

func (f *fakeIngest) Ingest(_ context.Context, tenantID string, items []dto.IngestItem) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.err[tenantID]; err != nil {
		return nil, err
	}
	if f.transient[tenantID] > 0 {
		f.transient[tenantID]--
		return nil, errors.New("connection reset")
	}
	f.tenants = append(f.tenants, tenantID)

	return make([]json.RawMessage, len(items)), nil
}

func (f *fakeIngest) GetCalendarEvent(context.Context, string, string) (*entity.CalendarEvent, error) {
	return nil, errs.ErrNotFoundOrAccessDenied
}

func (f *fakeIngest) ingested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tenants...)
}

func message(t *testing.T, partition int, offset int64, key string, m dto.ConnectorMessage) kafka.Message {
	t.Helper()

	raw, err := json.Marshal(m)
	require.NoError(t, err)

	return kafka.Message{Partition: partition, Offset: offset, Key: []byte(key), Value: raw}
}

func newController(ingest *fakeIngest, reader *chanReader, workers int) *KafkaController {
	c := New(ingest, reader, logger.Nop(), time.Second, time.Second, workers)
	c.retryBackoff = time.Millisecond
	c.maxBackoff = 5 * time.Millisecond

	return c
}

func shutdown(t *testing.T, c *KafkaController) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Shutdown(ctx))
}

var items = []dto.IngestItem{{Type: entity.EmailReceived, Payload: json.RawMessage(`{}`)}}

func TestKafkaControllerCommits(t *testing.T) {
	reader := &chanReader{msgs: make(chan kafka.Message, 8)}
	ingest := &fakeIngest{
		err:       map[string]error{"bad": errs.NewValidation("items", "must not be empty")},
		transient: map[string]int{"flaky": 2},
	}

	reader.msgs <- message(t, 0, 1, "", dto.ConnectorMessage{TenantID: "t1", Items: items})
	reader.msgs <- message(t, 0, 2, "t2", dto.ConnectorMessage{Items: items})
	reader.msgs <- message(t, 0, 3, "", dto.ConnectorMessage{TenantID: "bad"})
	reader.msgs <- message(t, 0, 4, "", dto.ConnectorMessage{TenantID: "flaky", Items: items})
	reader.msgs <- kafka.Message{Partition: 0, Offset: 5, Value: []byte("{not json")}
	reader.msgs <- message(t, 0, 6, "", dto.ConnectorMessage{TenantID: "t3", Items: items})

	c := newController(ingest, reader, 2)
	require.NoError(t, c.Start(context.Background()))

	assert.Eventually(t, func() bool { return len(reader.offsets()) == 6 }, time.Second, 5*time.Millisecond)
	shutdown(t, c)

	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, reader.offsets(), "a partition commits in order, retried messages included")
	assert.Equal(t, []string{"t1", "t2", "flaky", "t3"}, ingest.ingested(), "the message key names the tenant when the body does not")
	assert.True(t, reader.closed)
}

func TestKafkaControllerHoldsPartitionOnInfrastructureError(t *testing.T) {
	reader := &chanReader{msgs: make(chan kafka.Message, 8)}
	ingest := &fakeIngest{err: map[string]error{"down": errors.New("connection refused")}}

	reader.msgs <- message(t, 0, 10, "", dto.ConnectorMessage{TenantID: "down", Items: items})
	reader.msgs <- message(t, 0, 11, "", dto.ConnectorMessage{TenantID: "t1", Items: items})
	reader.msgs <- message(t, 1, 20, "", dto.ConnectorMessage{TenantID: "t2", Items: items})

	c := newController(ingest, reader, 2)
	require.NoError(t, c.Start(context.Background()))

	assert.Eventually(t, func() bool { return len(reader.offsets()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	shutdown(t, c)

	assert.Equal(t, []int64{20}, reader.offsets(), "nothing after the failing message is committed on its partition")
	assert.Equal(t, []string{"t2"}, ingest.ingested())
}

func TestKafkaControllerBacksOffOnReadErrors(t *testing.T) {
	reader := &chanReader{readErr: errors.New("broker not available")}

	c := newController(&fakeIngest{}, reader, 1)
	c.retryBackoff = 10 * time.Millisecond
	c.maxBackoff = 20 * time.Millisecond
	require.NoError(t, c.Start(context.Background()))

	time.Sleep(100 * time.Millisecond)
	shutdown(t, c)

	assert.Positive(t, reader.readCount())
	assert.Less(t, reader.readCount(), 20)
}
