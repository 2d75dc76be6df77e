package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/segmentio/kafka-go"
)

// MessageReader is the manual-commit side of a consumer group.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	CommitMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

const (
	_defaultRetryBackoff = 200 * time.Millisecond
	_defaultMaxBackoff   = 10 * time.Second
)

// KafkaController feeds connector pushes into the ingest pipeline. Each
// partition is owned by one worker, so commits on a partition never pass a
// message that is still being retried.
type KafkaController struct {
	ingest usecase.IngestUseCase
	reader MessageReader
	logger logger.Interface

	commitTimeout  time.Duration
	processTimeout time.Duration
	retryBackoff   time.Duration
	maxBackoff     time.Duration

	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	started atomic.Bool
}

func New(
	ingest usecase.IngestUseCase,
	reader MessageReader,
	l logger.Interface,
	commitTimeout time.Duration,
	processTimeout time.Duration,
	workers int,
) *KafkaController {
	if workers <= 0 {
		workers = 1
	}

	return &KafkaController{
		ingest:         ingest,
		reader:         reader,
		logger:         l,
		commitTimeout:  commitTimeout,
		processTimeout: processTimeout,
		retryBackoff:   _defaultRetryBackoff,
		maxBackoff:     _defaultMaxBackoff,
		workers:        workers,
	}
}

func (c *KafkaController) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("KafkaController - Start - controller already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	// канал на каждого воркера, партиция всегда попадает в один и тот же
	tasks := make([]chan kafka.Message, c.workers)
	for i := range tasks {
		tasks[i] = make(chan kafka.Message, 2)
		c.wg.Add(1)
		go c.worker(tasks[i])
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			for _, ch := range tasks {
				close(ch)
			}
		}()

		backoff := c.retryBackoff
		for {
			// 1. читаем из кафки
			msg, err := c.reader.ReadMessage(c.ctx)
			if err != nil {
				if c.ctx.Err() != nil {
					return
				}
				c.logger.Error(err, "KafkaController - Start - c.reader.ReadMessage")

				if !c.sleep(backoff) {
					return
				}
				backoff = c.next(backoff)

				continue
			}
			backoff = c.retryBackoff

			// 2. отправляем воркеру этой партиции
			select {
			case tasks[msg.Partition%c.workers] <- msg:
			case <-c.ctx.Done():
				return
			}
		}
	}()

	return nil
}

// handle reports whether the message may be committed. Rejected batches are
// committed too: redelivering them cannot make them valid.
func (c *KafkaController) handle(ctx context.Context, msg kafka.Message) (commit bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			commit, err = true, fmt.Errorf("KafkaController - handle - panic: %v", r)
		}
	}()

	var batch dto.ConnectorMessage
	if err := json.Unmarshal(msg.Value, &batch); err != nil {
		return true, fmt.Errorf("KafkaController - handle - json.Unmarshal: %w", err)
	}

	if batch.TenantID == "" {
		batch.TenantID = string(msg.Key)
	}

	_, err = c.ingest.Ingest(ctx, batch.TenantID, batch.Items)
	if err != nil {
		rejected := errors.Is(err, errs.ErrValidation) ||
			errors.Is(err, errs.ErrUnknownEventType) ||
			errors.Is(err, errs.ErrNotFoundOrAccessDenied)

		return rejected, fmt.Errorf("KafkaController - handle - c.ingest.Ingest: %w", err)
	}

	return true, nil
}

// process retries msg until it is handled or rejected. It returns false when
// the controller stops first; the message then stays uncommitted.
func (c *KafkaController) process(msg kafka.Message) bool {
	backoff := c.retryBackoff
	for attempt := 1; ; attempt++ {
		processCtx, processCancel := context.WithTimeout(c.ctx, c.processTimeout)
		commit, err := c.handle(processCtx, msg)
		processCancel()

		switch {
		case err == nil:
			return true
		case commit:
			c.logger.Warn("KafkaController - process - partition %d offset %d dropped: %s", msg.Partition, msg.Offset, err)
			return true
		}

		c.logger.Error(err, "KafkaController - process - partition %d offset %d attempt %d", msg.Partition, msg.Offset, attempt)
		if !c.sleep(backoff) {
			return false
		}
		backoff = c.next(backoff)
	}
}

func (c *KafkaController) worker(tasks <-chan kafka.Message) {
	defer c.wg.Done()

	// читаем канал, пока не закроется
	for msg := range tasks {
		// после остановки только вычитываем канал, ничего не коммитим
		if c.ctx.Err() != nil {
			continue
		}

		// 1. обрабатываем, повторяя до успеха
		if !c.process(msg) {
			continue
		}

		// 2. коммитим после обработки
		commitCtx, commitCancel := context.WithTimeout(c.ctx, c.commitTimeout)
		err := c.reader.CommitMessage(commitCtx, msg)
		commitCancel()
		if err != nil {
			c.logger.Error(err, "KafkaController - worker - c.reader.CommitMessage")
		}
	}
}

// sleep waits d and reports false when the controller stopped meanwhile.
func (c *KafkaController) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *KafkaController) next(backoff time.Duration) time.Duration {
	return min(backoff*2, c.maxBackoff)
}

func (c *KafkaController) Shutdown(ctx context.Context) error {
	if !c.started.Load() {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})

	go func() {
		c.wg.Wait()
		if err := c.reader.Close(); err != nil {
			c.logger.Error(err, "KafkaController - Shutdown - c.reader.Close")
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return nil
	}
}
