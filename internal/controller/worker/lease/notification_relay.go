package lease

import (
	"context"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/worker"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/internal/infrastructure"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// NotificationRelay drains the outbox through the configured transport.
type NotificationRelay struct {
	*worker.Runner

	outbox usecase.OutboxUseCase
	sender infrastructure.NotificationSender
	logger logger.Interface

	pollInterval        time.Duration
	processBatchTimeout time.Duration
	batchSize           int
	concurrency         int
}

func NewNotificationRelay(
	outbox usecase.OutboxUseCase,
	sender infrastructure.NotificationSender,
	l logger.Interface,
	pollInterval time.Duration,
	processBatchTimeout time.Duration,
	batchSize int,
	concurrency int,
) *NotificationRelay {
	if concurrency <= 0 {
		concurrency = 1
	}

	return &NotificationRelay{
		Runner:              worker.NewRunner("NotificationRelay"),
		outbox:              outbox,
		sender:              sender,
		logger:              l,
		pollInterval:        pollInterval,
		processBatchTimeout: processBatchTimeout,
		batchSize:           batchSize,
		concurrency:         concurrency,
	}
}

func (r *NotificationRelay) Start(ctx context.Context) error {
	if err := r.Runner.Start(ctx); err != nil {
		return err
	}

	r.Every(r.pollInterval, func(ctx context.Context) {
		batchCtx, batchCancel := context.WithTimeout(ctx, r.processBatchTimeout)
		r.ProcessBatch(batchCtx)
		batchCancel()
	})

	return nil
}

// ProcessBatch claims one batch and settles every claim as sent or failed.
func (r *NotificationRelay) ProcessBatch(ctx context.Context) int {
	// 1. берём pending уведомления в processing
	batch, err := r.outbox.ClaimBatch(ctx, r.batchSize)
	if err != nil {
		r.logger.Error(err, "NotificationRelay - ProcessBatch - r.outbox.ClaimBatch")

		return 0
	}
	if len(batch) == 0 {
		return 0
	}

	// 2. отправляем, ошибки доставки остаются в last_error
	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for _, n := range batch {
		g.Go(func() error {
			r.deliver(ctx, n)
			return nil
		})
	}
	_ = g.Wait()

	return len(batch)
}

func (r *NotificationRelay) deliver(ctx context.Context, n *entity.OutboxNotification) {
	if err := r.sender.Send(ctx, n); err != nil {
		status, failErr := r.outbox.Fail(ctx, n.ID, err.Error())
		if failErr != nil {
			r.logger.Error(failErr, "NotificationRelay - deliver - r.outbox.Fail")

			return
		}
		r.logger.Warn("NotificationRelay - deliver - notification %s attempt %d: %s (now %s)", n.ID, n.Attempts, err, status)

		return
	}

	// 3. подтверждаем доставку
	if err := r.outbox.MarkSent(ctx, n.ID); err != nil {
		r.logger.Error(err, "NotificationRelay - deliver - r.outbox.MarkSent")
	}
}

func (r *NotificationRelay) Shutdown(ctx context.Context) error {
	return r.Runner.Shutdown(ctx, func() {
		if err := r.sender.Close(); err != nil {
			r.logger.Error(err, "NotificationRelay - Shutdown - r.sender.Close")
		}
	})
}
