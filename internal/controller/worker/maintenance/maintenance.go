package maintenance

import (
	"context"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/worker"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
)

type Intervals struct {
	ResetStuck    time.Duration
	ExpireStale   time.Duration
	SweepLedger   time.Duration
	CleanupOutbox time.Duration
}

// Worker runs the recovery sweeps an operator could also trigger over HTTP.
type Worker struct {
	*worker.Runner

	dispatch  usecase.DispatchUseCase
	outbox    usecase.OutboxUseCase
	proposals usecase.ProposalUseCase
	ledger    usecase.LedgerUseCase
	logger    logger.Interface

	intervals       Intervals
	stuckThreshold  time.Duration
	outboxRetention time.Duration
}

func New(
	dispatch usecase.DispatchUseCase,
	outbox usecase.OutboxUseCase,
	proposals usecase.ProposalUseCase,
	ledger usecase.LedgerUseCase,
	l logger.Interface,
	intervals Intervals,
	stuckThreshold time.Duration,
	outboxRetention time.Duration,
) *Worker {
	return &Worker{
		Runner:          worker.NewRunner("MaintenanceWorker"),
		dispatch:        dispatch,
		outbox:          outbox,
		proposals:       proposals,
		ledger:          ledger,
		logger:          l,
		intervals:       intervals,
		stuckThreshold:  stuckThreshold,
		outboxRetention: outboxRetention,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	if err := w.Runner.Start(ctx); err != nil {
		return err
	}

	// 1. зависшие аренды обеих очередей
	w.Every(w.intervals.ResetStuck, w.ResetStuck)

	// 2. просроченные токены согласования
	w.Every(w.intervals.ExpireStale, func(ctx context.Context) {
		if _, err := w.proposals.ExpireStale(ctx); err != nil {
			w.logger.Error(err, "MaintenanceWorker - Start - w.proposals.ExpireStale")
		}
	})

	// 3. очистка ledger
	w.Every(w.intervals.SweepLedger, func(ctx context.Context) {
		if _, err := w.ledger.Sweep(ctx); err != nil {
			w.logger.Error(err, "MaintenanceWorker - Start - w.ledger.Sweep")
		}
	})

	// 4. очистка доставленных уведомлений
	w.Every(w.intervals.CleanupOutbox, func(ctx context.Context) {
		if _, err := w.outbox.Cleanup(ctx, w.outboxRetention); err != nil {
			w.logger.Error(err, "MaintenanceWorker - Start - w.outbox.Cleanup")
		}
	})

	return nil
}

func (w *Worker) ResetStuck(ctx context.Context) {
	if _, err := w.dispatch.ResetStuck(ctx, w.stuckThreshold); err != nil {
		w.logger.Error(err, "MaintenanceWorker - ResetStuck - w.dispatch.ResetStuck")
	}
	if _, err := w.outbox.ResetStuck(ctx, w.stuckThreshold); err != nil {
		w.logger.Error(err, "MaintenanceWorker - ResetStuck - w.outbox.ResetStuck")
	}
}

func (w *Worker) Shutdown(ctx context.Context) error {
	return w.Runner.Shutdown(ctx, nil)
}
