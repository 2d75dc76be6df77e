package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/worker"
	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/internal/infrastructure"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
)

// DispatchRelay hands claimed events to the reasoning engine. The engine later
// completes or fails each lease through the internal API.
type DispatchRelay struct {
	*worker.Runner

	dispatch   usecase.DispatchUseCase
	dispatcher infrastructure.EventDispatcher
	logger     logger.Interface

	types               []entity.EventType
	pollInterval        time.Duration
	processBatchTimeout time.Duration
	batchSize           int
}

func NewDispatchRelay(
	dispatch usecase.DispatchUseCase,
	dispatcher infrastructure.EventDispatcher,
	l logger.Interface,
	types []entity.EventType,
	pollInterval time.Duration,
	processBatchTimeout time.Duration,
	batchSize int,
) *DispatchRelay {
	return &DispatchRelay{
		Runner:              worker.NewRunner("DispatchRelay"),
		dispatch:            dispatch,
		dispatcher:          dispatcher,
		logger:              l,
		types:               types,
		pollInterval:        pollInterval,
		processBatchTimeout: processBatchTimeout,
		batchSize:           batchSize,
	}
}

func (r *DispatchRelay) Start(ctx context.Context) error {
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

func (r *DispatchRelay) ProcessBatch(ctx context.Context) int {
	// 1. арендуем pending события
	events, err := r.dispatch.ClaimBatch(ctx, dto.ClaimFilter{Types: r.types}, r.batchSize)
	if err != nil {
		r.logger.Error(err, "DispatchRelay - ProcessBatch - r.dispatch.ClaimBatch")

		return 0
	}

	// 2. передаём движку; неудачная передача закрывает аренду как failed
	for _, e := range events {
		if err := r.dispatcher.Dispatch(ctx, e); err != nil {
			reason := fmt.Sprintf("dispatch: %s", err)
			if failErr := r.dispatch.Fail(ctx, e.TenantID, e.ID, reason); failErr != nil {
				r.logger.Error(failErr, "DispatchRelay - ProcessBatch - r.dispatch.Fail")
				continue
			}
			r.logger.Warn("DispatchRelay - ProcessBatch - event %s: %s", e.ID, err)
		}
	}

	return len(events)
}

func (r *DispatchRelay) Shutdown(ctx context.Context) error {
	return r.Runner.Shutdown(ctx, func() {
		if err := r.dispatcher.Close(); err != nil {
			r.logger.Error(err, "DispatchRelay - Shutdown - r.dispatcher.Close")
		}
	})
}
