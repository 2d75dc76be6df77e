package v1

import (
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
)

// UseCases is everything the v1 handlers call. Archive may be nil when no
// export bucket is configured.
type UseCases struct {
	Ingest     usecase.IngestUseCase
	Events     usecase.EventLogUseCase
	Dispatch   usecase.DispatchUseCase
	Outbox     usecase.OutboxUseCase
	Proposals  usecase.ProposalUseCase
	Tombstones usecase.TombstoneUseCase
	Ledger     usecase.LedgerUseCase
	Archive    usecase.ArchiveUseCase
}

type V1 struct {
	ingest     usecase.IngestUseCase
	events     usecase.EventLogUseCase
	dispatch   usecase.DispatchUseCase
	outbox     usecase.OutboxUseCase
	proposals  usecase.ProposalUseCase
	tombstones usecase.TombstoneUseCase
	ledger     usecase.LedgerUseCase
	archive    usecase.ArchiveUseCase
	logger     logger.Interface
}
