package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/repo"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
)

const (
	ContentType = "application/x-ndjson"

	_pageSize = 1000
	_maxRange = 31 * 24 * time.Hour
)

type ArchiveUseCase struct {
	events  repo.EventRepo
	archive repo.ArchiveRepo

	logger logger.Interface
	now    func() time.Time
}

func New(events repo.EventRepo, archive repo.ArchiveRepo, l logger.Interface) *ArchiveUseCase {
	return &ArchiveUseCase{
		events:  events,
		archive: archive,
		logger:  l,
		now:     time.Now,
	}
}

// ExportAudit writes the tenant's events with occurredAt in [from, to) as one
// JSON line each, oldest first.
func (uc *ArchiveUseCase) ExportAudit(ctx context.Context, tenantID string, from, to time.Time) (*dto.AuditExport, error) {
	switch {
	case tenantID == "":
		return nil, errs.NewValidation("tenantId", "required")
	case !to.After(from):
		return nil, errs.NewValidation("to", "must be after from")
	case to.Sub(from) > _maxRange:
		return nil, errs.NewValidation("to", "range is limited to 31 days")
	}

	from, to = from.UTC(), to.UTC()

	var (
		buf    bytes.Buffer
		count  int
		cursor = from
		// ids already written at the cursor timestamp
		seen = make(map[string]struct{})
	)

	enc := json.NewEncoder(&buf)

	for {
		page, err := uc.events.List(ctx, dto.EventFilter{
			TenantID: tenantID,
			From:     &cursor,
			To:       &to,
			Limit:    _pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("ArchiveUseCase - ExportAudit - uc.events.List: %w", err)
		}

		written := 0
		for _, e := range page {
			if _, ok := seen[e.ID]; ok {
				continue
			}
			if err := enc.Encode(e); err != nil {
				return nil, fmt.Errorf("ArchiveUseCase - ExportAudit - enc.Encode: %w", err)
			}
			written++

			if e.OccurredAt.After(cursor) {
				cursor = e.OccurredAt
				clear(seen)
			}
			seen[e.ID] = struct{}{}
		}
		count += written

		if len(page) < _pageSize {
			break
		}
		if written == 0 {
			uc.logger.Warn("ArchiveUseCase - ExportAudit - more than %d events at %s, export truncated", _pageSize, cursor)
			break
		}
	}

	key := fmt.Sprintf("audit/%s/%s.jsonl", tenantID, uc.now().UTC().Format("20060102T150405Z"))

	if err := uc.archive.Upload(ctx, key, buf.Bytes(), ContentType); err != nil {
		return nil, fmt.Errorf("ArchiveUseCase - ExportAudit - uc.archive.Upload: %w", err)
	}

	uc.logger.Info("ArchiveUseCase - ExportAudit - tenant %s: %d events to %s", tenantID, count, key)

	return &dto.AuditExport{
		Key:        key,
		EventCount: count,
		From:       from,
		To:         to,
	}, nil
}
