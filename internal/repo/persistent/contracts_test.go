package persistent

import "github.com/andreyxaxa/Reschedule-Engine/internal/repo"

var (
	_ repo.EventRepo         = (*EventRepo)(nil)
	_ repo.IdempotencyRepo   = (*IdempotencyRepo)(nil)
	_ repo.CalendarEventRepo = (*CalendarEventRepo)(nil)
	_ repo.TaskRepo          = (*TaskRepo)(nil)
	_ repo.AccountRepo       = (*AccountRepo)(nil)
	_ repo.ProposalRepo      = (*ProposalRepo)(nil)
	_ repo.ApprovalRepo      = (*ApprovalRepo)(nil)
	_ repo.TombstoneRepo     = (*TombstoneRepo)(nil)
	_ repo.NotificationRepo  = (*NotificationRepo)(nil)
	_ repo.ArchiveRepo       = (*ArchiveRepo)(nil)
)
