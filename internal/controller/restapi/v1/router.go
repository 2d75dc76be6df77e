package v1

import (
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

// Guards are the middlewares in front of each route family. Tenant guards are
// attached per route, a Use on the /v1 group would also cover /public and /internal.
type Guards struct {
	Tenant    fiber.Handler
	RateLimit fiber.Handler
	Service   fiber.Handler
}

func NewRoutes(apiV1Group fiber.Router, uc UseCases, g Guards, l logger.Interface) {
	r := &V1{
		ingest:     uc.Ingest,
		events:     uc.Events,
		dispatch:   uc.Dispatch,
		outbox:     uc.Outbox,
		proposals:  uc.Proposals,
		tombstones: uc.Tombstones,
		ledger:     uc.Ledger,
		archive:    uc.Archive,
		logger:     l,
	}

	// Tenant API
	tenant := func(h fiber.Handler) []fiber.Handler { return []fiber.Handler{g.Tenant, g.RateLimit, h} }
	{
		apiV1Group.Post("/events/ingest", tenant(r.ingestEvents)...)
		apiV1Group.Get("/events", tenant(r.listEvents)...)
		apiV1Group.Get("/events/:id", tenant(r.getEvent)...)

		apiV1Group.Post("/proposals", tenant(r.createProposal)...)
		apiV1Group.Get("/proposals/:id", tenant(r.getProposal)...)
		apiV1Group.Post("/proposals/:id/decide", tenant(r.decideProposal)...)
		apiV1Group.Post("/proposals/:id/apply", tenant(r.applyProposal)...)

		apiV1Group.Get("/calendar-events/:id", tenant(r.getCalendarEvent)...)
		apiV1Group.Delete("/records/:kind/:id", tenant(r.deleteRecord)...)
		apiV1Group.Get("/tombstones", tenant(r.listTombstones)...)
	}

	// Public, authenticated by the approval token only
	public := apiV1Group.Group("/public", g.RateLimit)
	{
		public.Post("/proposals/:id/decide", r.publicDecide)
	}

	// Service-to-service
	internal := apiV1Group.Group("/internal", g.Service)
	{
		internal.Post("/events/claim", r.claimEvents)
		internal.Post("/events/:id/claim", r.claimEvent)
		internal.Post("/events/:id/complete", r.completeEvent)
		internal.Post("/events/:id/fail", r.failEvent)

		internal.Get("/outbox", r.listOutbox)
		internal.Post("/outbox/claim", r.claimOutbox)
		internal.Post("/outbox/:id/sent", r.markSent)
		internal.Post("/outbox/:id/fail", r.failNotification)
		internal.Post("/outbox/:id/cancel", r.cancelNotification)

		internal.Post("/maintenance/reset-stuck", r.resetStuck)
		internal.Post("/maintenance/retry-failed", r.retryFailed)
		internal.Post("/maintenance/expire-proposals", r.expireProposals)
		internal.Post("/maintenance/sweep-idempotency", r.sweepIdempotency)
		internal.Post("/maintenance/export-audit", r.exportAudit)
	}
}
