package v1

import (
	"fmt"
	"net/http"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/v1/request"
	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/v1/validate"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
)

func queues(q request.Queue) (events, notifications bool, err error) {
	switch q {
	case "":
		return true, true, nil
	case request.QueueEvents:
		return true, false, nil
	case request.QueueNotifications:
		return false, true, nil
	}
	return false, false, errs.NewValidation("queue", fmt.Sprintf("unknown queue %q", q))
}

// @Summary  	Reset stuck leases
// @Description Returns items claimed longer than the threshold to pending
// @Tags 		maintenance
// @Accept 		json
// @Produce 	json
// @Param 		request body request.ResetStuck false "Queue and threshold, 5 minutes by default"
// @Success 	200 {object} response.Requeued
// @Failure 	400 {object} response.Error "Unknown queue"
// @Security 	ServiceToken
// @Router 		/v1/internal/maintenance/reset-stuck [post]
func (r *V1) resetStuck(ctx *fiber.Ctx) error {
	var req request.ResetStuck
	if err := bind(ctx, &req); err != nil {
		return r.handleError(ctx, err, "resetStuck")
	}

	doEvents, doNotifications, err := queues(req.Queue)
	if err != nil {
		return r.handleError(ctx, err, "resetStuck")
	}

	threshold := validate.DefaultStuckThreshold
	if req.ThresholdSeconds > 0 {
		threshold = time.Duration(req.ThresholdSeconds) * time.Second
	}

	var resp response.Requeued
	if doEvents {
		if resp.Events, err = r.dispatch.ResetStuck(ctx.UserContext(), threshold); err != nil {
			return r.handleError(ctx, err, "resetStuck")
		}
	}
	if doNotifications {
		if resp.Notifications, err = r.outbox.ResetStuck(ctx.UserContext(), threshold); err != nil {
			return r.handleError(ctx, err, "resetStuck")
		}
	}

	return ctx.JSON(resp)
}

// @Summary 	Retry failed items
// @Description Moves failed events or dead-lettered notifications back to pending with attempts reset
// @Tags 		maintenance
// @Accept 		json
// @Produce 	json
// @Param 		request body request.RetryFailed false "Queue, optionally one tenant for events"
// @Success 	200 {object} response.Requeued
// @Failure 	400 {object} response.Error "Unknown queue"
// @Security 	ServiceToken
// @Router 		/v1/internal/maintenance/retry-failed [post]
func (r *V1) retryFailed(ctx *fiber.Ctx) error {
	var req request.RetryFailed
	if err := bind(ctx, &req); err != nil {
		return r.handleError(ctx, err, "retryFailed")
	}

	doEvents, doNotifications, err := queues(req.Queue)
	if err != nil {
		return r.handleError(ctx, err, "retryFailed")
	}

	var resp response.Requeued
	if doEvents {
		if resp.Events, err = r.dispatch.RetryFailed(ctx.UserContext(), req.TenantID); err != nil {
			return r.handleError(ctx, err, "retryFailed")
		}
	}
	if doNotifications {
		if resp.Notifications, err = r.outbox.RetryFailed(ctx.UserContext()); err != nil {
			return r.handleError(ctx, err, "retryFailed")
		}
	}

	return ctx.JSON(resp)
}

// @Summary 	Expire proposals
// @Description Expires pending proposals whose approval token has run out
// @Tags 		maintenance
// @Produce 	json
// @Success 	200 {object} response.Count
// @Security 	ServiceToken
// @Router 		/v1/internal/maintenance/expire-proposals [post]
func (r *V1) expireProposals(ctx *fiber.Ctx) error {
	n, err := r.proposals.ExpireStale(ctx.UserContext())
	if err != nil {
		return r.handleError(ctx, err, "expireProposals")
	}

	return ctx.JSON(response.Count{Count: n})
}

// @Summary 	Sweep idempotency ledger
// @Description Deletes records older than 24 hours
// @Tags 		maintenance
// @Produce 	json
// @Success 	200 {object} response.Count
// @Security 	ServiceToken
// @Router 		/v1/internal/maintenance/sweep-idempotency [post]
func (r *V1) sweepIdempotency(ctx *fiber.Ctx) error {
	n, err := r.ledger.Sweep(ctx.UserContext())
	if err != nil {
		return r.handleError(ctx, err, "sweepIdempotency")
	}

	return ctx.JSON(response.Count{Count: n})
}

// @Summary 	Export audit log
// @Description Writes the tenant's events in [from, to) to the archive bucket as JSON lines
// @Tags 		maintenance
// @Accept 		json
// @Produce 	json
// @Param 		request body request.ExportAudit true "Tenant and range"
// @Success 	201 {object} dto.AuditExport
// @Failure 	400 {object} response.Error "Invalid range"
// @Failure 	503 {object} response.Error "Archive is not configured"
// @Security 	ServiceToken
// @Router 		/v1/internal/maintenance/export-audit [post]
func (r *V1) exportAudit(ctx *fiber.Ctx) error {
	if r.archive == nil {
		return errorResponse(ctx, http.StatusServiceUnavailable, "archive is not configured")
	}

	var req request.ExportAudit
	if err := bind(ctx, &req); err != nil {
		return r.handleError(ctx, err, "exportAudit")
	}

	export, err := r.archive.ExportAudit(ctx.UserContext(), req.TenantID, req.From, req.To)
	if err != nil {
		return r.handleError(ctx, err, "exportAudit")
	}

	return ctx.Status(http.StatusCreated).JSON(export)
}
