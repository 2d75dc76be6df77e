package v1

import (
	"errors"
	"net/http"

	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/v1/request"
	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/v1/validate"
	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
)

// @Summary  	Claim events
// @Description Leases up to limit pending events, oldest first. Concurrent callers never receive the same event
// @Tags 		dispatch
// @Accept 		json
// @Produce 	json
// @Param 		request body request.ClaimEvents true "Filter"
// @Success 	200 {object} response.Events
// @Failure 	400 {object} response.Error "Invalid filter"
// @Failure 	401 {object} response.Error "Service token required"
// @Security 	ServiceToken
// @Router 		/v1/internal/events/claim [post]
func (r *V1) claimEvents(ctx *fiber.Ctx) error {
	var req request.ClaimEvents
	if err := bind(ctx, &req); err != nil {
		return r.handleError(ctx, err, "claimEvents")
	}

	if req.Limit == 0 {
		req.Limit = validate.MaxClaimBatch
	}
	if req.Limit > validate.MaxClaimBatch {
		return r.handleError(ctx, errs.NewValidation("limit", "too large"), "claimEvents")
	}

	events, err := r.dispatch.ClaimBatch(ctx.UserContext(), dto.ClaimFilter{TenantID: req.TenantID, Types: req.Types}, req.Limit)
	if err != nil {
		return r.handleError(ctx, err, "claimEvents")
	}

	return ctx.JSON(response.Events{Events: events})
}

// @Summary 	Claim one event
// @Description Compare-and-swap claim. An event someone else holds answers claimed=false
// @Tags 		dispatch
// @Accept 		json
// @Produce 	json
// @Param 		id path string true "Event ID"
// @Param 		request body request.EventRef true "Owner tenant"
// @Success 	200 {object} response.Claimed
// @Failure 	404 {object} response.Error "Not found"
// @Security 	ServiceToken
// @Router 		/v1/internal/events/{id}/claim [post]
func (r *V1) claimEvent(ctx *fiber.Ctx) error {
	var req request.EventRef
	if err := bind(ctx, &req); err != nil {
		return r.handleError(ctx, err, "claimEvent")
	}

	event, err := r.dispatch.Claim(ctx.UserContext(), req.TenantID, ctx.Params("id"))
	if err != nil {
		if errors.Is(err, errs.ErrLeaseConflict) {
			return ctx.JSON(response.Claimed{Claimed: false})
		}
		return r.handleError(ctx, err, "claimEvent")
	}

	return ctx.JSON(response.Claimed{Claimed: true, Event: event})
}

// @Summary 	Complete event
// @Description Closes the lease as processed or skipped, optionally creating a proposal in the same transaction
// @Tags 		dispatch
// @Accept 		json
// @Produce 	json
// @Param 		id path string true "Event ID"
// @Param 		request body request.CompleteEvent true "Outcome"
// @Success 	200 {object} dto.CreatedProposal
// @Success 	204 "Completed without proposal"
// @Failure 	400 {object} response.Error "Invalid outcome"
// @Failure 	404 {object} response.Error "Not found"
// @Failure 	409 {object} response.Error "Event is not claimed"
// @Security 	ServiceToken
// @Router 		/v1/internal/events/{id}/complete [post]
func (r *V1) completeEvent(ctx *fiber.Ctx) error {
	var req request.CompleteEvent
	if err := bind(ctx, &req); err != nil {
		return r.handleError(ctx, err, "completeEvent")
	}

	outcome := dto.EventOutcome{Status: req.ProcessingStatus}
	if req.Proposal != nil {
		in := req.Proposal.DTO(req.TenantID)
		outcome.Proposal = &in
	}

	created, err := r.dispatch.Complete(ctx.UserContext(), req.TenantID, ctx.Params("id"), outcome)
	if err != nil {
		return r.handleError(ctx, err, "completeEvent")
	}
	if created == nil {
		return ctx.SendStatus(http.StatusNoContent)
	}

	return ctx.JSON(created)
}

// @Summary 	Fail event
// @Description Records the error on the event; failed events wait for retry-failed
// @Tags 		dispatch
// @Accept 		json
// @Param 		id path string true "Event ID"
// @Param 		request body request.FailEvent true "Error"
// @Success 	204 "Failed"
// @Failure 	404 {object} response.Error "Not found"
// @Failure 	409 {object} response.Error "Event is not claimed"
// @Security 	ServiceToken
// @Router 		/v1/internal/events/{id}/fail [post]
func (r *V1) failEvent(ctx *fiber.Ctx) error {
	var req request.FailEvent
	if err := bind(ctx, &req); err != nil {
		return r.handleError(ctx, err, "failEvent")
	}

	if err := r.dispatch.Fail(ctx.UserContext(), req.TenantID, ctx.Params("id"), req.Error); err != nil {
		return r.handleError(ctx, err, "failEvent")
	}

	return ctx.SendStatus(http.StatusNoContent)
}
