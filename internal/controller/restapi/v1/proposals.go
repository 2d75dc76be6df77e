package v1

import (
	"net/http"

	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/middleware"
	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/v1/request"
	"github.com/gofiber/fiber/v2"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// @Summary  	Create proposal
// @Description Creates a pending reschedule proposal. The raw approval token is returned once when an external approver is involved
// @Tags 		proposals
// @Accept 		json
// @Produce 	json
// @Param 		Idempotency-Key header string false "Replays the first result for 24h"
// @Param 		request body request.CreateProposal true "Proposal"
// @Success 	201 {object} dto.CreatedProposal
// @Failure 	400 {object} response.Error "Invalid proposal or policy"
// @Failure 	404 {object} response.Error "Calendar event not found"
// @Failure 	500 {object} response.Error "Internal"
// @Security 	BearerAuth
// @Router 		/v1/proposals [post]
func (r *V1) createProposal(ctx *fiber.Ctx) error {
	var req request.CreateProposal
	if err := bind(ctx, &req); err != nil {
		return r.handleError(ctx, err, "createProposal")
	}

	if key := ctx.Get(HeaderIdempotencyKey); key != "" && req.IdempotencyKey == nil {
		req.IdempotencyKey = &key
	}

	created, err := r.proposals.Create(ctx.UserContext(), req.DTO(middleware.TenantID(ctx)))
	if err != nil {
		return r.handleError(ctx, err, "createProposal")
	}

	return ctx.Status(http.StatusCreated).JSON(created)
}

// @Summary 	Get proposal
// @Description Proposal with its recorded decisions
// @Tags 		proposals
// @Produce 	json
// @Param 		id path string true "Proposal ID"
// @Success 	200 {object} dto.ProposalView
// @Failure 	404 {object} response.Error "Not found"
// @Security 	BearerAuth
// @Router 		/v1/proposals/{id} [get]
func (r *V1) getProposal(ctx *fiber.Ctx) error {
	view, err := r.proposals.Get(ctx.UserContext(), middleware.TenantID(ctx), ctx.Params("id"))
	if err != nil {
		return r.handleError(ctx, err, "getProposal")
	}

	return ctx.JSON(view)
}

// @Summary 	Decide proposal
// @Description Records approved, rejected or alternate_suggested. Proposals awaiting an external approver also need the token
// @Tags 		proposals
// @Accept 		json
// @Produce 	json
// @Param 		id path string true "Proposal ID"
// @Param 		request body request.Decide true "Decision"
// @Success 	200 {object} entity.Proposal
// @Failure 	400 {object} response.Error "Invalid decision"
// @Failure 	404 {object} response.Error "Not found or token mismatch"
// @Failure 	409 {object} response.Error "Proposal is not pending"
// @Failure 	410 {object} response.Error "Approval token expired, the proposal is now expired"
// @Security 	BearerAuth
// @Router 		/v1/proposals/{id}/decide [post]
func (r *V1) decideProposal(ctx *fiber.Ctx) error {
	return r.decide(ctx, middleware.TenantID(ctx), "decideProposal")
}

// @Summary 	Decide proposal as external approver
// @Description Same as decide, authenticated only by the approval token in the body
// @Tags 		proposals
// @Accept 		json
// @Produce 	json
// @Param 		id path string true "Proposal ID"
// @Param 		request body request.Decide true "Decision with token"
// @Success 	200 {object} entity.Proposal
// @Failure 	400 {object} response.Error "Invalid decision"
// @Failure 	404 {object} response.Error "Not found or token mismatch"
// @Failure 	409 {object} response.Error "Proposal is not pending"
// @Failure 	410 {object} response.Error "Approval token expired"
// @Router 		/v1/public/proposals/{id}/decide [post]
func (r *V1) publicDecide(ctx *fiber.Ctx) error {
	return r.decide(ctx, "", "publicDecide")
}

func (r *V1) decide(ctx *fiber.Ctx, tenantID, op string) error {
	var req request.Decide
	if err := bind(ctx, &req); err != nil {
		return r.handleError(ctx, err, op)
	}

	p, err := r.proposals.Decide(ctx.UserContext(), req.DTO(tenantID, ctx.Params("id")))
	if err != nil {
		return r.handleError(ctx, err, op)
	}

	return ctx.JSON(p)
}

// @Summary 	Apply proposal
// @Description Moves the calendar event to the chosen option
// @Tags 		proposals
// @Produce 	json
// @Param 		id path string true "Proposal ID"
// @Success 	200 {object} entity.Proposal
// @Failure 	404 {object} response.Error "Not found"
// @Failure 	409 {object} response.Error "Proposal is not approved"
// @Security 	BearerAuth
// @Router 		/v1/proposals/{id}/apply [post]
func (r *V1) applyProposal(ctx *fiber.Ctx) error {
	p, err := r.proposals.Apply(ctx.UserContext(), middleware.TenantID(ctx), ctx.Params("id"))
	if err != nil {
		return r.handleError(ctx, err, "applyProposal")
	}

	return ctx.JSON(p)
}
