package v1

import (
	"net/http"

	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/v1/request"
	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/v1/validate"
	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
)

// @Summary  	List outbox
// @Description Read only view of queued notifications
// @Tags 		outbox
// @Produce 	json
// @Param 		status   query string false "Status" Enums(pending, processing, sent, failed, cancelled)
// @Param 		tenantId query string false "Tenant"
// @Param 		limit    query int    false "At most 1000"
// @Success 	200 {object} response.Notifications
// @Security 	ServiceToken
// @Router 		/v1/internal/outbox [get]
func (r *V1) listOutbox(ctx *fiber.Ctx) error {
	limit, err := validate.Limit(ctx.Query("limit"))
	if err != nil {
		return r.handleError(ctx, err, "listOutbox")
	}

	filter := dto.NotificationFilter{Limit: limit}
	if s := ctx.Query("status"); s != "" {
		status := entity.NotificationStatus(s)
		filter.Status = &status
	}
	if t := ctx.Query("tenantId"); t != "" {
		filter.TenantID = &t
	}

	out, err := r.outbox.List(ctx.UserContext(), filter)
	if err != nil {
		return r.handleError(ctx, err, "listOutbox")
	}

	return ctx.JSON(response.Notifications{Notifications: out})
}

// @Summary 	Claim notifications
// @Description Leases pending notifications for delivery
// @Tags 		outbox
// @Accept 		json
// @Produce 	json
// @Param 		request body request.ClaimOutbox false "Batch size"
// @Success 	200 {object} response.Notifications
// @Security 	ServiceToken
// @Router 		/v1/internal/outbox/claim [post]
func (r *V1) claimOutbox(ctx *fiber.Ctx) error {
	var req request.ClaimOutbox
	if err := bind(ctx, &req); err != nil {
		return r.handleError(ctx, err, "claimOutbox")
	}

	if req.Limit == 0 {
		req.Limit = validate.MaxClaimBatch
	}
	if req.Limit > validate.MaxClaimBatch {
		return r.handleError(ctx, errs.NewValidation("limit", "too large"), "claimOutbox")
	}

	out, err := r.outbox.ClaimBatch(ctx.UserContext(), req.Limit)
	if err != nil {
		return r.handleError(ctx, err, "claimOutbox")
	}

	return ctx.JSON(response.Notifications{Notifications: out})
}

// @Summary 	Mark notification sent
// @Tags 		outbox
// @Param 		id path string true "Notification ID"
// @Success 	204 "Sent"
// @Failure 	404 {object} response.Error "Not found"
// @Failure 	409 {object} response.Error "Notification is not claimed"
// @Security 	ServiceToken
// @Router 		/v1/internal/outbox/{id}/sent [post]
func (r *V1) markSent(ctx *fiber.Ctx) error {
	if err := r.outbox.MarkSent(ctx.UserContext(), ctx.Params("id")); err != nil {
		return r.handleError(ctx, err, "markSent")
	}

	return ctx.SendStatus(http.StatusNoContent)
}

// @Summary 	Fail notification
// @Description Records a delivery failure; the third one dead-letters the notification
// @Tags 		outbox
// @Accept 		json
// @Produce 	json
// @Param 		id path string true "Notification ID"
// @Param 		request body request.FailNotification true "Error"
// @Success 	200 {object} response.NotificationStatus
// @Failure 	404 {object} response.Error "Not found"
// @Failure 	409 {object} response.Error "Notification is not claimed"
// @Security 	ServiceToken
// @Router 		/v1/internal/outbox/{id}/fail [post]
func (r *V1) failNotification(ctx *fiber.Ctx) error {
	var req request.FailNotification
	if err := bind(ctx, &req); err != nil {
		return r.handleError(ctx, err, "failNotification")
	}

	id := ctx.Params("id")

	status, err := r.outbox.Fail(ctx.UserContext(), id, req.Error)
	if err != nil {
		return r.handleError(ctx, err, "failNotification")
	}

	return ctx.JSON(response.NotificationStatus{ID: id, Status: status})
}

// @Summary 	Cancel notification
// @Tags 		outbox
// @Param 		id path string true "Notification ID"
// @Success 	204 "Cancelled"
// @Failure 	404 {object} response.Error "Not found"
// @Failure 	409 {object} response.Error "Already delivered or dead-lettered"
// @Security 	ServiceToken
// @Router 		/v1/internal/outbox/{id}/cancel [post]
func (r *V1) cancelNotification(ctx *fiber.Ctx) error {
	if err := r.outbox.Cancel(ctx.UserContext(), ctx.Params("id")); err != nil {
		return r.handleError(ctx, err, "cancelNotification")
	}

	return ctx.SendStatus(http.StatusNoContent)
}
