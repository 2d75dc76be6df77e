package v1

import (
	"net/http"

	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/middleware"
	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/v1/request"
	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/v1/validate"
	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/gofiber/fiber/v2"
)

// @Summary  	Ingest events
// @Description Appends a batch of connector events. Items carrying an idempotencyKey are replayed byte for byte
// @Tags 		events
// @Accept 		json
// @Produce 	json
// @Param 		request body request.Ingest true "Batch"
// @Success 	200 {object} response.Ingest
// @Failure 	400 {object} response.Error "Invalid item, the batch is not written"
// @Failure 	401 {object} response.Error "Unauthorized"
// @Failure 	404 {object} response.Error "Record belongs to another tenant"
// @Failure 	500 {object} response.Error "Internal"
// @Security 	BearerAuth
// @Router 		/v1/events/ingest [post]
func (r *V1) ingestEvents(ctx *fiber.Ctx) error {
	var req request.Ingest
	if err := bind(ctx, &req); err != nil {
		return r.handleError(ctx, err, "ingestEvents")
	}

	results, err := r.ingest.Ingest(ctx.UserContext(), middleware.TenantID(ctx), req.Items)
	if err != nil {
		return r.handleError(ctx, err, "ingestEvents")
	}

	return ctx.Status(http.StatusOK).JSON(response.Ingest{Results: results})
}

// @Summary 	List events
// @Description Tenant's events ordered by occurredAt
// @Tags 		events
// @Produce 	json
// @Param 		type   query string false "Comma separated event types"
// @Param 		status query string false "Processing status" Enums(pending, processing, processed, failed, skipped)
// @Param 		from   query string false "RFC 3339, inclusive"
// @Param 		to     query string false "RFC 3339, exclusive"
// @Param 		limit  query int    false "At most 1000"
// @Success 	200 {object} response.Events
// @Failure 	400 {object} response.Error "Invalid filter"
// @Failure 	401 {object} response.Error "Unauthorized"
// @Security 	BearerAuth
// @Router 		/v1/events [get]
func (r *V1) listEvents(ctx *fiber.Ctx) error {
	limit, err := validate.Limit(ctx.Query("limit"))
	if err != nil {
		return r.handleError(ctx, err, "listEvents")
	}
	from, err := validate.Time("from", ctx.Query("from"))
	if err != nil {
		return r.handleError(ctx, err, "listEvents")
	}
	to, err := validate.Time("to", ctx.Query("to"))
	if err != nil {
		return r.handleError(ctx, err, "listEvents")
	}

	filter := dto.EventFilter{
		TenantID: middleware.TenantID(ctx),
		Types:    validate.EventTypes(ctx.Query("type")),
		From:     from,
		To:       to,
		Limit:    limit,
	}
	if s := ctx.Query("status"); s != "" {
		status := entity.ProcessingStatus(s)
		filter.Status = &status
	}

	events, err := r.events.List(ctx.UserContext(), filter)
	if err != nil {
		return r.handleError(ctx, err, "listEvents")
	}

	return ctx.JSON(response.Events{Events: events})
}

// @Summary 	Get event
// @Tags 		events
// @Produce 	json
// @Param 		id path string true "Event ID"
// @Success 	200 {object} entity.Event
// @Failure 	404 {object} response.Error "Not found"
// @Security 	BearerAuth
// @Router 		/v1/events/{id} [get]
func (r *V1) getEvent(ctx *fiber.Ctx) error {
	event, err := r.events.GetByID(ctx.UserContext(), middleware.TenantID(ctx), ctx.Params("id"))
	if err != nil {
		return r.handleError(ctx, err, "getEvent")
	}

	return ctx.JSON(event)
}

// @Summary 	Get calendar event
// @Description Current read model of a calendar event
// @Tags 		events
// @Produce 	json
// @Param 		id path string true "Calendar event ID"
// @Success 	200 {object} entity.CalendarEvent
// @Failure 	404 {object} response.Error "Not found or deleted"
// @Security 	BearerAuth
// @Router 		/v1/calendar-events/{id} [get]
func (r *V1) getCalendarEvent(ctx *fiber.Ctx) error {
	event, err := r.ingest.GetCalendarEvent(ctx.UserContext(), middleware.TenantID(ctx), ctx.Params("id"))
	if err != nil {
		return r.handleError(ctx, err, "getCalendarEvent")
	}

	return ctx.JSON(event)
}
