package v1

import (
	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/middleware"
	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/v1/validate"
	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/gofiber/fiber/v2"
)

// @Summary  	Soft delete record
// @Description Marks the record deleted and writes a tombstone. Repeating the call returns the same tombstone
// @Tags 		records
// @Produce 	json
// @Param 		kind   path  string true  "Record kind" Enums(event, task, proposal, account)
// @Param 		id     path  string true  "Record ID"
// @Param 		reason query string false "Reason"
// @Success 	200 {object} response.DeleteRecord
// @Failure 	400 {object} response.Error "Unknown kind"
// @Failure 	404 {object} response.Error "Not found"
// @Security 	BearerAuth
// @Router 		/v1/records/{kind}/{id} [delete]
func (r *V1) deleteRecord(ctx *fiber.Ctx) error {
	in := dto.SoftDelete{
		TenantID: middleware.TenantID(ctx),
		Kind:     entity.TombstoneKind(ctx.Params("kind")),
		RefID:    ctx.Params("id"),
	}
	if reason := ctx.Query("reason"); reason != "" {
		in.Reason = &reason
	}

	tomb, event, err := r.tombstones.SoftDelete(ctx.UserContext(), in)
	if err != nil {
		return r.handleError(ctx, err, "deleteRecord")
	}

	return ctx.JSON(response.DeleteRecord{Tombstone: tomb, Event: event})
}

// @Summary 	List tombstones
// @Description Incremental sync feed of deletions
// @Tags 		records
// @Produce 	json
// @Param 		kind  query string false "Record kind" Enums(event, task, proposal, account)
// @Param 		since  query string false "RFC 3339, inclusive"
// @Param 		cursor query string false "nextCursor of the previous page"
// @Param 		limit  query int    false "At most 1000"
// @Success 	200 {object} response.Tombstones
// @Failure 	400 {object} response.Error "Invalid filter"
// @Security 	BearerAuth
// @Router 		/v1/tombstones [get]
func (r *V1) listTombstones(ctx *fiber.Ctx) error {
	limit, err := validate.Limit(ctx.Query("limit"))
	if err != nil {
		return r.handleError(ctx, err, "listTombstones")
	}
	since, err := validate.Time("since", ctx.Query("since"))
	if err != nil {
		return r.handleError(ctx, err, "listTombstones")
	}
	after, err := dto.DecodeTombstoneCursor(ctx.Query("cursor"))
	if err != nil {
		return r.handleError(ctx, err, "listTombstones")
	}

	filter := dto.TombstoneFilter{
		TenantID: middleware.TenantID(ctx),
		Since:    since,
		After:    after,
		Limit:    limit,
	}
	if k := ctx.Query("kind"); k != "" {
		kind := entity.TombstoneKind(k)
		filter.Kind = &kind
	}

	page, err := r.tombstones.List(ctx.UserContext(), filter)
	if err != nil {
		return r.handleError(ctx, err, "listTombstones")
	}

	return ctx.JSON(response.Tombstones{Tombstones: page.Tombstones, NextCursor: page.NextCursor})
}
