package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
)

func errorResponse(ctx *fiber.Ctx, code int, msg string) error {
	return ctx.Status(code).JSON(response.Error{Error: msg})
}

// handleError maps the use-case error taxonomy onto HTTP statuses. Only
// unexpected errors are logged.
func (r *V1) handleError(ctx *fiber.Ctx, err error, op string) error {
	var ve *errs.ValidationError

	switch {
	case errors.As(err, &ve):
		return ctx.Status(http.StatusBadRequest).JSON(response.Error{Error: ve.Reason, Field: ve.Field})
	case errors.Is(err, errs.ErrValidation):
		return errorResponse(ctx, http.StatusBadRequest, "invalid request")
	case errors.Is(err, errs.ErrUnknownEventType):
		return errorResponse(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrUnauthorized):
		return errorResponse(ctx, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, errs.ErrNotFoundOrAccessDenied), errors.Is(err, errs.ErrRecordNotFound):
		return errorResponse(ctx, http.StatusNotFound, "not found")
	case errors.Is(err, errs.ErrInvalidTransition):
		return errorResponse(ctx, http.StatusConflict, "invalid transition")
	case errors.Is(err, errs.ErrLeaseConflict):
		return errorResponse(ctx, http.StatusConflict, "lease conflict")
	case errors.Is(err, errs.ErrTokenExpired):
		return errorResponse(ctx, http.StatusGone, "approval token expired")
	}

	r.logger.Error(err, "restapi - v1 - "+op)

	return errorResponse(ctx, http.StatusInternalServerError, "internal error")
}

// bind decodes the JSON body; an empty body leaves dst untouched.
func bind(ctx *fiber.Ctx, dst any) error {
	if len(ctx.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(ctx.Body(), dst); err != nil {
		return errs.NewValidation("body", "malformed JSON")
	}
	return nil
}
