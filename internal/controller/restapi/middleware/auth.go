package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

const (
	_tenantKey = "tenantID"

	HeaderServiceToken = "X-Service-Token"
)

// TenantVerifier resolves a bearer token to the tenant it was issued for.
type TenantVerifier interface {
	TenantID(raw string) (string, error)
}

// Tenant requires a verified bearer identity and stores its tenant on the request.
func Tenant(v TenantVerifier, l logger.Interface) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		raw, ok := bearer(ctx.Get(fiber.HeaderAuthorization))
		if !ok {
			return unauthorized(ctx, "bearer token required")
		}

		tenantID, err := v.TenantID(raw)
		if err != nil {
			l.Debug(err, "restapi - middleware - Tenant")

			return unauthorized(ctx, "invalid token")
		}

		ctx.Locals(_tenantKey, tenantID)

		return ctx.Next()
	}
}

// TenantID is the tenant stored by Tenant, or "" on routes without it.
func TenantID(ctx *fiber.Ctx) string {
	id, _ := ctx.Locals(_tenantKey).(string)
	return id
}

// Service guards the routes used by in-cluster workers and operators.
func Service(token string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		got := ctx.Get(HeaderServiceToken)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return unauthorized(ctx, "service token required")
		}

		return ctx.Next()
	}
}

func bearer(header string) (string, bool) {
	const prefix = "Bearer "

	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}

	return strings.TrimSpace(header[len(prefix):]), true
}

func unauthorized(ctx *fiber.Ctx, msg string) error {
	return ctx.Status(http.StatusUnauthorized).JSON(response.Error{Error: msg})
}
