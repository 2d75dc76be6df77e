package restapi

import (
	"net/http"

	"github.com/andreyxaxa/Reschedule-Engine/config"
	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/middleware"
	v1 "github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/v1"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
)

// @title Reschedule engine
// @version 1.0.0
// @host localhost:8080
// @BasePath /v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @securityDefinitions.apikey ServiceToken
// @in header
// @name X-Service-Token
func NewRouter(
	app *fiber.App,
	cfg *config.Config,
	uc v1.UseCases,
	identity middleware.TenantVerifier,
	limiter *middleware.RateLimiter,
	l logger.Interface,
) {
	app.Use(recover.New())

	// Swagger
	if cfg.Swagger.Enabled {
		app.Get("/swagger/*", swagger.HandlerDefault)
	}

	// K8s probe
	app.Get("/healthz", func(ctx *fiber.Ctx) error { return ctx.SendStatus(http.StatusOK) })

	// Routers
	apiV1Group := app.Group("/v1")
	{
		v1.NewRoutes(apiV1Group, uc, v1.Guards{
			Tenant:    middleware.Tenant(identity, l),
			RateLimit: limiter.Handler(),
			Service:   middleware.Service(cfg.Auth.ServiceToken),
		}, l)
	}
}
