// Package webapi provides the HTTP surface of the credit ledger.
// It is organized into sub-packages per area:
//   - ledger: apply, reverse and history endpoints
//   - user: balance, reconciliation and subscription reads
//   - payment: purchases and gateway webhooks
package webapi

import (
	"errors"
	"strings"

	"github.com/amirasaad/creditcore/pkg/app"
	"github.com/amirasaad/creditcore/pkg/middleware"
	"github.com/amirasaad/creditcore/webapi/common"
	ledgerweb "github.com/amirasaad/creditcore/webapi/ledger"
	paymentweb "github.com/amirasaad/creditcore/webapi/payment"
	userweb "github.com/amirasaad/creditcore/webapi/user"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupApp Initialize Fiber with custom configuration
func SetupApp(app *app.App) *fiber.App {
	cfg := app.Config

	fiberApp := fiber.New(fiber.Config{
		AppName: "creditcore",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return common.ErrorResponseJSON(c, fe.Code, fe.Message, nil)
			}
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})

	// Configure rate limiting middleware
	// Uses X-Forwarded-For header when behind a proxy
	// Falls back to X-Real-IP or direct IP if needed
	fiberApp.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimit.MaxRequests,
		Expiration: cfg.RateLimit.Window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
				// Take the first IP in the chain
				if commaIndex := strings.Index(forwardedFor, ","); commaIndex != -1 {
					return strings.TrimSpace(forwardedFor[:commaIndex])
				}
				return strings.TrimSpace(forwardedFor)
			}
			if realIP := c.Get("X-Real-IP"); realIP != "" {
				return realIP
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return common.ErrorResponseJSON(c, fiber.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded")
		},
	}))
	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New())

	fiberApp.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if app.Deps.Gatherer != nil {
		gatherer = app.Deps.Gatherer
	}
	fiberApp.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	protected := authHandler(app)
	ledgerweb.Routes(fiberApp, app.LedgerService, app.RefundService, protected)
	userweb.Routes(fiberApp, app.BalanceService, app.SubscriptionService, protected)
	paymentweb.Routes(fiberApp, app.PaymentService, protected)
	return fiberApp
}

// authHandler guards the API with bearer tokens when a secret is configured.
func authHandler(app *app.App) fiber.Handler {
	if app.Config.Auth != nil && app.Config.Auth.TokenSecret != "" {
		return middleware.Protected(app.Config.Auth.TokenSecret)
	}
	app.Deps.Logger.Warn("⚠️ AUTH_TOKEN_SECRET is empty, API routes are unauthenticated")
	return func(c *fiber.Ctx) error { return c.Next() }
}
