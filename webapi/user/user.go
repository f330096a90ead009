// Package user exposes per-user read models: balance, drift report and subscription.
package user

import (
	"strings"
	"time"

	"github.com/amirasaad/creditcore/pkg/money"
	"github.com/amirasaad/creditcore/pkg/service/balance"
	"github.com/amirasaad/creditcore/pkg/service/subscription"
	"github.com/amirasaad/creditcore/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

//revive:disable

// BalanceResponse is the body of GET /api/v1/users/:id/balance.
type BalanceResponse struct {
	UserID   int64            `json:"user_id"`
	Credits  float64          `json:"credits"`
	Currency string           `json:"currency,omitempty"`
	Value    *decimal.Decimal `json:"value,omitempty"`
}

// ReconcileResponse reports drift between the balance column and the log.
type ReconcileResponse struct {
	UserID       int64   `json:"user_id"`
	Materialized float64 `json:"materialized"`
	Derived      float64 `json:"derived"`
	Drift        float64 `json:"drift"`
	InSync       bool    `json:"in_sync"`
}

// SubscriptionResponse is the user's current tier.
type SubscriptionResponse struct {
	UserID     int64     `json:"user_id"`
	Tier       string    `json:"tier"`
	ValidFrom  time.Time `json:"valid_from"`
	ValidUntil time.Time `json:"valid_until"`
	Active     bool      `json:"active"`
}

//revive:enable

// Routes registers the user read endpoints behind protected.
//
// Routes:
//   - GET /api/v1/users/:id/balance       : Balance, optionally valued in ?currency.
//   - GET /api/v1/users/:id/reconcile     : Materialized vs. derived balance.
//   - GET /api/v1/users/:id/subscription  : Current subscription tier.
func Routes(
	app *fiber.App,
	balanceSvc *balance.Service,
	subscriptionSvc *subscription.Service,
	protected fiber.Handler,
) {
	app.Get("/api/v1/users/:id/balance", protected, GetBalance(balanceSvc))
	app.Get("/api/v1/users/:id/reconcile", protected, Reconcile(balanceSvc))
	app.Get("/api/v1/users/:id/subscription", protected, GetSubscription(subscriptionSvc))
}

func credits(a money.Amount) float64 {
	return a.Decimal(money.CRD).InexactFloat64()
}

// GetBalance returns a handler reading the balance through the cache.
func GetBalance(svc *balance.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.ParseUserID(c, "id")
		if userID == 0 {
			return err
		}
		if code := strings.ToUpper(c.Query("currency")); code != "" {
			d, err := svc.Display(c.UserContext(), userID, money.Code(code))
			if err != nil {
				return common.ProblemDetailsJSON(c, "Failed to value balance", err)
			}
			return common.SuccessResponseJSON(c, fiber.StatusOK, "Balance fetched", BalanceResponse{
				UserID:   userID,
				Credits:  credits(d.Credits),
				Currency: d.Currency.String(),
				Value:    &d.Value,
			})
		}
		b, err := svc.GetBalance(c.UserContext(), userID)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to fetch balance", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Balance fetched", BalanceResponse{
			UserID:  userID,
			Credits: credits(b),
		})
	}
}

// Reconcile returns a handler comparing the materialized balance with the
// sum of completed transactions.
func Reconcile(svc *balance.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.ParseUserID(c, "id")
		if userID == 0 {
			return err
		}
		rec, err := svc.Reconcile(c.UserContext(), userID)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to reconcile balance", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Balance reconciled", ReconcileResponse{
			UserID:       rec.UserID,
			Materialized: credits(rec.Materialized),
			Derived:      credits(rec.Derived),
			Drift:        credits(rec.Drift),
			InSync:       rec.InSync(),
		})
	}
}

// GetSubscription returns a handler for the user's subscription.
func GetSubscription(svc *subscription.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.ParseUserID(c, "id")
		if userID == 0 {
			return err
		}
		sub, err := svc.Current(c.UserContext(), userID)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Subscription not found", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Subscription fetched", SubscriptionResponse{
			UserID:     sub.UserID,
			Tier:       sub.Tier,
			ValidFrom:  sub.ValidFrom,
			ValidUntil: sub.ValidUntil,
			Active:     sub.IsActive(time.Now()),
		})
	}
}
