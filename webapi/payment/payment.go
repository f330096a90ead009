// Package payment exposes purchases and the gateway webhooks over HTTP.
package payment

import (
	"errors"
	"strings"
	"time"

	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/money"
	provider "github.com/amirasaad/creditcore/pkg/provider/payment"
	paymentsvc "github.com/amirasaad/creditcore/pkg/service/payment"
	"github.com/amirasaad/creditcore/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

//revive:disable

// CreatePaymentRequest is the body of POST /api/v1/payments. Price is given
// in the currency the invoice settles in.
type CreatePaymentRequest struct {
	InvoiceRef       string  `json:"invoice_ref" validate:"omitempty,max=128"`
	UserID           int64   `json:"user_id" validate:"required,gt=0"`
	Credits          float64 `json:"credits" validate:"required,gt=0"`
	Price            float64 `json:"price" validate:"required,gt=0"`
	Currency         string  `json:"currency" validate:"omitempty,len=3,uppercase,alpha"`
	Gateway          string  `json:"gateway" validate:"required,oneof=stripe platform"`
	Category         string  `json:"category" validate:"omitempty,oneof=purchase subscription_purchase"`
	Description      string  `json:"description" validate:"max=512"`
	SubscriptionTier string  `json:"subscription_tier" validate:"required_if=Category subscription_purchase,max=64"`
}

// PaymentDTO is the API representation of a pending payment.
type PaymentDTO struct {
	InvoiceRef    string    `json:"invoice_ref"`
	URL           string    `json:"url,omitempty"`
	UserID        int64     `json:"user_id"`
	Status        string    `json:"status"`
	Credits       float64   `json:"credits"`
	Price         float64   `json:"price"`
	Currency      string    `json:"currency"`
	Gateway       string    `json:"gateway"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

//revive:enable

// ToPaymentDTO maps a pending payment to its API form.
func ToPaymentDTO(p *paymentsvc.PendingPayment) *PaymentDTO {
	return &PaymentDTO{
		InvoiceRef:    p.InvoiceRef,
		URL:           p.URL,
		UserID:        p.UserID,
		Status:        string(p.Status),
		Credits:       p.Credits.Decimal(money.CRD).InexactFloat64(),
		Price:         p.Price.Decimal(p.Currency).InexactFloat64(),
		Currency:      p.Currency.String(),
		Gateway:       string(p.Gateway),
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
	}
}

// Routes registers the payment endpoints. Webhooks authenticate with the
// gateway's own signature, so only the API routes sit behind protected.
//
// Routes:
//   - POST /api/v1/payments       : Create a pending payment and return its redirect URL.
//   - GET  /api/v1/payments/:ref  : Status of a pending payment.
//   - POST /webhooks/stripe       : Stripe events, verified with Stripe-Signature.
//   - POST /webhooks/platform     : Platform callbacks, a signed JWT.
func Routes(app *fiber.App, svc *paymentsvc.Service, protected fiber.Handler) {
	app.Post("/api/v1/payments", protected, CreatePayment(svc))
	app.Get("/api/v1/payments/:ref", protected, GetPayment(svc))
	app.Post("/webhooks/stripe", WebhookHandler(svc, credit.GatewayCard, stripeSignature))
	app.Post("/webhooks/platform", WebhookHandler(svc, credit.GatewayPlatform, platformSignature))
}

// CreatePayment returns a handler that issues an invoice and records it as PENDING.
func CreatePayment(svc *paymentsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[CreatePaymentRequest](c)
		if input == nil {
			return err
		}
		gw := credit.Gateway(input.Gateway)
		hint := money.Code(input.Currency)
		amount, err := money.ParseAmount(input.Credits, money.CRD)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid credits", err)
		}
		price, err := money.ParseAmount(input.Price, svc.SettlementCurrency(gw, hint))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid price", err)
		}
		p, err := svc.CreatePending(c.UserContext(), paymentsvc.CreatePendingRequest{
			InvoiceRef:       input.InvoiceRef,
			UserID:           input.UserID,
			Credits:          amount,
			Price:            price,
			CurrencyHint:     hint,
			Gateway:          gw,
			Category:         credit.Category(input.Category),
			Description:      input.Description,
			SubscriptionTier: input.SubscriptionTier,
		})
		if err != nil {
			log.Errorf("Failed to create payment for user %d: %v", input.UserID, err)
			return common.ProblemDetailsJSON(c, "Failed to create payment", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Payment created", ToPaymentDTO(p))
	}
}

// GetPayment returns a handler reporting the status of a payment.
func GetPayment(svc *paymentsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := svc.Get(c.UserContext(), c.Params("ref"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Payment not found", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Payment fetched", ToPaymentDTO(p))
	}
}

func stripeSignature(c *fiber.Ctx) string {
	return c.Get("Stripe-Signature")
}

func platformSignature(c *fiber.Ctx) string {
	return strings.TrimSpace(strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "))
}

// WebhookHandler verifies a callback with the named gateway and applies it.
// Redelivered and ignored events are acknowledged with 200 so the gateway
// stops retrying; storage failures answer 503 so it retries later.
func WebhookHandler(
	svc *paymentsvc.Service,
	name credit.Gateway,
	signature func(*fiber.Ctx) string,
) fiber.Handler {
	return func(c *fiber.Ctx) error {
		gw, ok := svc.Gateway(name)
		if !ok {
			return common.ErrorResponseJSON(c, fiber.StatusNotFound, "Gateway not configured", string(name))
		}
		// The platform may send its token in the Authorization header with
		// no body at all.
		payload, sig := c.Body(), signature(c)
		if len(payload) == 0 && sig == "" {
			return common.ErrorResponseJSON(c, fiber.StatusBadRequest, "Empty request body", nil)
		}

		cb, err := gw.ParseCallback(c.UserContext(), payload, sig)
		if errors.Is(err, provider.ErrIgnoredEvent) {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "ignored": true})
		}
		if err != nil {
			log.Warnf("Rejected %s webhook: %v", name, err)
			return common.ProblemDetailsJSON(c, "Invalid webhook", err)
		}

		res, err := svc.HandleCallback(c.UserContext(), cb)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Webhook not applied", err)
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"received":      true,
			"invoice_ref":   res.Payment.InvoiceRef,
			"status":        res.Payment.Status,
			"already_final": res.AlreadyFinal,
		})
	}
}
