// Package platformpay is the in-platform payment rail. Invoices are links
// into the platform's payment sheet; outcomes arrive as HS256-signed JWTs.
package platformpay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/amirasaad/creditcore/pkg/config"
	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/money"
	"github.com/amirasaad/creditcore/pkg/provider/payment"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
)

// Callback statuses.
const (
	StatusPaid   = "paid"
	StatusFailed = "failed"
)

// CallbackClaims is the body of a platform payment callback.
type CallbackClaims struct {
	InvoiceRef string `json:"invoice_ref" validate:"required,max=128"`
	Status     string `json:"status" validate:"required,oneof=paid failed"`
	Amount     int64  `json:"amount" validate:"gte=0"`
	Currency   string `json:"currency" validate:"omitempty,len=3,uppercase"`
	ChargeID   string `json:"charge_id,omitempty" validate:"max=256"`
	Reason     string `json:"reason,omitempty" validate:"max=64"`
	jwt.RegisteredClaims
}

// Provider implements payment.Gateway for the in-platform rail.
type Provider struct {
	cfg      *config.Platform
	validate *validator.Validate
	logger   *slog.Logger
}

// New creates a Provider.
func New(cfg *config.Platform, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		cfg:      cfg,
		validate: validator.New(),
		logger:   logger.With("gateway", credit.GatewayPlatform),
	}
}

// Name implements payment.Gateway.
func (p *Provider) Name() credit.Gateway {
	return credit.GatewayPlatform
}

// CreateInvoice returns the payment-sheet link for params.Ref. Nothing is
// sent to the platform until the user opens it.
func (p *Provider) CreateInvoice(_ context.Context, params *payment.InvoiceParams) (*payment.Invoice, error) {
	if p.cfg.InvoiceBaseURL == "" {
		return nil, errors.New("platform invoice base url not configured")
	}
	link := p.cfg.InvoiceBaseURL + url.PathEscape(params.Ref)
	if _, err := url.Parse(link); err != nil {
		return nil, fmt.Errorf("platform invoice link: %w", err)
	}
	p.logger.Info("✅ Created platform invoice", "invoice_ref", params.Ref, "price", params.Price, "currency", params.Currency)
	return &payment.Invoice{Ref: params.Ref, URL: link}, nil
}

// ParseCallback verifies the token carried in payload, or in signature when
// the payload is empty, and converts its claims to a Callback.
func (p *Provider) ParseCallback(_ context.Context, payload []byte, signature string) (payment.Callback, error) {
	if p.cfg.Secret == "" {
		return nil, fmt.Errorf("%w: platform secret not configured", payment.ErrInvalidSignature)
	}
	raw := strings.TrimSpace(string(payload))
	if raw == "" {
		raw = strings.TrimSpace(strings.TrimPrefix(signature, "Bearer "))
	}

	var claims CallbackClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(p.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", payment.ErrInvalidSignature, err)
	}
	if err := p.validate.Struct(claims); err != nil {
		return nil, fmt.Errorf("%w: %w", payment.ErrMalformedCallback, err)
	}

	external := map[string]string{}
	if claims.ChargeID != "" {
		external["charge_id"] = claims.ChargeID
	}

	if claims.Status == StatusFailed {
		reason := claims.Reason
		if reason == "" {
			reason = credit.ReasonGatewayDeclined
		}
		return payment.GatewayFailure{Gateway: credit.GatewayPlatform, Ref: claims.InvoiceRef, Reason: reason, External: external}, nil
	}

	if claims.Amount <= 0 || claims.Currency == "" {
		return nil, fmt.Errorf("%w: paid callback without amount", payment.ErrMalformedCallback)
	}
	return payment.GatewaySuccess{
		Gateway:  credit.GatewayPlatform,
		Ref:      claims.InvoiceRef,
		Amount:   money.Amount(claims.Amount),
		Currency: money.Code(claims.Currency),
		External: external,
	}, nil
}

// SignCallback produces a callback token. The platform side uses the same
// format; it is exported for integration tests and local tooling.
func SignCallback(secret string, claims CallbackClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

var _ payment.Gateway = (*Provider)(nil)
