// Package stripepayment is the card rail: Stripe Checkout sessions for
// invoices and signed Stripe webhooks for their outcome.
package stripepayment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/amirasaad/creditcore/pkg/config"
	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/money"
	"github.com/amirasaad/creditcore/pkg/provider/payment"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const metadataInvoiceRef = "invoice_ref"

type sessionCreator func(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error)

type webhookHandler func(event stripe.Event, log *slog.Logger) (payment.Callback, error)

// StripePaymentProvider implements payment.Gateway using Stripe Checkout.
type StripePaymentProvider struct {
	createSession   sessionCreator
	cfg             *config.Stripe
	logger          *slog.Logger
	webhookHandlers map[stripe.EventType]webhookHandler
}

// New creates a StripePaymentProvider for cfg.
func New(cfg *config.Stripe, logger *slog.Logger) *StripePaymentProvider {
	client := stripe.NewClient(cfg.ApiKey)
	return newProvider(cfg, client.V1CheckoutSessions.Create, logger)
}

func newProvider(cfg *config.Stripe, create sessionCreator, logger *slog.Logger) *StripePaymentProvider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &StripePaymentProvider{
		createSession: create,
		cfg:           cfg,
		logger:        logger.With("gateway", credit.GatewayCard),
	}
	p.initializeWebhookHandlers()
	return p
}

// A declined card inside Checkout can be retried by the user, so
// payment_intent.payment_failed is not terminal; the session expiring is.
func (s *StripePaymentProvider) initializeWebhookHandlers() {
	s.webhookHandlers = map[stripe.EventType]webhookHandler{
		"checkout.session.completed":               s.handleCheckoutSessionCompleted,
		"checkout.session.async_payment_succeeded": s.handleCheckoutSessionCompleted,
		"checkout.session.async_payment_failed":    s.handleCheckoutSessionFailed,
		"checkout.session.expired":                 s.handleCheckoutSessionExpired,
	}
}

// Name implements payment.Gateway.
func (s *StripePaymentProvider) Name() credit.Gateway {
	return credit.GatewayCard
}

// CreateInvoice creates a Checkout session priced in params.Currency.
func (s *StripePaymentProvider) CreateInvoice(ctx context.Context, params *payment.InvoiceParams) (*payment.Invoice, error) {
	metadata := map[string]string{
		metadataInvoiceRef: params.Ref,
		"user_id":          strconv.FormatInt(params.UserID, 10),
		"credits":          strconv.FormatInt(params.Credits.Int64(), 10),
	}
	for k, v := range params.Metadata {
		if v != "" {
			metadata[k] = v
		}
	}
	name := params.Title
	if params.Description != "" {
		name = params.Description
	}

	sp := &stripe.CheckoutSessionCreateParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(s.cfg.SuccessPath),
		CancelURL:          stripe.String(s.cfg.CancelPath),
		ClientReferenceID:  stripe.String(params.Ref),
		Metadata:           metadata,
		PaymentIntentData: &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata: metadata,
		},
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency: stripe.String(strings.ToLower(params.Currency.String())),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
				UnitAmount: stripe.Int64(params.Price.Int64()),
			},
			Quantity: stripe.Int64(1),
		}},
	}
	sp.SetIdempotencyKey(params.Ref)

	session, err := s.createSession(ctx, sp)
	if err != nil {
		s.logger.Error("failed to create checkout session", "invoice_ref", params.Ref, "error", err)
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	s.logger.Info("✅ Created checkout session", "invoice_ref", params.Ref, "session_id", session.ID)

	inv := &payment.Invoice{Ref: params.Ref, URL: session.URL, ExternalID: session.ID}
	if session.ExpiresAt > 0 {
		inv.ExpiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}
	return inv, nil
}

// ParseCallback verifies a Stripe webhook and converts it to a Callback.
// Event types that carry no final outcome return payment.ErrIgnoredEvent.
func (s *StripePaymentProvider) ParseCallback(_ context.Context, payload []byte, signature string) (payment.Callback, error) {
	if s.cfg.SigningSecret == "" {
		return nil, fmt.Errorf("%w: webhook signing secret not configured", payment.ErrInvalidSignature)
	}
	event, err := webhook.ConstructEvent(payload, signature, s.cfg.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", payment.ErrInvalidSignature, err)
	}

	log := s.logger.With("method", "ParseCallback", "type", event.Type, "id", event.ID)
	handler, ok := s.webhookHandlers[event.Type]
	if !ok {
		log.Debug("No handler found for event type")
		return nil, payment.ErrIgnoredEvent
	}
	return handler(event, log)
}

func (s *StripePaymentProvider) handleCheckoutSessionCompleted(event stripe.Event, log *slog.Logger) (payment.Callback, error) {
	session, ref, err := decodeSession(event)
	if err != nil {
		return nil, err
	}
	if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		log.Info("🔁 [SKIP] Checkout completed, payment still processing", "invoice_ref", ref)
		return nil, payment.ErrIgnoredEvent
	}
	return payment.GatewaySuccess{
		Gateway:  credit.GatewayCard,
		Ref:      ref,
		Amount:   money.Amount(session.AmountTotal),
		Currency: money.Code(strings.ToUpper(string(session.Currency))),
		External: external(session),
	}, nil
}

func (s *StripePaymentProvider) handleCheckoutSessionFailed(event stripe.Event, _ *slog.Logger) (payment.Callback, error) {
	session, ref, err := decodeSession(event)
	if err != nil {
		return nil, err
	}
	return payment.GatewayFailure{Gateway: credit.GatewayCard, Ref: ref, Reason: credit.ReasonGatewayDeclined, External: external(session)}, nil
}

func (s *StripePaymentProvider) handleCheckoutSessionExpired(event stripe.Event, _ *slog.Logger) (payment.Callback, error) {
	session, ref, err := decodeSession(event)
	if err != nil {
		return nil, err
	}
	return payment.GatewayFailure{Gateway: credit.GatewayCard, Ref: ref, Reason: credit.ReasonExpired, External: external(session)}, nil
}

func decodeSession(event stripe.Event) (*stripe.CheckoutSession, string, error) {
	if event.Data == nil {
		return nil, "", fmt.Errorf("%w: empty event data", payment.ErrMalformedCallback)
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, "", fmt.Errorf("%w: parsing %s: %w", payment.ErrMalformedCallback, event.Type, err)
	}
	ref := session.Metadata[metadataInvoiceRef]
	if ref == "" {
		ref = session.ClientReferenceID
	}
	if ref == "" {
		return nil, "", fmt.Errorf("%w: session %s has no invoice reference", payment.ErrMalformedCallback, session.ID)
	}
	return &session, ref, nil
}

func external(session *stripe.CheckoutSession) map[string]string {
	ext := map[string]string{"checkout_session_id": session.ID}
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		ext["payment_intent_id"] = session.PaymentIntent.ID
	}
	return ext
}

var _ payment.Gateway = (*StripePaymentProvider)(nil)
