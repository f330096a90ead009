// Package payment defines the boundary between the ledger and the payment
// gateways. Gateway payloads are turned into the closed Callback variants
// here, before anything reaches the core.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/money"
)

var (
	// ErrInvalidSignature is returned when a callback cannot be authenticated.
	ErrInvalidSignature = errors.New("invalid callback signature")

	// ErrIgnoredEvent is returned for authentic callbacks that carry no
	// payment outcome, e.g. unrelated webhook event types.
	ErrIgnoredEvent = errors.New("callback event ignored")

	// ErrMalformedCallback is returned for authentic callbacks missing required fields.
	ErrMalformedCallback = errors.New("malformed callback")
)

// Gateway is a payment rail that can issue invoices and report their outcome.
type Gateway interface {
	Name() credit.Gateway

	// CreateInvoice asks the gateway for a payable invoice identified by params.Ref.
	CreateInvoice(ctx context.Context, params *InvoiceParams) (*Invoice, error)

	// ParseCallback authenticates a raw callback and converts it to a Callback.
	ParseCallback(ctx context.Context, payload []byte, signature string) (Callback, error)
}

// InvoiceParams describes what the user is paying for.
type InvoiceParams struct {
	Ref         string
	UserID      int64
	Credits     money.Amount
	Price       money.Amount
	Currency    money.Code
	Title       string
	Description string
	Metadata    map[string]string
}

// Invoice is what the gateway returns for a created invoice.
type Invoice struct {
	Ref        string
	URL        string
	ExternalID string
	ExpiresAt  time.Time
}

// Callback is the outcome of an invoice as reported by a gateway.
// It is either GatewaySuccess or GatewayFailure.
type Callback interface {
	InvoiceRef() string
	// Source is the gateway that authenticated the callback.
	Source() credit.Gateway
	callback()
}

// GatewaySuccess reports that the invoice was paid.
type GatewaySuccess struct {
	Gateway  credit.Gateway
	Ref      string
	Amount   money.Amount
	Currency money.Code
	External map[string]string
}

func (s GatewaySuccess) InvoiceRef() string     { return s.Ref }
func (s GatewaySuccess) Source() credit.Gateway { return s.Gateway }
func (GatewaySuccess) callback()                {}

// GatewayFailure reports that the invoice will not be paid.
type GatewayFailure struct {
	Gateway  credit.Gateway
	Ref      string
	Reason   string
	External map[string]string
}

func (f GatewayFailure) InvoiceRef() string     { return f.Ref }
func (f GatewayFailure) Source() credit.Gateway { return f.Gateway }
func (GatewayFailure) callback()                {}
