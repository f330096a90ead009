// Package mockpayment is an in-memory payment gateway for tests and local
// development. Callbacks are plain JSON and are not authenticated, so it
// must never be configured in production.
package mockpayment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/money"
	"github.com/amirasaad/creditcore/pkg/provider/payment"
)

// Callback outcomes understood by ParseCallback.
const (
	OutcomePaid   = "paid"
	OutcomeFailed = "failed"
)

// CallbackBody is the unsigned callback payload.
type CallbackBody struct {
	InvoiceRef string `json:"invoice_ref"`
	Outcome    string `json:"outcome"`
	Amount     int64  `json:"amount,omitempty"`
	Currency   string `json:"currency,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// MockPaymentProvider records invoices and turns JSON bodies into callbacks.
type MockPaymentProvider struct {
	name     credit.Gateway
	mu       sync.Mutex
	invoices map[string]payment.InvoiceParams
	failNext error
}

// NewMockPaymentProvider creates a provider that answers to name.
func NewMockPaymentProvider(name credit.Gateway) *MockPaymentProvider {
	return &MockPaymentProvider{
		name:     name,
		invoices: make(map[string]payment.InvoiceParams),
	}
}

// FailNext makes the next CreateInvoice return err.
func (m *MockPaymentProvider) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// Invoice returns the parameters ref was issued with.
func (m *MockPaymentProvider) Invoice(ref string) (payment.InvoiceParams, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.invoices[ref]
	return p, ok
}

// Name implements payment.Gateway.
func (m *MockPaymentProvider) Name() credit.Gateway {
	return m.name
}

// CreateInvoice implements payment.Gateway.
func (m *MockPaymentProvider) CreateInvoice(_ context.Context, params *payment.InvoiceParams) (*payment.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		return nil, err
	}
	m.invoices[params.Ref] = *params
	return &payment.Invoice{
		Ref:        params.Ref,
		URL:        "https://mockpay.local/" + string(m.name) + "/" + params.Ref,
		ExternalID: "mock_" + params.Ref,
	}, nil
}

// ParseCallback implements payment.Gateway. The signature is ignored.
func (m *MockPaymentProvider) ParseCallback(_ context.Context, body []byte, _ string) (payment.Callback, error) {
	var cb CallbackBody
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("%w: %w", payment.ErrMalformedCallback, err)
	}
	if cb.InvoiceRef == "" {
		return nil, fmt.Errorf("%w: missing invoice_ref", payment.ErrMalformedCallback)
	}
	external := map[string]string{"mock_id": "mock_" + cb.InvoiceRef}
	switch cb.Outcome {
	case OutcomePaid:
		return payment.GatewaySuccess{
			Gateway:  m.name,
			Ref:      cb.InvoiceRef,
			Amount:   money.Amount(cb.Amount),
			Currency: money.Code(cb.Currency),
			External: external,
		}, nil
	case OutcomeFailed:
		return payment.GatewayFailure{Gateway: m.name, Ref: cb.InvoiceRef, Reason: cb.Reason, External: external}, nil
	}
	return nil, payment.ErrIgnoredEvent
}

// Paid builds a success payload for ref.
func Paid(ref string, amount money.Amount, currency money.Code) []byte {
	b, _ := json.Marshal(CallbackBody{InvoiceRef: ref, Outcome: OutcomePaid, Amount: amount.Int64(), Currency: currency.String()})
	return b
}

// Failed builds a failure payload for ref.
func Failed(ref, reason string) []byte {
	b, _ := json.Marshal(CallbackBody{InvoiceRef: ref, Outcome: OutcomeFailed, Reason: reason})
	return b
}

var _ payment.Gateway = (*MockPaymentProvider)(nil)
