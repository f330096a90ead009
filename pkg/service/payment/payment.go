// Package payment manages purchases that wait on an external gateway.
//
// A purchase is recorded as a PENDING transaction keyed by its invoice
// reference before the user is sent to pay. The gateway callback later
// completes it through the ledger (exactly once) or marks it FAILED. Records
// nobody calls back for are expired by the sweeper.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/amirasaad/creditcore/pkg/config"
	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/domain/events"
	"github.com/amirasaad/creditcore/pkg/eventbus"
	"github.com/amirasaad/creditcore/pkg/metrics"
	"github.com/amirasaad/creditcore/pkg/money"
	provider "github.com/amirasaad/creditcore/pkg/provider/payment"
	"github.com/amirasaad/creditcore/pkg/repository"
	"github.com/amirasaad/creditcore/pkg/repository/transaction"
	"github.com/amirasaad/creditcore/pkg/service/ledger"
	"github.com/google/uuid"
)

// InvoiceRefPrefix prefixes generated invoice references.
const InvoiceRefPrefix = "inv-"

// ErrGatewayUnavailable is returned when a gateway is not configured or
// refuses to create an invoice.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Ledger is the part of the transaction processor a payment needs.
type Ledger interface {
	CompletePending(ctx context.Context, req ledger.ApplyRequest) (*ledger.Result, error)
}

// CreatePendingRequest describes a purchase of Credits for Price.
type CreatePendingRequest struct {
	// InvoiceRef is generated when empty.
	InvoiceRef       string
	UserID           int64
	Credits          money.Amount
	Price            money.Amount
	CurrencyHint     money.Code
	Gateway          credit.Gateway
	Category         credit.Category
	Description      string
	SubscriptionTier string
}

// PendingPayment is the view of a purchase returned to callers.
type PendingPayment struct {
	InvoiceRef    string         `json:"invoice_ref"`
	URL           string         `json:"url"`
	UserID        int64          `json:"user_id"`
	Status        credit.Status  `json:"status"`
	Credits       money.Amount   `json:"credits"`
	Price         money.Amount   `json:"price"`
	Currency      money.Code     `json:"currency"`
	Gateway       credit.Gateway `json:"gateway"`
	FailureReason string         `json:"failure_reason,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// CallbackResult reports what a callback did.
type CallbackResult struct {
	Payment *PendingPayment
	// AlreadyFinal is true when the record was terminal before the callback.
	AlreadyFinal bool
	// Ledger is set when the callback completed the purchase.
	Ledger *ledger.Result
}

// Deps holds the collaborators of the Service.
type Deps struct {
	Uow      repository.UnitOfWork
	Ledger   Ledger
	Gateways []provider.Gateway
	Bus      eventbus.Bus
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Config   *config.Payment

	// KnownTier validates subscription tiers at purchase time when set.
	KnownTier func(tier string) bool
	Now       func() time.Time
}

// Service is the pending payment lifecycle manager.
type Service struct {
	uow       repository.UnitOfWork
	ledger    Ledger
	gateways  map[credit.Gateway]provider.Gateway
	bus       eventbus.Bus
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cfg       config.Payment
	knownTier func(string) bool
	now       func() time.Time
}

// New creates a Service.
func New(deps Deps) *Service {
	s := &Service{
		uow:       deps.Uow,
		ledger:    deps.Ledger,
		gateways:  make(map[credit.Gateway]provider.Gateway, len(deps.Gateways)),
		bus:       deps.Bus,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		knownTier: deps.KnownTier,
		now:       deps.Now,
	}
	for _, gw := range deps.Gateways {
		s.gateways[gw.Name()] = gw
	}
	if deps.Config != nil {
		s.cfg = *deps.Config
	}
	if s.cfg.PendingTTL <= 0 {
		s.cfg.PendingTTL = 24 * time.Hour
	}
	if s.cfg.SweepBatch <= 0 {
		s.cfg.SweepBatch = 100
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Gateway returns the configured gateway called name.
func (s *Service) Gateway(name credit.Gateway) (provider.Gateway, bool) {
	gw, ok := s.gateways[name]
	return gw, ok
}

// CreatePending issues an invoice and records it as PENDING before the
// redirect URL is handed out. The balance is not touched.
func (s *Service) CreatePending(ctx context.Context, req CreatePendingRequest) (*PendingPayment, error) {
	if req.Category == "" {
		req.Category = credit.CategoryPurchase
	}
	if err := validateCreate(req); err != nil {
		return nil, err
	}
	if req.SubscriptionTier != "" && s.knownTier != nil && !s.knownTier(req.SubscriptionTier) {
		return nil, fmt.Errorf("%w: %q", credit.ErrUnknownTier, req.SubscriptionTier)
	}
	gw, ok := s.gateways[req.Gateway]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGatewayUnavailable, req.Gateway)
	}
	currency := s.SettlementCurrency(req.Gateway, req.CurrencyHint)

	ref := req.InvoiceRef
	if ref == "" {
		ref = InvoiceRefPrefix + uuid.NewString()
	}
	log := s.logger.With(
		"handler", "payment.CreatePending",
		"user_id", req.UserID,
		"invoice_ref", ref,
		"gateway", req.Gateway,
	)
	log.Info("🟢 [START] Creating invoice", "credits", req.Credits, "price", req.Price, "currency", currency)

	invoice, err := gw.CreateInvoice(ctx, &provider.InvoiceParams{
		Ref:         ref,
		UserID:      req.UserID,
		Credits:     req.Credits,
		Price:       req.Price,
		Currency:    currency,
		Title:       fmt.Sprintf("%s credits", req.Credits.Format(money.CRD)),
		Description: req.Description,
		Metadata:    map[string]string{"subscription_tier": req.SubscriptionTier},
	})
	if err != nil {
		log.Error("❌ [ERROR] Gateway refused invoice", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}

	tx := &credit.Transaction{
		ID:          uuid.New(),
		OperationID: ref,
		UserID:      req.UserID,
		Amount:      req.Credits,
		Direction:   credit.Credit,
		Currency:    money.CRD,
		Status:      credit.StatusPending,
		Category:    req.Category,
		Description: req.Description,
		Metadata: credit.Metadata{
			PaymentMethod:    string(req.Gateway),
			Gateway:          req.Gateway,
			InvoiceRef:       ref,
			InvoiceURL:       invoice.URL,
			PriceAmount:      req.Price,
			PriceCurrency:    currency,
			SubscriptionTier: req.SubscriptionTier,
		},
		CreatedAt: s.now(),
	}
	if invoice.ExternalID != "" {
		tx.Metadata.External = map[string]string{"external_id": invoice.ExternalID}
	}

	inserted, err := s.uow.TransactionRepository().InsertIfAbsent(ctx, tx)
	if err != nil {
		log.Error("❌ [ERROR] Failed to persist pending payment", "error", err)
		return nil, err
	}
	if !inserted {
		return nil, credit.ErrDuplicateOperation
	}

	s.metrics.PaymentOutcome(string(req.Gateway), "created")
	log.Info("✅ [SUCCESS] Pending payment recorded", "url", invoice.URL)
	return toPendingPayment(tx), nil
}

// HandleCallback applies a gateway outcome to the pending record for its
// invoice reference. Callbacks for terminal records are acknowledged without
// effect, so gateways may redeliver freely.
func (s *Service) HandleCallback(ctx context.Context, cb provider.Callback) (*CallbackResult, error) {
	ref := cb.InvoiceRef()
	log := s.logger.With("handler", "payment.HandleCallback", "invoice_ref", ref)
	log.Info("🟢 [START] Gateway callback received", "callback", fmt.Sprintf("%T", cb))

	rec, err := s.uow.TransactionRepository().FindPendingByInvoiceRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		log.Warn("⚠️ Callback for unknown invoice")
		return nil, credit.ErrNotFound
	}
	log = log.With("user_id", rec.UserID, "gateway", rec.Metadata.Gateway)

	if cb.Source() != rec.Metadata.Gateway {
		log.Warn("⚠️ Callback from another gateway", "source", cb.Source())
		return nil, fmt.Errorf("%w: invoice %s was not issued by %q", credit.ErrInvalidRequest, ref, cb.Source())
	}

	if rec.Status.IsTerminal() {
		log.Info("🔁 [SKIP] Payment already final", "status", rec.Status)
		return &CallbackResult{Payment: toPendingPayment(rec), AlreadyFinal: true}, nil
	}

	switch c := cb.(type) {
	case provider.GatewaySuccess:
		if c.Amount != rec.Metadata.PriceAmount || c.Currency != rec.Metadata.PriceCurrency {
			log.Warn("⚠️ Paid amount differs from invoice",
				"paid", c.Amount, "paid_currency", c.Currency,
				"invoiced", rec.Metadata.PriceAmount, "invoiced_currency", rec.Metadata.PriceCurrency)
			return s.fail(ctx, log, rec, credit.ReasonAmountMismatch, c.External)
		}
		return s.complete(ctx, log, rec, c)

	case provider.GatewayFailure:
		reason := c.Reason
		if reason == "" {
			reason = credit.ReasonGatewayDeclined
		}
		return s.fail(ctx, log, rec, reason, c.External)
	}
	return nil, fmt.Errorf("%w: unsupported callback %T", credit.ErrInvalidRequest, cb)
}

func (s *Service) complete(
	ctx context.Context,
	log *slog.Logger,
	rec *credit.Transaction,
	c provider.GatewaySuccess,
) (*CallbackResult, error) {
	meta := rec.Metadata
	if len(c.External) > 0 {
		meta.External = maps.Clone(meta.External)
		if meta.External == nil {
			meta.External = make(map[string]string, len(c.External))
		}
		maps.Copy(meta.External, c.External)
	}

	res, err := s.ledger.CompletePending(ctx, ledger.ApplyRequest{
		OperationID: rec.OperationID,
		UserID:      rec.UserID,
		Amount:      rec.Amount,
		Direction:   credit.Credit,
		Category:    rec.Category,
		Description: rec.Description,
		Metadata:    meta,
	})
	if errors.Is(err, credit.ErrInvalidState) {
		// Failed or expired between the lookup and the ledger call.
		return s.finished(ctx, log, rec)
	}
	if err != nil {
		log.Error("❌ [ERROR] Failed to complete payment", "error", err)
		return nil, err
	}

	rec.Status = credit.StatusCompleted
	s.metrics.PaymentOutcome(string(rec.Metadata.Gateway), metrics.OutcomeCompleted)
	log.Info("✅ [SUCCESS] Payment completed", "new_balance", res.NewBalance, "replayed", res.Replayed)
	return &CallbackResult{Payment: toPendingPayment(rec), AlreadyFinal: res.Replayed, Ledger: res}, nil
}

// fail moves a PENDING record to FAILED. The transition is conditional, so a
// record completed concurrently is left alone.
func (s *Service) fail(
	ctx context.Context,
	log *slog.Logger,
	rec *credit.Transaction,
	reason string,
	external map[string]string,
) (*CallbackResult, error) {
	updated, err := s.uow.TransactionRepository().UpdateStatus(ctx, rec.UserID, rec.OperationID, credit.StatusPending,
		transaction.StatusUpdate{
			Status:        credit.StatusFailed,
			FailureReason: reason,
			External:      external,
		})
	if err != nil {
		return nil, err
	}
	if !updated {
		return s.finished(ctx, log, rec)
	}

	rec.Status = credit.StatusFailed
	rec.FailureReason = reason
	outcome := metrics.OutcomeFailed
	if reason == credit.ReasonExpired {
		outcome = metrics.OutcomeExpired
	}
	s.metrics.PaymentOutcome(string(rec.Metadata.Gateway), outcome)
	log.Info("🚫 [FAILED] Payment marked failed", "reason", reason)

	if s.bus != nil {
		if err := s.bus.Emit(ctx, events.PaymentFailed{
			InvoiceRef: rec.OperationID,
			UserID:     rec.UserID,
			Gateway:    rec.Metadata.Gateway,
			Reason:     reason,
		}); err != nil {
			log.Error("❌ [ERROR] Failed to emit event", "error", err)
		}
	}
	return &CallbackResult{Payment: toPendingPayment(rec)}, nil
}

// finished reports a record that another callback or the sweeper finished
// first.
func (s *Service) finished(ctx context.Context, log *slog.Logger, rec *credit.Transaction) (*CallbackResult, error) {
	current, err := s.uow.TransactionRepository().Find(ctx, rec.UserID, rec.OperationID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, credit.ErrNotFound
	}
	if !current.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: payment %s is still %s", credit.ErrInvalidState, rec.OperationID, current.Status)
	}
	log.Info("🔁 [SKIP] Payment finished concurrently", "status", current.Status)
	return &CallbackResult{Payment: toPendingPayment(current), AlreadyFinal: true}, nil
}

// ExpireStale marks PENDING records older than the configured TTL as FAILED.
// Expired records are never retried. It returns how many records it expired.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.cfg.PendingTTL)
	log := s.logger.With("handler", "payment.ExpireStale", "cutoff", cutoff)

	expired := 0
	for {
		stale, err := s.uow.TransactionRepository().ListStalePending(ctx, cutoff, s.cfg.SweepBatch)
		if err != nil {
			return expired, err
		}
		for _, rec := range stale {
			res, err := s.fail(ctx, log.With("invoice_ref", rec.OperationID), rec, credit.ReasonExpired, nil)
			if err != nil {
				return expired, err
			}
			if !res.AlreadyFinal {
				expired++
			}
		}
		if len(stale) < s.cfg.SweepBatch {
			break
		}
	}
	if expired > 0 {
		log.Info("⏰ [SWEEP] Expired stale payments", "count", expired)
	}
	return expired, nil
}

// Get returns the payment for invoiceRef or credit.ErrNotFound.
func (s *Service) Get(ctx context.Context, invoiceRef string) (*PendingPayment, error) {
	rec, err := s.uow.TransactionRepository().FindPendingByInvoiceRef(ctx, invoiceRef)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, credit.ErrNotFound
	}
	return toPendingPayment(rec), nil
}

// SettlementCurrency picks the currency an invoice is priced in. The card
// rail always settles in the configured currency whatever the user's locale
// suggested.
func (s *Service) SettlementCurrency(gw credit.Gateway, hint money.Code) money.Code {
	switch gw {
	case credit.GatewayCard:
		if c := money.Code(s.cfg.CardSettlementCurrency); c.IsValid() {
			return c
		}
		return money.USD
	case credit.GatewayPlatform:
		if s.cfg.Platform != nil {
			if c := money.Code(s.cfg.Platform.Currency); c.IsValid() {
				return c
			}
		}
		return money.XTR
	}
	if hint.IsValid() {
		return hint
	}
	return money.USD
}

func validateCreate(req CreatePendingRequest) error {
	switch {
	case req.UserID <= 0:
		return fmt.Errorf("%w: user id must be positive", credit.ErrInvalidRequest)
	case len(req.InvoiceRef) > ledger.MaxOperationIDLength:
		return fmt.Errorf("%w: invoice reference too long", credit.ErrInvalidRequest)
	case !req.Credits.IsPositive() || !req.Price.IsPositive():
		return credit.ErrInvalidAmount
	case req.Category != credit.CategoryPurchase && req.Category != credit.CategorySubscriptionPurchase:
		return fmt.Errorf("%w: category %q cannot be purchased", credit.ErrInvalidRequest, req.Category)
	case req.Category == credit.CategorySubscriptionPurchase && req.SubscriptionTier == "":
		return fmt.Errorf("%w: subscription purchase needs a tier", credit.ErrInvalidRequest)
	}
	return nil
}

func toPendingPayment(tx *credit.Transaction) *PendingPayment {
	return &PendingPayment{
		InvoiceRef:    tx.OperationID,
		URL:           tx.Metadata.InvoiceURL,
		UserID:        tx.UserID,
		Status:        tx.Status,
		Credits:       tx.Amount,
		Price:         tx.Metadata.PriceAmount,
		Currency:      tx.Metadata.PriceCurrency,
		Gateway:       tx.Metadata.Gateway,
		FailureReason: tx.FailureReason,
		CreatedAt:     tx.CreatedAt,
	}
}
