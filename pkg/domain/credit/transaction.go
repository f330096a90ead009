// Package credit holds the domain model of the credit ledger: transactions,
// their lifecycle states and the subscription state derived from them.
package credit

import (
	"time"

	"github.com/amirasaad/creditcore/pkg/money"
	"github.com/google/uuid"
)

// Status is the lifecycle state of a transaction.
type Status string

// Transaction statuses. COMPLETED and FAILED are terminal.
const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Direction tells whether a transaction adds to or removes from the balance.
type Direction string

const (
	Credit Direction = "CREDIT"
	Debit  Direction = "DEBIT"
)

// IsValid reports whether d is CREDIT or DEBIT.
func (d Direction) IsValid() bool {
	return d == Credit || d == Debit
}

// Category tags what a transaction paid for or why credits were granted.
type Category string

const (
	CategoryImageGen             Category = "image_gen"
	CategoryVideoGen             Category = "video_gen"
	CategoryVoiceGen             Category = "voice_gen"
	CategoryTextGen              Category = "text_gen"
	CategoryPurchase             Category = "purchase"
	CategorySubscriptionPurchase Category = "subscription_purchase"
	CategoryReferralBonus        Category = "referral_bonus"
	CategoryRefund               Category = "refund"
	CategoryAdjustment           Category = "adjustment"
)

// Failure reasons recorded on FAILED transactions.
const (
	ReasonInsufficientFunds = "insufficient_funds"
	ReasonExpired           = "expired"
	ReasonAmountMismatch    = "amount_mismatch"
	ReasonGatewayDeclined   = "gateway_declined"
)

// ReasonStorageFailure is reported to the user when an operation could not be
// stored. Nothing is recorded, so the same operation id may be retried.
const ReasonStorageFailure = "storage_failure"

// Gateway identifies the payment rail a purchase went through.
type Gateway string

const (
	GatewayCard     Gateway = "stripe"
	GatewayPlatform Gateway = "platform"
)

// Metadata carries optional, non-balance attributes of a transaction.
type Metadata struct {
	PaymentMethod    string            `json:"payment_method,omitempty"`
	Gateway          Gateway           `json:"gateway,omitempty"`
	InvoiceRef       string            `json:"invoice_ref,omitempty"`
	InvoiceURL       string            `json:"invoice_url,omitempty"`
	PriceAmount      money.Amount      `json:"price_amount,omitempty"`
	PriceCurrency    money.Code        `json:"price_currency,omitempty"`
	SubscriptionTier string            `json:"subscription_tier,omitempty"`
	ReversalOf       string            `json:"reversal_of,omitempty"`
	External         map[string]string `json:"external,omitempty"`
}

// Transaction is a single balance-affecting event. Once COMPLETED it is immutable.
type Transaction struct {
	ID            uuid.UUID
	OperationID   string
	UserID        int64
	Amount        money.Amount
	Direction     Direction
	Currency      money.Code
	Status        Status
	Category      Category
	Description   string
	Bypass        bool
	BalanceAfter  *money.Amount
	FailureReason string
	Metadata      Metadata
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// Delta returns the signed balance change the transaction represents.
func (t *Transaction) Delta() money.Amount {
	if t.Direction == Debit {
		return -t.Amount
	}
	return t.Amount
}

// SameOperation reports whether other describes the same balance effect as t.
// Descriptions and metadata are informational and are not compared.
func (t *Transaction) SameOperation(other *Transaction) bool {
	return t.UserID == other.UserID &&
		t.Amount == other.Amount &&
		t.Direction == other.Direction &&
		t.Category == other.Category &&
		t.Currency == other.Currency
}

// IsPendingPayment reports whether the record awaits a gateway callback.
func (t *Transaction) IsPendingPayment() bool {
	return t.Status == StatusPending && t.Metadata.InvoiceRef != ""
}
