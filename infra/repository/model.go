package repository

import (
	"time"

	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Transaction represents a persisted ledger row.
// (user_id, operation_id) is unique; invoice_ref is unique when set.
type Transaction struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID        int64     `gorm:"not null;uniqueIndex:idx_transactions_user_operation,priority:1"`
	OperationID   string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_transactions_user_operation,priority:2"`
	Amount        int64     `gorm:"not null"`
	Direction     string    `gorm:"type:varchar(8);not null"`
	Currency      string    `gorm:"type:varchar(3);not null;default:'CRD'"`
	Status        string    `gorm:"type:varchar(16);not null;index:idx_transactions_status_created,priority:1"`
	Category      string    `gorm:"type:varchar(64);not null"`
	Description   string    `gorm:"type:text"`
	Bypass        bool      `gorm:"not null;default:false"`
	BalanceAfter  *int64
	FailureReason string  `gorm:"type:varchar(64)"`
	InvoiceRef    *string `gorm:"type:varchar(128);uniqueIndex"`
	Gateway       string  `gorm:"type:varchar(32)"`
	Metadata      datatypes.JSONType[credit.Metadata]
	CreatedAt     time.Time `gorm:"not null;index:idx_transactions_status_created,priority:2"`
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// TableName specifies the table name for the Transaction model.
func (Transaction) TableName() string {
	return "transactions"
}

// Balance is the materialized spendable balance of one user.
type Balance struct {
	UserID    int64 `gorm:"primaryKey;autoIncrement:false"`
	Balance   int64 `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// TableName specifies the table name for the Balance model.
func (Balance) TableName() string {
	return "balances"
}

// Subscription is the persisted subscription state of one user.
type Subscription struct {
	UserID            int64     `gorm:"primaryKey;autoIncrement:false"`
	Tier              string    `gorm:"type:varchar(32);not null"`
	ValidFrom         time.Time `gorm:"not null"`
	ValidUntil        time.Time `gorm:"not null"`
	LastTransactionID uuid.UUID `gorm:"type:uuid"`
	TransactionIDs    datatypes.JSONSlice[string]
	UpdatedAt         time.Time
}

// TableName specifies the table name for the Subscription model.
func (Subscription) TableName() string {
	return "subscriptions"
}

// Models lists every table owned by the ledger, in migration order.
func Models() []any {
	return []any{&Balance{}, &Transaction{}, &Subscription{}}
}

func toDomainTransaction(m *Transaction) *credit.Transaction {
	tx := &credit.Transaction{
		ID:            m.ID,
		OperationID:   m.OperationID,
		UserID:        m.UserID,
		Amount:        amountOf(m.Amount),
		Direction:     credit.Direction(m.Direction),
		Currency:      codeOf(m.Currency),
		Status:        credit.Status(m.Status),
		Category:      credit.Category(m.Category),
		Description:   m.Description,
		Bypass:        m.Bypass,
		FailureReason: m.FailureReason,
		Metadata:      m.Metadata.Data(),
		CreatedAt:     m.CreatedAt,
		CompletedAt:   m.CompletedAt,
	}
	if m.BalanceAfter != nil {
		b := amountOf(*m.BalanceAfter)
		tx.BalanceAfter = &b
	}
	return tx
}

func fromDomainTransaction(tx *credit.Transaction) *Transaction {
	m := &Transaction{
		ID:            tx.ID,
		UserID:        tx.UserID,
		OperationID:   tx.OperationID,
		Amount:        tx.Amount.Int64(),
		Direction:     string(tx.Direction),
		Currency:      tx.Currency.String(),
		Status:        string(tx.Status),
		Category:      string(tx.Category),
		Description:   tx.Description,
		Bypass:        tx.Bypass,
		FailureReason: tx.FailureReason,
		Gateway:       string(tx.Metadata.Gateway),
		Metadata:      datatypes.NewJSONType(tx.Metadata),
		CreatedAt:     tx.CreatedAt,
		CompletedAt:   tx.CompletedAt,
	}
	if tx.Metadata.InvoiceRef != "" {
		ref := tx.Metadata.InvoiceRef
		m.InvoiceRef = &ref
	}
	if tx.BalanceAfter != nil {
		b := tx.BalanceAfter.Int64()
		m.BalanceAfter = &b
	}
	return m
}

func toDomainSubscription(m *Subscription) *credit.Subscription {
	sub := &credit.Subscription{
		UserID:            m.UserID,
		Tier:              m.Tier,
		ValidFrom:         m.ValidFrom,
		ValidUntil:        m.ValidUntil,
		LastTransactionID: m.LastTransactionID,
		UpdatedAt:         m.UpdatedAt,
	}
	for _, raw := range m.TransactionIDs {
		if id, err := uuid.Parse(raw); err == nil {
			sub.TransactionIDs = append(sub.TransactionIDs, id)
		}
	}
	return sub
}

func fromDomainSubscription(sub *credit.Subscription) *Subscription {
	ids := make([]string, 0, len(sub.TransactionIDs))
	for _, id := range sub.TransactionIDs {
		ids = append(ids, id.String())
	}
	return &Subscription{
		UserID:            sub.UserID,
		Tier:              sub.Tier,
		ValidFrom:         sub.ValidFrom,
		ValidUntil:        sub.ValidUntil,
		LastTransactionID: sub.LastTransactionID,
		TransactionIDs:    datatypes.NewJSONSlice(ids),
		UpdatedAt:         sub.UpdatedAt,
	}
}
