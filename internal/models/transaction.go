package models

import (
	"time"
)

// Transaction types
const (
	TransactionTypePayment    = "payment"
	TransactionTypeWithdrawal = "withdrawal"
	TransactionTypeDeposit    = "deposit"
	TransactionTypeTransfer   = "transfer"
)

// Transaction statuses
const (
	TransactionPending   = "pending"
	TransactionCompleted = "completed"
	TransactionFailed    = "failed"
)

// Transaction is an append-only record of an attempted balance-affecting
// operation. Status moves pending -> completed or pending -> failed and
// nothing else; rows are never deleted. The ledger does not compute balances,
// it exists so a reconciliation pass can detect divergence between wallet
// balances and history.
type Transaction struct {
	ID          uint   `gorm:"primarykey"`
	UserID      uint   `gorm:"index;not null"`
	TripID      *uint  `gorm:"index"`
	ExpenseID   *uint  `gorm:"index"`
	Type        string `gorm:"not null"`
	Amount      Money  `gorm:"type:numeric(14,2);not null"`
	Status      string `gorm:"not null;default:'pending'"`
	Description string
	Reference   string `gorm:"uniqueIndex;not null"` // internal reference, uuid
	PaymentID   string // external gateway capture reference
	Metadata    TransactionMetadata `gorm:"type:jsonb"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsTerminal reports whether the transaction has resolved.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionCompleted || t.Status == TransactionFailed
}
