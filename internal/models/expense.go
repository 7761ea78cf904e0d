package models

import (
	"time"
)

// Share payment statuses
const (
	SharePending   = "pending"
	SharePartial   = "partial"
	ShareCompleted = "completed"
)

// Expense is a cost added to a trip, split equally across the accepted
// members at creation time. Title, amount and description are immutable after
// creation; only the shares mutate as payments arrive.
type Expense struct {
	ID          uint   `gorm:"primarykey"`
	TripID      uint   `gorm:"index;not null"`
	Title       string `gorm:"not null"`
	Description string
	Amount      Money `gorm:"type:numeric(14,2);not null"`
	Date        time.Time
	AddedBy     uint    `gorm:"not null"`
	Shares      []Share `gorm:"foreignKey:ExpenseID"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Share is one member's portion of an expense. AmountPaid only ever grows and
// never exceeds Amount; Status is derived from the two amounts.
type Share struct {
	ID         uint   `gorm:"primarykey"`
	ExpenseID  uint   `gorm:"uniqueIndex:idx_expense_share;not null"`
	UserID     uint   `gorm:"uniqueIndex:idx_expense_share;not null"`
	Amount     Money  `gorm:"type:numeric(14,2);not null"`
	AmountPaid Money  `gorm:"type:numeric(14,2);not null;default:0"`
	Status     string `gorm:"not null;default:'pending'"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Remaining is the unpaid portion of the share.
func (s *Share) Remaining() Money {
	rem, err := s.Amount.Sub(s.AmountPaid)
	if err != nil {
		// AmountPaid exceeding Amount violates the share invariant; treat as settled.
		return ZeroMoney()
	}
	return rem
}

// ShareStatusFor derives the payment status from the owed and paid amounts.
func ShareStatusFor(amount, amountPaid Money) string {
	switch {
	case amountPaid.IsZero():
		return SharePending
	case amountPaid.LessThan(amount):
		return SharePartial
	default:
		return ShareCompleted
	}
}
