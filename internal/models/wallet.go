package models

import (
	"time"
)

// Wallet holds a user's free balance. Debited by share payments, credited by
// deposits and withdrawal transfers.
type Wallet struct {
	ID        uint  `gorm:"primarykey"`
	UserID    uint  `gorm:"uniqueIndex;not null"`
	Balance   Money `gorm:"type:numeric(14,2);not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TripWallet is the per-trip escrow balance accumulated from completed share
// payments. Voting approvals live in WithdrawalApproval rows and exist only
// while PendingWithdrawal is set.
type TripWallet struct {
	ID                uint  `gorm:"primarykey"`
	TripID            uint  `gorm:"uniqueIndex;not null"`
	Balance           Money `gorm:"type:numeric(14,2);not null;default:0"`
	PendingWithdrawal bool  `gorm:"not null;default:false"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// WithdrawalApproval records one member's vote on a pending withdrawal.
// The unique index makes a double vote a constraint violation rather than a
// lost update.
type WithdrawalApproval struct {
	ID        uint `gorm:"primarykey"`
	TripID    uint `gorm:"uniqueIndex:idx_withdrawal_vote;not null"`
	UserID    uint `gorm:"uniqueIndex:idx_withdrawal_vote;not null"`
	CreatedAt time.Time
}
