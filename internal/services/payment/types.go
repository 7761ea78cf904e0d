package payment

import (
	"waypool/internal/models"
)

// Payment methods
const (
	MethodWallet   = "wallet"
	MethodExternal = "external"
)

// PayShareInput is one member's payment against their share of an expense.
type PayShareInput struct {
	ExpenseID uint
	PayerID   uint
	Amount    models.Money
	Method    string
}

// Result reports the outcome of a payment step. For external captures Status
// stays pending until the gateway callback confirms; CaptureID and
// ClientSecret let the client finish the charge.
type Result struct {
	Status        string        `json:"status"`
	TransactionID uint          `json:"transaction_id"`
	Share         *models.Share `json:"share,omitempty"`
	CaptureID     string        `json:"capture_id,omitempty"`
	ClientSecret  string        `json:"client_secret,omitempty"`
}
