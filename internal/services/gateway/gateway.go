// Package gateway adapts the external payment provider. Captures are opaque
// to the ledger: the service only learns a capture id up front and a
// confirmed amount (or failure) when the provider resolves it.
package gateway

import (
	"context"

	"waypool/internal/models"
)

// Capture is the handle returned to a caller starting an external payment.
// The client completes the charge against the provider using ClientSecret.
type Capture struct {
	ID           string
	ClientSecret string
}

// Proof is what the provider callback carries when a capture resolves.
type Proof struct {
	CaptureID string `json:"capture_id" validate:"required"`
	Signature string `json:"signature"`
}

// Service is the external payment capture capability.
type Service interface {
	// CreateCapture registers an intent to collect amount and returns the
	// opaque handle.
	CreateCapture(ctx context.Context, userID uint, amount models.Money, description string) (*Capture, error)
	// VerifyCapture checks that the capture referenced by proof matches
	// captureID and has actually been collected, returning the confirmed
	// amount.
	VerifyCapture(ctx context.Context, captureID string, proof Proof) (models.Money, error)
}
