package gateway

import (
	"context"
	"fmt"

	"waypool/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/paymentintent"

	domainerr "waypool/internal/errors"
)

const currency = "usd"

type stripeService struct{}

// NewStripeService builds the Stripe-backed gateway. The secret key is
// process-wide in stripe-go, so it is set once here.
func NewStripeService(secretKey string) Service {
	stripe.Key = secretKey
	return &stripeService{}
}

func (s *stripeService) CreateCapture(ctx context.Context, userID uint, amount models.Money, description string) (*Capture, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(toMinorUnits(amount)),
		Currency:    stripe.String(currency),
		Description: stripe.String(description),
	}
	params.Context = ctx
	params.AddMetadata("user_id", fmt.Sprintf("%d", userID))

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, domainerr.Gateway("failed to create payment capture: %v", err)
	}
	return &Capture{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (s *stripeService) VerifyCapture(ctx context.Context, captureID string, proof Proof) (models.Money, error) {
	if proof.CaptureID != captureID {
		return models.ZeroMoney(), domainerr.Gateway("capture reference mismatch")
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(captureID, params)
	if err != nil {
		return models.ZeroMoney(), domainerr.Gateway("failed to fetch payment capture: %v", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return models.ZeroMoney(), domainerr.Gateway("capture %s not settled: status %s", captureID, pi.Status)
	}
	return fromMinorUnits(pi.AmountReceived)
}

func toMinorUnits(m models.Money) int64 {
	return m.Decimal().Mul(decimal.NewFromInt(100)).IntPart()
}

func fromMinorUnits(units int64) (models.Money, error) {
	return models.NewMoney(decimal.NewFromInt(units).Div(decimal.NewFromInt(100)))
}
