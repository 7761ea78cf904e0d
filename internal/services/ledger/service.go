// Package ledger provides the read side of the transaction history plus
// reconciliation of a trip's pooled balance against its completed rows.
package ledger

import (
	"context"
	"errors"
	"fmt"

	domainerr "waypool/internal/errors"
	"waypool/internal/models"
	"waypool/internal/repositories"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service reads transaction history.
type Service interface {
	ListByUser(ctx context.Context, userID uint, page Page) ([]models.Transaction, error)
	ListByTrip(ctx context.Context, tripID, callerID uint, page Page) ([]models.Transaction, error)
	Reconcile(ctx context.Context, tripID, callerID uint) (*Reconciliation, error)
}

// Page is a limit/offset request. Zero values take defaults.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Reconciliation compares the pooled wallet balance to what the ledger says
// it should be: completed payments in, minus completed withdrawals out.
// Divergence means a pending row was never resolved or a balance was touched
// outside the usual paths.
type Reconciliation struct {
	TripID        uint         `json:"trip_id"`
	Payments      models.Money `json:"payments"`
	Withdrawals   models.Money `json:"withdrawals"`
	Expected      models.Money `json:"expected_balance"`
	WalletBalance models.Money `json:"wallet_balance"`
	Balanced      bool         `json:"balanced"`
}

type service struct {
	store repositories.Storage
}

// NewService creates the ledger read service.
func NewService(store repositories.Storage) Service {
	if store == nil {
		panic("store is required")
	}
	return &service{store: store}
}

func (s *service) ListByUser(ctx context.Context, userID uint, page Page) ([]models.Transaction, error) {
	page = page.normalize()
	txs, err := s.store.Transactions().ListByUser(ctx, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// requireMember loads the trip and rejects callers outside its accepted roster.
func (s *service) requireMember(ctx context.Context, tripID, callerID uint) error {
	trip, err := s.store.Trips().GetTrip(ctx, tripID)
	if err != nil {
		if errors.Is(err, repositories.ErrTripNotFound) {
			return domainerr.NotFound("trip %d not found", tripID)
		}
		return fmt.Errorf("failed to load trip: %w", err)
	}
	if !trip.IsAcceptedMember(callerID) {
		return domainerr.PermissionDenied("only accepted trip members can view the trip ledger")
	}
	return nil
}

func (s *service) ListByTrip(ctx context.Context, tripID, callerID uint, page Page) ([]models.Transaction, error) {
	if err := s.requireMember(ctx, tripID, callerID); err != nil {
		return nil, err
	}

	page = page.normalize()
	txs, err := s.store.Transactions().ListByTrip(ctx, tripID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

func (s *service) Reconcile(ctx context.Context, tripID, callerID uint) (*Reconciliation, error) {
	if err := s.requireMember(ctx, tripID, callerID); err != nil {
		return nil, err
	}

	payments, err := s.store.Transactions().SumCompletedByTrip(ctx, tripID, models.TransactionTypePayment)
	if err != nil {
		return nil, err
	}
	withdrawals, err := s.store.Transactions().SumCompletedByTrip(ctx, tripID, models.TransactionTypeWithdrawal)
	if err != nil {
		return nil, err
	}

	expected, err := payments.Sub(withdrawals)
	if err != nil {
		// More withdrawn than ever collected; report zero expected and let the
		// divergence flag carry the signal.
		expected = models.ZeroMoney()
	}

	balance := models.ZeroMoney()
	tripWallet, err := s.store.Trips().GetTripWallet(ctx, tripID)
	if err != nil && !errors.Is(err, repositories.ErrTripWalletNotFound) {
		return nil, fmt.Errorf("failed to load trip wallet: %w", err)
	}
	if err == nil {
		balance = tripWallet.Balance
	}

	return &Reconciliation{
		TripID:        tripID,
		Payments:      payments,
		Withdrawals:   withdrawals,
		Expected:      expected,
		WalletBalance: balance,
		Balanced:      expected.Equal(balance),
	}, nil
}
