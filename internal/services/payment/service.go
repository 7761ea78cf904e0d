// Package payment applies share payments: wallet debits settle immediately,
// external captures settle through an asynchronous gateway confirmation.
// Every balance mutation happens inside one store transaction with the share
// and wallet rows locked, so two racing payments cannot overpay a share.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	domainerr "waypool/internal/errors"
	"waypool/internal/models"
	"waypool/internal/repositories"
	"waypool/internal/services/gateway"
)

// Service is the share payment processor.
type Service interface {
	PayShare(ctx context.Context, in PayShareInput) (*Result, error)
	ConfirmExternalPayment(ctx context.Context, transactionID uint, proof gateway.Proof) (*Result, error)
}

// Invalidator drops cached wallet state after balance mutations.
type Invalidator interface {
	InvalidateWallet(ctx context.Context, userID uint) error
	InvalidateTripWallet(ctx context.Context, tripID uint) error
}

type service struct {
	store   repositories.Storage
	gateway gateway.Service
	cache   Invalidator
}

// NewService creates the payment processor. cache may be nil.
func NewService(store repositories.Storage, gw gateway.Service, cache Invalidator) Service {
	if store == nil {
		panic("store is required")
	}
	if gw == nil {
		panic("gateway is required")
	}
	return &service{store: store, gateway: gw, cache: cache}
}

func (s *service) PayShare(ctx context.Context, in PayShareInput) (*Result, error) {
	if !in.Amount.IsPositive() {
		return nil, domainerr.Validation("payment amount must be greater than zero")
	}

	exp, err := s.store.Expenses().GetByID(ctx, in.ExpenseID)
	if err != nil {
		if errors.Is(err, repositories.ErrExpenseNotFound) {
			return nil, domainerr.NotFound("expense %d not found", in.ExpenseID)
		}
		return nil, fmt.Errorf("failed to load expense: %w", err)
	}

	share, err := s.store.Expenses().GetShare(ctx, in.ExpenseID, in.PayerID)
	if err != nil {
		if errors.Is(err, repositories.ErrShareNotFound) {
			return nil, domainerr.NotFound("no share for this member in expense %d", in.ExpenseID)
		}
		return nil, fmt.Errorf("failed to load share: %w", err)
	}
	if err := checkRemaining(share, in.Amount); err != nil {
		return nil, err
	}

	switch in.Method {
	case MethodWallet:
		return s.payFromWallet(ctx, exp, in)
	case MethodExternal:
		return s.startExternalPayment(ctx, exp, in)
	default:
		return nil, domainerr.Validation("unknown payment method %q", in.Method)
	}
}

// checkRemaining rejects zero, negative and overpaying amounts up front.
// The same check runs again against the locked row at mutation time.
func checkRemaining(share *models.Share, amount models.Money) error {
	remaining := share.Remaining()
	if remaining.IsZero() {
		return domainerr.Validation("share is already fully paid").
			WithDetail("remaining", remaining.String())
	}
	if amount.GreaterThan(remaining) {
		return domainerr.Validation("payment %s exceeds remaining share balance %s", amount, remaining).
			WithDetail("remaining", remaining.String()).
			WithDetail("requested", amount.String())
	}
	return nil
}

func (s *service) payFromWallet(ctx context.Context, exp *models.Expense, in PayShareInput) (*Result, error) {
	var (
		paidShare *models.Share
		ledgerTx  *models.Transaction
	)

	err := s.store.InTransaction(func(tx repositories.Storage) error {
		share, err := tx.Expenses().GetShareForUpdate(ctx, in.ExpenseID, in.PayerID)
		if err != nil {
			return fmt.Errorf("failed to lock share: %w", err)
		}
		if err := checkRemaining(share, in.Amount); err != nil {
			return err
		}

		wallet, err := tx.Wallets().GetByUserIDForUpdate(ctx, in.PayerID)
		if err != nil {
			if errors.Is(err, repositories.ErrWalletNotFound) {
				return domainerr.InsufficientFunds(models.ZeroMoney().String(), in.Amount.String())
			}
			return fmt.Errorf("failed to lock wallet: %w", err)
		}
		if wallet.Balance.LessThan(in.Amount) {
			return domainerr.InsufficientFunds(wallet.Balance.String(), in.Amount.String())
		}

		wallet.Balance, err = wallet.Balance.Sub(in.Amount)
		if err != nil {
			return err
		}
		if err := tx.Wallets().Update(ctx, wallet); err != nil {
			return err
		}

		if err := creditTripWallet(ctx, tx, exp.TripID, in.Amount); err != nil {
			return err
		}

		share.AmountPaid = share.AmountPaid.Add(in.Amount)
		share.Status = models.ShareStatusFor(share.Amount, share.AmountPaid)
		if err := tx.Expenses().UpdateShare(ctx, share); err != nil {
			return err
		}
		paidShare = share

		ledgerTx = &models.Transaction{
			UserID:      in.PayerID,
			TripID:      &exp.TripID,
			ExpenseID:   &exp.ID,
			Type:        models.TransactionTypePayment,
			Amount:      in.Amount,
			Status:      models.TransactionCompleted,
			Description: fmt.Sprintf("Share payment for %q", exp.Title),
			Reference:   uuid.NewString(),
		}
		return tx.Transactions().Create(ctx, ledgerTx)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, in.PayerID, exp.TripID)
	return &Result{
		Status:        models.TransactionCompleted,
		TransactionID: ledgerTx.ID,
		Share:         paidShare,
	}, nil
}

func (s *service) startExternalPayment(ctx context.Context, exp *models.Expense, in PayShareInput) (*Result, error) {
	capture, err := s.gateway.CreateCapture(ctx, in.PayerID, in.Amount,
		fmt.Sprintf("Share payment for %q", exp.Title))
	if err != nil {
		return nil, err
	}

	ledgerTx := &models.Transaction{
		UserID:      in.PayerID,
		TripID:      &exp.TripID,
		ExpenseID:   &exp.ID,
		Type:        models.TransactionTypePayment,
		Amount:      in.Amount,
		Status:      models.TransactionPending,
		Description: fmt.Sprintf("External share payment for %q", exp.Title),
		Reference:   uuid.NewString(),
		PaymentID:   capture.ID,
		Metadata: models.NewGatewayMetadata(models.GatewayMetadata{
			Provider:  "stripe",
			CaptureID: capture.ID,
		}),
	}
	if err := s.store.Transactions().Create(ctx, ledgerTx); err != nil {
		return nil, fmt.Errorf("failed to record pending payment: %w", err)
	}

	return &Result{
		Status:        models.TransactionPending,
		TransactionID: ledgerTx.ID,
		CaptureID:     capture.ID,
		ClientSecret:  capture.ClientSecret,
	}, nil
}

// errStaleCapture aborts the confirmation transaction when the share can no
// longer absorb the captured amount; the transaction row is then failed
// outside the rolled-back transaction.
var errStaleCapture = errors.New("stale capture")

// ConfirmExternalPayment resolves a pending external capture. The share
// preconditions are re-validated against locked rows because the callback can
// arrive long after the share was otherwise paid. A transaction already
// completed is a no-op, never a double credit; money captured for a stale
// share is surfaced as failed for out-of-band refund, never silently
// credited.
func (s *service) ConfirmExternalPayment(ctx context.Context, transactionID uint, proof gateway.Proof) (*Result, error) {
	ledgerTx, err := s.store.Transactions().GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, domainerr.NotFound("transaction %d not found", transactionID)
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	if ledgerTx.Type != models.TransactionTypePayment || ledgerTx.ExpenseID == nil {
		return nil, domainerr.Validation("transaction %d is not an external share payment", transactionID)
	}
	if ledgerTx.Status == models.TransactionCompleted {
		return &Result{Status: models.TransactionCompleted, TransactionID: ledgerTx.ID}, nil
	}
	if ledgerTx.Status == models.TransactionFailed {
		return nil, domainerr.Conflict("transaction %d already failed", transactionID)
	}

	confirmed, err := s.gateway.VerifyCapture(ctx, ledgerTx.PaymentID, proof)
	if err != nil {
		s.failTransaction(ctx, ledgerTx, fmt.Sprintf("capture verification failed: %v", err))
		return nil, err
	}
	if !confirmed.Equal(ledgerTx.Amount) {
		s.failTransaction(ctx, ledgerTx,
			fmt.Sprintf("confirmed amount %s does not match recorded amount %s", confirmed, ledgerTx.Amount))
		return nil, domainerr.Validation("confirmed amount %s does not match recorded amount %s",
			confirmed, ledgerTx.Amount)
	}

	var paidShare *models.Share
	alreadyCompleted := false

	err = s.store.InTransaction(func(tx repositories.Storage) error {
		locked, err := tx.Transactions().GetByIDForUpdate(ctx, transactionID)
		if err != nil {
			return fmt.Errorf("failed to lock transaction: %w", err)
		}
		switch locked.Status {
		case models.TransactionCompleted:
			// A concurrent duplicate callback won the race.
			alreadyCompleted = true
			return nil
		case models.TransactionFailed:
			return domainerr.Conflict("transaction %d already failed", transactionID)
		}

		share, err := tx.Expenses().GetShareForUpdate(ctx, *locked.ExpenseID, locked.UserID)
		if err != nil {
			return fmt.Errorf("failed to lock share: %w", err)
		}
		if locked.Amount.GreaterThan(share.Remaining()) {
			return errStaleCapture
		}

		if err := creditTripWallet(ctx, tx, *locked.TripID, locked.Amount); err != nil {
			return err
		}

		share.AmountPaid = share.AmountPaid.Add(locked.Amount)
		share.Status = models.ShareStatusFor(share.Amount, share.AmountPaid)
		if err := tx.Expenses().UpdateShare(ctx, share); err != nil {
			return err
		}
		paidShare = share

		return tx.Transactions().SetStatus(ctx, locked, models.TransactionCompleted,
			models.NewGatewayMetadata(models.GatewayMetadata{
				Provider:        "stripe",
				CaptureID:       locked.PaymentID,
				ConfirmedAmount: confirmed.String(),
			}))
	})
	if errors.Is(err, errStaleCapture) {
		s.failTransaction(ctx, ledgerTx, "share already settled before capture confirmation")
		return nil, domainerr.Validation("share was settled before the capture confirmed; the captured amount must be refunded").
			WithDetail("captured", ledgerTx.Amount.String())
	}
	if err != nil {
		return nil, err
	}

	if !alreadyCompleted && ledgerTx.TripID != nil {
		s.invalidate(ctx, ledgerTx.UserID, *ledgerTx.TripID)
	}
	return &Result{
		Status:        models.TransactionCompleted,
		TransactionID: ledgerTx.ID,
		Share:         paidShare,
	}, nil
}

// creditTripWallet locks the pooled wallet and adds amount, creating the
// wallet on the trip's first completed payment.
func creditTripWallet(ctx context.Context, tx repositories.Storage, tripID uint, amount models.Money) error {
	tripWallet, err := tx.Trips().GetTripWalletForUpdate(ctx, tripID)
	if errors.Is(err, repositories.ErrTripWalletNotFound) {
		return tx.Trips().CreateTripWallet(ctx, &models.TripWallet{
			TripID:  tripID,
			Balance: amount,
		})
	}
	if err != nil {
		return fmt.Errorf("failed to lock trip wallet: %w", err)
	}
	tripWallet.Balance = tripWallet.Balance.Add(amount)
	return tx.Trips().UpdateTripWallet(ctx, tripWallet)
}

func (s *service) failTransaction(ctx context.Context, ledgerTx *models.Transaction, reason string) {
	err := s.store.Transactions().SetStatus(ctx, ledgerTx, models.TransactionFailed,
		models.NewGatewayMetadata(models.GatewayMetadata{
			Provider:      "stripe",
			CaptureID:     ledgerTx.PaymentID,
			FailureReason: reason,
		}))
	if err != nil {
		// The row stays pending; reconciliation will surface it.
		log.Printf("failed to mark transaction %d failed: %v", ledgerTx.ID, err)
	}
}

func (s *service) invalidate(ctx context.Context, userID, tripID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateWallet(ctx, userID); err != nil {
		log.Printf("failed to invalidate wallet cache for user %d: %v", userID, err)
	}
	if err := s.cache.InvalidateTripWallet(ctx, tripID); err != nil {
		log.Printf("failed to invalidate trip wallet cache for trip %d: %v", tripID, err)
	}
}
