// Package wallet manages personal wallets: reads, first-use creation and
// gateway-backed deposits. Share payments and withdrawal transfers mutate
// balances through their own services; nothing else writes here.
package wallet

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

// Service is the personal wallet service.
type Service interface {
	GetWallet(ctx context.Context, userID uint) (*models.Wallet, error)
	GetBalance(ctx context.Context, userID uint) (models.Money, error)
	CreateDeposit(ctx context.Context, userID uint, amount models.Money) (*DepositResult, error)
	ConfirmDeposit(ctx context.Context, transactionID uint, proof gateway.Proof) (*DepositResult, error)
}

// Cache is the wallet snapshot cache.
type Cache interface {
	GetWallet(ctx context.Context, userID uint) (*models.Wallet, error)
	CacheWallet(ctx context.Context, wallet *models.Wallet) error
	InvalidateWallet(ctx context.Context, userID uint) error
}

type service struct {
	store   repositories.Storage
	gateway gateway.Service
	cache   Cache
	metrics MetricsCollector
}

// NewService creates the wallet service. cache may be nil; metrics defaults
// to a no-op collector.
func NewService(store repositories.Storage, gw gateway.Service, cache Cache, metrics MetricsCollector) Service {
	if store == nil {
		panic("store is required")
	}
	if gw == nil {
		panic("gateway is required")
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}
	return &service{store: store, gateway: gw, cache: cache, metrics: metrics}
}

// GetWallet returns the user's wallet, creating an empty one on first use.
func (s *service) GetWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	if s.cache != nil {
		if w, err := s.cache.GetWallet(ctx, userID); err == nil {
			s.metrics.RecordCacheHit("wallet")
			return w, nil
		}
		s.metrics.RecordCacheMiss("wallet")
	}

	w, err := s.store.Wallets().GetByUserID(ctx, userID)
	if errors.Is(err, repositories.ErrWalletNotFound) {
		w = &models.Wallet{UserID: userID, Balance: models.ZeroMoney()}
		if err := s.store.Wallets().Create(ctx, w); err != nil {
			return nil, fmt.Errorf("failed to create wallet: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.CacheWallet(ctx, w); err != nil {
			log.Printf("failed to cache wallet for user %d: %v", userID, err)
		}
	}
	return w, nil
}

func (s *service) GetBalance(ctx context.Context, userID uint) (models.Money, error) {
	w, err := s.GetWallet(ctx, userID)
	if err != nil {
		return models.ZeroMoney(), err
	}
	return w.Balance, nil
}

// CreateDeposit starts a gateway-backed top-up: a pending deposit row plus a
// capture handle. No balance moves until the gateway confirms.
func (s *service) CreateDeposit(ctx context.Context, userID uint, amount models.Money) (*DepositResult, error) {
	if !amount.IsPositive() {
		return nil, domainerr.Validation("deposit amount must be greater than zero")
	}

	capture, err := s.gateway.CreateCapture(ctx, userID, amount, "Wallet deposit")
	if err != nil {
		s.metrics.RecordError("deposit", domainerr.CodeGateway)
		return nil, err
	}

	ledgerTx := &models.Transaction{
		UserID:      userID,
		Type:        models.TransactionTypeDeposit,
		Amount:      amount,
		Status:      models.TransactionPending,
		Description: "Wallet deposit",
		Reference:   uuid.NewString(),
		PaymentID:   capture.ID,
		Metadata: models.NewGatewayMetadata(models.GatewayMetadata{
			Provider:  "stripe",
			CaptureID: capture.ID,
		}),
	}
	if err := s.store.Transactions().Create(ctx, ledgerTx); err != nil {
		return nil, fmt.Errorf("failed to record pending deposit: %w", err)
	}

	return &DepositResult{
		Status:        models.TransactionPending,
		TransactionID: ledgerTx.ID,
		CaptureID:     capture.ID,
		ClientSecret:  capture.ClientSecret,
	}, nil
}

// ConfirmDeposit resolves a pending deposit. Confirming an already completed
// deposit is a no-op, so duplicate gateway callbacks cannot double credit.
func (s *service) ConfirmDeposit(ctx context.Context, transactionID uint, proof gateway.Proof) (*DepositResult, error) {
	ledgerTx, err := s.store.Transactions().GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, domainerr.NotFound("transaction %d not found", transactionID)
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	if ledgerTx.Type != models.TransactionTypeDeposit {
		return nil, domainerr.Validation("transaction %d is not a deposit", transactionID)
	}
	if ledgerTx.Status == models.TransactionCompleted {
		return &DepositResult{Status: models.TransactionCompleted, TransactionID: ledgerTx.ID}, nil
	}
	if ledgerTx.Status == models.TransactionFailed {
		return nil, domainerr.Conflict("transaction %d already failed", transactionID)
	}

	confirmed, err := s.gateway.VerifyCapture(ctx, ledgerTx.PaymentID, proof)
	if err != nil {
		s.fail(ctx, ledgerTx, fmt.Sprintf("capture verification failed: %v", err))
		return nil, err
	}
	if !confirmed.Equal(ledgerTx.Amount) {
		s.fail(ctx, ledgerTx, fmt.Sprintf("confirmed amount %s does not match recorded amount %s",
			confirmed, ledgerTx.Amount))
		return nil, domainerr.Validation("confirmed amount %s does not match recorded amount %s",
			confirmed, ledgerTx.Amount)
	}

	var balance models.Money
	alreadyCompleted := false
	err = s.store.InTransaction(func(tx repositories.Storage) error {
		locked, err := tx.Transactions().GetByIDForUpdate(ctx, transactionID)
		if err != nil {
			return fmt.Errorf("failed to lock transaction: %w", err)
		}
		switch locked.Status {
		case models.TransactionCompleted:
			alreadyCompleted = true
			return nil
		case models.TransactionFailed:
			return domainerr.Conflict("transaction %d already failed", transactionID)
		}

		w, err := tx.Wallets().GetByUserIDForUpdate(ctx, locked.UserID)
		if errors.Is(err, repositories.ErrWalletNotFound) {
			w = &models.Wallet{UserID: locked.UserID, Balance: models.ZeroMoney()}
			if err := tx.Wallets().Create(ctx, w); err != nil {
				return fmt.Errorf("failed to create wallet: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to lock wallet: %w", err)
		}

		w.Balance = w.Balance.Add(locked.Amount)
		if err := tx.Wallets().Update(ctx, w); err != nil {
			return err
		}
		balance = w.Balance

		return tx.Transactions().SetStatus(ctx, locked, models.TransactionCompleted,
			models.NewGatewayMetadata(models.GatewayMetadata{
				Provider:        "stripe",
				CaptureID:       locked.PaymentID,
				ConfirmedAmount: confirmed.String(),
			}))
	})
	if err != nil {
		return nil, err
	}

	if !alreadyCompleted {
		if s.cache != nil {
			if err := s.cache.InvalidateWallet(ctx, ledgerTx.UserID); err != nil {
				log.Printf("failed to invalidate wallet cache for user %d: %v", ledgerTx.UserID, err)
			}
		}
		s.metrics.RecordTransaction(models.TransactionTypeDeposit, ledgerTx.Amount)
	}

	result := &DepositResult{Status: models.TransactionCompleted, TransactionID: ledgerTx.ID}
	if !alreadyCompleted {
		result.Balance = &balance
	}
	return result, nil
}

func (s *service) fail(ctx context.Context, ledgerTx *models.Transaction, reason string) {
	err := s.store.Transactions().SetStatus(ctx, ledgerTx, models.TransactionFailed,
		models.NewGatewayMetadata(models.GatewayMetadata{
			Provider:      "stripe",
			CaptureID:     ledgerTx.PaymentID,
			FailureReason: reason,
		}))
	if err != nil {
		log.Printf("failed to mark transaction %d failed: %v", ledgerTx.ID, err)
	}
	s.metrics.RecordError("deposit", domainerr.CodeGateway)
}
