// Package tripwallet governs the per-trip pooled wallet and the member
// voting that gates a group withdrawal. States: idle -> pending withdrawal ->
// (quorum) -> transferred back to idle, or cancelled back to idle. Reaching
// quorum never moves money by itself; the author must explicitly transfer.
package tripwallet

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	domainerr "waypool/internal/errors"
	"waypool/internal/models"
	"waypool/internal/repositories"
)

// Service runs the withdrawal voting state machine.
type Service interface {
	GetDetails(ctx context.Context, tripID, callerID uint) (*Details, error)
	InitiateWithdrawal(ctx context.Context, tripID, callerID uint) error
	Vote(ctx context.Context, tripID, callerID uint) (*Details, error)
	CancelWithdrawal(ctx context.Context, tripID, callerID uint) error
	TransferToAuthor(ctx context.Context, tripID, callerID uint) (*TransferResult, error)
}

// Details is the member-facing view of the pooled wallet and any pending
// withdrawal vote.
type Details struct {
	Balance           models.Money `json:"balance"`
	PendingWithdrawal bool         `json:"pending_withdrawal"`
	Approvals         int          `json:"approvals"`
	TotalMembers      int          `json:"total_members"`
	VotingThreshold   int          `json:"voting_threshold"`
	HasVoted          bool         `json:"has_voted"`
	IsAuthor          bool         `json:"is_author"`
}

// TransferResult reports a completed withdrawal transfer.
type TransferResult struct {
	Amount        models.Money `json:"amount"`
	TransactionID uint         `json:"transaction_id"`
}

// Cache holds pooled-wallet snapshots for reads; writers invalidate after
// every balance or vote-state mutation.
type Cache interface {
	GetTripWallet(ctx context.Context, tripID uint) (*models.TripWallet, error)
	CacheTripWallet(ctx context.Context, wallet *models.TripWallet) error
	InvalidateTripWallet(ctx context.Context, tripID uint) error
	InvalidateWallet(ctx context.Context, userID uint) error
}

type service struct {
	store repositories.Storage
	cache Cache
}

// NewService creates the trip wallet service. cache may be nil.
func NewService(store repositories.Storage, cache Cache) Service {
	if store == nil {
		panic("store is required")
	}
	return &service{store: store, cache: cache}
}

func (s *service) loadTrip(ctx context.Context, tripID uint) (*models.Trip, error) {
	trip, err := s.store.Trips().GetTrip(ctx, tripID)
	if err != nil {
		if errors.Is(err, repositories.ErrTripNotFound) {
			return nil, domainerr.NotFound("trip %d not found", tripID)
		}
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}
	return trip, nil
}

// loadTripWallet is a cache-aside read of the pooled wallet. Only existing
// wallets are cached; absence is cheap to re-derive and short-lived.
func (s *service) loadTripWallet(ctx context.Context, tripID uint) (*models.TripWallet, error) {
	if s.cache != nil {
		if w, err := s.cache.GetTripWallet(ctx, tripID); err == nil {
			return w, nil
		}
	}
	w, err := s.store.Trips().GetTripWallet(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.CacheTripWallet(ctx, w); err != nil {
			log.Printf("failed to cache trip wallet for trip %d: %v", tripID, err)
		}
	}
	return w, nil
}

func (s *service) GetDetails(ctx context.Context, tripID, callerID uint) (*Details, error) {
	trip, err := s.loadTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !trip.IsAcceptedMember(callerID) {
		return nil, domainerr.PermissionDenied("only accepted trip members can view the trip wallet")
	}

	balance := models.ZeroMoney()
	pending := false
	tripWallet, err := s.loadTripWallet(ctx, tripID)
	if err != nil && !errors.Is(err, repositories.ErrTripWalletNotFound) {
		return nil, fmt.Errorf("failed to load trip wallet: %w", err)
	}
	if err == nil {
		balance = tripWallet.Balance
		pending = tripWallet.PendingWithdrawal
	}

	approvals, err := s.store.Trips().CountApprovals(ctx, tripID)
	if err != nil {
		return nil, err
	}
	hasVoted, err := s.store.Trips().HasApproved(ctx, tripID, callerID)
	if err != nil {
		return nil, err
	}

	accepted := len(trip.AcceptedMemberIDs())
	return &Details{
		Balance:           balance,
		PendingWithdrawal: pending,
		Approvals:         approvals,
		TotalMembers:      accepted,
		VotingThreshold:   models.VotingThreshold(accepted),
		HasVoted:          hasVoted,
		IsAuthor:          trip.AuthorID() == callerID,
	}, nil
}

// InitiateWithdrawal moves the wallet from idle to pending withdrawal.
func (s *service) InitiateWithdrawal(ctx context.Context, tripID, callerID uint) error {
	trip, err := s.loadTrip(ctx, tripID)
	if err != nil {
		return err
	}
	if trip.AuthorID() != callerID {
		return domainerr.PermissionDenied("only the trip author can initiate a withdrawal")
	}

	err = s.store.InTransaction(func(tx repositories.Storage) error {
		tripWallet, err := tx.Trips().GetTripWalletForUpdate(ctx, tripID)
		if errors.Is(err, repositories.ErrTripWalletNotFound) {
			return domainerr.Validation("trip wallet is empty; nothing to withdraw")
		}
		if err != nil {
			return fmt.Errorf("failed to lock trip wallet: %w", err)
		}
		if tripWallet.PendingWithdrawal {
			return domainerr.Validation("a withdrawal is already pending for this trip")
		}
		if tripWallet.Balance.IsZero() {
			return domainerr.Validation("trip wallet is empty; nothing to withdraw")
		}

		tripWallet.PendingWithdrawal = true
		if err := tx.Trips().UpdateTripWallet(ctx, tripWallet); err != nil {
			return err
		}
		return tx.Trips().ClearApprovals(ctx, tripID)
	})
	if err != nil {
		return err
	}

	s.invalidateTrip(ctx, tripID)
	return nil
}

// Vote records one accepted non-author member's approval. A double vote is a
// conflict, surfaced explicitly rather than swallowed, so client bugs that
// re-submit votes stay visible.
func (s *service) Vote(ctx context.Context, tripID, callerID uint) (*Details, error) {
	trip, err := s.loadTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !trip.IsAcceptedMember(callerID) {
		return nil, domainerr.PermissionDenied("only accepted trip members can vote")
	}
	if trip.AuthorID() == callerID {
		return nil, domainerr.PermissionDenied("the trip author cannot vote on their own withdrawal")
	}

	err = s.store.InTransaction(func(tx repositories.Storage) error {
		tripWallet, err := tx.Trips().GetTripWalletForUpdate(ctx, tripID)
		if errors.Is(err, repositories.ErrTripWalletNotFound) {
			return domainerr.Validation("no withdrawal is pending for this trip")
		}
		if err != nil {
			return fmt.Errorf("failed to lock trip wallet: %w", err)
		}
		if !tripWallet.PendingWithdrawal {
			return domainerr.Validation("no withdrawal is pending for this trip")
		}

		if err := tx.Trips().AddApproval(ctx, tripID, callerID); err != nil {
			if errors.Is(err, repositories.ErrDuplicateApproval) {
				return domainerr.Conflict("member has already voted on this withdrawal")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetDetails(ctx, tripID, callerID)
}

// CancelWithdrawal aborts a pending withdrawal. The author can cancel even
// after quorum: votes only authorize a transfer, no funds have moved yet.
func (s *service) CancelWithdrawal(ctx context.Context, tripID, callerID uint) error {
	trip, err := s.loadTrip(ctx, tripID)
	if err != nil {
		return err
	}
	if trip.AuthorID() != callerID {
		return domainerr.PermissionDenied("only the trip author can cancel a withdrawal")
	}

	err = s.store.InTransaction(func(tx repositories.Storage) error {
		tripWallet, err := tx.Trips().GetTripWalletForUpdate(ctx, tripID)
		if errors.Is(err, repositories.ErrTripWalletNotFound) {
			return domainerr.Validation("no withdrawal is pending for this trip")
		}
		if err != nil {
			return fmt.Errorf("failed to lock trip wallet: %w", err)
		}
		if !tripWallet.PendingWithdrawal {
			return domainerr.Validation("no withdrawal is pending for this trip")
		}

		tripWallet.PendingWithdrawal = false
		if err := tx.Trips().UpdateTripWallet(ctx, tripWallet); err != nil {
			return err
		}
		return tx.Trips().ClearApprovals(ctx, tripID)
	})
	if err != nil {
		return err
	}

	s.invalidateTrip(ctx, tripID)
	return nil
}

// TransferToAuthor executes an approved withdrawal: the pooled balance moves
// to the author's personal wallet in one transaction, the vote state resets,
// and a withdrawal row lands in the ledger. Quorum alone never triggers this.
func (s *service) TransferToAuthor(ctx context.Context, tripID, callerID uint) (*TransferResult, error) {
	trip, err := s.loadTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.AuthorID() != callerID {
		return nil, domainerr.PermissionDenied("only the trip author can transfer the trip wallet")
	}

	threshold := models.VotingThreshold(len(trip.AcceptedMemberIDs()))

	var (
		amount   models.Money
		ledgerTx *models.Transaction
	)
	err = s.store.InTransaction(func(tx repositories.Storage) error {
		tripWallet, err := tx.Trips().GetTripWalletForUpdate(ctx, tripID)
		if errors.Is(err, repositories.ErrTripWalletNotFound) {
			return domainerr.Validation("no withdrawal is pending for this trip")
		}
		if err != nil {
			return fmt.Errorf("failed to lock trip wallet: %w", err)
		}
		if !tripWallet.PendingWithdrawal {
			return domainerr.Validation("no withdrawal is pending for this trip")
		}

		approvals, err := tx.Trips().CountApprovals(ctx, tripID)
		if err != nil {
			return err
		}
		if approvals < threshold {
			return domainerr.Validation("withdrawal needs %d approvals, has %d", threshold, approvals).
				WithDetail("approvals", fmt.Sprintf("%d", approvals)).
				WithDetail("threshold", fmt.Sprintf("%d", threshold))
		}

		amount = tripWallet.Balance
		if amount.IsZero() {
			return domainerr.Validation("trip wallet is empty; nothing to transfer")
		}

		authorWallet, err := tx.Wallets().GetByUserIDForUpdate(ctx, callerID)
		if errors.Is(err, repositories.ErrWalletNotFound) {
			authorWallet = &models.Wallet{UserID: callerID, Balance: models.ZeroMoney()}
			if err := tx.Wallets().Create(ctx, authorWallet); err != nil {
				return fmt.Errorf("failed to create author wallet: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to lock author wallet: %w", err)
		}

		authorWallet.Balance = authorWallet.Balance.Add(amount)
		if err := tx.Wallets().Update(ctx, authorWallet); err != nil {
			return err
		}

		tripWallet.Balance = models.ZeroMoney()
		tripWallet.PendingWithdrawal = false
		if err := tx.Trips().UpdateTripWallet(ctx, tripWallet); err != nil {
			return err
		}
		if err := tx.Trips().ClearApprovals(ctx, tripID); err != nil {
			return err
		}

		ledgerTx = &models.Transaction{
			UserID:      callerID,
			TripID:      &tripID,
			Type:        models.TransactionTypeWithdrawal,
			Amount:      amount,
			Status:      models.TransactionCompleted,
			Description: fmt.Sprintf("Trip wallet withdrawal for %q", trip.Name),
			Reference:   uuid.NewString(),
		}
		return tx.Transactions().Create(ctx, ledgerTx)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateTrip(ctx, tripID)
	if s.cache != nil {
		if err := s.cache.InvalidateWallet(ctx, callerID); err != nil {
			log.Printf("failed to invalidate wallet cache for user %d: %v", callerID, err)
		}
	}
	return &TransferResult{Amount: amount, TransactionID: ledgerTx.ID}, nil
}

func (s *service) invalidateTrip(ctx context.Context, tripID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTripWallet(ctx, tripID); err != nil {
		log.Printf("failed to invalidate trip wallet cache for trip %d: %v", tripID, err)
	}
}
