package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"waypool/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TripRepository reads the trip/member directory and persists the pooled
// wallet plus its withdrawal votes.
type TripRepository interface {
	GetTrip(ctx context.Context, tripID uint) (*models.Trip, error)
	GetTripWallet(ctx context.Context, tripID uint) (*models.TripWallet, error)
	GetTripWalletForUpdate(ctx context.Context, tripID uint) (*models.TripWallet, error)
	CreateTripWallet(ctx context.Context, wallet *models.TripWallet) error
	UpdateTripWallet(ctx context.Context, wallet *models.TripWallet) error
	AddApproval(ctx context.Context, tripID, userID uint) error
	CountApprovals(ctx context.Context, tripID uint) (int, error)
	HasApproved(ctx context.Context, tripID, userID uint) (bool, error)
	ClearApprovals(ctx context.Context, tripID uint) error
}

type tripRepository struct {
	db *gorm.DB
}

func (r *tripRepository) GetTrip(ctx context.Context, tripID uint) (*models.Trip, error) {
	var trip models.Trip
	err := r.db.WithContext(ctx).Preload("Members").First(&trip, tripID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return &trip, nil
}

func (r *tripRepository) GetTripWallet(ctx context.Context, tripID uint) (*models.TripWallet, error) {
	return r.getTripWallet(ctx, r.db, tripID)
}

func (r *tripRepository) GetTripWalletForUpdate(ctx context.Context, tripID uint) (*models.TripWallet, error) {
	return r.getTripWallet(ctx, r.db.Clauses(clause.Locking{Strength: "UPDATE"}), tripID)
}

func (r *tripRepository) getTripWallet(ctx context.Context, db *gorm.DB, tripID uint) (*models.TripWallet, error) {
	var wallet models.TripWallet
	err := db.WithContext(ctx).Where("trip_id = ?", tripID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTripWalletNotFound
		}
		return nil, fmt.Errorf("failed to get trip wallet: %w", err)
	}
	return &wallet, nil
}

func (r *tripRepository) CreateTripWallet(ctx context.Context, wallet *models.TripWallet) error {
	if err := r.db.WithContext(ctx).Create(wallet).Error; err != nil {
		return fmt.Errorf("failed to create trip wallet: %w", err)
	}
	return nil
}

func (r *tripRepository) UpdateTripWallet(ctx context.Context, wallet *models.TripWallet) error {
	if err := r.db.WithContext(ctx).Save(wallet).Error; err != nil {
		return fmt.Errorf("failed to update trip wallet: %w", err)
	}
	return nil
}

// AddApproval inserts a vote row. The unique index on (trip_id, user_id)
// turns a concurrent double vote into ErrDuplicateApproval.
func (r *tripRepository) AddApproval(ctx context.Context, tripID, userID uint) error {
	approval := models.WithdrawalApproval{TripID: tripID, UserID: userID}
	if err := r.db.WithContext(ctx).Create(&approval).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateApproval
		}
		return fmt.Errorf("failed to record approval: %w", err)
	}
	return nil
}

func (r *tripRepository) CountApprovals(ctx context.Context, tripID uint) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.WithdrawalApproval{}).
		Where("trip_id = ?", tripID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count approvals: %w", err)
	}
	return int(count), nil
}

func (r *tripRepository) HasApproved(ctx context.Context, tripID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.WithdrawalApproval{}).
		Where("trip_id = ? AND user_id = ?", tripID, userID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check approval: %w", err)
	}
	return count > 0, nil
}

func (r *tripRepository) ClearApprovals(ctx context.Context, tripID uint) error {
	err := r.db.WithContext(ctx).Where("trip_id = ?", tripID).
		Delete(&models.WithdrawalApproval{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear approvals: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// pgx wraps SQLSTATE 23505 in the error text when the translator is off.
	return strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "duplicate key")
}
