package repositories

import (
	"context"
	"errors"
	"fmt"

	"waypool/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionRepository is the append-only ledger. Rows are created pending
// (or already completed for single-step wallet mutations) and only ever move
// to a terminal status.
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	GetByID(ctx context.Context, id uint) (*models.Transaction, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*models.Transaction, error)
	SetStatus(ctx context.Context, tx *models.Transaction, status string, metadata models.TransactionMetadata) error
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Transaction, error)
	ListByTrip(ctx context.Context, tripID uint, limit, offset int) ([]models.Transaction, error)
	SumCompletedByTrip(ctx context.Context, tripID uint, txType string) (models.Money, error)
}

type transactionRepository struct {
	db *gorm.DB
}

func (r *transactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id uint) (*models.Transaction, error) {
	return r.getByID(ctx, r.db, id)
}

func (r *transactionRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.Transaction, error) {
	return r.getByID(ctx, r.db.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *transactionRepository) getByID(ctx context.Context, db *gorm.DB, id uint) (*models.Transaction, error) {
	var tx models.Transaction
	if err := db.WithContext(ctx).First(&tx, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

// SetStatus moves a transaction to a terminal status. Only pending rows may
// transition; anything else is an append-only violation. The pending guard is
// part of the UPDATE itself so a caller holding a stale copy of the row cannot
// flip a transaction that another callback already resolved.
func (r *transactionRepository) SetStatus(ctx context.Context, tx *models.Transaction, status string, metadata models.TransactionMetadata) error {
	if status != models.TransactionCompleted && status != models.TransactionFailed {
		return ErrStatusTransition
	}
	updates := map[string]interface{}{"status": status}
	if !metadata.IsZero() {
		updates["metadata"] = metadata
	}
	res := r.db.WithContext(ctx).Model(tx).
		Where("status = ?", models.TransactionPending).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update transaction status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStatusTransition
	}
	tx.Status = status
	if !metadata.IsZero() {
		tx.Metadata = metadata
	}
	return nil
}

func (r *transactionRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

func (r *transactionRepository) ListByTrip(ctx context.Context, tripID uint, limit, offset int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.WithContext(ctx).
		Where("trip_id = ?", tripID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// SumCompletedByTrip totals completed transactions of one type for a trip,
// used by reconciliation to cross-check the pooled balance.
func (r *transactionRepository) SumCompletedByTrip(ctx context.Context, tripID uint, txType string) (models.Money, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("trip_id = ? AND type = ? AND status = ?", tripID, txType, models.TransactionCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return models.ZeroMoney(), fmt.Errorf("failed to sum transactions: %w", err)
	}
	return models.NewMoney(total)
}
