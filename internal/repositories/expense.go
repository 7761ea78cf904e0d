package repositories

import (
	"context"
	"errors"
	"fmt"

	"waypool/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ExpenseRepository persists expenses and their shares. Shares are created
// once with the expense; afterwards only AmountPaid and Status change.
type ExpenseRepository interface {
	Create(ctx context.Context, expense *models.Expense) error
	GetByID(ctx context.Context, id uint) (*models.Expense, error)
	ListByTrip(ctx context.Context, tripID uint) ([]models.Expense, error)
	GetShare(ctx context.Context, expenseID, userID uint) (*models.Share, error)
	GetShareForUpdate(ctx context.Context, expenseID, userID uint) (*models.Share, error)
	UpdateShare(ctx context.Context, share *models.Share) error
}

type expenseRepository struct {
	db *gorm.DB
}

func (r *expenseRepository) Create(ctx context.Context, expense *models.Expense) error {
	if err := r.db.WithContext(ctx).Create(expense).Error; err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

func (r *expenseRepository) GetByID(ctx context.Context, id uint) (*models.Expense, error) {
	var expense models.Expense
	err := r.db.WithContext(ctx).Preload("Shares").First(&expense, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExpenseNotFound
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return &expense, nil
}

func (r *expenseRepository) ListByTrip(ctx context.Context, tripID uint) ([]models.Expense, error) {
	var expenses []models.Expense
	err := r.db.WithContext(ctx).Preload("Shares").
		Where("trip_id = ?", tripID).
		Order("date DESC, id DESC").
		Find(&expenses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return expenses, nil
}

func (r *expenseRepository) GetShare(ctx context.Context, expenseID, userID uint) (*models.Share, error) {
	return r.getShare(ctx, r.db, expenseID, userID)
}

func (r *expenseRepository) GetShareForUpdate(ctx context.Context, expenseID, userID uint) (*models.Share, error) {
	return r.getShare(ctx, r.db.Clauses(clause.Locking{Strength: "UPDATE"}), expenseID, userID)
}

func (r *expenseRepository) getShare(ctx context.Context, db *gorm.DB, expenseID, userID uint) (*models.Share, error) {
	var share models.Share
	err := db.WithContext(ctx).
		Where("expense_id = ? AND user_id = ?", expenseID, userID).
		First(&share).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShareNotFound
		}
		return nil, fmt.Errorf("failed to get share: %w", err)
	}
	return &share, nil
}

func (r *expenseRepository) UpdateShare(ctx context.Context, share *models.Share) error {
	if err := r.db.WithContext(ctx).Save(share).Error; err != nil {
		return fmt.Errorf("failed to update share: %w", err)
	}
	return nil
}
