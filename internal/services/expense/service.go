// Package expense creates trip expenses and computes each member's share.
// Splitting never moves money; payments are the payment package's job.
package expense

import (
	"context"
	"fmt"
	"time"

	domainerr "waypool/internal/errors"
	"waypool/internal/models"
	"waypool/internal/repositories"
)

// Service is the expense splitter.
type Service interface {
	CreateExpense(ctx context.Context, in CreateExpenseInput) (*models.Expense, error)
	GetExpenses(ctx context.Context, tripID, callerID uint) (*TripExpenses, error)
}

// CreateExpenseInput carries everything needed to split a new expense.
type CreateExpenseInput struct {
	TripID      uint
	CreatorID   uint
	Title       string
	Description string
	Amount      models.Money
	Date        time.Time
}

// TripExpenses is the member-facing expense listing, with the advisory
// payment deadline derived from the trip start date.
type TripExpenses struct {
	Expenses        []models.Expense `json:"expenses"`
	PaymentDeadline time.Time        `json:"payment_deadline"`
	DeadlinePassed  bool             `json:"deadline_passed"`
}

type service struct {
	store repositories.Storage
	now   func() time.Time
}

// NewService creates the expense splitter.
func NewService(store repositories.Storage) Service {
	if store == nil {
		panic("store is required")
	}
	return &service{store: store, now: time.Now}
}

// CreateExpense splits the total equally across all accepted trip members.
// Each share is ceil-rounded to the minor unit, so the share sum can exceed
// the total by a few cents; the surplus is an accepted overcollection bias.
func (s *service) CreateExpense(ctx context.Context, in CreateExpenseInput) (*models.Expense, error) {
	if in.Title == "" {
		return nil, domainerr.Validation("expense title is required")
	}
	if !in.Amount.IsPositive() {
		return nil, domainerr.Validation("expense amount must be greater than zero")
	}

	trip, err := s.store.Trips().GetTrip(ctx, in.TripID)
	if err != nil {
		if err == repositories.ErrTripNotFound {
			return nil, domainerr.NotFound("trip %d not found", in.TripID)
		}
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}

	if !trip.IsAcceptedMember(in.CreatorID) {
		return nil, domainerr.PermissionDenied("only accepted trip members can add expenses")
	}

	members := trip.AcceptedMemberIDs()
	if len(members) < 2 {
		return nil, domainerr.Validation("trip needs at least one accepted member besides the creator to split an expense")
	}

	perMember, err := in.Amount.SplitCeil(len(members))
	if err != nil {
		return nil, domainerr.Validation("cannot split expense: %v", err)
	}

	date := in.Date
	if date.IsZero() {
		date = s.now()
	}

	exp := &models.Expense{
		TripID:      in.TripID,
		Title:       in.Title,
		Description: in.Description,
		Amount:      in.Amount,
		Date:        date,
		AddedBy:     in.CreatorID,
	}
	for _, userID := range members {
		exp.Shares = append(exp.Shares, models.Share{
			UserID:     userID,
			Amount:     perMember,
			AmountPaid: models.ZeroMoney(),
			Status:     models.SharePending,
		})
	}

	if err := s.store.Expenses().Create(ctx, exp); err != nil {
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}
	return exp, nil
}

func (s *service) GetExpenses(ctx context.Context, tripID, callerID uint) (*TripExpenses, error) {
	trip, err := s.store.Trips().GetTrip(ctx, tripID)
	if err != nil {
		if err == repositories.ErrTripNotFound {
			return nil, domainerr.NotFound("trip %d not found", tripID)
		}
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}
	if !trip.IsAcceptedMember(callerID) {
		return nil, domainerr.PermissionDenied("only accepted trip members can view expenses")
	}

	expenses, err := s.store.Expenses().ListByTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	deadline := trip.PaymentDeadline()
	return &TripExpenses{
		Expenses:        expenses,
		PaymentDeadline: deadline,
		DeadlinePassed:  s.now().After(deadline),
	}, nil
}
