package expense

import (
	"context"
	"testing"
	"time"

	domainerr "waypool/internal/errors"
	"waypool/internal/models"
	"waypool/internal/repositories/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTrip(store *memstore.Store, start time.Time, memberIDs ...uint) {
	members := make([]models.TripMember, 0, len(memberIDs))
	for i, id := range memberIDs {
		role := models.RoleParticipant
		if i == 0 {
			role = models.RoleAuthor
		}
		members = append(members, models.TripMember{
			UserID: id,
			Role:   role,
			Status: models.MemberAccepted,
		})
	}
	store.SeedTrip(models.Trip{ID: 1, Name: "Lisbon", StartDate: start, Members: members})
}

func TestCreateExpenseSplitsEqually(t *testing.T) {
	store := memstore.New()
	seedTrip(store, time.Now().Add(30*24*time.Hour), 1, 2, 3)
	svc := NewService(store)

	exp, err := svc.CreateExpense(context.Background(), CreateExpenseInput{
		TripID:    1,
		CreatorID: 1,
		Title:     "Hotel",
		Amount:    models.MustMoney("100.00"),
	})
	require.NoError(t, err)
	require.Len(t, exp.Shares, 3)

	for _, share := range exp.Shares {
		assert.Equal(t, "33.34", share.Amount.String())
		assert.True(t, share.AmountPaid.IsZero())
		assert.Equal(t, models.SharePending, share.Status)
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	store := memstore.New()
	seedTrip(store, time.Now().Add(30*24*time.Hour), 1, 2)
	svc := NewService(store)
	ctx := context.Background()

	_, err := svc.CreateExpense(ctx, CreateExpenseInput{
		TripID: 1, CreatorID: 1, Title: "", Amount: models.MustMoney("10.00"),
	})
	assert.True(t, domainerr.IsCode(err, domainerr.CodeValidation))

	_, err = svc.CreateExpense(ctx, CreateExpenseInput{
		TripID: 1, CreatorID: 1, Title: "Hotel", Amount: models.ZeroMoney(),
	})
	assert.True(t, domainerr.IsCode(err, domainerr.CodeValidation))

	_, err = svc.CreateExpense(ctx, CreateExpenseInput{
		TripID: 99, CreatorID: 1, Title: "Hotel", Amount: models.MustMoney("10.00"),
	})
	assert.True(t, domainerr.IsCode(err, domainerr.CodeNotFound))
}

func TestCreateExpenseRequiresAcceptedMember(t *testing.T) {
	store := memstore.New()
	seedTrip(store, time.Now().Add(30*24*time.Hour), 1, 2, 3)
	svc := NewService(store)

	_, err := svc.CreateExpense(context.Background(), CreateExpenseInput{
		TripID: 1, CreatorID: 99, Title: "Hotel", Amount: models.MustMoney("10.00"),
	})
	assert.True(t, domainerr.IsCode(err, domainerr.CodePermissionDenied))
}

func TestCreateExpenseNeedsSomeoneToSplitWith(t *testing.T) {
	store := memstore.New()
	seedTrip(store, time.Now().Add(30*24*time.Hour), 1)
	svc := NewService(store)

	_, err := svc.CreateExpense(context.Background(), CreateExpenseInput{
		TripID: 1, CreatorID: 1, Title: "Hotel", Amount: models.MustMoney("10.00"),
	})
	assert.True(t, domainerr.IsCode(err, domainerr.CodeValidation))
}

func TestGetExpensesDeadline(t *testing.T) {
	start := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	store := memstore.New()
	seedTrip(store, start, 1, 2)

	svc := &service{store: store, now: func() time.Time {
		return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	}}

	out, err := svc.GetExpenses(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, start.Add(-models.PaymentDeadlineLead), out.PaymentDeadline)
	assert.False(t, out.DeadlinePassed)

	// Less than 48h before the start date the deadline has passed; expenses
	// are still listed and payable.
	svc.now = func() time.Time {
		return time.Date(2026, 6, 9, 0, 0, 0, 0, time.UTC)
	}
	out, err = svc.GetExpenses(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, out.DeadlinePassed)

	_, err = svc.GetExpenses(context.Background(), 1, 99)
	assert.True(t, domainerr.IsCode(err, domainerr.CodePermissionDenied))
}
