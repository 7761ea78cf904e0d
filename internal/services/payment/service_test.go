package payment

import (
	"context"
	"fmt"
	"sync"
	"testing"

	domainerr "waypool/internal/errors"
	"waypool/internal/models"
	"waypool/internal/repositories/memstore"
	"waypool/internal/services/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway records captures and confirms them for the recorded amount
// unless told otherwise.
type fakeGateway struct {
	mu        sync.Mutex
	captures  map[string]models.Money
	nextID    int
	verifyErr error
	confirmed *models.Money // overrides the captured amount when set
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{captures: make(map[string]models.Money)}
}

func (g *fakeGateway) CreateCapture(_ context.Context, _ uint, amount models.Money, _ string) (*gateway.Capture, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	id := fmt.Sprintf("cap_%d", g.nextID)
	g.captures[id] = amount
	return &gateway.Capture{ID: id, ClientSecret: id + "_secret"}, nil
}

func (g *fakeGateway) VerifyCapture(_ context.Context, captureID string, proof gateway.Proof) (models.Money, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifyErr != nil {
		return models.ZeroMoney(), g.verifyErr
	}
	if proof.CaptureID != captureID {
		return models.ZeroMoney(), domainerr.Gateway("capture id mismatch")
	}
	if g.confirmed != nil {
		return *g.confirmed, nil
	}
	amount, ok := g.captures[captureID]
	if !ok {
		return models.ZeroMoney(), domainerr.Gateway("unknown capture %s", captureID)
	}
	return amount, nil
}

// fixture seeds a three-member trip with an expense of 100.00 split 33.34
// each, giving user 2 a wallet holding balance.
func fixture(t *testing.T, balance models.Money) (*memstore.Store, *fakeGateway, Service, *models.Expense) {
	t.Helper()

	store := memstore.New()
	store.SeedTrip(models.Trip{ID: 1, Name: "Lisbon", Members: []models.TripMember{
		{UserID: 1, Role: models.RoleAuthor, Status: models.MemberAccepted},
		{UserID: 2, Role: models.RoleParticipant, Status: models.MemberAccepted},
		{UserID: 3, Role: models.RoleParticipant, Status: models.MemberAccepted},
	}})
	store.SeedWallet(2, balance)

	exp := &models.Expense{
		TripID:  1,
		Title:   "Hotel",
		Amount:  models.MustMoney("100.00"),
		AddedBy: 1,
	}
	for _, userID := range []uint{1, 2, 3} {
		exp.Shares = append(exp.Shares, models.Share{
			UserID:     userID,
			Amount:     models.MustMoney("33.34"),
			AmountPaid: models.ZeroMoney(),
			Status:     models.SharePending,
		})
	}
	require.NoError(t, store.Expenses().Create(context.Background(), exp))

	gw := newFakeGateway()
	return store, gw, NewService(store, gw, nil), exp
}

func TestPayShareFromWallet(t *testing.T) {
	store, _, svc, exp := fixture(t, models.MustMoney("100.00"))
	ctx := context.Background()

	result, err := svc.PayShare(ctx, PayShareInput{
		ExpenseID: exp.ID,
		PayerID:   2,
		Amount:    models.MustMoney("33.34"),
		Method:    MethodWallet,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionCompleted, result.Status)
	assert.Equal(t, models.ShareCompleted, result.Share.Status)

	wallet, err := store.Wallets().GetByUserID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "66.66", wallet.Balance.String())

	tripWallet, err := store.Trips().GetTripWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "33.34", tripWallet.Balance.String())

	ledgerTx, err := store.Transactions().GetByID(ctx, result.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypePayment, ledgerTx.Type)
	assert.Equal(t, models.TransactionCompleted, ledgerTx.Status)
	assert.NotEmpty(t, ledgerTx.Reference)
}

func TestPayShareSupportsPartialPayments(t *testing.T) {
	store, _, svc, exp := fixture(t, models.MustMoney("100.00"))
	ctx := context.Background()

	result, err := svc.PayShare(ctx, PayShareInput{
		ExpenseID: exp.ID, PayerID: 2, Amount: models.MustMoney("20.00"), Method: MethodWallet,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SharePartial, result.Share.Status)
	assert.Equal(t, "13.34", result.Share.Remaining().String())

	result, err = svc.PayShare(ctx, PayShareInput{
		ExpenseID: exp.ID, PayerID: 2, Amount: models.MustMoney("13.34"), Method: MethodWallet,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ShareCompleted, result.Share.Status)

	tripWallet, err := store.Trips().GetTripWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "33.34", tripWallet.Balance.String())
}

func TestPayShareInsufficientFunds(t *testing.T) {
	store, _, svc, exp := fixture(t, models.MustMoney("10.00"))
	ctx := context.Background()

	_, err := svc.PayShare(ctx, PayShareInput{
		ExpenseID: exp.ID, PayerID: 2, Amount: models.MustMoney("33.34"), Method: MethodWallet,
	})
	require.True(t, domainerr.IsCode(err, domainerr.CodeInsufficientFunds))

	var de *domainerr.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "10.00", de.Details["balance"])
	assert.Equal(t, "33.34", de.Details["requested"])

	// Nothing moved.
	wallet, err := store.Wallets().GetByUserID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "10.00", wallet.Balance.String())
	_, err = store.Trips().GetTripWallet(ctx, 1)
	assert.Error(t, err)
}

func TestPayShareRejectsOverpayment(t *testing.T) {
	_, _, svc, exp := fixture(t, models.MustMoney("100.00"))

	_, err := svc.PayShare(context.Background(), PayShareInput{
		ExpenseID: exp.ID, PayerID: 2, Amount: models.MustMoney("33.35"), Method: MethodWallet,
	})
	assert.True(t, domainerr.IsCode(err, domainerr.CodeValidation))
}

func TestPayShareRejectsSettledShare(t *testing.T) {
	_, _, svc, exp := fixture(t, models.MustMoney("100.00"))
	ctx := context.Background()

	_, err := svc.PayShare(ctx, PayShareInput{
		ExpenseID: exp.ID, PayerID: 2, Amount: models.MustMoney("33.34"), Method: MethodWallet,
	})
	require.NoError(t, err)

	_, err = svc.PayShare(ctx, PayShareInput{
		ExpenseID: exp.ID, PayerID: 2, Amount: models.MustMoney("0.01"), Method: MethodWallet,
	})
	assert.True(t, domainerr.IsCode(err, domainerr.CodeValidation))
}

func TestPayShareUnknownMethodAndMember(t *testing.T) {
	_, _, svc, exp := fixture(t, models.MustMoney("100.00"))
	ctx := context.Background()

	_, err := svc.PayShare(ctx, PayShareInput{
		ExpenseID: exp.ID, PayerID: 2, Amount: models.MustMoney("1.00"), Method: "cash",
	})
	assert.True(t, domainerr.IsCode(err, domainerr.CodeValidation))

	_, err = svc.PayShare(ctx, PayShareInput{
		ExpenseID: exp.ID, PayerID: 99, Amount: models.MustMoney("1.00"), Method: MethodWallet,
	})
	assert.True(t, domainerr.IsCode(err, domainerr.CodeNotFound))
}

// Two racing payments for the full remaining share must settle exactly once.
func TestConcurrentWalletPaymentsSettleOnce(t *testing.T) {
	store, _, svc, exp := fixture(t, models.MustMoney("100.00"))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PayShare(ctx, PayShareInput{
				ExpenseID: exp.ID, PayerID: 2, Amount: models.MustMoney("33.34"), Method: MethodWallet,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)

	wallet, err := store.Wallets().GetByUserID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "66.66", wallet.Balance.String(), "wallet debited exactly once")

	tripWallet, err := store.Trips().GetTripWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "33.34", tripWallet.Balance.String())
}

func TestExternalPaymentFlow(t *testing.T) {
	store, _, svc, exp := fixture(t, models.ZeroMoney())
	ctx := context.Background()

	result, err := svc.PayShare(ctx, PayShareInput{
		ExpenseID: exp.ID, PayerID: 3, Amount: models.MustMoney("33.34"), Method: MethodExternal,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionPending, result.Status)
	assert.NotEmpty(t, result.CaptureID)
	assert.NotEmpty(t, result.ClientSecret)

	// Nothing credited while pending.
	_, err = store.Trips().GetTripWallet(ctx, 1)
	assert.Error(t, err)

	confirmed, err := svc.ConfirmExternalPayment(ctx, result.TransactionID, gateway.Proof{CaptureID: result.CaptureID})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionCompleted, confirmed.Status)
	assert.Equal(t, models.ShareCompleted, confirmed.Share.Status)

	tripWallet, err := store.Trips().GetTripWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "33.34", tripWallet.Balance.String())

	// Duplicate callback replays the result without a second credit.
	again, err := svc.ConfirmExternalPayment(ctx, result.TransactionID, gateway.Proof{CaptureID: result.CaptureID})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionCompleted, again.Status)

	tripWallet, err = store.Trips().GetTripWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "33.34", tripWallet.Balance.String())
}

func TestConfirmExternalPaymentAmountMismatch(t *testing.T) {
	store, gw, svc, exp := fixture(t, models.ZeroMoney())
	ctx := context.Background()

	result, err := svc.PayShare(ctx, PayShareInput{
		ExpenseID: exp.ID, PayerID: 3, Amount: models.MustMoney("33.34"), Method: MethodExternal,
	})
	require.NoError(t, err)

	wrong := models.MustMoney("30.00")
	gw.confirmed = &wrong

	_, err = svc.ConfirmExternalPayment(ctx, result.TransactionID, gateway.Proof{CaptureID: result.CaptureID})
	assert.True(t, domainerr.IsCode(err, domainerr.CodeValidation))

	ledgerTx, err := store.Transactions().GetByID(ctx, result.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionFailed, ledgerTx.Status)

	// A failed transaction stays failed.
	_, err = svc.ConfirmExternalPayment(ctx, result.TransactionID, gateway.Proof{CaptureID: result.CaptureID})
	assert.True(t, domainerr.IsCode(err, domainerr.CodeConflict))
}

// A duplicate callback that read the transaction while it was still pending
// and then hit a gateway error must not flip the row after the first callback
// completed it.
func TestFailAfterCompletionKeepsTransactionCompleted(t *testing.T) {
	store, _, svc, exp := fixture(t, models.ZeroMoney())
	ctx := context.Background()

	result, err := svc.PayShare(ctx, PayShareInput{
		ExpenseID: exp.ID, PayerID: 3, Amount: models.MustMoney("33.34"), Method: MethodExternal,
	})
	require.NoError(t, err)

	// The slow callback holds a copy from before the fast one resolved it.
	stale, err := store.Transactions().GetByID(ctx, result.TransactionID)
	require.NoError(t, err)

	_, err = svc.ConfirmExternalPayment(ctx, result.TransactionID, gateway.Proof{CaptureID: result.CaptureID})
	require.NoError(t, err)

	svc.(*service).failTransaction(ctx, stale, "capture verification failed: transient error")

	ledgerTx, err := store.Transactions().GetByID(ctx, result.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionCompleted, ledgerTx.Status)

	tripWallet, err := store.Trips().GetTripWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "33.34", tripWallet.Balance.String())
}

// A capture confirmed after the share was settled by other means must not
// credit the pooled wallet; the transaction is failed for an external refund.
func TestConfirmExternalPaymentStaleCapture(t *testing.T) {
	store, _, svc, exp := fixture(t, models.MustMoney("100.00"))
	ctx := context.Background()

	pending, err := svc.PayShare(ctx, PayShareInput{
		ExpenseID: exp.ID, PayerID: 2, Amount: models.MustMoney("33.34"), Method: MethodExternal,
	})
	require.NoError(t, err)

	// The member pays from their wallet while the capture is in flight.
	_, err = svc.PayShare(ctx, PayShareInput{
		ExpenseID: exp.ID, PayerID: 2, Amount: models.MustMoney("33.34"), Method: MethodWallet,
	})
	require.NoError(t, err)

	_, err = svc.ConfirmExternalPayment(ctx, pending.TransactionID, gateway.Proof{CaptureID: pending.CaptureID})
	require.True(t, domainerr.IsCode(err, domainerr.CodeValidation))

	ledgerTx, err := store.Transactions().GetByID(ctx, pending.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionFailed, ledgerTx.Status)

	// Only the wallet payment reached the pool.
	tripWallet, err := store.Trips().GetTripWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "33.34", tripWallet.Balance.String())
}
