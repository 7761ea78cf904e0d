package tripwallet

import (
	"context"
	"errors"
	"testing"

	domainerr "waypool/internal/errors"
	"waypool/internal/models"
	"waypool/internal/repositories/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fiveMemberTrip seeds a trip with author 1 and members 2..5, all accepted.
// Five accepted members give a voting threshold of 3.
func fiveMemberTrip(store *memstore.Store, balance models.Money) {
	members := []models.TripMember{
		{UserID: 1, Role: models.RoleAuthor, Status: models.MemberAccepted},
	}
	for id := uint(2); id <= 5; id++ {
		members = append(members, models.TripMember{
			UserID: id, Role: models.RoleParticipant, Status: models.MemberAccepted,
		})
	}
	store.SeedTrip(models.Trip{ID: 1, Name: "Lisbon", Members: members})
	if !balance.IsZero() {
		store.SeedTripWallet(1, balance)
	}
}

// fakeCache is an in-memory tripwallet.Cache recording reads and drops.
type fakeCache struct {
	tripWallets map[uint]*models.TripWallet
	hits        int
}

func newFakeCache() *fakeCache {
	return &fakeCache{tripWallets: make(map[uint]*models.TripWallet)}
}

func (c *fakeCache) GetTripWallet(_ context.Context, tripID uint) (*models.TripWallet, error) {
	if w, ok := c.tripWallets[tripID]; ok {
		c.hits++
		snapshot := *w
		return &snapshot, nil
	}
	return nil, errors.New("cache miss")
}

func (c *fakeCache) CacheTripWallet(_ context.Context, w *models.TripWallet) error {
	snapshot := *w
	c.tripWallets[w.TripID] = &snapshot
	return nil
}

func (c *fakeCache) InvalidateTripWallet(_ context.Context, tripID uint) error {
	delete(c.tripWallets, tripID)
	return nil
}

func (c *fakeCache) InvalidateWallet(context.Context, uint) error { return nil }

// Reads go cache-first; every wallet mutation drops the snapshot so the next
// read sees the new state.
func TestGetDetailsUsesCache(t *testing.T) {
	store := memstore.New()
	fiveMemberTrip(store, models.MustMoney("120.00"))
	cache := newFakeCache()
	svc := NewService(store, cache)
	ctx := context.Background()

	details, err := svc.GetDetails(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "120.00", details.Balance.String())
	assert.Contains(t, cache.tripWallets, uint(1), "first read populates the cache")
	assert.Equal(t, 0, cache.hits)

	_, err = svc.GetDetails(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits, "second read served from cache")

	require.NoError(t, svc.InitiateWithdrawal(ctx, 1, 1))
	assert.NotContains(t, cache.tripWallets, uint(1), "mutation invalidates the snapshot")

	details, err = svc.GetDetails(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, details.PendingWithdrawal, "post-mutation read sees fresh state")
}

func TestGetDetails(t *testing.T) {
	store := memstore.New()
	fiveMemberTrip(store, models.MustMoney("120.00"))
	svc := NewService(store, nil)
	ctx := context.Background()

	details, err := svc.GetDetails(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "120.00", details.Balance.String())
	assert.False(t, details.PendingWithdrawal)
	assert.Equal(t, 5, details.TotalMembers)
	assert.Equal(t, 3, details.VotingThreshold)
	assert.False(t, details.HasVoted)
	assert.False(t, details.IsAuthor)

	details, err = svc.GetDetails(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, details.IsAuthor)

	_, err = svc.GetDetails(ctx, 1, 99)
	assert.True(t, domainerr.IsCode(err, domainerr.CodePermissionDenied))
}

func TestInitiateWithdrawal(t *testing.T) {
	store := memstore.New()
	fiveMemberTrip(store, models.MustMoney("120.00"))
	svc := NewService(store, nil)
	ctx := context.Background()

	// Non-author cannot initiate.
	err := svc.InitiateWithdrawal(ctx, 1, 2)
	assert.True(t, domainerr.IsCode(err, domainerr.CodePermissionDenied))

	require.NoError(t, svc.InitiateWithdrawal(ctx, 1, 1))

	details, err := svc.GetDetails(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, details.PendingWithdrawal)
	assert.Equal(t, 0, details.Approvals)

	// Only one withdrawal may be pending.
	err = svc.InitiateWithdrawal(ctx, 1, 1)
	assert.True(t, domainerr.IsCode(err, domainerr.CodeValidation))
}

func TestInitiateWithdrawalEmptyWallet(t *testing.T) {
	store := memstore.New()
	fiveMemberTrip(store, models.ZeroMoney())
	svc := NewService(store, nil)

	err := svc.InitiateWithdrawal(context.Background(), 1, 1)
	assert.True(t, domainerr.IsCode(err, domainerr.CodeValidation))
}

func TestVote(t *testing.T) {
	store := memstore.New()
	fiveMemberTrip(store, models.MustMoney("120.00"))
	svc := NewService(store, nil)
	ctx := context.Background()

	// No pending withdrawal yet.
	_, err := svc.Vote(ctx, 1, 2)
	assert.True(t, domainerr.IsCode(err, domainerr.CodeValidation))

	require.NoError(t, svc.InitiateWithdrawal(ctx, 1, 1))

	details, err := svc.Vote(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, details.Approvals)
	assert.True(t, details.HasVoted)

	// One vote per member.
	_, err = svc.Vote(ctx, 1, 2)
	assert.True(t, domainerr.IsCode(err, domainerr.CodeConflict))

	// The author does not vote on their own withdrawal.
	_, err = svc.Vote(ctx, 1, 1)
	assert.True(t, domainerr.IsCode(err, domainerr.CodePermissionDenied))

	// Non-members cannot vote.
	_, err = svc.Vote(ctx, 1, 99)
	assert.True(t, domainerr.IsCode(err, domainerr.CodePermissionDenied))
}

func TestTransferRequiresQuorum(t *testing.T) {
	store := memstore.New()
	fiveMemberTrip(store, models.MustMoney("120.00"))
	svc := NewService(store, nil)
	ctx := context.Background()

	require.NoError(t, svc.InitiateWithdrawal(ctx, 1, 1))

	for _, voter := range []uint{2, 3} {
		_, err := svc.Vote(ctx, 1, voter)
		require.NoError(t, err)
	}

	// Two of three required approvals.
	_, err := svc.TransferToAuthor(ctx, 1, 1)
	require.True(t, domainerr.IsCode(err, domainerr.CodeValidation))
	var de *domainerr.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "2", de.Details["approvals"])
	assert.Equal(t, "3", de.Details["threshold"])

	_, err = svc.Vote(ctx, 1, 4)
	require.NoError(t, err)

	result, err := svc.TransferToAuthor(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "120.00", result.Amount.String())

	// The pool drains into the author's personal wallet.
	authorWallet, err := store.Wallets().GetByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "120.00", authorWallet.Balance.String())

	details, err := svc.GetDetails(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, details.Balance.IsZero())
	assert.False(t, details.PendingWithdrawal)
	assert.Equal(t, 0, details.Approvals)

	ledgerTx, err := store.Transactions().GetByID(ctx, result.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeWithdrawal, ledgerTx.Type)
	assert.Equal(t, models.TransactionCompleted, ledgerTx.Status)
	require.NotNil(t, ledgerTx.TripID)
	assert.Equal(t, uint(1), *ledgerTx.TripID)

	// The vote state reset; a second transfer needs a fresh withdrawal.
	_, err = svc.TransferToAuthor(ctx, 1, 1)
	assert.True(t, domainerr.IsCode(err, domainerr.CodeValidation))
}

func TestTransferPermissions(t *testing.T) {
	store := memstore.New()
	fiveMemberTrip(store, models.MustMoney("120.00"))
	svc := NewService(store, nil)
	ctx := context.Background()

	require.NoError(t, svc.InitiateWithdrawal(ctx, 1, 1))

	_, err := svc.TransferToAuthor(ctx, 1, 2)
	assert.True(t, domainerr.IsCode(err, domainerr.CodePermissionDenied))
}

func TestCancelWithdrawal(t *testing.T) {
	store := memstore.New()
	fiveMemberTrip(store, models.MustMoney("120.00"))
	svc := NewService(store, nil)
	ctx := context.Background()

	require.NoError(t, svc.InitiateWithdrawal(ctx, 1, 1))
	for _, voter := range []uint{2, 3, 4} {
		_, err := svc.Vote(ctx, 1, voter)
		require.NoError(t, err)
	}

	// Cancelling is allowed even at quorum; the money has not moved.
	err := svc.CancelWithdrawal(ctx, 1, 2)
	assert.True(t, domainerr.IsCode(err, domainerr.CodePermissionDenied))
	require.NoError(t, svc.CancelWithdrawal(ctx, 1, 1))

	details, err := svc.GetDetails(ctx, 1, 1)
	require.NoError(t, err)
	assert.False(t, details.PendingWithdrawal)
	assert.Equal(t, 0, details.Approvals)
	assert.Equal(t, "120.00", details.Balance.String())

	// Old votes do not carry into the next withdrawal round.
	_, err = svc.TransferToAuthor(ctx, 1, 1)
	assert.True(t, domainerr.IsCode(err, domainerr.CodeValidation))

	err = svc.CancelWithdrawal(ctx, 1, 1)
	assert.True(t, domainerr.IsCode(err, domainerr.CodeValidation))
}
