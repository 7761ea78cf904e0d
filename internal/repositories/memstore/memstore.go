// Package memstore is an in-memory repositories.Storage used by service
// tests. InTransaction serializes callers and rolls the state back when the
// callback fails, matching the commit/rollback semantics of the SQL store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"waypool/internal/models"
	"waypool/internal/repositories"
)

type state struct {
	nextID       uint
	trips        map[uint]models.Trip
	wallets      map[uint]models.Wallet     // keyed by user id
	tripWallets  map[uint]models.TripWallet // keyed by trip id
	approvals    map[uint]map[uint]bool     // trip id -> voter set
	expenses     map[uint]models.Expense    // shares held separately
	shares       map[uint]models.Share
	transactions map[uint]models.Transaction
}

func newState() *state {
	return &state{
		nextID:       1,
		trips:        make(map[uint]models.Trip),
		wallets:      make(map[uint]models.Wallet),
		tripWallets:  make(map[uint]models.TripWallet),
		approvals:    make(map[uint]map[uint]bool),
		expenses:     make(map[uint]models.Expense),
		shares:       make(map[uint]models.Share),
		transactions: make(map[uint]models.Transaction),
	}
}

func (st *state) clone() *state {
	cp := newState()
	cp.nextID = st.nextID
	for k, v := range st.trips {
		members := make([]models.TripMember, len(v.Members))
		copy(members, v.Members)
		v.Members = members
		cp.trips[k] = v
	}
	for k, v := range st.wallets {
		cp.wallets[k] = v
	}
	for k, v := range st.tripWallets {
		cp.tripWallets[k] = v
	}
	for k, voters := range st.approvals {
		set := make(map[uint]bool, len(voters))
		for id := range voters {
			set[id] = true
		}
		cp.approvals[k] = set
	}
	for k, v := range st.expenses {
		v.Shares = nil
		cp.expenses[k] = v
	}
	for k, v := range st.shares {
		cp.shares[k] = v
	}
	for k, v := range st.transactions {
		cp.transactions[k] = v
	}
	return cp
}

func (st *state) id() uint {
	id := st.nextID
	st.nextID++
	return id
}

// Store is the root in-memory Storage.
type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

// Seed helpers

// SeedTrip registers a trip with its member roster.
func (s *Store) SeedTrip(trip models.Trip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if trip.ID == 0 {
		trip.ID = s.st.id()
	}
	s.st.trips[trip.ID] = trip
}

// SeedWallet gives a user a personal wallet with the given balance.
func (s *Store) SeedWallet(userID uint, balance models.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.wallets[userID] = models.Wallet{ID: s.st.id(), UserID: userID, Balance: balance}
}

// SeedTripWallet gives a trip a pooled wallet with the given balance.
func (s *Store) SeedTripWallet(tripID uint, balance models.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.tripWallets[tripID] = models.TripWallet{ID: s.st.id(), TripID: tripID, Balance: balance}
}

type view struct {
	s    *Store
	inTx bool
}

func (v view) run(fn func(st *state) error) error {
	if !v.inTx {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}
	return fn(v.s.st)
}

func (v view) storage() storage { return storage{view: v} }

type storage struct {
	view
}

func (s storage) InTransaction(fn func(tx repositories.Storage) error) error {
	if s.inTx {
		return fn(s)
	}
	s.s.mu.Lock()
	defer s.s.mu.Unlock()
	snapshot := s.s.st.clone()
	err := fn(storage{view: view{s: s.s, inTx: true}})
	if err != nil {
		s.s.st = snapshot
	}
	return err
}

func (s storage) Wallets() repositories.WalletRepository           { return walletRepo{s.view} }
func (s storage) Trips() repositories.TripRepository               { return tripRepo{s.view} }
func (s storage) Expenses() repositories.ExpenseRepository         { return expenseRepo{s.view} }
func (s storage) Transactions() repositories.TransactionRepository { return transactionRepo{s.view} }

// Storage exposes the Store as a repositories.Storage.
func (s *Store) Storage() repositories.Storage {
	return storage{view: view{s: s}}
}

func (s *Store) InTransaction(fn func(tx repositories.Storage) error) error {
	return s.Storage().InTransaction(fn)
}
func (s *Store) Wallets() repositories.WalletRepository           { return s.Storage().Wallets() }
func (s *Store) Trips() repositories.TripRepository               { return s.Storage().Trips() }
func (s *Store) Expenses() repositories.ExpenseRepository         { return s.Storage().Expenses() }
func (s *Store) Transactions() repositories.TransactionRepository { return s.Storage().Transactions() }

// Wallet repository

type walletRepo struct{ view }

func (r walletRepo) Create(_ context.Context, wallet *models.Wallet) error {
	return r.run(func(st *state) error {
		wallet.ID = st.id()
		st.wallets[wallet.UserID] = *wallet
		return nil
	})
}

func (r walletRepo) GetByUserID(_ context.Context, userID uint) (*models.Wallet, error) {
	var out *models.Wallet
	err := r.run(func(st *state) error {
		w, ok := st.wallets[userID]
		if !ok {
			return repositories.ErrWalletNotFound
		}
		out = &w
		return nil
	})
	return out, err
}

func (r walletRepo) GetByUserIDForUpdate(ctx context.Context, userID uint) (*models.Wallet, error) {
	return r.GetByUserID(ctx, userID)
}

func (r walletRepo) Update(_ context.Context, wallet *models.Wallet) error {
	return r.run(func(st *state) error {
		st.wallets[wallet.UserID] = *wallet
		return nil
	})
}

// Trip repository

type tripRepo struct{ view }

func (r tripRepo) GetTrip(_ context.Context, tripID uint) (*models.Trip, error) {
	var out *models.Trip
	err := r.run(func(st *state) error {
		t, ok := st.trips[tripID]
		if !ok {
			return repositories.ErrTripNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

func (r tripRepo) GetTripWallet(_ context.Context, tripID uint) (*models.TripWallet, error) {
	var out *models.TripWallet
	err := r.run(func(st *state) error {
		w, ok := st.tripWallets[tripID]
		if !ok {
			return repositories.ErrTripWalletNotFound
		}
		out = &w
		return nil
	})
	return out, err
}

func (r tripRepo) GetTripWalletForUpdate(ctx context.Context, tripID uint) (*models.TripWallet, error) {
	return r.GetTripWallet(ctx, tripID)
}

func (r tripRepo) CreateTripWallet(_ context.Context, wallet *models.TripWallet) error {
	return r.run(func(st *state) error {
		wallet.ID = st.id()
		st.tripWallets[wallet.TripID] = *wallet
		return nil
	})
}

func (r tripRepo) UpdateTripWallet(_ context.Context, wallet *models.TripWallet) error {
	return r.run(func(st *state) error {
		st.tripWallets[wallet.TripID] = *wallet
		return nil
	})
}

func (r tripRepo) AddApproval(_ context.Context, tripID, userID uint) error {
	return r.run(func(st *state) error {
		voters := st.approvals[tripID]
		if voters == nil {
			voters = make(map[uint]bool)
			st.approvals[tripID] = voters
		}
		if voters[userID] {
			return repositories.ErrDuplicateApproval
		}
		voters[userID] = true
		return nil
	})
}

func (r tripRepo) CountApprovals(_ context.Context, tripID uint) (int, error) {
	var count int
	err := r.run(func(st *state) error {
		count = len(st.approvals[tripID])
		return nil
	})
	return count, err
}

func (r tripRepo) HasApproved(_ context.Context, tripID, userID uint) (bool, error) {
	var voted bool
	err := r.run(func(st *state) error {
		voted = st.approvals[tripID][userID]
		return nil
	})
	return voted, err
}

func (r tripRepo) ClearApprovals(_ context.Context, tripID uint) error {
	return r.run(func(st *state) error {
		delete(st.approvals, tripID)
		return nil
	})
}

// Expense repository

type expenseRepo struct{ view }

func (r expenseRepo) Create(_ context.Context, expense *models.Expense) error {
	return r.run(func(st *state) error {
		expense.ID = st.id()
		for i := range expense.Shares {
			expense.Shares[i].ID = st.id()
			expense.Shares[i].ExpenseID = expense.ID
			st.shares[expense.Shares[i].ID] = expense.Shares[i]
		}
		stored := *expense
		stored.Shares = nil
		st.expenses[expense.ID] = stored
		return nil
	})
}

func (st *state) expenseShares(expenseID uint) []models.Share {
	var shares []models.Share
	for _, s := range st.shares {
		if s.ExpenseID == expenseID {
			shares = append(shares, s)
		}
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].ID < shares[j].ID })
	return shares
}

func (r expenseRepo) GetByID(_ context.Context, id uint) (*models.Expense, error) {
	var out *models.Expense
	err := r.run(func(st *state) error {
		e, ok := st.expenses[id]
		if !ok {
			return repositories.ErrExpenseNotFound
		}
		e.Shares = st.expenseShares(id)
		out = &e
		return nil
	})
	return out, err
}

func (r expenseRepo) ListByTrip(_ context.Context, tripID uint) ([]models.Expense, error) {
	var out []models.Expense
	err := r.run(func(st *state) error {
		for _, e := range st.expenses {
			if e.TripID == tripID {
				e.Shares = st.expenseShares(e.ID)
				out = append(out, e)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

func (r expenseRepo) GetShare(_ context.Context, expenseID, userID uint) (*models.Share, error) {
	var out *models.Share
	err := r.run(func(st *state) error {
		for _, s := range st.shares {
			if s.ExpenseID == expenseID && s.UserID == userID {
				share := s
				out = &share
				return nil
			}
		}
		return repositories.ErrShareNotFound
	})
	return out, err
}

func (r expenseRepo) GetShareForUpdate(ctx context.Context, expenseID, userID uint) (*models.Share, error) {
	return r.GetShare(ctx, expenseID, userID)
}

func (r expenseRepo) UpdateShare(_ context.Context, share *models.Share) error {
	return r.run(func(st *state) error {
		st.shares[share.ID] = *share
		return nil
	})
}

// Transaction repository

type transactionRepo struct{ view }

func (r transactionRepo) Create(_ context.Context, tx *models.Transaction) error {
	return r.run(func(st *state) error {
		tx.ID = st.id()
		st.transactions[tx.ID] = *tx
		return nil
	})
}

func (r transactionRepo) GetByID(_ context.Context, id uint) (*models.Transaction, error) {
	var out *models.Transaction
	err := r.run(func(st *state) error {
		t, ok := st.transactions[id]
		if !ok {
			return repositories.ErrTransactionNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

func (r transactionRepo) GetByIDForUpdate(ctx context.Context, id uint) (*models.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r transactionRepo) SetStatus(_ context.Context, tx *models.Transaction, status string, metadata models.TransactionMetadata) error {
	return r.run(func(st *state) error {
		stored, ok := st.transactions[tx.ID]
		if !ok {
			return repositories.ErrTransactionNotFound
		}
		if stored.Status != models.TransactionPending {
			return repositories.ErrStatusTransition
		}
		if status != models.TransactionCompleted && status != models.TransactionFailed {
			return repositories.ErrStatusTransition
		}
		stored.Status = status
		if !metadata.IsZero() {
			stored.Metadata = metadata
		}
		st.transactions[tx.ID] = stored
		tx.Status = status
		if !metadata.IsZero() {
			tx.Metadata = metadata
		}
		return nil
	})
}

func (r transactionRepo) ListByUser(_ context.Context, userID uint, limit, offset int) ([]models.Transaction, error) {
	return r.list(func(t models.Transaction) bool { return t.UserID == userID }, limit, offset)
}

func (r transactionRepo) ListByTrip(_ context.Context, tripID uint, limit, offset int) ([]models.Transaction, error) {
	return r.list(func(t models.Transaction) bool { return t.TripID != nil && *t.TripID == tripID }, limit, offset)
}

func (r transactionRepo) list(match func(models.Transaction) bool, limit, offset int) ([]models.Transaction, error) {
	var out []models.Transaction
	err := r.run(func(st *state) error {
		for _, t := range st.transactions {
			if match(t) {
				out = append(out, t)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
		if offset < len(out) {
			out = out[offset:]
		} else {
			out = nil
		}
		if limit > 0 && limit < len(out) {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (r transactionRepo) SumCompletedByTrip(_ context.Context, tripID uint, txType string) (models.Money, error) {
	total := models.ZeroMoney()
	err := r.run(func(st *state) error {
		for _, t := range st.transactions {
			if t.TripID != nil && *t.TripID == tripID &&
				t.Type == txType && t.Status == models.TransactionCompleted {
				total = total.Add(t.Amount)
			}
		}
		return nil
	})
	return total, err
}
