package repositories

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrTripNotFound        = errors.New("trip not found")
	ErrTripWalletNotFound  = errors.New("trip wallet not found")
	ErrExpenseNotFound     = errors.New("expense not found")
	ErrShareNotFound       = errors.New("share not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateApproval   = errors.New("member already approved this withdrawal")
	ErrStatusTransition    = errors.New("invalid transaction status transition")
)

// Storage is the persistence surface the services program against.
// InTransaction yields a transaction-bound Storage; every balance mutation
// runs inside one so a mid-operation failure leaves all aggregates at their
// pre-state.
type Storage interface {
	InTransaction(fn func(tx Storage) error) error
	Wallets() WalletRepository
	Trips() TripRepository
	Expenses() ExpenseRepository
	Transactions() TransactionRepository
}

// Store implements Storage over a gorm handle.
type Store struct {
	db           *gorm.DB
	wallets      WalletRepository
	trips        TripRepository
	expenses     ExpenseRepository
	transactions TransactionRepository
}

// NewStore builds a Store over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		wallets:      &walletRepository{db: db},
		trips:        &tripRepository{db: db},
		expenses:     &expenseRepository{db: db},
		transactions: &transactionRepository{db: db},
	}
}

func (s *Store) Wallets() WalletRepository           { return s.wallets }
func (s *Store) Trips() TripRepository               { return s.trips }
func (s *Store) Expenses() ExpenseRepository         { return s.expenses }
func (s *Store) Transactions() TransactionRepository { return s.transactions }

// InTransaction runs fn against a transaction-bound Store. The transaction
// commits iff fn returns nil.
func (s *Store) InTransaction(fn func(tx Storage) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
