package repository

import (
	"context"

	"github.com/svirmi/gift-ledger/internal/model"
)

// ResolveFunc receives the locked current state of every record named in a
// batch and returns the records to write. Returning an error aborts the batch
// before anything is written.
type ResolveFunc func(current map[string]model.Transaction) ([]model.Transaction, error)

type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx model.Transaction) error
	GetTransaction(ctx context.Context, id string) (model.Transaction, error)
	ListTransactions(ctx context.Context, f model.TransactionFilter) ([]model.Transaction, error)
	// CommitBatch loads ids, lets resolve compute the new records and writes
	// them all or nothing. Unknown ids fail with ErrTransactionNotFound.
	CommitBatch(ctx context.Context, ids []string, resolve ResolveFunc) ([]model.Transaction, error)
	// DeleteTransaction removes id if guard accepts the current record.
	DeleteTransaction(ctx context.Context, id string, guard func(model.Transaction) error) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, id string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, id string, mutate func(*model.User) error) (model.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type GiftStore interface {
	CreateGift(ctx context.Context, g model.Gift) error
	GetGift(ctx context.Context, id string) (model.Gift, error)
	ListGifts(ctx context.Context) ([]model.Gift, error)
	UpdateGift(ctx context.Context, id string, mutate func(*model.Gift) error) (model.Gift, error)
	DeleteGift(ctx context.Context, id string) error
}

// Store is the document store the service layer runs against.
type Store interface {
	TransactionStore
	UserStore
	GiftStore
	Ping(ctx context.Context) error
}
