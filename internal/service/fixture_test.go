package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/svirmi/gift-ledger/internal/auth"
	"github.com/svirmi/gift-ledger/internal/cache"
	"github.com/svirmi/gift-ledger/internal/model"
	"github.com/svirmi/gift-ledger/internal/repository"
	"github.com/svirmi/gift-ledger/internal/role"
)

var (
	base    = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	fixedAt = base.Add(24 * time.Hour)

	alice   = auth.Principal{UserID: "alice"}
	bob     = auth.Principal{UserID: "bob"}
	carol   = auth.Principal{UserID: "carol"}
	manager = auth.Principal{UserID: "mgr", Role: role.Manager}
)

type fixture struct {
	store   *repository.Memory
	cache   *cache.Cache
	batches *BatchCommitter
	txs     *TransactionService
	users   *UserService
	gifts   *GiftService
	reports *ReportService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture seeds:
//
//	t1 alice -> bob   send  (Pending, Pending)
//	t2 alice -> bob   gift  (Pending, Pending), not accepted
//	t3 carol -> bob   send  (Completed, Pending)
//	t4 carol -> alice send  (Completed, Completed)
//	t5 bob   -> carol send  (Canceled, Canceled)
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemory()

	for _, u := range []model.User{
		{ID: "alice", Name: "Alice", Type: model.UserBlue},
		{ID: "bob", Name: "Bob", Type: model.UserPink},
		{ID: "carol", Name: "Carol", Type: model.UserBlue},
		{ID: "mgr", Name: "Manager", Type: model.UserBlack, RoleLevel: role.Manager},
	} {
		require.NoError(t, store.CreateUser(ctx, u))
	}
	require.NoError(t, store.CreateGift(ctx, model.Gift{ID: "g1", Name: "Keychain", Price: decimal.NewFromInt(10), IsTradeable: true}))
	require.NoError(t, store.CreateGift(ctx, model.Gift{ID: "g2", Name: "Poster", Price: decimal.RequireFromString("25.50"), IsHidden: true}))

	seed := func(id, from, to string, typ model.TransactionType, hour int, payment, delivery model.Status) {
		tx := model.NewTransaction(id, "g1", from, to, typ, base.Add(time.Duration(hour)*time.Hour))
		tx.PaymentStatus, tx.DeliveryStatus = payment, delivery
		require.NoError(t, store.CreateTransaction(ctx, tx))
	}
	seed("t1", "alice", "bob", model.TypeSend, 1, model.StatusPending, model.StatusPending)
	seed("t2", "alice", "bob", model.TypeGift, 2, model.StatusPending, model.StatusPending)
	seed("t3", "carol", "bob", model.TypeSend, 3, model.StatusCompleted, model.StatusPending)
	seed("t4", "carol", "alice", model.TypeSend, 4, model.StatusCompleted, model.StatusCompleted)
	seed("t5", "bob", "carol", model.TypeSend, 5, model.StatusCanceled, model.StatusCanceled)

	logger := discardLogger()
	c := cache.New(cache.NewMemoryRegistry(), logger)
	clock := func() time.Time { return fixedAt }

	batches := NewBatchCommitter(store, logger)
	batches.now = clock

	txs := NewTransactionService(store, c, batches, logger)
	txs.now = clock
	n := 0
	txs.newID = func() string { n++; return fmt.Sprintf("new-%d", n) }

	users := NewUserService(store, c, logger)
	users.now = clock
	users.newID = func() string { return "new-user" }

	gifts := NewGiftService(store, c, time.Minute, logger)

	return &fixture{
		store:   store,
		cache:   c,
		batches: batches,
		txs:     txs,
		users:   users,
		gifts:   gifts,
		reports: NewReportService(users, gifts, txs),
	}
}

func (f *fixture) get(t *testing.T, id string) model.Transaction {
	t.Helper()
	tx, err := f.store.GetTransaction(context.Background(), id)
	require.NoError(t, err)
	return tx
}

func ids(txs []model.Transaction) []string {
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.ID)
	}
	return out
}
