package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svirmi/gift-ledger/internal/model"
)

func seededMemory(t *testing.T) *Memory {
	t.Helper()
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.CreateUser(ctx, model.User{ID: "alice", Name: "Alice", Type: model.UserBlue}))
	require.NoError(t, m.CreateUser(ctx, model.User{ID: "bob", Name: "Bob", Type: model.UserPink}))
	require.NoError(t, m.CreateGift(ctx, model.Gift{ID: "gift-1", Name: "Teddy", Price: decimal.NewFromInt(10)}))
	require.NoError(t, m.CreateTransaction(ctx, model.NewTransaction("tx-1", "gift-1", "alice", "bob", model.TypeSend, now)))
	require.NoError(t, m.CreateTransaction(ctx, model.NewTransaction("tx-2", "gift-1", "bob", "alice", model.TypeSend, now.Add(time.Hour))))
	return m
}

func TestMemory_CommitBatchAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := seededMemory(t)

	m.FailNextCommit(errors.New("disk full"))
	_, err := m.CommitBatch(ctx, []string{"tx-1", "tx-2"}, payAll)
	require.ErrorIs(t, err, model.ErrStore)

	for _, id := range []string{"tx-1", "tx-2"} {
		tx, err := m.GetTransaction(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, tx.PaymentStatus, id)
	}

	updated, err := m.CommitBatch(ctx, []string{"tx-1", "tx-2"}, payAll)
	require.NoError(t, err)
	assert.Len(t, updated, 2)
	assert.Equal(t, 2, m.Commits())
}

func TestMemory_CommitBatchUnknownID(t *testing.T) {
	m := seededMemory(t)
	_, err := m.CommitBatch(context.Background(), []string{"tx-1", "ghost"}, payAll)
	require.ErrorIs(t, err, ErrTransactionNotFound)

	tx, err := m.GetTransaction(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, tx.PaymentStatus)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	m := seededMemory(t)
	tx, err := m.GetTransaction(context.Background(), "tx-1")
	require.NoError(t, err)
	tx.Participants[0] = "mallory"

	again, err := m.GetTransaction(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, again.Participants)
}

func TestMemory_ListFilterAndOrder(t *testing.T) {
	m := seededMemory(t)
	all, err := m.ListTransactions(context.Background(), model.TransactionFilter{Participant: "alice"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "tx-2", all[0].ID, "newest first")

	toBob, err := m.ListTransactions(context.Background(), model.TransactionFilter{ToUserID: "bob", Limit: 1})
	require.NoError(t, err)
	require.Len(t, toBob, 1)
	assert.Equal(t, "tx-1", toBob[0].ID)
}

func TestMemory_ReferentialChecks(t *testing.T) {
	ctx := context.Background()
	m := seededMemory(t)

	err := m.CreateTransaction(ctx, model.NewTransaction("tx-3", "gift-1", "alice", "nobody", model.TypeSend, time.Now()))
	assert.ErrorIs(t, err, ErrReferenceNotFound)

	assert.ErrorIs(t, m.DeleteUser(ctx, "alice"), ErrInUse)
	assert.ErrorIs(t, m.DeleteGift(ctx, "gift-1"), ErrInUse)
	assert.ErrorIs(t, m.CreateUser(ctx, model.User{ID: "alice"}), ErrDuplicate)
}

func TestMemory_DeleteTransactionGuard(t *testing.T) {
	ctx := context.Background()
	m := seededMemory(t)

	err := m.DeleteTransaction(ctx, "tx-1", func(model.Transaction) error { return model.ErrForbidden })
	require.ErrorIs(t, err, model.ErrForbidden)
	_, err = m.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)

	require.NoError(t, m.DeleteTransaction(ctx, "tx-1", func(model.Transaction) error { return nil }))
	_, err = m.GetTransaction(ctx, "tx-1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
