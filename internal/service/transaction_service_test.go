package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svirmi/gift-ledger/internal/ledger"
	"github.com/svirmi/gift-ledger/internal/model"
)

func viewIDs(views []model.TransactionView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}

func TestList_RoleFiltered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine, err := f.txs.List(ctx, alice, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"t4", "t2", "t1"}, viewIDs(mine))

	all, err := f.txs.List(ctx, manager, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"t5", "t4", "t3", "t2", "t1"}, viewIDs(all))
}

func TestList_AvailableOperations(t *testing.T) {
	f := newFixture(t)
	views, err := f.txs.List(context.Background(), manager, "", "")
	require.NoError(t, err)

	got := make(map[string][]string)
	for _, v := range views {
		got[v.ID] = v.AvailableOperations
	}
	assert.Equal(t, []string{"Pay", "Cancel"}, got["t1"])
	assert.Equal(t, []string{"Deliver", "Cancel"}, got["t3"])
	assert.Empty(t, got["t4"])
	assert.Empty(t, got["t5"])
}

func TestList_Candidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	deliver, err := f.txs.List(ctx, bob, "Deliver", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"t3"}, viewIDs(deliver))

	pay, err := f.txs.List(ctx, manager, "Pay", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"t2", "t1"}, viewIDs(pay))

	// bob selects alice as the counterparty who pays.
	counterparty, err := f.txs.List(ctx, bob, "Pay", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"t2", "t1"}, viewIDs(counterparty))

	unrelated, err := f.txs.List(ctx, carol, "Pay", "alice")
	require.NoError(t, err)
	assert.Empty(t, unrelated)

	_, err = f.txs.List(ctx, bob, "Refund", "")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestList_ServesCacheUntilMarkedStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.txs.List(ctx, bob, "", "")
	require.NoError(t, err)

	updated, err := f.batches.Commit(ctx, alice, "", []BatchItem{{"t1", ledger.OpPay}})
	require.NoError(t, err)

	cached, err := f.txs.List(ctx, bob, "Deliver", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"t3"}, viewIDs(cached), "no implicit invalidation")

	require.NoError(t, f.cache.MarkStale(ctx, TransactionKeys(updated...)...))

	fresh, err := f.txs.List(ctx, bob, "Deliver", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"t3", "t1"}, viewIDs(fresh))
}

func TestGet_HidesRecordsOutsideVisibility(t *testing.T) {
	f := newFixture(t)

	_, err := f.txs.Get(context.Background(), alice, "t3")
	assert.ErrorIs(t, err, model.ErrNotFound)

	v, err := f.txs.Get(context.Background(), bob, "t3")
	require.NoError(t, err)
	assert.Equal(t, "carol", v.FromUserID)
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, err := f.txs.Create(ctx, alice, model.CreateTransactionRequest{GiftID: "g1", ToUserID: "carol", Type: model.TypeGift})
	require.NoError(t, err)
	assert.Equal(t, "new-1", tx.ID)
	assert.Equal(t, []string{"alice", "carol"}, tx.Participants)
	assert.Equal(t, model.StatusPending, tx.AcceptedStatus)
	assert.Equal(t, model.StatusPending, tx.PaymentStatus)
	assert.Equal(t, fixedAt, tx.Date)

	tests := []struct {
		name string
		req  model.CreateTransactionRequest
		want error
	}{
		{"to self", model.CreateTransactionRequest{GiftID: "g1", ToUserID: "alice", Type: model.TypeSend}, model.ErrValidation},
		{"unknown recipient", model.CreateTransactionRequest{GiftID: "g1", ToUserID: "zed", Type: model.TypeSend}, model.ErrNotFound},
		{"hidden gift", model.CreateTransactionRequest{GiftID: "g2", ToUserID: "bob", Type: model.TypeSend}, model.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.txs.Create(ctx, alice, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err = f.txs.Create(ctx, manager, model.CreateTransactionRequest{GiftID: "g2", ToUserID: "bob", Type: model.TypeExchange})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestAcceptAndDecline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.txs.Accept(ctx, alice, "t2")
	assert.ErrorIs(t, err, model.ErrForbidden, "sender cannot accept")

	_, err = f.txs.Accept(ctx, bob, "t1")
	assert.ErrorIs(t, err, model.ErrValidation, "send needs no acceptance")

	tx, err := f.txs.Accept(ctx, bob, "t2")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, tx.AcceptedStatus)

	_, err = f.txs.Accept(ctx, bob, "t2")
	assert.ErrorIs(t, err, model.ErrConflict)

	_, err = f.txs.Decline(ctx, bob, "t2")
	assert.ErrorIs(t, err, model.ErrConflict, "accepted gifts cannot be declined")
}

func TestDecline_RemovesUnacceptedGift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.txs.Decline(ctx, carol, "t2")
	assert.ErrorIs(t, err, model.ErrForbidden)

	removed, err := f.txs.Decline(ctx, bob, "t2")
	require.NoError(t, err)
	assert.Equal(t, "alice", removed.FromUserID)

	_, err = f.store.GetTransaction(ctx, "t2")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUpdateDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	updated, err := f.txs.UpdateDocument(ctx, alice, "t1", map[string]any{"paymentStatus": "Completed"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, ids(updated))
	assert.Equal(t, model.StatusCompleted, f.get(t, "t1").PaymentStatus)

	_, err = f.txs.UpdateDocument(ctx, bob, "t1", map[string]any{"deliveryStatus": "Delivered"})
	require.NoError(t, err)
	assert.True(t, ledger.IsTerminal(f.get(t, "t1")))

	_, err = f.txs.UpdateDocument(ctx, bob, "t2", map[string]any{"acceptedStatus": "Completed"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, f.get(t, "t2").AcceptedStatus)

	_, err = f.txs.UpdateDocument(ctx, bob, "t3", map[string]any{"paymentStatus": "Canceled", "deliveryStatus": "Canceled"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCanceled, f.get(t, "t3").DeliveryStatus)

	tests := []struct {
		name string
		data map[string]any
		want error
	}{
		{"empty", map[string]any{}, model.ErrValidation},
		{"immutable field", map[string]any{"toUserId": "carol"}, model.ErrValidation},
		{"non-string", map[string]any{"paymentStatus": 1}, model.ErrValidation},
		{"half cancel", map[string]any{"paymentStatus": "Canceled"}, model.ErrValidation},
		{"terminal", map[string]any{"paymentStatus": "Completed"}, model.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.txs.UpdateDocument(ctx, manager, "t4", tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
