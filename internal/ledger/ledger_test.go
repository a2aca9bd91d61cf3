package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svirmi/gift-ledger/internal/model"
	"github.com/svirmi/gift-ledger/internal/role"
)

func newTx(typ model.TransactionType) model.Transaction {
	return model.NewTransaction("tx-1", "gift-1", "alice", "bob", typ, time.Unix(0, 0))
}

func withStatus(tx model.Transaction, payment, delivery model.Status) model.Transaction {
	tx.PaymentStatus = payment
	tx.DeliveryStatus = delivery
	return tx
}

func TestApply_SendPayThenDeliver(t *testing.T) {
	tx := newTx(model.TypeSend)

	tx, err := Apply(tx, OpPay)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, tx.PaymentStatus)
	assert.Equal(t, model.StatusPending, tx.DeliveryStatus)

	tx, err = Apply(tx, OpDeliver)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, tx.PaymentStatus)
	assert.Equal(t, model.StatusCompleted, tx.DeliveryStatus)
	assert.True(t, IsTerminal(tx))
}

func TestApply_CancelAfterPay(t *testing.T) {
	tx, err := Apply(newTx(model.TypeSend), OpPay)
	require.NoError(t, err)

	tx, err = Apply(tx, OpCancel)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCanceled, tx.PaymentStatus)
	assert.Equal(t, model.StatusCanceled, tx.DeliveryStatus)
}

func TestApply_IllegalTransitionsConflict(t *testing.T) {
	tests := []struct {
		name     string
		payment  model.Status
		delivery model.Status
		op       Operation
	}{
		{"deliver before pay", model.StatusPending, model.StatusPending, OpDeliver},
		{"pay twice", model.StatusCompleted, model.StatusPending, OpPay},
		{"pay settled", model.StatusCompleted, model.StatusCompleted, OpPay},
		{"deliver settled", model.StatusCompleted, model.StatusCompleted, OpDeliver},
		{"cancel settled", model.StatusCompleted, model.StatusCompleted, OpCancel},
		{"pay canceled", model.StatusCanceled, model.StatusCanceled, OpPay},
		{"deliver canceled", model.StatusCanceled, model.StatusCanceled, OpDeliver},
		{"cancel canceled", model.StatusCanceled, model.StatusCanceled, OpCancel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := withStatus(newTx(model.TypeGift), tt.payment, tt.delivery)
			after, err := Apply(before, tt.op)
			require.ErrorIs(t, err, model.ErrConflict)
			assert.Equal(t, before, after)
		})
	}
}

func TestApply_CanceledIsClosedUnderAllOperations(t *testing.T) {
	tx, err := Apply(newTx(model.TypeExchange), OpCancel)
	require.NoError(t, err)

	for _, op := range Operations {
		_, err := Apply(tx, op)
		assert.ErrorIs(t, err, model.ErrConflict, op)
	}
	assert.Equal(t, model.StatusCanceled, tx.DeliveryStatus)
	assert.Empty(t, Available(tx))
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	tx := newTx(model.TypeSend)
	_, err := Apply(tx, OpPay)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, tx.PaymentStatus)
}

func TestAvailable(t *testing.T) {
	tx := newTx(model.TypeSend)
	assert.Equal(t, []Operation{OpPay, OpCancel}, Available(tx))

	tx = withStatus(tx, model.StatusCompleted, model.StatusPending)
	assert.Equal(t, []Operation{OpDeliver, OpCancel}, Available(tx))
}

func TestRequiredIdentity(t *testing.T) {
	tx := newTx(model.TypeSend)
	assert.Equal(t, "bob", RequiredIdentity(tx, OpDeliver))
	assert.Equal(t, "alice", RequiredIdentity(tx, OpPay))
	assert.Equal(t, "alice", RequiredIdentity(tx, OpCancel))
}

func TestCanRequest(t *testing.T) {
	tx := newTx(model.TypeSend)

	assert.True(t, CanRequest("alice", tx, OpPay))
	assert.False(t, CanRequest("bob", tx, OpPay))
	assert.True(t, CanRequest("bob", tx, OpDeliver))
	assert.False(t, CanRequest("alice", tx, OpDeliver))
	assert.True(t, CanRequest("alice", tx, OpCancel))
	assert.True(t, CanRequest("bob", tx, OpCancel))
	assert.False(t, CanRequest("carol", tx, OpCancel))
}

func TestAuthorized(t *testing.T) {
	tx := newTx(model.TypeSend)

	assert.True(t, Authorized("carol", role.Manager, "", tx, OpPay), "manager acts on anyone")
	assert.True(t, Authorized("alice", role.Standard, "", tx, OpPay), "sender pays")
	assert.True(t, Authorized("bob", role.Standard, "alice", tx, OpPay), "receiver with sender proof")
	assert.False(t, Authorized("bob", role.Standard, "", tx, OpPay))
	assert.False(t, Authorized("bob", role.Standard, "bob", tx, OpPay))
	assert.False(t, Authorized("carol", role.Standard, "alice", tx, OpPay), "outsider with proof")
}

func TestVisible(t *testing.T) {
	tx := newTx(model.TypeGift)
	assert.True(t, Visible("alice", role.Standard, tx))
	assert.False(t, Visible("carol", role.Standard, tx))
	assert.True(t, Visible("carol", role.Manager, tx))
}

func TestCandidates(t *testing.T) {
	pending := newTx(model.TypeSend)
	paid := withStatus(newTx(model.TypeSend), model.StatusCompleted, model.StatusPending)
	paid.ID = "tx-2"
	done := withStatus(newTx(model.TypeSend), model.StatusCompleted, model.StatusCompleted)
	done.ID = "tx-3"
	all := []model.Transaction{pending, paid, done}

	assert.Equal(t, []model.Transaction{pending}, Candidates(all, OpPay, "alice"))
	assert.Empty(t, Candidates(all, OpPay, "bob"))
	assert.Equal(t, []model.Transaction{paid}, Candidates(all, OpDeliver, "bob"))
	assert.Equal(t, []model.Transaction{pending, paid}, Candidates(all, OpCancel, "bob"))
}

func TestOperationFor(t *testing.T) {
	tests := []struct {
		name string
		d    model.StatusDescriptor
		want Operation
		err  error
	}{
		{"pay", model.StatusDescriptor{ID: "1", StatusType: "paymentStatus", NewStatus: "Completed"}, OpPay, nil},
		{"settlement alias", model.StatusDescriptor{ID: "1", StatusType: "settlementStatus", NewStatus: "Completed"}, OpPay, nil},
		{"deliver", model.StatusDescriptor{ID: "1", StatusType: "deliveryStatus", NewStatus: "Completed"}, OpDeliver, nil},
		{"delivered alias", model.StatusDescriptor{ID: "1", StatusType: "deliveryStatus", NewStatus: "Delivered"}, OpDeliver, nil},
		{"cancel", model.StatusDescriptor{ID: "1", StatusType: "paymentStatus", NewStatus: "Canceled", PaymentStatus: "Canceled", DeliveryStatus: "Canceled"}, OpCancel, nil},
		{"half cancel", model.StatusDescriptor{ID: "1", StatusType: "paymentStatus", NewStatus: "Canceled"}, "", model.ErrValidation},
		{"missing id", model.StatusDescriptor{StatusType: "paymentStatus", NewStatus: "Completed"}, "", model.ErrValidation},
		{"bad type", model.StatusDescriptor{ID: "1", StatusType: "acceptedStatus", NewStatus: "Completed"}, "", model.ErrValidation},
		{"back to pending", model.StatusDescriptor{ID: "1", StatusType: "paymentStatus", NewStatus: "Pending"}, "", model.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OperationFor(tt.d)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescriptorForMapsBack(t *testing.T) {
	for _, op := range Operations {
		got, err := OperationFor(DescriptorFor("tx-1", op))
		require.NoError(t, err)
		assert.Equal(t, op, got)
	}
}
