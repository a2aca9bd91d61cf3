// Package ledger defines the legal status transitions of a gift transaction
// and who may request them.
//
// A transaction carries two status dimensions, payment and delivery. Only a
// subset of their cross product is reachable:
//
//	(Pending, Pending)   --Pay-->     (Completed, Pending)
//	(Completed, Pending) --Deliver--> (Completed, Completed)
//	(Pending, Pending)   --Cancel-->  (Canceled, Canceled)
//	(Completed, Pending) --Cancel-->  (Canceled, Canceled)
//
// (Completed, Completed) and (Canceled, Canceled) are terminal.
package ledger

import (
	"fmt"

	"github.com/svirmi/gift-ledger/internal/model"
	"github.com/svirmi/gift-ledger/internal/role"
)

type Operation string

const (
	OpPay     Operation = "Pay"
	OpDeliver Operation = "Deliver"
	OpCancel  Operation = "Cancel"
)

// Operations lists every operation in presentation order.
var Operations = []Operation{OpPay, OpDeliver, OpCancel}

func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case OpPay, OpDeliver, OpCancel:
		return Operation(s), nil
	}
	return "", fmt.Errorf("unknown operation %q: %w", s, model.ErrValidation)
}

type state struct {
	payment  model.Status
	delivery model.Status
}

func stateOf(tx model.Transaction) state {
	return state{payment: tx.PaymentStatus, delivery: tx.DeliveryStatus}
}

var (
	initial  = state{model.StatusPending, model.StatusPending}
	paid     = state{model.StatusCompleted, model.StatusPending}
	settled  = state{model.StatusCompleted, model.StatusCompleted}
	canceled = state{model.StatusCanceled, model.StatusCanceled}
)

var transitions = map[Operation]map[state]state{
	OpPay:     {initial: paid},
	OpDeliver: {paid: settled},
	OpCancel:  {initial: canceled, paid: canceled},
}

// IsTerminal reports whether no operation can leave tx's current state.
func IsTerminal(tx model.Transaction) bool {
	s := stateOf(tx)
	return s == settled || s == canceled
}

// Apply returns tx after op. Illegal transitions, including any attempt from
// a terminal state, fail with model.ErrConflict. tx itself is not modified.
func Apply(tx model.Transaction, op Operation) (model.Transaction, error) {
	next, ok := transitions[op]
	if !ok {
		return tx, fmt.Errorf("unknown operation %q: %w", op, model.ErrValidation)
	}

	from := stateOf(tx)
	to, ok := next[from]
	if !ok {
		return tx, fmt.Errorf("transaction %s: cannot %s from (%s, %s): %w",
			tx.ID, op, from.payment, from.delivery, model.ErrConflict)
	}

	out := tx.Clone()
	out.PaymentStatus = to.payment
	out.DeliveryStatus = to.delivery
	return out, nil
}

// Available returns the operations that are legal from tx's current state.
func Available(tx model.Transaction) []Operation {
	from := stateOf(tx)
	var ops []Operation
	for _, op := range Operations {
		if _, ok := transitions[op][from]; ok {
			ops = append(ops, op)
		}
	}
	return ops
}

// RequiredIdentity returns the participant whose presence must be proven for
// op: the receiver for Deliver, the sender for Pay and Cancel.
func RequiredIdentity(tx model.Transaction, op Operation) string {
	if op == OpDeliver {
		return tx.ToUserID
	}
	return tx.FromUserID
}

// CanRequest reports whether userID may request op on tx on their own
// behalf, without counterparty proof.
func CanRequest(userID string, tx model.Transaction, op Operation) bool {
	switch op {
	case OpPay:
		return userID == tx.FromUserID
	case OpDeliver:
		return userID == tx.ToUserID
	case OpCancel:
		return tx.HasParticipant(userID)
	}
	return false
}

// Visible reports whether a caller may enumerate tx at all.
func Visible(userID string, level role.Level, tx model.Transaction) bool {
	return level.IsManager() || tx.HasParticipant(userID)
}

// Authorized reports whether a caller may have op committed on tx. The caller
// must be manager-or-above, be entitled to op themselves, or be a participant
// presenting proof of the required identity.
func Authorized(userID string, level role.Level, authorizingUserID string, tx model.Transaction, op Operation) bool {
	if level.IsManager() || CanRequest(userID, tx, op) {
		return true
	}
	return authorizingUserID != "" &&
		authorizingUserID == RequiredIdentity(tx, op) &&
		tx.HasParticipant(userID)
}

// Candidates selects, from visible records, the transactions on which op is
// currently pending for userID.
func Candidates(txs []model.Transaction, op Operation, userID string) []model.Transaction {
	var out []model.Transaction
	for _, tx := range txs {
		s := stateOf(tx)
		switch op {
		case OpDeliver:
			if tx.ToUserID == userID && s == paid {
				out = append(out, tx)
			}
		case OpPay:
			if tx.FromUserID == userID && s == initial {
				out = append(out, tx)
			}
		case OpCancel:
			if tx.HasParticipant(userID) && (s == initial || s == paid) {
				out = append(out, tx)
			}
		}
	}
	return out
}
