package counterparty

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svirmi/gift-ledger/internal/ledger"
	"github.com/svirmi/gift-ledger/internal/model"
)

func tx(id, from, to string) model.Transaction {
	return model.NewTransaction(id, "g1", from, to, model.TypeSend, time.Time{})
}

func begin(t *testing.T, op ledger.Operation, txs ...model.Transaction) State {
	t.Helper()
	s, effect, err := Transition(State{}, Begin{Op: op, Transactions: txs})
	require.NoError(t, err)
	assert.Nil(t, effect)
	return s
}

func TestTransition_HappyPath(t *testing.T) {
	s := begin(t, ledger.OpDeliver, tx("t1", "alice", "bob"), tx("t2", "carol", "bob"))
	assert.Equal(t, ConfirmMethod, s.Step)
	assert.Equal(t, "bob", s.RequiredIdentity)
	assert.Equal(t, []string{"t1", "t2"}, s.Selected)

	s, effect, err := Transition(s, ChooseChannel{Channel: ChannelVisual})
	require.NoError(t, err)
	assert.Equal(t, ScanningVisual, s.Step)
	assert.Equal(t, StartScan{Channel: ChannelVisual}, effect)

	s, effect, err = Transition(s, TokenCaptured{Token: " bob\n"})
	require.NoError(t, err)
	assert.Equal(t, Authorizing, s.Step)
	assert.Equal(t, Commit{Op: ledger.OpDeliver, IDs: []string{"t1", "t2"}, AuthorizingUserID: "bob"}, effect)

	s, effect, err = Transition(s, CommitSucceeded{})
	require.NoError(t, err)
	assert.Equal(t, Success, s.Step)
	assert.Equal(t, ScheduleDismiss{}, effect)

	s, _, err = Transition(s, Dismiss{})
	require.NoError(t, err)
	assert.Equal(t, State{}, s)
}

func TestTransition_RequiredIdentityPerOperation(t *testing.T) {
	assert.Equal(t, "alice", begin(t, ledger.OpPay, tx("t1", "alice", "bob")).RequiredIdentity)
	assert.Equal(t, "alice", begin(t, ledger.OpCancel, tx("t1", "alice", "bob")).RequiredIdentity)
	assert.Equal(t, "bob", begin(t, ledger.OpDeliver, tx("t1", "alice", "bob")).RequiredIdentity)
}

func TestTransition_BeginRejectsMixedCounterparties(t *testing.T) {
	selection := []model.Transaction{tx("t1", "alice", "bob"), tx("t2", "alice", "carol")}

	s, effect, err := Transition(State{}, Begin{Op: ledger.OpDeliver, Transactions: selection})
	require.ErrorIs(t, err, model.ErrValidation)
	assert.Nil(t, effect)
	assert.Equal(t, Idle, s.Step)

	// The same selection shares a sender, so Pay is fine.
	s = begin(t, ledger.OpPay, selection...)
	assert.Equal(t, "alice", s.RequiredIdentity)
}

func TestTransition_BeginRejectsBadInput(t *testing.T) {
	_, _, err := Transition(State{}, Begin{Op: ledger.OpPay})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, _, err = Transition(State{}, Begin{Op: "Refund", Transactions: []model.Transaction{tx("t1", "a", "b")}})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestTransition_TokenOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		step   Step
		reason string
	}{
		{"empty token", "", Failure, ReasonScanFailed},
		{"blank token", "   ", Failure, ReasonScanFailed},
		{"wrong identity", "mallory", Failure, ReasonIdentityMismatch},
		{"required identity", "alice", Authorizing, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := begin(t, ledger.OpPay, tx("t1", "alice", "bob"))
			s, _, err := Transition(s, ChooseChannel{Channel: ChannelProximity})
			require.NoError(t, err)

			s, effect, err := Transition(s, TokenCaptured{Token: tt.token})
			require.NoError(t, err)
			assert.Equal(t, tt.step, s.Step)
			assert.Equal(t, tt.reason, s.Reason)
			if tt.step == Failure {
				assert.Equal(t, ScheduleDismiss{}, effect, "a failed scan never commits")
			}
		})
	}
}

func TestTransition_CommitFailure(t *testing.T) {
	s := State{Step: Authorizing, Operation: ledger.OpPay, Selected: []string{"t1"}, RequiredIdentity: "alice"}
	s, effect, err := Transition(s, CommitFailed{Err: errors.New("503")})
	require.NoError(t, err)
	assert.Equal(t, Failure, s.Step)
	assert.Equal(t, ReasonProcessingError, s.Reason)
	assert.Equal(t, ScheduleDismiss{}, effect)
}

func TestTransition_Abort(t *testing.T) {
	s := begin(t, ledger.OpPay, tx("t1", "alice", "bob"))

	idle, effect, err := Transition(s, Abort{})
	require.NoError(t, err)
	assert.Equal(t, State{}, idle)
	assert.Nil(t, effect)

	scanning, _, err := Transition(s, ChooseChannel{Channel: ChannelProximity})
	require.NoError(t, err)
	idle, effect, err = Transition(scanning, Abort{})
	require.NoError(t, err)
	assert.Equal(t, State{}, idle, "no residue")
	assert.Equal(t, CancelScan{}, effect)

	authorizing := State{Step: Authorizing}
	_, _, err = Transition(authorizing, Abort{})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestTransition_InvalidEventsLeaveStateUnchanged(t *testing.T) {
	tests := []struct {
		name  string
		state State
		event Event
	}{
		{"choose while idle", State{}, ChooseChannel{Channel: ChannelVisual}},
		{"token while confirming", State{Step: ConfirmMethod}, TokenCaptured{Token: "x"}},
		{"begin while scanning", State{Step: ScanningVisual}, Begin{Op: ledger.OpPay}},
		{"success while scanning", State{Step: ScanningProximity}, CommitSucceeded{}},
		{"dismiss while authorizing", State{Step: Authorizing}, Dismiss{}},
		{"abort while idle", State{}, Abort{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, effect, err := Transition(tt.state, tt.event)
			require.ErrorIs(t, err, ErrInvalidEvent)
			assert.Nil(t, effect)
			assert.Equal(t, tt.state, s)
		})
	}

	_, _, err := Transition(State{Step: ConfirmMethod}, ChooseChannel{Channel: "carrier pigeon"})
	assert.ErrorIs(t, err, model.ErrValidation)
}
