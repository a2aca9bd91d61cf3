// Package counterparty implements the client side of the counterparty
// authorization protocol. Before a privileged status change is committed the
// other party to the selected transactions proves their presence by letting
// their identity token be scanned.
//
// Transition is the pure state machine; Session runs it against a Scanner and
// a Committer. The protocol never re-checks transaction state: the server-side
// batch commit is the authority on what may change.
package counterparty

import (
	"errors"
	"fmt"
	"strings"

	"github.com/svirmi/gift-ledger/internal/ledger"
	"github.com/svirmi/gift-ledger/internal/model"
)

type Step int

const (
	Idle Step = iota
	ConfirmMethod
	ScanningProximity
	ScanningVisual
	Authorizing
	Success
	Failure
)

func (s Step) String() string {
	switch s {
	case Idle:
		return "Idle"
	case ConfirmMethod:
		return "ConfirmMethod"
	case ScanningProximity:
		return "ScanningProximity"
	case ScanningVisual:
		return "ScanningVisual"
	case Authorizing:
		return "Authorizing"
	case Success:
		return "Success"
	case Failure:
		return "Failure"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

func (s Step) scanning() bool { return s == ScanningProximity || s == ScanningVisual }

// Channel is the medium the token is read through.
type Channel string

const (
	ChannelProximity Channel = "proximity"
	ChannelVisual    Channel = "visual"
)

// Failure reasons.
const (
	ReasonScanFailed       = "scan failed"
	ReasonIdentityMismatch = "identity mismatch"
	ReasonProcessingError  = "processing error"
)

// ErrInvalidEvent is returned when an event does not apply to the current
// step. The state is left unchanged.
var ErrInvalidEvent = errors.New("event not valid in current step")

type State struct {
	Step             Step
	Operation        ledger.Operation
	Selected         []string
	RequiredIdentity string
	Reason           string
}

// Event drives Transition.
type Event interface{ event() }

// Begin starts a flow for op on the selected transactions.
type Begin struct {
	Op           ledger.Operation
	Transactions []model.Transaction
}

type ChooseChannel struct{ Channel Channel }

type TokenCaptured struct{ Token string }

type CommitSucceeded struct{}

type CommitFailed struct{ Err error }

type Abort struct{}

type Dismiss struct{}

func (Begin) event()           {}
func (ChooseChannel) event()   {}
func (TokenCaptured) event()   {}
func (CommitSucceeded) event() {}
func (CommitFailed) event()    {}
func (Abort) event()           {}
func (Dismiss) event()         {}

// Effect is work the interpreter must perform after a transition. A nil
// Effect means none.
type Effect interface{ effect() }

type StartScan struct{ Channel Channel }

type CancelScan struct{}

// Commit asks for the batch to be committed on behalf of AuthorizingUserID.
type Commit struct {
	Op                ledger.Operation
	IDs               []string
	AuthorizingUserID string
}

// ScheduleDismiss marks a terminal outcome that returns to Idle on Dismiss.
type ScheduleDismiss struct{}

func (StartScan) effect()       {}
func (CancelScan) effect()      {}
func (Commit) effect()          {}
func (ScheduleDismiss) effect() {}

// Transition computes the next state for e. On error the returned state is s.
func Transition(s State, e Event) (State, Effect, error) {
	switch ev := e.(type) {
	case Begin:
		if s.Step != Idle {
			break
		}
		required, err := requiredIdentity(ev.Op, ev.Transactions)
		if err != nil {
			return s, nil, err
		}
		ids := make([]string, 0, len(ev.Transactions))
		for _, tx := range ev.Transactions {
			ids = append(ids, tx.ID)
		}
		return State{Step: ConfirmMethod, Operation: ev.Op, Selected: ids, RequiredIdentity: required}, nil, nil

	case ChooseChannel:
		if s.Step != ConfirmMethod {
			break
		}
		next := s
		switch ev.Channel {
		case ChannelProximity:
			next.Step = ScanningProximity
		case ChannelVisual:
			next.Step = ScanningVisual
		default:
			return s, nil, fmt.Errorf("unknown channel %q: %w", ev.Channel, model.ErrValidation)
		}
		return next, StartScan{Channel: ev.Channel}, nil

	case TokenCaptured:
		if !s.Step.scanning() {
			break
		}
		token := strings.TrimSpace(ev.Token)
		switch {
		case token == "":
			return fail(s, ReasonScanFailed), ScheduleDismiss{}, nil
		case token != s.RequiredIdentity:
			return fail(s, ReasonIdentityMismatch), ScheduleDismiss{}, nil
		}
		next := s
		next.Step = Authorizing
		return next, Commit{Op: s.Operation, IDs: s.Selected, AuthorizingUserID: token}, nil

	case CommitSucceeded:
		if s.Step != Authorizing {
			break
		}
		next := s
		next.Step = Success
		return next, ScheduleDismiss{}, nil

	case CommitFailed:
		if s.Step != Authorizing {
			break
		}
		return fail(s, ReasonProcessingError), ScheduleDismiss{}, nil

	case Abort:
		switch {
		case s.Step == ConfirmMethod:
			return State{}, nil, nil
		case s.Step.scanning():
			return State{}, CancelScan{}, nil
		}

	case Dismiss:
		if s.Step == Success || s.Step == Failure {
			return State{}, nil, nil
		}
	}
	return s, nil, fmt.Errorf("%T in %s: %w", e, s.Step, ErrInvalidEvent)
}

func fail(s State, reason string) State {
	s.Step = Failure
	s.Reason = reason
	return s
}

// requiredIdentity returns the single identity that must be proven for op on
// every selected transaction.
func requiredIdentity(op ledger.Operation, txs []model.Transaction) (string, error) {
	if _, err := ledger.ParseOperation(string(op)); err != nil {
		return "", err
	}
	if len(txs) == 0 {
		return "", fmt.Errorf("no transactions selected: %w", model.ErrValidation)
	}
	required := ledger.RequiredIdentity(txs[0], op)
	for _, tx := range txs[1:] {
		if other := ledger.RequiredIdentity(tx, op); other != required {
			return "", fmt.Errorf("selection needs both %s and %s to authorize %s: %w",
				required, other, op, model.ErrValidation)
		}
	}
	return required, nil
}
