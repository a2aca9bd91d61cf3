package counterparty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/svirmi/gift-ledger/internal/ledger"
	"github.com/svirmi/gift-ledger/internal/model"
)

// Committer submits a batch status change on behalf of the authorizing user.
type Committer interface {
	CommitBatch(ctx context.Context, op ledger.Operation, ids []string, authorizingUserID string) error
}

// Scanner reads one token through channel. It returns an empty token or an
// error when nothing usable was read.
type Scanner interface {
	Scan(ctx context.Context, channel Channel) (string, error)
}

// ErrAborted is returned by Choose when the flow was aborted while scanning.
var ErrAborted = errors.New("authorization aborted")

// Session runs one user's authorization flows, one at a time.
type Session struct {
	committer Committer
	scanner   Scanner
	logger    *slog.Logger

	scanTimeout  time.Duration
	dismissAfter time.Duration

	mu         sync.Mutex
	state      State
	generation uint64
	cancelScan context.CancelFunc
	scanID     uint64
	timer      *time.Timer
}

type Option func(*Session)

// WithScanTimeout bounds each scan. A scan that times out fails the flow with
// ReasonScanFailed. Scans are unbounded by default.
func WithScanTimeout(d time.Duration) Option {
	return func(s *Session) { s.scanTimeout = d }
}

// WithAutoDismiss returns to Idle d after a Success or Failure outcome.
func WithAutoDismiss(d time.Duration) Option {
	return func(s *Session) { s.dismissAfter = d }
}

func NewSession(committer Committer, scanner Scanner, logger *slog.Logger, opts ...Option) *Session {
	s := &Session{committer: committer, scanner: scanner, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a snapshot of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// apply runs Transition under the lock and records the result.
func (s *Session) apply(e Event) (State, Effect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(e)
}

func (s *Session) applyLocked(e Event) (State, Effect, error) {
	next, effect, err := Transition(s.state, e)
	if err != nil {
		return s.state, nil, err
	}
	if next.Step != s.state.Step {
		s.logger.Debug("authorization step", "from", s.state.Step.String(), "to", next.Step.String(), "reason", next.Reason)
	}
	s.state = next

	switch effect.(type) {
	case CancelScan:
		// A result from the cancelled scan must not reach a later flow.
		s.scanID++
		if s.cancelScan != nil {
			s.cancelScan()
			s.cancelScan = nil
		}
	case ScheduleDismiss:
		s.generation++
		if s.dismissAfter > 0 {
			gen := s.generation
			s.timer = time.AfterFunc(s.dismissAfter, func() { s.autoDismiss(gen) })
		}
	}
	return next, effect, nil
}

func (s *Session) autoDismiss(gen uint64) {
	s.mu.Lock()
	current := s.generation
	s.mu.Unlock()
	if current == gen {
		_ = s.Dismiss()
	}
}

// Begin starts a flow for op on txs. Selections that would need more than one
// counterparty are rejected and the session stays Idle.
func (s *Session) Begin(op ledger.Operation, txs []model.Transaction) (State, error) {
	st, _, err := s.apply(Begin{Op: op, Transactions: txs})
	if err != nil {
		return st, err
	}
	s.logger.Info("authorization started", "operation", op, "transactions", len(st.Selected), "required_identity", st.RequiredIdentity)
	return st, nil
}

// Choose picks the scan channel and runs the rest of the flow: scan, verify
// the token and, on a match, commit. It returns the resulting Success or
// Failure state.
//
// Cancelling ctx cancels the scan but never an in-flight commit.
func (s *Session) Choose(ctx context.Context, channel Channel) (State, error) {
	_, effect, err := s.apply(ChooseChannel{Channel: channel})
	if err != nil {
		return s.State(), err
	}
	start := effect.(StartScan)

	var (
		scanCtx context.Context
		cancel  context.CancelFunc
	)
	if s.scanTimeout > 0 {
		scanCtx, cancel = context.WithTimeout(ctx, s.scanTimeout)
	} else {
		scanCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	s.mu.Lock()
	if !s.state.Step.scanning() {
		s.mu.Unlock()
		return s.State(), ErrAborted
	}
	s.scanID++
	scanID := s.scanID
	s.cancelScan = cancel
	s.mu.Unlock()

	token, scanErr := s.scanner.Scan(scanCtx, start.Channel)

	s.mu.Lock()
	if s.scanID != scanID {
		st := s.state
		s.mu.Unlock()
		s.logger.Debug("dropping result of an aborted scan", "channel", start.Channel)
		return st, ErrAborted
	}
	s.cancelScan = nil
	if scanErr != nil {
		s.logger.Warn("scan failed", "channel", start.Channel, "error", scanErr)
		token = ""
	}
	st, effect, err := s.applyLocked(TokenCaptured{Token: token})
	s.mu.Unlock()

	if errors.Is(err, ErrInvalidEvent) {
		return st, ErrAborted
	}
	if err != nil {
		return st, err
	}

	commit, ok := effect.(Commit)
	if !ok {
		s.logger.Warn("authorization failed", "reason", st.Reason, "required_identity", st.RequiredIdentity)
		return st, nil
	}

	if err := s.committer.CommitBatch(context.WithoutCancel(ctx), commit.Op, commit.IDs, commit.AuthorizingUserID); err != nil {
		s.logger.Error("authorized commit failed", "operation", commit.Op, "error", err)
		st, _, aerr := s.apply(CommitFailed{Err: err})
		if aerr != nil {
			return st, aerr
		}
		return st, nil
	}

	st, _, err = s.apply(CommitSucceeded{})
	if err != nil {
		return st, err
	}
	s.logger.Info("authorization committed", "operation", commit.Op, "transactions", len(commit.IDs),
		"authorizing_user_id", commit.AuthorizingUserID)
	return st, nil
}

// Abort leaves a flow that has not reached Authorizing. A running scan is
// cancelled.
func (s *Session) Abort() error {
	_, _, err := s.apply(Abort{})
	return err
}

// Dismiss returns from Success or Failure to Idle.
func (s *Session) Dismiss() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	_, _, err := s.apply(Dismiss{})
	return err
}

// Outcome converts a terminal state to an error for callers that only need
// pass or fail. Success yields nil.
func Outcome(st State) error {
	switch {
	case st.Step == Success:
		return nil
	case st.Reason == ReasonIdentityMismatch:
		return fmt.Errorf("%s required: %w", st.RequiredIdentity, model.ErrAuthMismatch)
	default:
		return fmt.Errorf("authorization %s: %s", st.Step, st.Reason)
	}
}
