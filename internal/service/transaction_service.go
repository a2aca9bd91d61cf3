package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/svirmi/gift-ledger/internal/auth"
	"github.com/svirmi/gift-ledger/internal/cache"
	"github.com/svirmi/gift-ledger/internal/ledger"
	"github.com/svirmi/gift-ledger/internal/model"
	"github.com/svirmi/gift-ledger/internal/repository"
	"github.com/svirmi/gift-ledger/internal/role"
)

// TransactionService owns the ledger records: creation, role-filtered reads,
// acceptance and decline. Status changes go through the BatchCommitter.
type TransactionService struct {
	store   repository.Store
	cache   *cache.Cache
	batches *BatchCommitter
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

func NewTransactionService(store repository.Store, c *cache.Cache, batches *BatchCommitter, logger *slog.Logger) *TransactionService {
	return &TransactionService{
		store:   store,
		cache:   c,
		batches: batches,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// visible returns the cached records the principal may enumerate.
func (s *TransactionService) visible(ctx context.Context, p auth.Principal) ([]model.Transaction, error) {
	if p.Role.IsManager() {
		return cache.Fetch(ctx, s.cache, KeyTransactionsAll, 0, func(ctx context.Context) ([]model.Transaction, error) {
			return s.store.ListTransactions(ctx, model.TransactionFilter{})
		})
	}

	all, err := cache.Fetch(ctx, s.cache, UserTransactionsKey(p.UserID), 0, func(ctx context.Context) ([]model.Transaction, error) {
		return s.store.ListTransactions(ctx, model.TransactionFilter{Participant: p.UserID})
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.Transaction, 0, len(all))
	for _, tx := range all {
		if ledger.Visible(p.UserID, p.Role, tx) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// List returns the records visible to p. With op set, only the records on
// which op is pending for forUser (default p) are returned. forUser may be a
// counterparty of p; the selection never leaves the records visible to p.
func (s *TransactionService) List(ctx context.Context, p auth.Principal, op, forUser string) ([]model.TransactionView, error) {
	txs, err := s.visible(ctx, p)
	if err != nil {
		return nil, err
	}

	if op != "" {
		operation, err := ledger.ParseOperation(op)
		if err != nil {
			return nil, err
		}
		if forUser == "" {
			forUser = p.UserID
		}
		txs = ledger.Candidates(txs, operation, forUser)
	}

	views := make([]model.TransactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, view(tx))
	}
	return views, nil
}

func view(tx model.Transaction) model.TransactionView {
	ops := ledger.Available(tx)
	names := make([]string, 0, len(ops))
	for _, op := range ops {
		names = append(names, string(op))
	}
	return model.TransactionView{Transaction: tx, AvailableOperations: names}
}

// Get returns one record. Records the principal may not see are reported as
// not found.
func (s *TransactionService) Get(ctx context.Context, p auth.Principal, id string) (model.TransactionView, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return model.TransactionView{}, err
	}
	if !ledger.Visible(p.UserID, p.Role, tx) {
		return model.TransactionView{}, fmt.Errorf("%s: %w", id, repository.ErrTransactionNotFound)
	}
	return view(tx), nil
}

// Recent returns the n newest records p participates in.
func (s *TransactionService) Recent(ctx context.Context, p auth.Principal, n int) ([]model.Transaction, error) {
	txs, err := s.visible(ctx, auth.Principal{UserID: p.UserID})
	if err != nil {
		return nil, err
	}
	if len(txs) > n {
		txs = txs[:n]
	}
	return txs, nil
}

// PendingGifts returns gifts sent to p that still wait for acceptance.
func (s *TransactionService) PendingGifts(ctx context.Context, p auth.Principal) ([]model.Transaction, error) {
	txs, err := s.visible(ctx, auth.Principal{UserID: p.UserID})
	if err != nil {
		return nil, err
	}
	var out []model.Transaction
	for _, tx := range txs {
		if tx.ToUserID == p.UserID && tx.Type == model.TypeGift && tx.AcceptedStatus == model.StatusPending &&
			!ledger.IsTerminal(tx) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// All returns every record regardless of principal, for reports.
func (s *TransactionService) All(ctx context.Context) ([]model.Transaction, error) {
	return s.visible(ctx, auth.Principal{Role: role.Manager})
}

// Create records a new transfer from p to req.ToUserID.
func (s *TransactionService) Create(ctx context.Context, p auth.Principal, req model.CreateTransactionRequest) (model.Transaction, error) {
	if req.ToUserID == p.UserID {
		return model.Transaction{}, fmt.Errorf("sender and recipient must differ: %w", model.ErrValidation)
	}
	if _, err := s.store.GetUser(ctx, req.ToUserID); err != nil {
		return model.Transaction{}, err
	}
	gift, err := s.store.GetGift(ctx, req.GiftID)
	if err != nil {
		return model.Transaction{}, err
	}
	if gift.IsHidden && !p.Role.IsManager() {
		return model.Transaction{}, fmt.Errorf("%s: %w", req.GiftID, repository.ErrGiftNotFound)
	}
	if req.Type == model.TypeExchange && !gift.IsTradeable {
		return model.Transaction{}, fmt.Errorf("gift %s cannot be exchanged: %w", gift.ID, model.ErrValidation)
	}

	tx := model.NewTransaction(s.newID(), gift.ID, p.UserID, req.ToUserID, req.Type, s.now().UTC())
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return model.Transaction{}, err
	}

	s.logger.Info("transaction created", "transaction_id", tx.ID, "type", tx.Type, "from", tx.FromUserID, "to", tx.ToUserID)
	return tx, nil
}

// Accept marks a gift as accepted by its recipient.
func (s *TransactionService) Accept(ctx context.Context, p auth.Principal, id string) (model.Transaction, error) {
	now := s.now().UTC()
	updated, err := s.store.CommitBatch(ctx, []string{id}, func(current map[string]model.Transaction) ([]model.Transaction, error) {
		tx := current[id]
		if tx.ToUserID != p.UserID && !p.Role.IsManager() {
			return nil, fmt.Errorf("only the recipient may accept %s: %w", id, model.ErrForbidden)
		}
		if err := acceptable(tx); err != nil {
			return nil, err
		}
		tx.AcceptedStatus = model.StatusCompleted
		tx.UpdatedAt = now
		return []model.Transaction{tx}, nil
	})
	if err != nil {
		return model.Transaction{}, err
	}
	return updated[0], nil
}

// Decline removes an unaccepted gift. It returns the removed record.
func (s *TransactionService) Decline(ctx context.Context, p auth.Principal, id string) (model.Transaction, error) {
	var removed model.Transaction
	err := s.store.DeleteTransaction(ctx, id, func(tx model.Transaction) error {
		if tx.ToUserID != p.UserID && !p.Role.IsManager() {
			return fmt.Errorf("only the recipient may decline %s: %w", id, model.ErrForbidden)
		}
		if err := acceptable(tx); err != nil {
			return err
		}
		removed = tx
		return nil
	})
	if err != nil {
		return model.Transaction{}, err
	}

	s.logger.Info("gift declined", "transaction_id", id, "user_id", p.UserID)
	return removed, nil
}

func acceptable(tx model.Transaction) error {
	switch {
	case tx.Type != model.TypeGift:
		return fmt.Errorf("transaction %s is a %s, not a gift: %w", tx.ID, tx.Type, model.ErrValidation)
	case tx.AcceptedStatus == model.StatusCompleted:
		return fmt.Errorf("transaction %s is already accepted: %w", tx.ID, model.ErrConflict)
	case ledger.IsTerminal(tx):
		return fmt.Errorf("transaction %s is closed: %w", tx.ID, model.ErrConflict)
	}
	return nil
}

// UpdateDocument applies a single-document update to a ledger record. Status
// fields are translated to a state-machine operation and acceptedStatus to
// Accept. Any other field is rejected.
func (s *TransactionService) UpdateDocument(ctx context.Context, p auth.Principal, id string, data map[string]any) ([]model.Transaction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("update for %s has no fields: %w", id, model.ErrValidation)
	}

	d := model.StatusDescriptor{ID: id}
	accept := false
	for field, raw := range data {
		value, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("field %q must be a string: %w", field, model.ErrValidation)
		}
		switch field {
		case ledger.StatusTypePayment:
			d.PaymentStatus = model.Status(value)
		case ledger.StatusTypeDelivery:
			d.DeliveryStatus = model.Status(value)
		case "acceptedStatus":
			if model.Status(value) != model.StatusCompleted {
				return nil, fmt.Errorf("acceptedStatus can only be set to %s: %w", model.StatusCompleted, model.ErrValidation)
			}
			accept = true
		default:
			return nil, fmt.Errorf("field %q cannot be updated: %w", field, model.ErrValidation)
		}
	}

	if accept {
		if d.PaymentStatus != "" || d.DeliveryStatus != "" {
			return nil, fmt.Errorf("acceptance cannot be combined with a status change: %w", model.ErrValidation)
		}
		tx, err := s.Accept(ctx, p, id)
		if err != nil {
			return nil, err
		}
		return []model.Transaction{tx}, nil
	}

	switch {
	case d.PaymentStatus == model.StatusCanceled || d.DeliveryStatus == model.StatusCanceled:
		d.StatusType, d.NewStatus = ledger.StatusTypePayment, model.StatusCanceled
	case d.PaymentStatus != "" && d.DeliveryStatus != "":
		return nil, fmt.Errorf("only one status dimension may change at a time: %w", model.ErrValidation)
	case d.PaymentStatus != "":
		d.StatusType, d.NewStatus = ledger.StatusTypePayment, d.PaymentStatus
	default:
		d.StatusType, d.NewStatus = ledger.StatusTypeDelivery, d.DeliveryStatus
	}
	return s.batches.CommitDescriptors(ctx, p, "", []model.StatusDescriptor{d})
}
