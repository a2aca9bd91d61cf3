package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/svirmi/gift-ledger/internal/auth"
	"github.com/svirmi/gift-ledger/internal/ledger"
	"github.com/svirmi/gift-ledger/internal/model"
	"github.com/svirmi/gift-ledger/internal/repository"
)

// BatchItem requests one operation on one transaction.
type BatchItem struct {
	ID string
	Op ledger.Operation
}

// BatchCommitter applies status operations to many transactions as a single
// unit. Every item is authorized and resolved against the locked current
// state before anything is written; one bad item rejects the whole batch.
//
// It does not touch the cache. Callers mark TransactionKeys stale after a
// successful commit.
type BatchCommitter struct {
	store  repository.TransactionStore
	logger *slog.Logger
	now    func() time.Time
}

func NewBatchCommitter(store repository.TransactionStore, logger *slog.Logger) *BatchCommitter {
	return &BatchCommitter{store: store, logger: logger, now: time.Now}
}

// CommitDescriptors decodes wire descriptors and commits them.
func (b *BatchCommitter) CommitDescriptors(ctx context.Context, p auth.Principal, authorizingUserID string, descs []model.StatusDescriptor) ([]model.Transaction, error) {
	items := make([]BatchItem, 0, len(descs))
	for _, d := range descs {
		op, err := ledger.OperationFor(d)
		if err != nil {
			return nil, err
		}
		items = append(items, BatchItem{ID: d.ID, Op: op})
	}
	return b.Commit(ctx, p, authorizingUserID, items)
}

// Commit applies items in order. A record may be named at most once.
//
// Each item is authorized before its transition is checked, so a caller with
// no rights on a record gets ErrForbidden even when the record is terminal,
// and learns nothing about its state. ErrConflict is only reported to callers
// permitted to request the operation.
func (b *BatchCommitter) Commit(ctx context.Context, p auth.Principal, authorizingUserID string, items []BatchItem) ([]model.Transaction, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("batch is empty: %w", model.ErrValidation)
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.ID == "" {
			return nil, fmt.Errorf("batch item is missing id: %w", model.ErrValidation)
		}
		if _, dup := seen[it.ID]; dup {
			return nil, fmt.Errorf("transaction %s appears more than once: %w", it.ID, model.ErrValidation)
		}
		seen[it.ID] = struct{}{}
		ids = append(ids, it.ID)
	}

	now := b.now().UTC()
	resolve := func(current map[string]model.Transaction) ([]model.Transaction, error) {
		out := make([]model.Transaction, 0, len(items))
		for _, it := range items {
			tx := current[it.ID]
			if !ledger.Authorized(p.UserID, p.Role, authorizingUserID, tx, it.Op) {
				return nil, fmt.Errorf("transaction %s: %s not permitted for %s: %w", tx.ID, it.Op, p.UserID, model.ErrForbidden)
			}
			next, err := ledger.Apply(tx, it.Op)
			if err != nil {
				return nil, err
			}
			next.UpdatedAt = now
			out = append(out, next)
		}
		return out, nil
	}

	updated, err := b.store.CommitBatch(ctx, ids, resolve)
	if err != nil {
		b.logger.Warn("batch commit rejected", "user_id", p.UserID, "size", len(items), "error", err)
		return nil, err
	}

	b.logger.Info("batch committed", "user_id", p.UserID, "authorizing_user_id", authorizingUserID, "size", len(updated))
	return updated, nil
}
