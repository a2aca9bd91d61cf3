package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/lib/pq"

	"github.com/svirmi/gift-ledger/internal/model"
)

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, gift_id, from_user_id, to_user_id, participants, type,
	accepted_status, payment_status, delivery_status, date, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (model.Transaction, error) {
	var tx model.Transaction
	var participants pq.StringArray
	err := row.Scan(
		&tx.ID, &tx.GiftID, &tx.FromUserID, &tx.ToUserID, &participants, &tx.Type,
		&tx.AcceptedStatus, &tx.PaymentStatus, &tx.DeliveryStatus, &tx.Date, &tx.UpdatedAt,
	)
	tx.Participants = []string(participants)
	return tx, err
}

func (r *TransactionRepository) CreateTransaction(ctx context.Context, tx model.Transaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		tx.ID, tx.GiftID, tx.FromUserID, tx.ToUserID, pq.Array(tx.Participants), tx.Type,
		tx.AcceptedStatus, tx.PaymentStatus, tx.DeliveryStatus, tx.Date, tx.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("failed to insert transaction", err)
	}
	return nil
}

func (r *TransactionRepository) GetTransaction(ctx context.Context, id string) (model.Transaction, error) {
	tx, err := scanTransaction(r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, fmt.Errorf("%s: %w", id, ErrTransactionNotFound)
	}
	if err != nil {
		return model.Transaction{}, storeError("failed to load transaction", err)
	}
	return tx, nil
}

func (r *TransactionRepository) ListTransactions(ctx context.Context, f model.TransactionFilter) ([]model.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.Participant != "" {
		args = append(args, f.Participant)
		where = append(where, fmt.Sprintf("$%d = ANY(participants)", len(args)))
	}
	if f.ToUserID != "" {
		args = append(args, f.ToUserID)
		where = append(where, fmt.Sprintf("to_user_id = $%d", len(args)))
	}
	if f.Accepted != nil {
		status := model.StatusPending
		if *f.Accepted {
			status = model.StatusCompleted
		}
		args = append(args, status)
		where = append(where, fmt.Sprintf("accepted_status = $%d", len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date DESC, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("failed to list transactions", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, storeError("failed to scan transaction", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("failed to list transactions", err)
	}
	return out, nil
}

// CommitBatch opens a DB transaction, locks every referenced row, resolves the
// new state and writes it. Any failure rolls the whole batch back.
func (r *TransactionRepository) CommitBatch(ctx context.Context, ids []string, resolve ResolveFunc) ([]model.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, storeError("failed to lock transactions", err)
	}
	current := make(map[string]model.Transaction, len(ids))
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			rows.Close()
			return nil, storeError("failed to scan transaction", err)
		}
		current[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, storeError("failed to lock transactions", err)
	}
	rows.Close()

	if missing := missingIDs(ids, current); len(missing) > 0 {
		return nil, fmt.Errorf("%s: %w", strings.Join(missing, ", "), ErrTransactionNotFound)
	}

	updated, err := resolve(current)
	if err != nil {
		return nil, err
	}

	for _, u := range updated {
		_, err = tx.ExecContext(ctx,
			`UPDATE transactions
			 SET accepted_status = $1, payment_status = $2, delivery_status = $3, updated_at = $4
			 WHERE id = $5`,
			u.AcceptedStatus, u.PaymentStatus, u.DeliveryStatus, u.UpdatedAt, u.ID,
		)
		if err != nil {
			return nil, storeError("failed to update transaction "+u.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, storeError("failed to commit transaction", err)
	}
	return updated, nil
}

func (r *TransactionRepository) DeleteTransaction(ctx context.Context, id string, guard func(model.Transaction) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	current, err := scanTransaction(tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", id, ErrTransactionNotFound)
	}
	if err != nil {
		return storeError("failed to lock transaction", err)
	}

	if err := guard(current); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id); err != nil {
		return storeError("failed to delete transaction", err)
	}
	if err = tx.Commit(); err != nil {
		return storeError("failed to commit transaction", err)
	}
	return nil
}

func missingIDs(ids []string, found map[string]model.Transaction) []string {
	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok && !slices.Contains(missing, id) {
			missing = append(missing, id)
		}
	}
	return missing
}
