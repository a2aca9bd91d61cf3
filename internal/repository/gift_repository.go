package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/svirmi/gift-ledger/internal/model"
)

type GiftRepository struct {
	db *sql.DB
}

func NewGiftRepository(db *sql.DB) *GiftRepository {
	return &GiftRepository{db: db}
}

const giftColumns = `id, name, price, is_hidden, is_tradeable`

func scanGift(row rowScanner) (model.Gift, error) {
	var g model.Gift
	err := row.Scan(&g.ID, &g.Name, &g.Price, &g.IsHidden, &g.IsTradeable)
	return g, err
}

func (r *GiftRepository) CreateGift(ctx context.Context, g model.Gift) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO gifts (`+giftColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		g.ID, g.Name, g.Price, g.IsHidden, g.IsTradeable,
	)
	if err != nil {
		return mapWriteError("failed to insert gift", err)
	}
	return nil
}

func (r *GiftRepository) GetGift(ctx context.Context, id string) (model.Gift, error) {
	g, err := scanGift(r.db.QueryRowContext(ctx, `SELECT `+giftColumns+` FROM gifts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Gift{}, fmt.Errorf("%s: %w", id, ErrGiftNotFound)
	}
	if err != nil {
		return model.Gift{}, storeError("failed to load gift", err)
	}
	return g, nil
}

func (r *GiftRepository) ListGifts(ctx context.Context) ([]model.Gift, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+giftColumns+` FROM gifts ORDER BY name, id`)
	if err != nil {
		return nil, storeError("failed to list gifts", err)
	}
	defer rows.Close()

	var out []model.Gift
	for rows.Next() {
		g, err := scanGift(rows)
		if err != nil {
			return nil, storeError("failed to scan gift", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("failed to list gifts", err)
	}
	return out, nil
}

func (r *GiftRepository) UpdateGift(ctx context.Context, id string, mutate func(*model.Gift) error) (model.Gift, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Gift{}, storeError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	g, err := scanGift(tx.QueryRowContext(ctx, `SELECT `+giftColumns+` FROM gifts WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Gift{}, fmt.Errorf("%s: %w", id, ErrGiftNotFound)
	}
	if err != nil {
		return model.Gift{}, storeError("failed to lock gift", err)
	}

	if err := mutate(&g); err != nil {
		return model.Gift{}, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE gifts SET name = $1, price = $2, is_hidden = $3, is_tradeable = $4 WHERE id = $5`,
		g.Name, g.Price, g.IsHidden, g.IsTradeable, id,
	)
	if err != nil {
		return model.Gift{}, mapWriteError("failed to update gift", err)
	}
	if err = tx.Commit(); err != nil {
		return model.Gift{}, storeError("failed to commit transaction", err)
	}
	return g, nil
}

func (r *GiftRepository) DeleteGift(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM gifts WHERE id = $1`, id)
	if err != nil {
		return mapDeleteError("failed to delete gift", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrGiftNotFound)
	}
	return nil
}
