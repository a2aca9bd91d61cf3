package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/svirmi/gift-ledger/internal/model"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, name, type, role_level, created_at, updated_at`

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Type, &u.RoleLevel, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *UserRepository) CreateUser(ctx context.Context, u model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Name, u.Type, int(u.RoleLevel), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("failed to insert user", err)
	}
	return nil
}

func (r *UserRepository) GetUser(ctx context.Context, id string) (model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("%s: %w", id, ErrUserNotFound)
	}
	if err != nil {
		return model.User{}, storeError("failed to load user", err)
	}
	return u, nil
}

func (r *UserRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY name, id`)
	if err != nil {
		return nil, storeError("failed to list users", err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, storeError("failed to scan user", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("failed to list users", err)
	}
	return out, nil
}

// UpdateUser locks the user row, applies mutate and writes the result.
func (r *UserRepository) UpdateUser(ctx context.Context, id string, mutate func(*model.User) error) (model.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.User{}, storeError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	u, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("%s: %w", id, ErrUserNotFound)
	}
	if err != nil {
		return model.User{}, storeError("failed to lock user", err)
	}

	if err := mutate(&u); err != nil {
		return model.User{}, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET name = $1, type = $2, role_level = $3, updated_at = $4 WHERE id = $5`,
		u.Name, u.Type, int(u.RoleLevel), u.UpdatedAt, id,
	)
	if err != nil {
		return model.User{}, mapWriteError("failed to update user", err)
	}
	if err = tx.Commit(); err != nil {
		return model.User{}, storeError("failed to commit transaction", err)
	}
	return u, nil
}

func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapDeleteError("failed to delete user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrUserNotFound)
	}
	return nil
}
