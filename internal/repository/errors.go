package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/svirmi/gift-ledger/internal/model"
)

var (
	ErrUserNotFound        = fmt.Errorf("user %w", model.ErrNotFound)
	ErrGiftNotFound        = fmt.Errorf("gift %w", model.ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", model.ErrNotFound)
	ErrDuplicate           = fmt.Errorf("record already exists: %w", model.ErrConflict)
	ErrReferenceNotFound   = fmt.Errorf("referenced user or gift %w", model.ErrNotFound)
	ErrInUse               = fmt.Errorf("record is referenced by transactions: %w", model.ErrConflict)
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// mapWriteError classifies a failed insert/update. Constraint violations are
// caller errors; everything else is a store failure.
func mapWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return ErrDuplicate
		case pqForeignKeyViolation:
			return ErrReferenceNotFound
		}
	}
	return storeError(op, err)
}

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, model.ErrStore, err)
}

func mapDeleteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
		return ErrInUse
	}
	return storeError(op, err)
}
