package service

import (
	"slices"

	"github.com/svirmi/gift-ledger/internal/model"
)

// Cache keys for the read-mostly views. Perpetual keys are invalidated by
// marking them stale after a successful write.
const (
	KeyUsersAll        = "users:all"
	KeyGiftsAll        = "gifts:all"
	KeyTransactionsAll = "transactions:all"
)

func UserKey(id string) string { return "user:" + id }

func UserTransactionsKey(id string) string { return "transactions:user:" + id }

// TransactionKeys returns every cached view that can contain txs.
func TransactionKeys(txs ...model.Transaction) []string {
	keys := []string{KeyTransactionsAll}
	for _, tx := range txs {
		for _, p := range tx.Participants {
			if k := UserTransactionsKey(p); !slices.Contains(keys, k) {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// UserKeys returns the cached views holding user id.
func UserKeys(id string) []string {
	return []string{KeyUsersAll, UserKey(id)}
}
