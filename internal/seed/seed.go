// Package seed loads the demo community: a handful of users across every
// role level, a small catalog and a few open transactions.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/svirmi/gift-ledger/internal/model"
	"github.com/svirmi/gift-ledger/internal/repository"
	"github.com/svirmi/gift-ledger/internal/role"
)

var epoch = time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)

func Users() []model.User {
	return []model.User{
		{ID: "admin", Name: "Admin User", Type: model.UserBlue, RoleLevel: role.Admin},
		{ID: "user-1", Name: "Alex", Type: model.UserBlue, RoleLevel: role.Admin},
		{ID: "user-2", Name: "Barbara", Type: model.UserPink, RoleLevel: role.Standard},
		{ID: "user-3", Name: "Charlie", Type: model.UserBlue, RoleLevel: role.Standard},
		{ID: "user-4", Name: "Diana", Type: model.UserPink, RoleLevel: role.Standard},
		{ID: "user-5", Name: "Benjamin", Type: model.UserBlack, RoleLevel: role.Manager},
	}
}

func Gifts() []model.Gift {
	gift := func(id, name string, price int64, hidden, tradeable bool) model.Gift {
		return model.Gift{ID: id, Name: name, Price: decimal.NewFromInt(price), IsHidden: hidden, IsTradeable: tradeable}
	}
	return []model.Gift{
		gift("cosmic-keychain", "Cosmic Keychain", 10, false, true),
		gift("sticker-pack", "Sticker Pack", 5, false, true),
		gift("nebula-pin", "Nebula Enamel Pin", 15, false, true),
		gift("starlight-print", "\"Starlight\" Art Print", 15, false, true),
		gift("orions-belt", "Orion's Belt Coin", 15, false, true),
		gift("constellation-mug", "Constellation Mug", 15, false, true),
		gift("captains-log", "Captain's Log Journal", 15, false, true),
		gift("zerog-earbuds", "Zero-G Earbuds", 25, false, true),
		gift("signed-celestial-poster", "Signed \"Celestial\" Poster", 50, true, false),
		gift("astro-mechanical-watch", "Astro-Mechanical Watch", 50, true, false),
	}
}

func Transactions() []model.Transaction {
	tx := func(id, giftID, from, to string, typ model.TransactionType, day int) model.Transaction {
		return model.NewTransaction(id, giftID, from, to, typ, epoch.AddDate(0, 0, day))
	}
	accepted := func(t model.Transaction) model.Transaction {
		t.AcceptedStatus = model.StatusCompleted
		return t
	}
	return []model.Transaction{
		accepted(tx("txn-1", "cosmic-keychain", "user-1", "user-2", model.TypeGift, 0)),
		tx("txn-2", "nebula-pin", "user-3", "user-4", model.TypeSend, 1),
		accepted(tx("txn-3", "orions-belt", "user-3", "user-2", model.TypeGift, 2)),
		accepted(tx("txn-4", "captains-log", "user-1", "user-4", model.TypeGift, 3)),
		tx("txn-5", "sticker-pack", "user-1", "user-2", model.TypeGift, 4),
		tx("txn-6", "starlight-print", "user-3", "user-4", model.TypeExchange, 5),
	}
}

// Load writes the demo data into store. Records that already exist are
// skipped, so Load can run against a seeded store.
func Load(ctx context.Context, store repository.Store, logger *slog.Logger) error {
	var created, skipped int
	record := func(kind, id string, err error) error {
		switch {
		case err == nil:
			created++
		case errors.Is(err, repository.ErrDuplicate):
			skipped++
		default:
			return fmt.Errorf("seed %s %s: %w", kind, id, err)
		}
		return nil
	}

	for _, u := range Users() {
		u.CreatedAt, u.UpdatedAt = epoch, epoch
		if err := record("user", u.ID, store.CreateUser(ctx, u)); err != nil {
			return err
		}
	}
	for _, g := range Gifts() {
		if err := record("gift", g.ID, store.CreateGift(ctx, g)); err != nil {
			return err
		}
	}
	for _, tx := range Transactions() {
		if err := record("transaction", tx.ID, store.CreateTransaction(ctx, tx)); err != nil {
			return err
		}
	}

	logger.Info("seed data loaded", "created", created, "skipped", skipped)
	return nil
}
