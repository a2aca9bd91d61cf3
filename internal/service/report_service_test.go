package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svirmi/gift-ledger/internal/model"
	"github.com/svirmi/gift-ledger/internal/role"
)

func TestObligations(t *testing.T) {
	f := newFixture(t)

	got, err := f.reports.Obligations(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "alice", got[0].UserID)
	assert.Equal(t, 2, got[0].PaymentsDue)
	assert.True(t, decimal.NewFromInt(20).Equal(got[0].AmountDue), got[0].AmountDue.String())

	assert.Equal(t, "bob", got[1].UserID)
	assert.Zero(t, got[1].PaymentsDue)
	assert.Equal(t, 1, got[1].DeliveriesAwaiting)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)

	d, err := f.reports.Dashboard(context.Background(), bob)
	require.NoError(t, err)
	assert.Equal(t, "Bob", d.User.Name)
	assert.Equal(t, []string{"t5", "t3", "t2", "t1"}, ids(d.Recent))
	assert.Equal(t, []string{"t2"}, ids(d.PendingGifts))
	assert.Equal(t, 1, d.CatalogLength, "hidden gifts are not counted")

	_, err = f.reports.Dashboard(context.Background(), manager)
	require.NoError(t, err)

	_, err = f.reports.Dashboard(context.Background(), alice)
	require.NoError(t, err)

	ghost := bob
	ghost.UserID = "ghost"
	_, err = f.reports.Dashboard(context.Background(), ghost)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUserService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.users.Create(ctx, model.CreateUserRequest{Name: "Dave", Type: model.UserPink, RoleLevel: 1})
	require.NoError(t, err)
	assert.Equal(t, "new-user", u.ID)
	assert.Equal(t, role.Manager, u.RoleLevel)

	before, err := f.users.Get(ctx, "bob")
	require.NoError(t, err)

	updated, err := f.users.Update(ctx, "bob", map[string]any{"name": "Robert", "roleLevel": float64(2)})
	require.NoError(t, err)
	assert.Equal(t, role.Admin, updated.RoleLevel)

	cached, err := f.users.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, before, cached)

	require.NoError(t, f.cache.MarkStale(ctx, UserKeys("bob")...))
	fresh, err := f.users.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "Robert", fresh.Name)

	for name, data := range map[string]map[string]any{
		"unknown field": {"email": "x"},
		"bad level":     {"roleLevel": float64(7)},
		"bad type":      {"type": "Green"},
		"fractional":    {"roleLevel": 1.5},
	} {
		_, err := f.users.Update(ctx, "bob", data)
		assert.ErrorIs(t, err, model.ErrValidation, name)
	}

	assert.ErrorIs(t, f.users.Delete(ctx, "bob"), model.ErrConflict)
	require.NoError(t, f.users.Delete(ctx, "mgr"))
}

func TestGiftService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	visible, err := f.gifts.List(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, visible, 1)

	all, err := f.gifts.List(ctx, manager)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	g, err := f.gifts.Update(ctx, "g2", map[string]any{"price": "30.25", "isHidden": false})
	require.NoError(t, err)
	assert.Equal(t, "30.25", g.Price.String())
	assert.False(t, g.IsHidden)

	for name, data := range map[string]map[string]any{
		"negative price": {"price": float64(-1)},
		"bad price":      {"price": "ten"},
		"bad flag":       {"isTradeable": "yes"},
		"unknown":        {"rarity": "Rare"},
	} {
		_, err := f.gifts.Update(ctx, "g2", data)
		assert.ErrorIs(t, err, model.ErrValidation, name)
	}

	assert.ErrorIs(t, f.gifts.Delete(ctx, "g1"), model.ErrConflict)
	require.NoError(t, f.gifts.Delete(ctx, "g2"))
}
