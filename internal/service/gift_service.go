package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/svirmi/gift-ledger/internal/auth"
	"github.com/svirmi/gift-ledger/internal/cache"
	"github.com/svirmi/gift-ledger/internal/model"
	"github.com/svirmi/gift-ledger/internal/repository"
)

// GiftService serves the catalog. The catalog changes rarely and is not
// invalidated explicitly, so it is cached with a TTL.
type GiftService struct {
	store  repository.GiftStore
	cache  *cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewGiftService(store repository.GiftStore, c *cache.Cache, ttl time.Duration, logger *slog.Logger) *GiftService {
	return &GiftService{store: store, cache: c, ttl: ttl, logger: logger}
}

// Catalog returns every gift including hidden ones.
func (s *GiftService) Catalog(ctx context.Context) ([]model.Gift, error) {
	return cache.Fetch(ctx, s.cache, KeyGiftsAll, s.ttl, s.store.ListGifts)
}

// List returns the gifts p may see. Hidden gifts are manager-only.
func (s *GiftService) List(ctx context.Context, p auth.Principal) ([]model.Gift, error) {
	all, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	if p.Role.IsManager() {
		return all, nil
	}
	out := make([]model.Gift, 0, len(all))
	for _, g := range all {
		if !g.IsHidden {
			out = append(out, g)
		}
	}
	return out, nil
}

// Update applies a partial document update. Recognised fields are name,
// price, isHidden and isTradeable.
func (s *GiftService) Update(ctx context.Context, id string, data map[string]any) (model.Gift, error) {
	if len(data) == 0 {
		return model.Gift{}, fmt.Errorf("update for %s has no fields: %w", id, model.ErrValidation)
	}
	g, err := s.store.UpdateGift(ctx, id, func(g *model.Gift) error {
		for field, raw := range data {
			var err error
			switch field {
			case "name":
				g.Name, err = stringField(field, raw)
			case "price":
				g.Price, err = priceField(raw)
			case "isHidden":
				g.IsHidden, err = boolField(field, raw)
			case "isTradeable":
				g.IsTradeable, err = boolField(field, raw)
			default:
				err = fmt.Errorf("field %q cannot be updated: %w", field, model.ErrValidation)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Gift{}, err
	}
	s.logger.Info("gift updated", "gift_id", id)
	return g, nil
}

func (s *GiftService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteGift(ctx, id); err != nil {
		return err
	}
	s.logger.Info("gift deleted", "gift_id", id)
	return nil
}

func priceField(raw any) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch v := raw.(type) {
	case float64:
		d = decimal.NewFromFloat(v)
	case string:
		d, err = decimal.NewFromString(v)
	default:
		err = fmt.Errorf("unsupported type %T", raw)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("field \"price\": %w: %w", model.ErrValidation, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("price must not be negative: %w", model.ErrValidation)
	}
	return d, nil
}
