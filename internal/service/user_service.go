package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/svirmi/gift-ledger/internal/cache"
	"github.com/svirmi/gift-ledger/internal/model"
	"github.com/svirmi/gift-ledger/internal/repository"
	"github.com/svirmi/gift-ledger/internal/role"
)

// UserService serves the user directory through the perpetual cache.
type UserService struct {
	store  repository.UserStore
	cache  *cache.Cache
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewUserService(store repository.UserStore, c *cache.Cache, logger *slog.Logger) *UserService {
	return &UserService{store: store, cache: c, logger: logger, now: time.Now, newID: uuid.NewString}
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return cache.Fetch(ctx, s.cache, KeyUsersAll, 0, s.store.ListUsers)
}

func (s *UserService) Get(ctx context.Context, id string) (model.User, error) {
	return cache.Fetch(ctx, s.cache, UserKey(id), 0, func(ctx context.Context) (model.User, error) {
		return s.store.GetUser(ctx, id)
	})
}

func (s *UserService) Create(ctx context.Context, req model.CreateUserRequest) (model.User, error) {
	level, err := role.Parse(req.RoleLevel)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %w", model.ErrValidation, err)
	}
	now := s.now().UTC()
	u := model.User{
		ID:        s.newID(),
		Name:      req.Name,
		Type:      req.Type,
		RoleLevel: level,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return model.User{}, err
	}
	s.logger.Info("user created", "user_id", u.ID, "role_level", u.RoleLevel)
	return u, nil
}

// Update applies a partial document update. Recognised fields are name, type
// and roleLevel.
func (s *UserService) Update(ctx context.Context, id string, data map[string]any) (model.User, error) {
	if len(data) == 0 {
		return model.User{}, fmt.Errorf("update for %s has no fields: %w", id, model.ErrValidation)
	}
	now := s.now().UTC()
	return s.store.UpdateUser(ctx, id, func(u *model.User) error {
		for field, raw := range data {
			switch field {
			case "name":
				name, err := stringField(field, raw)
				if err != nil {
					return err
				}
				u.Name = name
			case "type":
				t, err := stringField(field, raw)
				if err != nil {
					return err
				}
				switch ut := model.UserType(t); ut {
				case model.UserBlue, model.UserPink, model.UserBlack:
					u.Type = ut
				default:
					return fmt.Errorf("unknown user type %q: %w", t, model.ErrValidation)
				}
			case "roleLevel":
				n, err := intField(field, raw)
				if err != nil {
					return err
				}
				level, err := role.Parse(n)
				if err != nil {
					return fmt.Errorf("%w: %w", model.ErrValidation, err)
				}
				u.RoleLevel = level
			default:
				return fmt.Errorf("field %q cannot be updated: %w", field, model.ErrValidation)
			}
		}
		u.UpdatedAt = now
		return nil
	})
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", "user_id", id)
	return nil
}

func stringField(field string, raw any) (string, error) {
	v, ok := raw.(string)
	if !ok || v == "" {
		return "", fmt.Errorf("field %q must be a non-empty string: %w", field, model.ErrValidation)
	}
	return v, nil
}

func boolField(field string, raw any) (bool, error) {
	v, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("field %q must be a boolean: %w", field, model.ErrValidation)
	}
	return v, nil
}

// intField accepts JSON numbers, which decode as float64.
func intField(field string, raw any) (int, error) {
	switch v := raw.(type) {
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	case int:
		return v, nil
	}
	return 0, fmt.Errorf("field %q must be an integer: %w", field, model.ErrValidation)
}
