package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/svirmi/gift-ledger/internal/model"
)

// Memory is an in-process Store. Every write runs inside one critical
// section, which gives CommitBatch the same all-or-nothing behaviour as the
// Postgres store. It backs tests and STORE_DRIVER=memory.
type Memory struct {
	mu           sync.Mutex
	transactions map[string]model.Transaction
	users        map[string]model.User
	gifts        map[string]model.Gift

	commits   int
	commitErr error
}

func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[string]model.Transaction),
		users:        make(map[string]model.User),
		gifts:        make(map[string]model.Gift),
	}
}

// FailNextCommit makes the next CommitBatch fail at write time with err,
// after resolution succeeded.
func (m *Memory) FailNextCommit(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitErr = err
}

// Commits returns the number of CommitBatch calls that reached the store.
func (m *Memory) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) CreateTransaction(_ context.Context, tx model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[tx.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := m.users[tx.FromUserID]; !ok {
		return ErrReferenceNotFound
	}
	if _, ok := m.users[tx.ToUserID]; !ok {
		return ErrReferenceNotFound
	}
	if _, ok := m.gifts[tx.GiftID]; !ok {
		return ErrReferenceNotFound
	}
	m.transactions[tx.ID] = tx.Clone()
	return nil
}

func (m *Memory) GetTransaction(_ context.Context, id string) (model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[id]
	if !ok {
		return model.Transaction{}, fmt.Errorf("%s: %w", id, ErrTransactionNotFound)
	}
	return tx.Clone(), nil
}

func (m *Memory) ListTransactions(_ context.Context, f model.TransactionFilter) ([]model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Transaction
	for _, tx := range m.transactions {
		if f.Participant != "" && !tx.HasParticipant(f.Participant) {
			continue
		}
		if f.ToUserID != "" && tx.ToUserID != f.ToUserID {
			continue
		}
		if f.Accepted != nil && (tx.AcceptedStatus == model.StatusCompleted) != *f.Accepted {
			continue
		}
		out = append(out, tx.Clone())
	}
	slices.SortFunc(out, func(a, b model.Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) CommitBatch(_ context.Context, ids []string, resolve ResolveFunc) ([]model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits++

	current := make(map[string]model.Transaction, len(ids))
	for _, id := range ids {
		if tx, ok := m.transactions[id]; ok {
			current[id] = tx.Clone()
		}
	}
	if missing := missingIDs(ids, current); len(missing) > 0 {
		return nil, fmt.Errorf("%s: %w", strings.Join(missing, ", "), ErrTransactionNotFound)
	}

	updated, err := resolve(current)
	if err != nil {
		return nil, err
	}

	if m.commitErr != nil {
		err := m.commitErr
		m.commitErr = nil
		return nil, storeError("failed to commit transaction", err)
	}

	for _, u := range updated {
		m.transactions[u.ID] = u.Clone()
	}
	return updated, nil
}

func (m *Memory) DeleteTransaction(_ context.Context, id string, guard func(model.Transaction) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrTransactionNotFound)
	}
	if err := guard(tx.Clone()); err != nil {
		return err
	}
	delete(m.transactions, id)
	return nil
}

func (m *Memory) CreateUser(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		return ErrDuplicate
	}
	m.users[u.ID] = u
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("%s: %w", id, ErrUserNotFound)
	}
	return u, nil
}

func (m *Memory) ListUsers(context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b model.User) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (m *Memory) UpdateUser(_ context.Context, id string, mutate func(*model.User) error) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("%s: %w", id, ErrUserNotFound)
	}
	if err := mutate(&u); err != nil {
		return model.User{}, err
	}
	m.users[id] = u
	return u, nil
}

func (m *Memory) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrUserNotFound)
	}
	for _, tx := range m.transactions {
		if tx.HasParticipant(id) {
			return ErrInUse
		}
	}
	delete(m.users, id)
	return nil
}

func (m *Memory) CreateGift(_ context.Context, g model.Gift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.gifts[g.ID]; ok {
		return ErrDuplicate
	}
	m.gifts[g.ID] = g
	return nil
}

func (m *Memory) GetGift(_ context.Context, id string) (model.Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gifts[id]
	if !ok {
		return model.Gift{}, fmt.Errorf("%s: %w", id, ErrGiftNotFound)
	}
	return g, nil
}

func (m *Memory) ListGifts(context.Context) ([]model.Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Gift, 0, len(m.gifts))
	for _, g := range m.gifts {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b model.Gift) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (m *Memory) UpdateGift(_ context.Context, id string, mutate func(*model.Gift) error) (model.Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gifts[id]
	if !ok {
		return model.Gift{}, fmt.Errorf("%s: %w", id, ErrGiftNotFound)
	}
	if err := mutate(&g); err != nil {
		return model.Gift{}, err
	}
	m.gifts[id] = g
	return g, nil
}

func (m *Memory) DeleteGift(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.gifts[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrGiftNotFound)
	}
	for _, tx := range m.transactions {
		if tx.GiftID == id {
			return ErrInUse
		}
	}
	delete(m.gifts, id)
	return nil
}
