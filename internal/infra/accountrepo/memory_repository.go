package accountrepo

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/yanqian/user-accounts/internal/domain/account"
	"github.com/yanqian/user-accounts/pkg/util"
)

// MemoryRepository provides an in-memory account store for tests/dev.
type MemoryRepository struct {
	mu         sync.RWMutex
	accounts   map[int64]account.Account
	avatars    map[int64][]byte
	emailIndex map[string]int64
	seq        int64
}

// NewMemoryRepository constructs a new in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts:   make(map[int64]account.Account),
		avatars:    make(map[int64][]byte),
		emailIndex: make(map[string]int64),
	}
}

// Create stores the account record.
func (r *MemoryRepository) Create(_ context.Context, acc account.NewAccount) (account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.emailIndex[acc.Email]; exists {
		return account.Account{}, account.ErrEmailExists
	}
	r.seq++
	now := util.NowUTC()
	stored := account.Account{
		ID:           r.seq,
		Name:         acc.Name,
		Email:        acc.Email,
		PasswordHash: acc.PasswordHash,
		Age:          cloneAge(acc.Age),
		Tokens:       account.TokenList{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.accounts[stored.ID] = stored
	r.emailIndex[stored.Email] = stored.ID
	return clone(stored), nil
}

// GetByID fetches by ID.
func (r *MemoryRepository) GetByID(_ context.Context, id int64) (account.Account, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.accounts[id]
	if !ok {
		return account.Account{}, false, nil
	}
	return clone(acc), true, nil
}

// GetByEmail returns an account by email.
func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (account.Account, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.emailIndex[email]; ok {
		return clone(r.accounts[id]), true, nil
	}
	return account.Account{}, false, nil
}

// List returns every account ordered by id.
func (r *MemoryRepository) List(_ context.Context) ([]account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]account.Account, 0, len(r.accounts))
	for _, acc := range r.accounts {
		out = append(out, clone(acc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Update persists profile fields and the password hash.
func (r *MemoryRepository) Update(_ context.Context, acc account.Account) (account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.accounts[acc.ID]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	if owner, taken := r.emailIndex[acc.Email]; taken && owner != acc.ID {
		return account.Account{}, account.ErrEmailExists
	}
	delete(r.emailIndex, existing.Email)
	existing.Name = acc.Name
	existing.Email = acc.Email
	existing.PasswordHash = acc.PasswordHash
	existing.Age = cloneAge(acc.Age)
	existing.UpdatedAt = util.NowUTC()
	r.accounts[acc.ID] = existing
	r.emailIndex[existing.Email] = acc.ID
	return clone(existing), nil
}

// AppendToken adds a session token to the account.
func (r *MemoryRepository) AppendToken(_ context.Context, id int64, token string) (account.Account, error) {
	return r.mutateTokens(id, func(l account.TokenList) account.TokenList { return l.Append(token) })
}

// RemoveToken drops a session token from the account.
func (r *MemoryRepository) RemoveToken(_ context.Context, id int64, token string) (account.Account, error) {
	return r.mutateTokens(id, func(l account.TokenList) account.TokenList { return l.Remove(token) })
}

// ClearTokens drops every session token of the account.
func (r *MemoryRepository) ClearTokens(_ context.Context, id int64) (account.Account, error) {
	return r.mutateTokens(id, func(account.TokenList) account.TokenList { return account.TokenList{} })
}

func (r *MemoryRepository) mutateTokens(id int64, fn func(account.TokenList) account.TokenList) (account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	acc.Tokens = fn(acc.Tokens)
	acc.UpdatedAt = util.NowUTC()
	r.accounts[id] = acc
	return clone(acc), nil
}

// Delete removes the account and its avatar.
func (r *MemoryRepository) Delete(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		return false, nil
	}
	delete(r.accounts, id)
	delete(r.emailIndex, acc.Email)
	delete(r.avatars, id)
	return true, nil
}

// PutAvatar stores the avatar image.
func (r *MemoryRepository) PutAvatar(_ context.Context, id int64, image []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return account.ErrNotFound
	}
	r.avatars[id] = slices.Clone(image)
	return nil
}

// GetAvatar returns the avatar image, if any.
func (r *MemoryRepository) GetAvatar(_ context.Context, id int64) ([]byte, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	image, ok := r.avatars[id]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(image), true, nil
}

// DeleteAvatar clears the avatar image.
func (r *MemoryRepository) DeleteAvatar(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.avatars, id)
	return nil
}

var _ account.Repository = (*MemoryRepository)(nil)

func clone(acc account.Account) account.Account {
	acc.Tokens = slices.Clone(acc.Tokens)
	if acc.Tokens == nil {
		acc.Tokens = account.TokenList{}
	}
	acc.Age = cloneAge(acc.Age)
	return acc
}

func cloneAge(age *int) *int {
	if age == nil {
		return nil
	}
	v := *age
	return &v
}
