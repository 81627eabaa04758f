package accounts

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and local runs.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]Account
	now    func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, byID: make(map[int64]Account), now: time.Now}
}

// FindByEmail fetches an account by address.
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = NormalizeEmail(email)
	for _, acc := range s.byID {
		if acc.Email == email {
			return acc, nil
		}
	}
	return Account{}, ErrNotFound
}

// FindByID fetches an account by id.
func (s *MemoryStore) FindByID(ctx context.Context, id int64) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acc, nil
}

// FindByResetToken fetches the account holding token, expired or not.
func (s *MemoryStore) FindByResetToken(ctx context.Context, token string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" {
		return Account{}, ErrNotFound
	}
	for _, acc := range s.byID {
		if acc.Reset != nil && acc.Reset.Value == token {
			return acc, nil
		}
	}
	return Account{}, ErrNotFound
}

// List returns all accounts ordered by id.
func (s *MemoryStore) List(ctx context.Context) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Account, 0, len(s.byID))
	for _, acc := range s.byID {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Create inserts a new account.
func (s *MemoryStore) Create(ctx context.Context, fields NewAccount) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := NormalizeEmail(fields.Email)
	for _, acc := range s.byID {
		if acc.Email == email {
			return Account{}, ErrEmailTaken
		}
	}
	now := s.now().UTC()
	acc := Account{
		ID:           s.nextID,
		Email:        email,
		Name:         fields.Name,
		PasswordHash: fields.PasswordHash,
		Role:         fields.Role,
		IsActive:     fields.IsActive,
		IsVerified:   fields.IsVerified,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byID[acc.ID] = acc
	s.nextID++
	return acc, nil
}

// Update merges patch into the account.
func (s *MemoryStore) Update(ctx context.Context, id int64, patch Patch) (Account, error) {
	return s.Modify(ctx, id, func(Account) (Patch, error) { return patch, nil })
}

// Modify runs fn while holding the store lock.
func (s *MemoryStore) Modify(ctx context.Context, id int64, fn ModifyFunc) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	patch, err := fn(acc)
	if err != nil {
		return Account{}, err
	}
	if patch.Empty() {
		return acc, nil
	}
	if patch.SetReset != nil {
		for otherID, other := range s.byID {
			if otherID != id && other.Reset != nil && other.Reset.Value == patch.SetReset.Value {
				return Account{}, ErrDuplicateToken
			}
		}
	}
	acc = patch.Apply(acc)
	acc.UpdatedAt = s.now().UTC()
	s.byID[id] = acc
	return acc, nil
}

// Delete removes an account.
func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

var _ Store = (*MemoryStore)(nil)

// PurgeExpired clears one-time codes and reset tokens that expired before now.
func (s *MemoryStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, acc := range s.byID {
		changed := false
		if acc.OTP != nil && acc.OTP.ExpiresAt.Before(now) {
			acc.OTP = nil
			changed = true
		}
		if acc.Reset != nil && acc.Reset.ExpiresAt.Before(now) {
			acc.Reset = nil
			changed = true
		}
		if changed {
			s.byID[id] = acc
			n++
		}
	}
	return n, nil
}
