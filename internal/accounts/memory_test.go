package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gazette-cms/gazette/internal/shared"
)

func seed(t *testing.T, s *MemoryStore, email string) Account {
	t.Helper()
	acc, err := s.Create(context.Background(), NewAccount{Email: email, Name: "Reader", PasswordHash: "hash", Role: RoleCustomer, IsActive: true})
	require.NoError(t, err)
	return acc
}

func TestMemoryStoreCreateNormalizesAndRejectsDuplicates(t *testing.T) {
	s := NewMemoryStore()
	acc := seed(t, s, "  Reader@Example.COM ")
	require.Equal(t, "reader@example.com", acc.Email)

	_, err := s.Create(context.Background(), NewAccount{Email: "reader@example.com", Role: RoleCustomer})
	require.ErrorIs(t, err, ErrEmailTaken)
	require.ErrorIs(t, err, shared.ErrConflict)

	found, err := s.FindByEmail(context.Background(), "READER@example.com")
	require.NoError(t, err)
	require.Equal(t, acc.ID, found.ID)
}

func TestMemoryStoreModifyAbortsOnError(t *testing.T) {
	s := NewMemoryStore()
	acc := seed(t, s, "a@example.com")
	boom := errors.New("boom")
	name := "changed"

	_, err := s.Modify(context.Background(), acc.ID, func(Account) (Patch, error) {
		return Patch{Name: &name}, boom
	})
	require.ErrorIs(t, err, boom)

	fresh, err := s.FindByID(context.Background(), acc.ID)
	require.NoError(t, err)
	require.Equal(t, "Reader", fresh.Name)
}

func TestMemoryStoreRejectsDuplicateResetToken(t *testing.T) {
	s := NewMemoryStore()
	a := seed(t, s, "a@example.com")
	b := seed(t, s, "b@example.com")
	exp := time.Now().Add(time.Hour)

	_, err := s.Update(context.Background(), a.ID, Patch{SetReset: &Pending{Value: "tok", ExpiresAt: exp}})
	require.NoError(t, err)
	_, err = s.Update(context.Background(), b.ID, Patch{SetReset: &Pending{Value: "tok", ExpiresAt: exp}})
	require.ErrorIs(t, err, ErrDuplicateToken)

	holder, err := s.FindByResetToken(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, a.ID, holder.ID)
}

func TestMemoryStorePurgeExpired(t *testing.T) {
	s := NewMemoryStore()
	a := seed(t, s, "a@example.com")
	b := seed(t, s, "b@example.com")
	now := time.Now().UTC()

	_, err := s.Update(context.Background(), a.ID, Patch{SetOTP: &Pending{Value: "123456", ExpiresAt: now.Add(-time.Minute)}})
	require.NoError(t, err)
	_, err = s.Update(context.Background(), b.ID, Patch{SetOTP: &Pending{Value: "654321", ExpiresAt: now.Add(time.Minute)}})
	require.NoError(t, err)

	n, err := s.PurgeExpired(context.Background(), now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	fa, _ := s.FindByID(context.Background(), a.ID)
	fb, _ := s.FindByID(context.Background(), b.ID)
	require.Nil(t, fa.OTP)
	require.NotNil(t, fb.OTP)
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore()
	acc := seed(t, s, "a@example.com")
	require.NoError(t, s.Delete(context.Background(), acc.ID))
	require.ErrorIs(t, s.Delete(context.Background(), acc.ID), ErrNotFound)
	_, err := s.FindByID(context.Background(), acc.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
