package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gazette-cms/gazette/internal/accounts"
	"github.com/gazette-cms/gazette/internal/notify"
)

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	_, token, ok := strings.Cut(link, "?token=")
	require.True(t, ok, "link %q carries no token", link)
	return token
}

func TestRequestResetIssuesTokenAndLink(t *testing.T) {
	f := newFixture(t)
	f.createAccount(t, "a@x.com", "secret1", accounts.RoleCustomer, true)

	f.reset.RequestReset(context.Background(), "a@x.com")

	sent := f.notifier.last(t)
	require.Equal(t, notify.KindPasswordReset, sent.kind)
	require.True(t, strings.HasPrefix(sent.payload.Link, "https://gazette.test/reset-password?token="))
	token := tokenFromLink(t, sent.payload.Link)
	require.Len(t, token, 64)

	acc := f.account(t, "a@x.com")
	require.Equal(t, token, acc.Reset.Value)
	require.Equal(t, f.clock.Now().Add(15*time.Minute), acc.Reset.ExpiresAt)
}

func TestRequestResetUnknownAddressIsSilent(t *testing.T) {
	f := newFixture(t)
	f.reset.RequestReset(context.Background(), "ghost@x.com")
	require.Zero(t, f.notifier.count())
}

func TestRequestResetDeliveryFailureStillStoresToken(t *testing.T) {
	f := newFixture(t)
	f.createAccount(t, "a@x.com", "secret1", accounts.RoleCustomer, true)
	f.notifier.fail = true

	f.reset.RequestReset(context.Background(), "a@x.com")
	require.NotNil(t, f.account(t, "a@x.com").Reset)
}

func TestResetTokenRotationScenario(t *testing.T) {
	f := newFixture(t)
	f.createAccount(t, "a@x.com", "secret1", accounts.RoleCustomer, true)

	f.reset.RequestReset(context.Background(), "a@x.com")
	t1 := tokenFromLink(t, f.notifier.last(t).payload.Link)
	f.reset.RequestReset(context.Background(), "a@x.com")
	t2 := tokenFromLink(t, f.notifier.last(t).payload.Link)
	require.NotEqual(t, t1, t2)

	require.ErrorIs(t, f.reset.ConsumeToken(context.Background(), t1, "newpass1"), ErrInvalidOrExpired)
	require.NoError(t, f.reset.ConsumeToken(context.Background(), t2, "newpass1"))

	_, err := f.authority.Authenticate(context.Background(), "a@x.com", "newpass1")
	require.NoError(t, err)
	require.Nil(t, f.account(t, "a@x.com").Reset)
}

func TestConsumedTokenCannotBeReused(t *testing.T) {
	f := newFixture(t)
	f.createAccount(t, "a@x.com", "secret1", accounts.RoleCustomer, true)
	f.reset.RequestReset(context.Background(), "a@x.com")
	token := tokenFromLink(t, f.notifier.last(t).payload.Link)

	identity, err := f.reset.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", identity.Email)
	require.NoError(t, f.reset.ConsumeToken(context.Background(), token, "another1"))

	_, err = f.reset.VerifyToken(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidOrExpired)
	require.ErrorIs(t, f.reset.ConsumeToken(context.Background(), token, "another2"), ErrInvalidOrExpired)
}

func TestResetTokenExpiresAtBoundary(t *testing.T) {
	f := newFixture(t)
	f.createAccount(t, "a@x.com", "secret1", accounts.RoleCustomer, true)
	f.reset.RequestReset(context.Background(), "a@x.com")
	token := tokenFromLink(t, f.notifier.last(t).payload.Link)

	f.clock.Advance(DefaultResetTTL - time.Second)
	_, err := f.reset.VerifyToken(context.Background(), token)
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	_, err = f.reset.VerifyToken(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestConsumeTokenWeakPassword(t *testing.T) {
	f := newFixture(t)
	f.createAccount(t, "a@x.com", "secret1", accounts.RoleCustomer, true)
	f.reset.RequestReset(context.Background(), "a@x.com")
	token := tokenFromLink(t, f.notifier.last(t).payload.Link)

	require.ErrorIs(t, f.reset.ConsumeToken(context.Background(), token, "short"), ErrWeakPassword)
	require.NotNil(t, f.account(t, "a@x.com").Reset, "a rejected password leaves the token usable")
	require.ErrorIs(t, f.reset.ConsumeToken(context.Background(), "deadbeef", "short"), ErrInvalidOrExpired)
}

func TestRequestResetRetriesOnCollision(t *testing.T) {
	f := newFixture(t)
	a := f.createAccount(t, "a@x.com", "secret1", accounts.RoleCustomer, true)
	f.createAccount(t, "b@x.com", "secret1", accounts.RoleCustomer, true)
	_, err := f.store.Update(context.Background(), a.ID, accounts.Patch{SetReset: &accounts.Pending{Value: "taken", ExpiresAt: f.clock.Now().Add(time.Hour)}})
	require.NoError(t, err)

	calls := 0
	f.reset.token = func() (string, error) {
		calls++
		if calls == 1 {
			return "taken", nil
		}
		return fmt.Sprintf("fresh%d", calls), nil
	}
	f.reset.RequestReset(context.Background(), "b@x.com")

	require.Equal(t, 2, calls)
	require.Equal(t, "fresh2", f.account(t, "b@x.com").Reset.Value)
	require.Equal(t, "taken", f.account(t, "a@x.com").Reset.Value)
}

func TestConsumeTokenIsAtomicUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createAccount(t, "a@x.com", "secret1", accounts.RoleCustomer, true)
	f.reset.RequestReset(ctx, "a@x.com")
	token := tokenFromLink(t, f.notifier.last(t).payload.Link)

	const callers = 20
	var wg sync.WaitGroup
	var succeeded, rejected atomic.Int32
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			err := f.reset.ConsumeToken(ctx, token, fmt.Sprintf("newpass%d", i))
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrInvalidOrExpired):
				rejected.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, succeeded.Load())
	require.EqualValues(t, callers-1, rejected.Load())
	require.Nil(t, f.account(t, "a@x.com").Reset)
}
