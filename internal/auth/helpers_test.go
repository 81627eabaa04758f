package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gazette-cms/gazette/internal/accounts"
	"github.com/gazette-cms/gazette/internal/notify"
	"github.com/gazette-cms/gazette/internal/shared"
)

type delivery struct {
	address string
	kind    notify.Kind
	payload notify.Payload
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []delivery
	fail bool
}

func (n *fakeNotifier) Deliver(ctx context.Context, address string, kind notify.Kind, payload notify.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("smtp down")
	}
	n.sent = append(n.sent, delivery{address: address, kind: kind, payload: payload})
	return nil
}

func (n *fakeNotifier) last(t *testing.T) delivery {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent, "nothing delivered")
	return n.sent[len(n.sent)-1]
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedEvents struct {
	mu     sync.Mutex
	events map[string]int
}

func (r *recordedEvents) RecordAuthEvent(event, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = make(map[string]int)
	}
	r.events[event+"/"+outcome]++
}

type memSessionLog struct {
	mu      sync.Mutex
	records map[string]SessionRecord
}

func (l *memSessionLog) CreateSession(ctx context.Context, rec SessionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.records == nil {
		l.records = make(map[string]SessionRecord)
	}
	l.records[rec.ID] = rec
	return nil
}

func (l *memSessionLog) DeleteSession(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, id)
	return nil
}

func (l *memSessionLog) ListUserSessions(ctx context.Context, userID int64) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var ids []string
	for id, rec := range l.records {
		if rec.UserID == userID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fixture struct {
	store     *accounts.MemoryStore
	notifier  *fakeNotifier
	clock     *fakeClock
	hasher    *BcryptHasher
	otp       *OTPEngine
	reset     *ResetEngine
	authority *Authority
	sessions  *shared.SessionManager
	log       *memSessionLog
	events    *recordedEvents
	service   *Service
}

func newFixture(t *testing.T, exempt ...string) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		store:    accounts.NewMemoryStore(),
		notifier: &fakeNotifier{},
		clock:    newFakeClock(),
		hasher:   NewBcryptHasher(bcrypt.MinCost),
		sessions: shared.NewSessionManager(client, "gz_session", time.Hour, false),
		log:      &memSessionLog{},
		events:   &recordedEvents{},
	}
	f.otp = NewOTPEngine(f.store, f.notifier, OTPConfig{Exempt: exempt}, nil)
	f.otp.now = f.clock.Now
	f.reset = NewResetEngine(f.store, f.notifier, f.hasher, ResetConfig{BaseURL: "https://gazette.test/"}, nil)
	f.reset.now = f.clock.Now
	f.authority = NewAuthority(f.store, f.hasher, f.sessions, f.log, nil)
	f.authority.now = f.clock.Now
	f.service = NewService(ServiceDeps{
		Store:     f.store,
		Hasher:    f.hasher,
		OTP:       f.otp,
		Reset:     f.reset,
		Authority: f.authority,
		Events:    f.events,
	})
	return f
}

func (f *fixture) createAccount(t *testing.T, email, password string, role accounts.Role, active bool) accounts.Account {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	acc, err := f.store.Create(context.Background(), accounts.NewAccount{
		Email:        email,
		Name:         "Test " + string(role),
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
		IsVerified:   true,
	})
	require.NoError(t, err)
	return acc
}

func (f *fixture) account(t *testing.T, email string) accounts.Account {
	t.Helper()
	acc, err := f.store.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	return acc
}
