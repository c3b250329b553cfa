package goGuard

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/password"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Correct.Horse.9Battery"

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
	testKeyErr  error
)

func signingKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		testKey, testKeyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if testKeyErr != nil {
		t.Fatalf("generate key: %v", testKeyErr)
	}
	return testKey
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeStore is an in-memory AccountStore that serializes every
// UpdateAccount call behind one mutex.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]Account

	getErr    error
	updateErr error
	createErr error

	getCalls    int
	updateCalls int
	writes      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: map[string]Account{}}
}

func (s *fakeStore) GetAccount(_ context.Context, username string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return Account{}, s.getErr
	}
	a, ok := s.accounts[username]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (s *fakeStore) ListAccounts(context.Context) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.Clone())
	}
	return out, nil
}

func (s *fakeStore) CreateAccount(_ context.Context, account Account) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return Account{}, s.createErr
	}
	if _, ok := s.accounts[account.Username]; ok {
		return Account{}, ErrAccountExists
	}
	for _, a := range s.accounts {
		if a.Email == account.Email {
			return Account{}, ErrEmailExists
		}
	}
	account.Version = 1
	s.accounts[account.Username] = account.Clone()
	s.writes++
	return account.Clone(), nil
}

func (s *fakeStore) UpdateAccount(_ context.Context, username string, mutate func(*Account) error) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	if s.updateErr != nil {
		return Account{}, s.updateErr
	}
	current, ok := s.accounts[username]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	working := current.Clone()
	if err := mutate(&working); err != nil {
		return Account{}, err
	}
	working.Version = current.Version + 1
	s.accounts[username] = working.Clone()
	s.writes++
	return working.Clone(), nil
}

func (s *fakeStore) account(t testing.TB, username string) Account {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[username]
	if !ok {
		t.Fatalf("account %q not stored", username)
	}
	return a.Clone()
}

func (s *fakeStore) put(a Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.Username] = a.Clone()
}

type engineOption func(*Config)

func newTestEngine(t testing.TB, store AccountStore, clock *testClock, opts ...engineOption) (*Engine, *ChannelSink) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Token.KeyID = "test-key"
	for _, opt := range opts {
		opt(&cfg)
	}

	sink := NewChannelSink(256)
	engine, err := New().
		WithConfig(cfg).
		WithStore(store).
		WithSigningKey(signingKey(t)).
		WithAuditSink(sink).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, sink
}

func seedAccount(t testing.TB, store *fakeStore, clock *testClock, username, plaintext string, roles ...Role) Account {
	t.Helper()
	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	hash, err := hasher.Hash(plaintext)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if len(roles) == 0 {
		roles = []Role{RoleOficial}
	}
	now := clock.Now()
	a := Account{
		ID:                "01J00000000000000000000000",
		Username:          username,
		Email:             username + "@example.com",
		FirstName:         "Juan",
		LastName:          "Perez",
		Branch:            "Central",
		City:              "La Paz",
		JobTitle:          "Oficial de Inversiones",
		Mobile:            "71012345",
		Phone:             "22451234",
		Address:           "Calle 3 #123",
		PasswordHash:      hash,
		PasswordExpiresAt: now.Add(password.DefaultExpiry),
		Roles:             roles,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	store.put(a)
	return a
}

func drainAudit(sink *ChannelSink) []AuditEvent {
	var out []AuditEvent
	for {
		select {
		case ev := <-sink.Events():
			out = append(out, ev)
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

var errStoreDown = errors.New("connection refused")
