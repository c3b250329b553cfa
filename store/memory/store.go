// Package memory provides an in-process goGuard.AccountStore.
//
// It is intended for tests, local development and single-node deployments
// that do not need durability.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	goGuard "github.com/MrEthical07/goGuard"
)

// Store keeps accounts in a map. Reads take the shared lock; UpdateAccount
// additionally holds a per-username mutex so mutate callbacks for the same
// account never interleave, while different accounts proceed in parallel.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]goGuard.Account
	emails   map[string]string

	keyMu sync.Mutex
	keys  map[string]*sync.Mutex
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		accounts: make(map[string]goGuard.Account),
		emails:   make(map[string]string),
		keys:     make(map[string]*sync.Mutex),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// lockFor returns the mutex that serializes writes to username. Mutexes
// exist only for stored accounts; ok is false for unknown usernames.
func (s *Store) lockFor(username string) (m *sync.Mutex, ok bool) {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	if m, ok = s.keys[username]; ok {
		return m, true
	}
	s.mu.RLock()
	_, exists := s.accounts[username]
	s.mu.RUnlock()
	if !exists {
		return nil, false
	}
	m = &sync.Mutex{}
	s.keys[username] = m
	return m, true
}

// GetAccount returns a copy of the stored account.
func (s *Store) GetAccount(_ context.Context, username string) (goGuard.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[username]
	if !ok {
		return goGuard.Account{}, goGuard.ErrAccountNotFound
	}
	return a.Clone(), nil
}

// ListAccounts returns every account ordered by username.
func (s *Store) ListAccounts(context.Context) ([]goGuard.Account, error) {
	s.mu.RLock()
	out := make([]goGuard.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// CreateAccount stores account with Version 1. Username and email
// (case-insensitive) must both be unused.
func (s *Store) CreateAccount(_ context.Context, account goGuard.Account) (goGuard.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.Username]; ok {
		return goGuard.Account{}, goGuard.ErrAccountExists
	}
	ek := emailKey(account.Email)
	if _, ok := s.emails[ek]; ok {
		return goGuard.Account{}, goGuard.ErrEmailExists
	}

	account.Version = 1
	s.accounts[account.Username] = account.Clone()
	s.emails[ek] = account.Username
	return account.Clone(), nil
}

// UpdateAccount applies mutate to a fresh copy of the account and stores the
// result. Errors returned by mutate are passed through unchanged and nothing
// is written.
func (s *Store) UpdateAccount(ctx context.Context, username string, mutate func(*goGuard.Account) error) (goGuard.Account, error) {
	lock, ok := s.lockFor(username)
	if !ok {
		return goGuard.Account{}, goGuard.ErrAccountNotFound
	}
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return goGuard.Account{}, err
	}

	s.mu.RLock()
	current, ok := s.accounts[username]
	s.mu.RUnlock()
	if !ok {
		return goGuard.Account{}, goGuard.ErrAccountNotFound
	}

	working := current.Clone()
	if err := mutate(&working); err != nil {
		return goGuard.Account{}, err
	}
	// Identity columns are immutable through updates.
	working.ID = current.ID
	working.Username = current.Username
	working.Email = current.Email
	working.CreatedAt = current.CreatedAt
	working.Version = current.Version + 1

	s.mu.Lock()
	s.accounts[username] = working.Clone()
	s.mu.Unlock()
	return working.Clone(), nil
}

// Len reports the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

var (
	_ goGuard.AccountStore = (*Store)(nil)
	_ goGuard.Pinger       = (*Store)(nil)
)
