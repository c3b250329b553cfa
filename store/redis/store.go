// Package redis implements goGuard.AccountStore on Redis.
//
// Each account is a JSON document under <prefix>:acct:<username>. A set at
// <prefix>:usernames lists every account and <prefix>:email:<email> maps a
// lower-cased email to its username. UpdateAccount is an optimistic
// WATCH/MULTI/EXEC cycle retried when another writer touches the key first.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	goGuard "github.com/MrEthical07/goGuard"
)

// DefaultMaxRetries bounds the CAS loop in UpdateAccount and CreateAccount.
const DefaultMaxRetries = 16

// Store is a Redis-backed account store.
type Store struct {
	redis      redis.UniversalClient
	prefix     string
	maxRetries int
}

// New returns a Store using prefix for every key. An empty prefix becomes
// "goguard"; maxRetries <= 0 uses DefaultMaxRetries.
func New(redis redis.UniversalClient, prefix string, maxRetries int) *Store {
	if prefix == "" {
		prefix = "goguard"
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Store{
		redis:      redis,
		prefix:     prefix,
		maxRetries: maxRetries,
	}
}

func (s *Store) key(username string) string {
	return s.prefix + ":acct:" + username
}

func (s *Store) emailKey(email string) string {
	return s.prefix + ":email:" + strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) usernamesKey() string {
	return s.prefix + ":usernames"
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", goGuard.ErrStoreUnavailable, err)
}

func decode(raw []byte) (goGuard.Account, error) {
	var a goGuard.Account
	if err := json.Unmarshal(raw, &a); err != nil {
		return goGuard.Account{}, fmt.Errorf("decode account: %w", err)
	}
	return a, nil
}

// GetAccount reads and decodes the account document.
func (s *Store) GetAccount(ctx context.Context, username string) (goGuard.Account, error) {
	raw, err := s.redis.Get(ctx, s.key(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return goGuard.Account{}, goGuard.ErrAccountNotFound
		}
		return goGuard.Account{}, unavailable(err)
	}
	return decode(raw)
}

// ListAccounts returns every account ordered by username. Usernames whose
// document has disappeared are skipped.
func (s *Store) ListAccounts(ctx context.Context) ([]goGuard.Account, error) {
	usernames, err := s.redis.SMembers(ctx, s.usernamesKey()).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	accounts := make([]goGuard.Account, 0, len(usernames))
	if len(usernames) == 0 {
		return accounts, nil
	}
	sort.Strings(usernames)

	keys := make([]string, len(usernames))
	for i, u := range usernames {
		keys[i] = s.key(u)
	}
	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		a, err := decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

// CreateAccount stores account with Version 1, claiming the username and the
// email index atomically.
func (s *Store) CreateAccount(ctx context.Context, account goGuard.Account) (goGuard.Account, error) {
	account.Version = 1
	payload, err := json.Marshal(account)
	if err != nil {
		return goGuard.Account{}, fmt.Errorf("encode account: %w", err)
	}

	key := s.key(account.Username)
	emailKey := s.emailKey(account.Email)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, key, emailKey).Result()
			if err != nil {
				return unavailable(err)
			}
			if n > 0 {
				taken, err := tx.Exists(ctx, key).Result()
				if err != nil {
					return unavailable(err)
				}
				if taken > 0 {
					return goGuard.ErrAccountExists
				}
				return goGuard.ErrEmailExists
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.SetNX(ctx, key, payload, 0)
				pipe.SetNX(ctx, emailKey, account.Username, 0)
				pipe.SAdd(ctx, s.usernamesKey(), account.Username)
				return nil
			})
			return err
		}, key, emailKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, goGuard.ErrAccountExists) || errors.Is(err, goGuard.ErrEmailExists) || errors.Is(err, goGuard.ErrStoreUnavailable) {
				return goGuard.Account{}, err
			}
			return goGuard.Account{}, unavailable(err)
		}
		return account.Clone(), nil
	}
	return goGuard.Account{}, goGuard.ErrConcurrentUpdate
}

// UpdateAccount runs mutate against the current document and writes the
// result only if no other writer changed the key in between. A lost race
// re-reads and re-runs mutate, up to the configured retry budget, after which
// ErrConcurrentUpdate is returned.
func (s *Store) UpdateAccount(ctx context.Context, username string, mutate func(*goGuard.Account) error) (goGuard.Account, error) {
	key := s.key(username)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var (
			result    goGuard.Account
			mutateErr error
		)
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return goGuard.ErrAccountNotFound
				}
				return unavailable(err)
			}
			current, err := decode(raw)
			if err != nil {
				return err
			}

			working := current.Clone()
			if err := mutate(&working); err != nil {
				mutateErr = err
				return err
			}
			working.ID = current.ID
			working.Username = current.Username
			working.Email = current.Email
			working.CreatedAt = current.CreatedAt
			working.Version = current.Version + 1

			payload, err := json.Marshal(working)
			if err != nil {
				return fmt.Errorf("encode account: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, 0)
				return nil
			})
			if err != nil {
				return err
			}
			result = working
			return nil
		}, key)

		switch {
		case err == nil:
			return result, nil
		case mutateErr != nil:
			return goGuard.Account{}, mutateErr
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, goGuard.ErrAccountNotFound), errors.Is(err, goGuard.ErrStoreUnavailable):
			return goGuard.Account{}, err
		default:
			return goGuard.Account{}, unavailable(err)
		}
	}
	return goGuard.Account{}, goGuard.ErrConcurrentUpdate
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

var (
	_ goGuard.AccountStore = (*Store)(nil)
	_ goGuard.Pinger       = (*Store)(nil)
)
