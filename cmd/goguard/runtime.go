package main

import (
	"context"
	"crypto/rsa"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/internal/logging"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/store/memory"
	"github.com/MrEthical07/goGuard/store/postgres"
	redisstore "github.com/MrEthical07/goGuard/store/redis"
)

const connectBackoffBase = 250 * time.Millisecond

// runtime is the engine plus the resources it owns.
type runtime struct {
	engine  *goGuard.Engine
	logger  *slog.Logger
	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func newLogger(cfg *appConfig) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return logging.Setup("goguard", version, cfg.Log.Format, level, nil), nil
}

// openStore connects the configured driver, retrying with exponential
// backoff while the backend is unreachable.
func openStore(ctx context.Context, cfg *appConfig, logger *slog.Logger) (goGuard.AccountStore, func(), error) {
	attempts := cfg.Store.ConnectRetries
	if attempts < 1 {
		attempts = 1
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(connectBackoffBase))

	switch cfg.Store.Driver {
	case driverPostgres:
		if cfg.Store.AutoMigrate {
			if err := migrateUp(cfg.Store.DatabaseURL, logger); err != nil {
				return nil, nil, err
			}
		}
		var store *postgres.Store
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			s, err := postgres.Open(ctx, cfg.Store.DatabaseURL)
			if err != nil {
				logger.WarnContext(ctx, "postgres not reachable, retrying", "error", err)
				return retry.RetryableError(err)
			}
			store = s
			return nil
		})
		if err != nil {
			return nil, nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
		}
		return store, store.Close, nil

	case driverRedis:
		client := goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs: []string{cfg.Store.RedisAddr},
		})
		store := redisstore.New(client, cfg.Store.RedisPrefix, redisstore.DefaultMaxRetries)
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := store.Ping(ctx); err != nil {
				logger.WarnContext(ctx, "redis not reachable, retrying", "error", err)
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			_ = client.Close()
			return nil, nil, oops.Code("REDIS_CONNECT_FAILED").Wrap(err)
		}
		return store, func() { _ = client.Close() }, nil

	default:
		logger.Warn("using in-memory account store; accounts are lost on exit")
		return memory.New(), func() {}, nil
	}
}

// loadSigningKey reads key.file, creating it when key.generate is set. With
// no file configured an ephemeral key is generated.
func loadSigningKey(cfg *appConfig, logger *slog.Logger) (*rsa.PrivateKey, error) {
	if cfg.Key.File == "" {
		logger.Warn("no key.file configured; generating an ephemeral signing key")
		key, err := jwt.GenerateKey(jwt.DefaultKeyBits)
		if err != nil {
			return nil, oops.Code("KEY_INVALID").Wrap(err)
		}
		return key, nil
	}

	if cfg.Key.Generate {
		key, generated, err := jwt.LoadOrGenerateKey(cfg.Key.File, jwt.DefaultKeyBits)
		if err != nil {
			return nil, oops.Code("KEY_INVALID").With("path", cfg.Key.File).Wrap(err)
		}
		if generated {
			logger.Info("generated signing key", "path", cfg.Key.File)
		}
		return key, nil
	}

	key, err := readKeyFile(cfg.Key.File)
	if err != nil {
		return nil, oops.Code("KEY_INVALID").With("path", cfg.Key.File).Wrap(err)
	}
	return key, nil
}

// newRuntime assembles logger, store, signing key and engine. reg may be nil
// to keep metrics off.
func newRuntime(ctx context.Context, cfg *appConfig, reg prometheus.Registerer) (*runtime, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	rt := &runtime{logger: logger}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, closeStore)

	key, err := loadSigningKey(cfg, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	builder := goGuard.New().
		WithConfig(cfg.engineConfig()).
		WithStore(store).
		WithSigningKey(key).
		WithLogger(logger).
		WithAuditSink(goGuard.NewSlogSink(logger.With("component", "audit")))
	if reg != nil {
		builder = builder.WithMetricsRegisterer(reg)
	} else {
		builder = builder.WithMetricsEnabled(false)
	}

	engine, err := builder.Build()
	if err != nil {
		rt.Close()
		return nil, oops.Code("ENGINE_INIT_FAILED").Wrap(err)
	}
	rt.engine = engine
	rt.closers = append(rt.closers, engine.Close)
	return rt, nil
}
