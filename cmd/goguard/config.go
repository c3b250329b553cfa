package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	goGuard "github.com/MrEthical07/goGuard"
)

const flagConfig = "config"

// Store drivers accepted by store.driver.
const (
	driverMemory   = "memory"
	driverPostgres = "postgres"
	driverRedis    = "redis"
)

// appConfig is the merged view of flag defaults, the YAML file and flags set
// on the command line, in increasing precedence.
type appConfig struct {
	HTTP     httpConfig     `koanf:"http"`
	Metrics  metricsConfig  `koanf:"metrics"`
	Log      logConfig      `koanf:"log"`
	Store    storeConfig    `koanf:"store"`
	Key      keyConfig      `koanf:"key"`
	Admin    adminConfig    `koanf:"admin"`
	Password passwordConfig `koanf:"password"`
	Lockout  lockoutConfig  `koanf:"lockout"`
}

type httpConfig struct {
	Addr            string        `koanf:"addr"`
	BodyLimit       int           `koanf:"body_limit"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type metricsConfig struct {
	Addr string `koanf:"addr"`
}

type logConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

type storeConfig struct {
	Driver      string `koanf:"driver"`
	DatabaseURL string `koanf:"database_url"`
	AutoMigrate bool   `koanf:"auto_migrate"`
	RedisAddr   string `koanf:"redis_addr"`
	RedisPrefix string `koanf:"redis_prefix"`
	ConnectRetries int `koanf:"connect_retries"`
}

type keyConfig struct {
	File     string `koanf:"file"`
	ID       string `koanf:"id"`
	Generate bool   `koanf:"generate"`
}

type adminConfig struct {
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Email    string `koanf:"email"`
}

type passwordConfig struct {
	BcryptCost   int           `koanf:"bcrypt_cost"`
	Expiry       time.Duration `koanf:"expiry"`
	HistoryLimit int           `koanf:"history_limit"`
}

type lockoutConfig struct {
	Threshold int `koanf:"threshold"`
}

// registerRuntimeFlags declares every key shared by serve and seed. Flag
// names are koanf paths so posflag can overlay them onto the file.
func registerRuntimeFlags(fs *pflag.FlagSet) {
	defaults := goGuard.DefaultConfig()

	fs.String("log.format", "json", "log format (json or text)")
	fs.String("log.level", "info", "log level (debug, info, warn, error)")

	fs.String("store.driver", driverMemory, "account store: memory, postgres or redis")
	fs.String("store.database_url", "", "PostgreSQL URL (default: $DATABASE_URL)")
	fs.Bool("store.auto_migrate", false, "apply pending migrations on start (postgres)")
	fs.String("store.redis_addr", "", "Redis address (default: $REDIS_ADDR)")
	fs.String("store.redis_prefix", "goguard", "Redis key prefix")
	fs.Int("store.connect_retries", 5, "store ping attempts before giving up")

	fs.String("key.file", "", "PEM encoded RSA signing key")
	fs.String("key.id", defaults.Token.KeyID, "key alias published as the token kid")
	fs.Bool("key.generate", false, "create key.file if it does not exist")

	fs.Int("password.bcrypt_cost", defaults.Password.BcryptCost, "bcrypt cost for new hashes")
	fs.Duration("password.expiry", defaults.Password.Expiry, "password lifetime")
	fs.Int("password.history_limit", defaults.Password.HistoryLimit, "archived hashes kept per account (0 keeps all)")
	fs.Int("lockout.threshold", defaults.Lockout.Threshold, "consecutive failures that lock an account")
}

func registerServeFlags(fs *pflag.FlagSet) {
	fs.String("http.addr", ":8080", "API listen address")
	fs.Int("http.body_limit", 64*1024, "maximum request body in bytes")
	fs.Duration("http.read_timeout", 10*time.Second, "request read timeout")
	fs.Duration("http.shutdown_timeout", 15*time.Second, "graceful shutdown budget")
	fs.String("metrics.addr", "127.0.0.1:9100", "metrics and health listen address (empty disables)")

	fs.String("admin.username", "", "bootstrap administrator created when missing")
	fs.String("admin.password", "", "bootstrap administrator password (default: $GOGUARD_ADMIN_PASSWORD)")
	fs.String("admin.email", "", "bootstrap administrator email")
}

// loadConfig merges the config file named by --config with cmd's flags.
func loadConfig(cmd *cobra.Command) (*appConfig, error) {
	ko := koanf.New(".")

	if path, _ := cmd.Flags().GetString(flagConfig); path != "" {
		if err := ko.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
	}
	if err := ko.Load(posflag.Provider(cmd.Flags(), ".", ko), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	var cfg appConfig
	if err := ko.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if cfg.Store.DatabaseURL == "" {
		cfg.Store.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.Store.RedisAddr == "" {
		cfg.Store.RedisAddr = os.Getenv("REDIS_ADDR")
	}
	if cfg.Admin.Password == "" {
		cfg.Admin.Password = os.Getenv("GOGUARD_ADMIN_PASSWORD")
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))

	if err := cfg.Validate(); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return &cfg, nil
}

// Validate checks the settings the engine config cannot.
func (cfg *appConfig) Validate() error {
	if cfg.Log.Format != "" && cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("log.format must be 'json' or 'text', got %q", cfg.Log.Format)
	}
	switch cfg.Store.Driver {
	case driverMemory:
	case driverPostgres:
		if cfg.Store.DatabaseURL == "" {
			return fmt.Errorf("store.database_url or DATABASE_URL is required for the postgres store")
		}
	case driverRedis:
		if cfg.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr or REDIS_ADDR is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", cfg.Store.Driver)
	}
	if cfg.Admin.Username != "" && cfg.Admin.Password == "" {
		return fmt.Errorf("admin.password is required when admin.username is set")
	}
	return nil
}

// engineConfig applies the CLI overrides to the engine defaults.
func (cfg *appConfig) engineConfig() goGuard.Config {
	out := goGuard.DefaultConfig()
	if cfg.Key.ID != "" {
		out.Token.KeyID = cfg.Key.ID
	}
	if cfg.Password.BcryptCost != 0 {
		out.Password.BcryptCost = cfg.Password.BcryptCost
	}
	if cfg.Password.Expiry != 0 {
		out.Password.Expiry = cfg.Password.Expiry
	}
	out.Password.HistoryLimit = cfg.Password.HistoryLimit
	if cfg.Lockout.Threshold != 0 {
		out.Lockout.Threshold = cfg.Lockout.Threshold
	}
	return out
}
