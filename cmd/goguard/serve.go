package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/httpapi"
	"github.com/MrEthical07/goGuard/internal/observability"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve login, JWKS, password change and account administration over
HTTP, with metrics and health probes on a separate listener.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	registerRuntimeFlags(cmd.Flags())
	registerServeFlags(cmd.Flags())

	return cmd
}

func runServe(ctx context.Context, cfg *appConfig) error {
	var obs *observability.Server
	var rt *runtime
	var err error

	if cfg.Metrics.Addr != "" {
		obs = observability.NewServer(cfg.Metrics.Addr, func(ctx context.Context) error {
			if rt == nil {
				return goGuard.ErrEngineNotReady
			}
			return rt.engine.Ping(ctx)
		}, nil)
		rt, err = newRuntime(ctx, cfg, obs.Registry())
	} else {
		rt, err = newRuntime(ctx, cfg, nil)
	}
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	if err := bootstrapAdmin(ctx, rt.engine, cfg.Admin, logger); err != nil {
		return err
	}

	app, err := httpapi.New(rt.engine, httpapi.Options{
		Logger:      logger,
		BodyLimit:   cfg.HTTP.BodyLimit,
		ReadTimeout: cfg.HTTP.ReadTimeout,
	})
	if err != nil {
		return oops.Code("HTTP_INIT_FAILED").Wrap(err)
	}

	ln, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	var obsErrs <-chan error
	if obs != nil {
		obsErrs, err = obs.Start()
		if err != nil {
			_ = ln.Close()
			return err
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	logger.Info("goguard listening",
		"addr", ln.Addr().String(),
		"store", cfg.Store.Driver,
		"version", version,
	)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			runErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
		}
	case err, ok := <-obsErrs:
		if ok && err != nil {
			runErr = oops.Code("OBSERVABILITY_FAILED").Wrap(err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	if obs != nil {
		if err := obs.Stop(shutdownCtx); err != nil {
			logger.Error("observability shutdown failed", "error", err)
		}
	}
	return runErr
}

// bootstrapAdmin creates the configured administrator when no account by
// that name exists yet.
func bootstrapAdmin(ctx context.Context, engine *goGuard.Engine, admin adminConfig, logger *slog.Logger) error {
	if admin.Username == "" {
		return nil
	}
	_, err := engine.GetAccount(ctx, admin.Username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, goGuard.ErrAccountNotFound) {
		return oops.Code("BOOTSTRAP_FAILED").Wrap(err)
	}

	email := admin.Email
	if email == "" {
		email = admin.Username + "@localhost.localdomain"
	}
	_, err = engine.CreateAccount(ctx, goGuard.CreateAccountInput{
		Username:  admin.Username,
		Password:  admin.Password,
		Email:     email,
		FirstName: "System",
		LastName:  "Administrator",
		Branch:    "Central",
		City:      "-",
		JobTitle:  "Administrator",
		Mobile:    "-",
		Phone:     "-",
		Address:   "-",
		Roles:     []goGuard.Role{goGuard.RoleAdmin},
	})
	if err != nil && !errors.Is(err, goGuard.ErrAccountExists) {
		return oops.Code("BOOTSTRAP_FAILED").With("username", admin.Username).Wrap(err)
	}
	logger.InfoContext(ctx, "bootstrap administrator ready", "username", admin.Username)
	return nil
}
