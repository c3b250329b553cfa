package httpapi

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/middleware"
)

// Options tunes the HTTP surface. Zero values select the defaults.
type Options struct {
	Logger       *slog.Logger
	AppName      string
	BodyLimit    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

const (
	defaultBodyLimit   = 64 * 1024
	defaultReadTimeout = 10 * time.Second
)

type server struct {
	engine    *goGuard.Engine
	logger    *slog.Logger
	validator *bodyValidator
}

// New assembles the fiber app serving engine.
func New(engine *goGuard.Engine, opts Options) (*fiber.App, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.AppName == "" {
		opts.AppName = "goguard"
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = defaultBodyLimit
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = opts.ReadTimeout
	}

	validator, err := newBodyValidator(
		&LoginRequest{},
		&ChangePasswordRequest{},
		&CreateAccountRequest{},
		&UpdateAccountRequest{},
	)
	if err != nil {
		return nil, err
	}

	s := &server{engine: engine, logger: opts.Logger, validator: validator}

	app := fiber.New(fiber.Config{
		AppName:      opts.AppName,
		BodyLimit:    opts.BodyLimit,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
		ErrorHandler: errorHandler(opts.Logger),
	})
	s.routes(app)
	return app, nil
}

func (s *server) routes(app *fiber.App) {
	app.Use(middleware.RequestID(), middleware.Logger(s.logger), middleware.Authorize(s.engine))

	app.Get("/.well-known/jwks.json", s.jwks)

	v1 := app.Group("/api/v1")
	v1.Post("/login", s.login)
	v1.Post("/me/update-password", middleware.RequireAuthenticated(), s.changePassword)

	users := v1.Group("/users")
	admin := middleware.RequireRole(goGuard.RoleAdmin)
	users.Post("", admin, s.createAccount)
	users.Get("", admin, s.listAccounts)
	users.Get("/:username", middleware.RequireAuthenticated(), s.getAccount)
	users.Put("/:username", admin, s.updateAccount)
	users.Post("/:username/unlock", admin, s.unlockAccount)
	users.Post("/:username/reset-password", admin, s.resetPassword)
}
