package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ghost-swarm/ghost_swarm/internal/auth"
	"github.com/ghost-swarm/ghost_swarm/internal/config"
	"github.com/ghost-swarm/ghost_swarm/internal/earning"
	"github.com/ghost-swarm/ghost_swarm/internal/edge"
	"github.com/ghost-swarm/ghost_swarm/internal/identity"
	"github.com/ghost-swarm/ghost_swarm/internal/ledger"
	"github.com/ghost-swarm/ghost_swarm/internal/logging"
	"github.com/ghost-swarm/ghost_swarm/internal/middleware"
	"github.com/ghost-swarm/ghost_swarm/internal/money"
	"github.com/ghost-swarm/ghost_swarm/internal/notification"
	"github.com/ghost-swarm/ghost_swarm/internal/settings"
	"github.com/ghost-swarm/ghost_swarm/internal/swarm"
	"github.com/ghost-swarm/ghost_swarm/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Timing overrides the swarm cadence; zero fields use production values.
	Timing swarm.Timing
	// Seed drives the earning generator. Zero seeds from the clock.
	Seed int64
}

// Services are the long-lived components Setup builds. Close stops them.
type Services struct {
	Swarm *swarm.Manager
	Inbox *notification.Inbox
}

// Close stops every running swarm session.
func (s *Services) Close() {
	if s != nil && s.Swarm != nil {
		s.Swarm.Close()
	}
}

// Setup configures middlewares and all application routes. Without a database the
// repositories are in memory; without Redis the settings store is too.
func Setup(app *fiber.App, d Deps) (*Services, error) {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.LogFormat == "text" {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	} else {
		app.Use(middleware.Audit(logging.Component(d.Logger, "http")))
	}

	RegisterHealthRoutes(app, d)

	// Backends
	var (
		ledgerBackend ledger.Ledger
		walletRepo    wallet.Repository
		identityRepo  identity.Repository
		store         settings.Store
	)
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
		walletRepo = wallet.NewPostgresRepository(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
		walletRepo = wallet.NewMemoryRepository()
		identityRepo = identity.NewMemoryRepository()
	}
	if d.Cache != nil {
		store = settings.NewRedisStore(d.Cache)
	} else {
		store = settings.NewMemoryStore()
	}

	// Services
	seed := d.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	generator := earning.NewGenerator(seed)
	inbox := notification.NewInbox()
	notifier := notification.Fanout{inbox, notification.NewLoggerNotifier(logging.Component(d.Logger, "notification"))}
	mailer := notification.NewLoggerNotifier(logging.Component(d.Logger, "mailer"))

	walletSvc := wallet.NewService(walletRepo, money.Cents(d.Cfg.StartingBalance))
	settingsSvc := settings.NewService(store)
	identitySvc := identity.NewService(identityRepo)
	authSvc := auth.NewService(d.Cfg.JWTSecret, d.Cfg.AccessTokenTTL, store)

	manager, err := swarm.NewManager(swarm.Deps{
		Wallets:   walletSvc,
		Ledger:    ledgerBackend,
		Settings:  settingsSvc,
		Notifier:  notifier,
		Mailer:    mailer,
		Generator: generator,
		Timing:    d.Timing,
		Logger:    d.Logger,
	})
	if err != nil {
		return nil, err
	}

	// Edge functions carry their own CORS policy.
	edge.NewHandler(generator).Register(app.Group("/functions"))

	api := app.Group("/api/v1", cors.New(cors.Config{
		AllowOrigins: strings.Join(d.Cfg.CORSOrigins, ","),
		AllowHeaders: "Content-Type, Authorization, Idempotency-Key, X-Request-ID",
	}))
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterIdentityRoutes(api, identitySvc, walletSvc, d.Logger)
	authHandler := auth.NewHandler(identitySvc, authSvc, manager.Drop)
	RegisterAuthRoutes(api, authHandler, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginAttempts))

	// Protected routes
	protected := api.Group("", middleware.JWTAuth(authSvc))
	RegisterSessionRoutes(protected, authHandler, identity.NewHandler(identitySvc))
	swarmHandler := swarm.NewHandler(manager, ledgerBackend)
	RegisterWalletRoutes(protected, wallet.NewHandler(walletSvc), swarmHandler)
	idempotency := middleware.Idempotency(store, d.Cfg.IdempotencyTTL, logging.Component(d.Logger, "idempotency"))
	RegisterSwarmRoutes(protected, swarmHandler, idempotency)
	RegisterSettingsRoutes(protected, settings.NewHandler(settingsSvc, notifier, d.Logger), notification.NewHandler(inbox))

	return &Services{Swarm: manager, Inbox: inbox}, nil
}
