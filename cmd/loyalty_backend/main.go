package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"

	portssvc "github.com/floorops/loyalty_ledger/internal/core/ports/services"
	"github.com/floorops/loyalty_ledger/internal/core/services"
	"github.com/floorops/loyalty_ledger/internal/events"
	"github.com/floorops/loyalty_ledger/internal/handlers"
	"github.com/floorops/loyalty_ledger/internal/middleware"
	"github.com/floorops/loyalty_ledger/internal/repositories/database/pgsql"
	"github.com/floorops/loyalty_ledger/internal/utils/points"
	"github.com/floorops/loyalty_ledger/pkg/config"
	"github.com/floorops/loyalty_ledger/pkg/database"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	dbPool, err := database.NewPgxPool(context.Background(), cfg.DatabaseURL, cfg.EnableDBCheck)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dbPool.Close()
	logger.Info("Database connection pool established.")

	if err := runMigrations(cfg, logger); err != nil {
		os.Exit(1)
	}

	publisher := buildPublisher(cfg, logger)

	tierPolicy := services.DefaultTierPolicy()
	repos := pgsql.NewRepositoryProvider(dbPool, tierPolicy)

	ledgerService := services.NewLedgerService(repos.LedgerRepo, repos.AccountRepo, publisher)
	sessionService := services.NewSessionService(repos.SessionRepo)
	completionService := services.NewCompletionService(sessionService, ledgerService, points.Compute)

	serviceContainer := &portssvc.ServiceContainer{
		Ledger:     ledgerService,
		Session:    sessionService,
		Completion: completionService,
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	r.Use(cors.Default())
	r.Use(middleware.RateLimit(buildLimiter(cfg, logger)))

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handlers.RegisterRoutes(r, cfg, serviceContainer)

	logger.Info("Server starting", slog.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("Server failed to run", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// runMigrations applies all pending "up" migrations before the server takes
// traffic.
func runMigrations(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("Running database migrations...")

	// Open a temporary standard sql.DB connection for migrations, using the
	// pgx stdlib driver to stay compatible with the main pool.
	migrationDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to open database connection for migrations", slog.String("error", err.Error()))
		return err
	}
	defer func() {
		if cerr := migrationDB.Close(); cerr != nil {
			logger.Error("Error closing migration DB connection", slog.String("error", cerr.Error()))
		}
	}()

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		logger.Error("Could not create postgres driver instance for migrations", slog.String("error", err.Error()))
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		logger.Error("Could not create migrate instance", slog.String("error", err.Error()))
		return err
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		logger.Error("Failed to apply migrations", slog.String("error", err.Error()))
		return err
	}

	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		logger.Error("Migration source error", slog.String("error", sourceErr.Error()))
		return sourceErr
	}
	if dbErr != nil {
		logger.Error("Migration database error", slog.String("error", dbErr.Error()))
		return dbErr
	}

	if err == migrate.ErrNoChange {
		logger.Info("No new migrations to apply.")
	} else {
		logger.Info("Database migrations applied successfully.")
	}
	return nil
}

// buildPublisher connects the ledger event fan-out when NATS is configured.
func buildPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if cfg.NATSURL == "" {
		logger.Info("NATS_URL not set; ledger event publishing disabled")
		return events.NewNoopPublisher()
	}

	nc, err := nats.Connect(cfg.NATSURL, nats.Name("loyalty-ledger"))
	if err != nil {
		logger.Error("Failed to connect to NATS; ledger event publishing disabled", slog.String("error", err.Error()))
		return events.NewNoopPublisher()
	}
	logger.Info("Connected to NATS", slog.String("url", cfg.NATSURL))
	return events.NewNATSPublisher(nc)
}

// buildLimiter picks the limiter store: redis-backed when configured so the
// limit holds across replicas, in-memory otherwise.
func buildLimiter(cfg *config.Config, logger *slog.Logger) *limiter.Limiter {
	rate, err := limiter.NewRateFromFormatted(cfg.RateLimit)
	if err != nil {
		logger.Warn("Invalid RATE_LIMIT value; defaulting to 300-M", slog.String("value", cfg.RateLimit))
		rate, _ = limiter.NewRateFromFormatted("300-M")
	}

	if cfg.RedisURL != "" {
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err == nil {
			client := goredis.NewClient(opts)
			store, serr := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "loyalty_ledger:ratelimit"})
			if serr == nil {
				logger.Info("Rate limiter using redis store")
				return limiter.New(store, rate)
			}
			logger.Error("Failed to build redis limiter store; falling back to memory", slog.String("error", serr.Error()))
		} else {
			logger.Error("Invalid REDIS_URL; falling back to memory limiter store", slog.String("error", err.Error()))
		}
	}

	return limiter.New(memory.NewStore(), rate)
}
