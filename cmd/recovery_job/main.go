package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/floorops/loyalty_ledger/internal/apperrors"
	portsrepo "github.com/floorops/loyalty_ledger/internal/core/ports/repositories"
	portssvc "github.com/floorops/loyalty_ledger/internal/core/ports/services"
	"github.com/floorops/loyalty_ledger/internal/core/services"
	"github.com/floorops/loyalty_ledger/internal/events"
	"github.com/floorops/loyalty_ledger/internal/middleware"
	"github.com/floorops/loyalty_ledger/internal/repositories/database/pgsql"
	"github.com/floorops/loyalty_ledger/internal/utils/points"
	"github.com/floorops/loyalty_ledger/pkg/config"
	"github.com/floorops/loyalty_ledger/pkg/database"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sethvargo/go-retry"
)

// The recovery job sweeps sessions whose telemetry closed but whose accrual
// never landed, and replays the accrual step for each. Replays are
// idempotent, so running the sweep concurrently with live traffic (or twice)
// is safe.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	dbPool, err := database.NewPgxPool(context.Background(), cfg.DatabaseURL, true)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dbPool.Close()

	publisher := events.NewNoopPublisher()
	if cfg.NATSURL != "" {
		if nc, nerr := nats.Connect(cfg.NATSURL, nats.Name("loyalty-ledger-recovery")); nerr == nil {
			publisher = events.NewNATSPublisher(nc)
			defer nc.Close()
		} else {
			logger.Error("Failed to connect to NATS; ledger event publishing disabled", slog.String("error", nerr.Error()))
		}
	}

	repos := pgsql.NewRepositoryProvider(dbPool, services.DefaultTierPolicy())
	ledgerService := services.NewLedgerService(repos.LedgerRepo, repos.AccountRepo, publisher)
	sessionService := services.NewSessionService(repos.SessionRepo)
	completionService := services.NewCompletionService(sessionService, ledgerService, points.Compute)

	recovered, skipped, failed := sweep(context.Background(), logger, cfg, repos.SessionRepo, completionService)

	logger.Info("Recovery sweep finished",
		slog.Int("recovered", recovered), slog.Int("skipped", skipped), slog.Int("failed", failed))
	if failed > 0 {
		os.Exit(1)
	}
}

func sweep(ctx context.Context, logger *slog.Logger, cfg *config.Config, sessionRepo portsrepo.SessionRepositoryFacade, completionService portssvc.CompletionSvcFacade) (int, int, int) {
	refs, err := sessionRepo.ListClosedWithoutAccrual(ctx, cfg.RecoveryBatchSize)
	if err != nil {
		logger.Error("Failed to list sessions pending accrual", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Recovery sweep starting", slog.Int("pending", len(refs)))

	recovered, skipped, failed := 0, 0, 0
	for _, sessionRef := range refs {
		switch err := recoverOne(ctx, logger, completionService, sessionRef); {
		case err == nil:
			recovered++
		case errors.Is(err, apperrors.ErrValidation):
			// A session that legitimately yielded zero points stays CLOSED
			// with no ledger entry, so the listing keeps selecting it. It is
			// not stranded and must not fail the sweep.
			skipped++
		default:
			failed++
		}
	}
	return recovered, skipped, failed
}

// recoverOne replays the accrual for a single session, retrying transient
// store failures with exponential backoff.
func recoverOne(ctx context.Context, logger *slog.Logger, completionService portssvc.CompletionSvcFacade, sessionRef string) error {
	correlationID := uuid.NewString()
	runLogger := logger.With(
		slog.String("session_ref", sessionRef),
		slog.String("correlation_id", correlationID),
	)
	runCtx := middleware.WithLogger(middleware.WithCorrelationID(ctx, correlationID), runLogger)

	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(runCtx, backoff, func(ctx context.Context) error {
		_, rerr := completionService.Recover(ctx, sessionRef)
		if rerr == nil {
			return nil
		}
		if errors.Is(rerr, apperrors.ErrUnavailable) {
			return retry.RetryableError(rerr)
		}
		return rerr
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			runLogger.Warn("Session has no points to accrue; skipping", slog.String("error", err.Error()))
		} else {
			runLogger.Error("Failed to recover session accrual", slog.String("error", err.Error()))
		}
		return err
	}

	runLogger.Info("Session accrual recovered")
	return nil
}
