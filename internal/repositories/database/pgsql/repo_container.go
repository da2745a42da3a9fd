package pgsql

import (
	portsrepo "github.com/floorops/loyalty_ledger/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewRepositoryProvider(dbPool *pgxpool.Pool, tierPolicy TierPolicy) portsrepo.RepositoryProvider {
	accountRepo := NewAccountRepository(dbPool)
	ledgerRepo := NewLedgerRepository(dbPool, accountRepo, tierPolicy)
	sessionRepo := NewSessionRepository(dbPool)

	return portsrepo.RepositoryProvider{
		LedgerRepo:  ledgerRepo,
		AccountRepo: accountRepo,
		SessionRepo: sessionRepo,
	}
}
