package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/floorops/loyalty_ledger/internal/apperrors"
	"github.com/floorops/loyalty_ledger/internal/core/domain"
	portsrepo "github.com/floorops/loyalty_ledger/internal/core/ports/repositories"
	portssvc "github.com/floorops/loyalty_ledger/internal/core/ports/services"
	"github.com/floorops/loyalty_ledger/pkg/config"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// --- Mock SessionRepository ---
type MockSessionRepository struct {
	mock.Mock
}

var _ portsrepo.SessionRepositoryFacade = (*MockSessionRepository)(nil)

func (m *MockSessionRepository) CreateSession(ctx context.Context, session domain.GameSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) FindSessionByRef(ctx context.Context, sessionRef string) (*domain.GameSession, error) {
	args := m.Called(ctx, sessionRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GameSession), args.Error(1)
}

func (m *MockSessionRepository) CloseSession(ctx context.Context, sessionRef string, durationSeconds int64, closedAt time.Time) (*domain.SessionTelemetry, error) {
	args := m.Called(ctx, sessionRef, durationSeconds, closedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SessionTelemetry), args.Error(1)
}

func (m *MockSessionRepository) ListClosedWithoutAccrual(ctx context.Context, limit int) ([]string, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// --- Mock CompletionService ---
type MockCompletionService struct {
	mock.Mock
}

var _ portssvc.CompletionSvcFacade = (*MockCompletionService)(nil)

func (m *MockCompletionService) CompleteSession(ctx context.Context, sessionRef string, durationSeconds int64) (*domain.CompletionResult, error) {
	args := m.Called(ctx, sessionRef, durationSeconds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CompletionResult), args.Error(1)
}

func (m *MockCompletionService) Recover(ctx context.Context, sessionRef string) (*domain.LedgerEntry, error) {
	args := m.Called(ctx, sessionRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerEntry), args.Error(1)
}

// --- Test Suite ---
type SweepTestSuite struct {
	suite.Suite
	logger            *slog.Logger
	cfg               *config.Config
	mockSessionRepo   *MockSessionRepository
	mockCompletionSvc *MockCompletionService
}

func (suite *SweepTestSuite) SetupTest() {
	suite.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	suite.cfg = &config.Config{RecoveryBatchSize: 100}
	suite.mockSessionRepo = new(MockSessionRepository)
	suite.mockCompletionSvc = new(MockCompletionService)
}

func (suite *SweepTestSuite) TestSweepRecoversStragglers() {
	ctx := context.Background()
	suite.mockSessionRepo.On("ListClosedWithoutAccrual", ctx, 100).
		Return([]string{"sess-a", "sess-b"}, nil).Once()
	suite.mockCompletionSvc.On("Recover", mock.Anything, "sess-a").
		Return(&domain.LedgerEntry{EntryID: "e-a", PointsDelta: 50}, nil).Once()
	suite.mockCompletionSvc.On("Recover", mock.Anything, "sess-b").
		Return(&domain.LedgerEntry{EntryID: "e-b", PointsDelta: 120}, nil).Once()

	recovered, skipped, failed := sweep(ctx, suite.logger, suite.cfg, suite.mockSessionRepo, suite.mockCompletionSvc)

	suite.Equal(2, recovered)
	suite.Equal(0, skipped)
	suite.Equal(0, failed)
	suite.mockCompletionSvc.AssertExpectations(suite.T())
}

// A session that closed with too little play to floor to a single point stays
// CLOSED with no ledger entry, so the listing selects it on every run. The
// sweep must treat it as a skip, not a failure, or the job exits non-zero
// forever once one exists.
func (suite *SweepTestSuite) TestSweepSkipsZeroPointSessions() {
	ctx := context.Background()
	suite.mockSessionRepo.On("ListClosedWithoutAccrual", ctx, 100).
		Return([]string{"sess-zero"}, nil).Once()
	suite.mockCompletionSvc.On("Recover", mock.Anything, "sess-zero").
		Return(nil, fmt.Errorf("session sess-zero yielded no points, nothing to recover: %w", apperrors.ErrValidation)).Once()

	recovered, skipped, failed := sweep(ctx, suite.logger, suite.cfg, suite.mockSessionRepo, suite.mockCompletionSvc)

	suite.Equal(0, recovered)
	suite.Equal(1, skipped)
	suite.Equal(0, failed)
	suite.mockCompletionSvc.AssertExpectations(suite.T())
}

func (suite *SweepTestSuite) TestSweepZeroPointDoesNotMaskRealFailures() {
	ctx := context.Background()
	suite.mockSessionRepo.On("ListClosedWithoutAccrual", ctx, 100).
		Return([]string{"sess-ok", "sess-zero", "sess-bad"}, nil).Once()
	suite.mockCompletionSvc.On("Recover", mock.Anything, "sess-ok").
		Return(&domain.LedgerEntry{EntryID: "e-ok", PointsDelta: 75}, nil).Once()
	suite.mockCompletionSvc.On("Recover", mock.Anything, "sess-zero").
		Return(nil, fmt.Errorf("nothing to recover: %w", apperrors.ErrValidation)).Once()
	suite.mockCompletionSvc.On("Recover", mock.Anything, "sess-bad").
		Return(nil, apperrors.ErrSessionNotClosed).Once()

	recovered, skipped, failed := sweep(ctx, suite.logger, suite.cfg, suite.mockSessionRepo, suite.mockCompletionSvc)

	suite.Equal(1, recovered)
	suite.Equal(1, skipped)
	suite.Equal(1, failed)
	suite.mockCompletionSvc.AssertExpectations(suite.T())
}

func (suite *SweepTestSuite) TestRecoverOneReturnsNonRetryableErrorImmediately() {
	suite.mockCompletionSvc.On("Recover", mock.Anything, "sess-gone").
		Return(nil, apperrors.ErrNotFound).Once()

	err := recoverOne(context.Background(), suite.logger, suite.mockCompletionSvc, "sess-gone")

	suite.ErrorIs(err, apperrors.ErrNotFound)
	suite.mockCompletionSvc.AssertNumberOfCalls(suite.T(), "Recover", 1)
}

func TestSweepTestSuite(t *testing.T) {
	suite.Run(t, new(SweepTestSuite))
}
