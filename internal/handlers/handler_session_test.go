package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/floorops/loyalty_ledger/internal/apperrors"
	"github.com/floorops/loyalty_ledger/internal/core/domain"
	portssvc "github.com/floorops/loyalty_ledger/internal/core/ports/services"
	"github.com/floorops/loyalty_ledger/internal/dto"
	"github.com/floorops/loyalty_ledger/internal/handlers"
	"github.com/floorops/loyalty_ledger/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// --- Mock LedgerService ---
type MockLedgerService struct {
	mock.Mock
}

var _ portssvc.LedgerSvcFacade = (*MockLedgerService)(nil)

func (m *MockLedgerService) Accrue(ctx context.Context, cmd dto.AccrueCommand) (*domain.LedgerEntry, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerEntry), args.Error(1)
}

func (m *MockLedgerService) GetAccount(ctx context.Context, playerID string) (*domain.LoyaltyAccount, error) {
	args := m.Called(ctx, playerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoyaltyAccount), args.Error(1)
}

func (m *MockLedgerService) ListByPlayer(ctx context.Context, playerID string, params dto.ListLedgerParams) (*dto.ListLedgerResponse, error) {
	args := m.Called(ctx, playerID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ListLedgerResponse), args.Error(1)
}

func (m *MockLedgerService) ListBySession(ctx context.Context, sessionRef string) ([]domain.LedgerEntry, error) {
	args := m.Called(ctx, sessionRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerEntry), args.Error(1)
}

// --- Mock SessionService ---
type MockSessionService struct {
	mock.Mock
}

var _ portssvc.SessionSvcFacade = (*MockSessionService)(nil)

func (m *MockSessionService) OpenSession(ctx context.Context, req dto.OpenSessionRequest) (*domain.GameSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GameSession), args.Error(1)
}

func (m *MockSessionService) GetSession(ctx context.Context, sessionRef string) (*domain.GameSession, error) {
	args := m.Called(ctx, sessionRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GameSession), args.Error(1)
}

func (m *MockSessionService) CloseSession(ctx context.Context, sessionRef string, durationSeconds int64) (*domain.SessionTelemetry, error) {
	args := m.Called(ctx, sessionRef, durationSeconds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SessionTelemetry), args.Error(1)
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

// --- Test Suite Setup ---
type SessionHandlerTestSuite struct {
	suite.Suite
	router            *gin.Engine
	jwtSecret         string
	jwtIssuer         string
	mockLedgerSvc     *MockLedgerService
	mockSessionSvc    *MockSessionService
	mockCompletionSvc *MockCompletionService
}

func (suite *SessionHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.router = gin.New()
	suite.jwtSecret = "test-secret-key-that-is-long-enough"
	suite.jwtIssuer = "loyalty-test"

	suite.mockLedgerSvc = new(MockLedgerService)
	suite.mockSessionSvc = new(MockSessionService)
	suite.mockCompletionSvc = new(MockCompletionService)

	handlers.RegisterRoutes(suite.router, &config.Config{JWTSecret: suite.jwtSecret, JWTIssuer: suite.jwtIssuer}, &portssvc.ServiceContainer{
		Ledger:     suite.mockLedgerSvc,
		Session:    suite.mockSessionSvc,
		Completion: suite.mockCompletionSvc,
	})
}

// generateTestToken creates a dummy staff JWT for testing.
func (suite *SessionHandlerTestSuite) generateTestToken(staffRef string) string {
	return suite.generateTokenWithIssuer(staffRef, suite.jwtIssuer)
}

func (suite *SessionHandlerTestSuite) generateTokenWithIssuer(staffRef, issuer string) string {
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   staffRef,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(suite.jwtSecret))
	if err != nil {
		suite.FailNow("Failed to sign test token", err.Error())
	}
	return signed
}

func (suite *SessionHandlerTestSuite) doRequest(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		suite.NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+suite.generateTestToken("staff-1"))

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *SessionHandlerTestSuite) TestCompleteSessionSuccess() {
	sessionRef := "sess-" + uuid.NewString()
	entry := &domain.LedgerEntry{EntryID: uuid.NewString(), PointsDelta: 600}

	suite.mockCompletionSvc.On("CompleteSession", mock.Anything, sessionRef, int64(600)).
		Return(&domain.CompletionResult{State: domain.CompletionAccrued, Entry: entry}, nil).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/sessions/"+sessionRef+"/complete", dto.CompleteSessionRequest{DurationSeconds: 600})

	suite.Equal(http.StatusOK, w.Code)

	var resp dto.CompletionResponse
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("ACCRUED", resp.State)
	suite.NotNil(resp.Entry)
	suite.Equal(entry.EntryID, resp.Entry.EntryID)
	suite.mockCompletionSvc.AssertExpectations(suite.T())
}

func (suite *SessionHandlerTestSuite) TestCompleteSessionZeroPointEntryOmitted() {
	sessionRef := "sess-" + uuid.NewString()

	suite.mockCompletionSvc.On("CompleteSession", mock.Anything, sessionRef, int64(30)).
		Return(&domain.CompletionResult{State: domain.CompletionAccrued, Entry: nil}, nil).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/sessions/"+sessionRef+"/complete", dto.CompleteSessionRequest{DurationSeconds: 30})

	suite.Equal(http.StatusOK, w.Code)

	var resp dto.CompletionResponse
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("ACCRUED", resp.State)
	suite.Nil(resp.Entry)
}

func (suite *SessionHandlerTestSuite) TestCompleteSessionPartialMapsTo502() {
	sessionRef := "sess-" + uuid.NewString()
	correlationID := uuid.NewString()

	suite.mockCompletionSvc.On("CompleteSession", mock.Anything, sessionRef, int64(600)).
		Return(nil, &apperrors.PartialCompletionError{
			SessionRef:    sessionRef,
			CorrelationID: correlationID,
			Err:           apperrors.ErrUnavailable,
		}).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/sessions/"+sessionRef+"/complete", dto.CompleteSessionRequest{DurationSeconds: 600})

	suite.Equal(http.StatusBadGateway, w.Code)

	var resp map[string]string
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("PARTIAL_COMPLETION", resp["code"])
	suite.Equal(sessionRef, resp["sessionRef"])
	suite.Equal(correlationID, resp["correlationId"])
}

func (suite *SessionHandlerTestSuite) TestCompleteSessionAlreadyClosed() {
	sessionRef := "sess-" + uuid.NewString()

	suite.mockCompletionSvc.On("CompleteSession", mock.Anything, sessionRef, int64(600)).
		Return(nil, apperrors.NewAppError(409, "session is already CLOSED", apperrors.ErrConflict)).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/sessions/"+sessionRef+"/complete", dto.CompleteSessionRequest{DurationSeconds: 600})

	suite.Equal(http.StatusConflict, w.Code)
}

func (suite *SessionHandlerTestSuite) TestRecoverSessionSuccess() {
	sessionRef := "sess-" + uuid.NewString()
	entry := &domain.LedgerEntry{EntryID: uuid.NewString(), PointsDelta: 600}

	suite.mockCompletionSvc.On("Recover", mock.Anything, sessionRef).Return(entry, nil).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/sessions/"+sessionRef+"/recover", nil)

	suite.Equal(http.StatusOK, w.Code)

	var resp dto.LedgerEntryResponse
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(entry.EntryID, resp.EntryID)
}

func (suite *SessionHandlerTestSuite) TestRecoverSessionNotClosed() {
	sessionRef := "sess-" + uuid.NewString()

	suite.mockCompletionSvc.On("Recover", mock.Anything, sessionRef).
		Return(nil, apperrors.ErrSessionNotClosed).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/sessions/"+sessionRef+"/recover", nil)

	suite.Equal(http.StatusConflict, w.Code)
}

func (suite *SessionHandlerTestSuite) TestOpenSessionSuccess() {
	session := &domain.GameSession{
		SessionRef: "sess-" + uuid.NewString(),
		PlayerID:   "player-1",
		Status:     domain.SessionOpen,
		BetLevel:   decimal.NewFromInt(5),
		GameParams: domain.GameParams{GameCode: "BJ21"},
	}

	suite.mockSessionSvc.On("OpenSession", mock.Anything, mock.AnythingOfType("dto.OpenSessionRequest")).
		Return(session, nil).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/sessions", dto.OpenSessionRequest{
		PlayerID: "player-1",
		BetLevel: decimal.NewFromInt(5),
		GameCode: "BJ21",
	})

	suite.Equal(http.StatusCreated, w.Code)

	var resp dto.SessionResponse
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(session.SessionRef, resp.SessionRef)
	suite.Equal("OPEN", resp.Status)
}

func (suite *SessionHandlerTestSuite) TestUnauthenticatedRequestRejected() {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	suite.Equal(http.StatusUnauthorized, w.Code)
	suite.mockSessionSvc.AssertNotCalled(suite.T(), "OpenSession", mock.Anything, mock.Anything)
}

func (suite *SessionHandlerTestSuite) TestTokenFromWrongIssuerRejected() {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+suite.generateTokenWithIssuer("staff-1", "some-other-service"))

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	suite.Equal(http.StatusUnauthorized, w.Code)
	suite.mockSessionSvc.AssertNotCalled(suite.T(), "OpenSession", mock.Anything, mock.Anything)
}

func TestSessionHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(SessionHandlerTestSuite))
}
