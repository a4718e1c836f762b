package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/rudolf-ledger/internal/errors"
	"github.com/rudolf-ledger/internal/events"
	"github.com/rudolf-ledger/internal/logging"
	"github.com/rudolf-ledger/internal/metrics"
	"github.com/rudolf-ledger/internal/service"
	"github.com/rudolf-ledger/internal/storage"
	"github.com/rudolf-ledger/internal/token"
	"github.com/rudolf-ledger/internal/types"
)

var (
	owner = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	user1 = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	user2 = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

type testServer struct {
	server  *Server
	clock   clockwork.FakeClock
	metrics *metrics.Metrics
}

func setupServer(t *testing.T, rps, burst int) *testServer {
	t.Helper()

	deploy := time.Date(2021, time.December, 20, 0, 0, 0, 0, time.UTC)
	tok, _, err := token.New(token.Config{
		Deployer:       owner,
		DeployTime:     deploy.Unix(),
		ReferenceEpoch: time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	ts := &testServer{
		clock:   clockwork.NewFakeClockAt(deploy),
		metrics: metrics.New(reg),
	}
	svc := service.NewTokenService(tok,
		service.WithClock(ts.clock),
		service.WithMetrics(ts.metrics),
		service.WithLogger(logging.NewNopLogger()),
	)
	ts.server = NewServer(&ServerConfig{
		Host:              "localhost",
		Port:              "0",
		RequestsPerSecond: rps,
		Burst:             burst,
	}, svc, ts.metrics, reg, logging.NewNopLogger())
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, caller *common.Address, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		req.Header.Set(headerAccount, caller.Hex())
	}
	w := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decode(t, w, &resp)
	return resp.Error.Code
}

func TestHealth(t *testing.T) {
	ts := setupServer(t, 100, 100)

	w := ts.do(t, "GET", "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	decode(t, w, &resp)
	assert.Equal(t, "healthy", resp["status"])
}

func TestGetToken(t *testing.T) {
	ts := setupServer(t, 100, 100)

	w := ts.do(t, "GET", "/api/token", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var info types.TokenInfo
	decode(t, w, &info)
	assert.Equal(t, "RUDOLF", info.Symbol)
	assert.Equal(t, "4200000000000000000000000000", info.TotalSupply)
	assert.Equal(t, owner.Hex(), info.Owner)
}

func TestTransferAndBalance(t *testing.T) {
	ts := setupServer(t, 100, 100)

	w := ts.do(t, "POST", "/api/transfer", &owner, TransferRequest{
		To:     user1.Hex(),
		Amount: types.WithDecimals(10).Dec(),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var receipt types.ReceiptInfo
	decode(t, w, &receipt)
	assert.Equal(t, 1, receipt.Events)

	w = ts.do(t, "GET", "/api/accounts/"+user1.Hex()+"/balance", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var bal BalanceResponse
	decode(t, w, &bal)
	assert.Equal(t, types.WithDecimals(10).Dec(), bal.Balance)
}

func TestRequestValidation(t *testing.T) {
	ts := setupServer(t, 100, 100)

	tests := []struct {
		name   string
		method string
		path   string
		caller *common.Address
		body   interface{}
		status int
		code   string
	}{
		{"missing caller", "POST", "/api/transfer", nil, TransferRequest{To: user1.Hex(), Amount: "1"}, http.StatusBadRequest, ErrCodeInvalidInput},
		{"bad recipient", "POST", "/api/transfer", &owner, TransferRequest{To: "0x123", Amount: "1"}, http.StatusBadRequest, ErrCodeInvalidInput},
		{"bad amount", "POST", "/api/transfer", &owner, TransferRequest{To: user1.Hex(), Amount: "-1"}, http.StatusBadRequest, ErrCodeInvalidInput},
		{"unknown field", "POST", "/api/transfer", &owner, map[string]string{"recipient": user1.Hex()}, http.StatusBadRequest, ErrCodeInvalidInput},
		{"bad path address", "GET", "/api/accounts/nope/balance", nil, nil, http.StatusBadRequest, ErrCodeInvalidInput},
		{"bad snapshot id", "GET", "/api/snapshots/abc", nil, nil, http.StatusBadRequest, ErrCodeInvalidInput},
		{"zero recipient", "POST", "/api/transfer", &owner, TransferRequest{To: common.Address{}.Hex(), Amount: "1"}, http.StatusBadRequest, apperrors.CodeInvalidAddress},
		{"insufficient balance", "POST", "/api/transfer", &user1, TransferRequest{To: user2.Hex(), Amount: "1"}, http.StatusUnprocessableEntity, apperrors.CodeInsufficientBalance},
		{"insufficient allowance", "POST", "/api/transfer-from", &user1, TransferFromRequest{From: owner.Hex(), To: user2.Hex(), Amount: "1"}, http.StatusUnprocessableEntity, apperrors.CodeInsufficientAllowance},
		{"unknown snapshot", "GET", "/api/snapshots/1", nil, nil, http.StatusNotFound, apperrors.CodeUnknownSnapshot},
		{"nothing to claim", "POST", "/api/claim", &user1, nil, http.StatusUnprocessableEntity, apperrors.CodeNothingToClaim},
		{"not owner", "POST", "/api/admin/pause", &user1, nil, http.StatusForbidden, apperrors.CodeUnauthorized},
		{"not paused", "POST", "/api/admin/unpause", &owner, nil, http.StatusConflict, apperrors.CodeNotPaused},
		{"zero new owner", "POST", "/api/admin/ownership", &owner, OwnershipRequest{NewOwner: common.Address{}.Hex()}, http.StatusBadRequest, apperrors.CodeInvalidOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, tt.method, tt.path, tt.caller, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestPausedTransferIsLocked(t *testing.T) {
	ts := setupServer(t, 100, 100)

	w := ts.do(t, "POST", "/api/admin/pause", &owner, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, "POST", "/api/transfer", &owner, TransferRequest{To: user1.Hex(), Amount: "1"})
	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, apperrors.CodePaused, errorCode(t, w))

	// approvals stay available
	w = ts.do(t, "POST", "/api/approve", &owner, ApproveRequest{Spender: user1.Hex(), Amount: "5"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, "GET", "/api/accounts/"+owner.Hex()+"/allowance/"+user1.Hex(), nil, nil)
	var allowance AllowanceResponse
	decode(t, w, &allowance)
	assert.Equal(t, "5", allowance.Allowance)
}

func TestDistributionAndClaim(t *testing.T) {
	ts := setupServer(t, 100, 100)

	w := ts.do(t, "POST", "/api/transfer", &owner, TransferRequest{To: user1.Hex(), Amount: types.WithDecimals(1000).Dec()})
	require.Equal(t, http.StatusOK, w.Code)

	// first mutation after Dec-25 creates the distribution
	ts.clock.Advance(6 * 24 * time.Hour)
	w = ts.do(t, "POST", "/api/transfer", &owner, TransferRequest{To: user2.Hex(), Amount: "1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, "GET", "/api/distributions", nil, nil)
	var dist types.DistributionInfo
	decode(t, w, &dist)
	assert.Equal(t, 1, dist.Count)
	assert.Equal(t, uint64(1), dist.LastSnapshotID)
	assert.Equal(t, 2022, dist.NextYear)

	w = ts.do(t, "GET", "/api/distributions/records", nil, nil)
	var records struct {
		Records []types.AirdropInfo `json:"records"`
	}
	decode(t, w, &records)
	require.Len(t, records.Records, 1)
	assert.Equal(t, int64(1640390400), records.Records[0].Time)

	w = ts.do(t, "GET", "/api/snapshots/1/balances/"+user1.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snapBal SnapshotBalanceResponse
	decode(t, w, &snapBal)
	assert.Equal(t, types.WithDecimals(1000).Dec(), snapBal.Balance)

	w = ts.do(t, "GET", "/api/snapshots/1", nil, nil)
	var snap SnapshotResponse
	decode(t, w, &snap)
	assert.Equal(t, "4200000000000000000000000000", snap.TotalSupply)

	w = ts.do(t, "GET", "/api/accounts/"+user1.Hex()+"/vested", nil, nil)
	var vested VestedResponse
	decode(t, w, &vested)
	assert.Len(t, vested.Vested, 11)

	w = ts.do(t, "GET", "/api/accounts/"+user1.Hex()+"/claimable", nil, nil)
	var claimable ClaimableResponse
	decode(t, w, &claimable)
	assert.NotEqual(t, "0", claimable.Claimable)

	w = ts.do(t, "POST", "/api/claim", &user1, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var receipt types.ReceiptInfo
	decode(t, w, &receipt)
	assert.Equal(t, claimable.Claimable, receipt.Amount)

	w = ts.do(t, "POST", "/api/claim", &user1, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestOwnershipRoutes(t *testing.T) {
	ts := setupServer(t, 100, 100)

	w := ts.do(t, "POST", "/api/admin/ownership", &owner, OwnershipRequest{NewOwner: user1.Hex()})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, "DELETE", "/api/admin/ownership", &owner, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, "DELETE", "/api/admin/ownership", &user1, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, "GET", "/api/token", nil, nil)
	var info types.TokenInfo
	decode(t, w, &info)
	assert.Equal(t, common.Address{}.Hex(), info.Owner)
}

func TestRateLimitPerAccount(t *testing.T) {
	ts := setupServer(t, 1, 2)

	for i := 0; i < 2; i++ {
		w := ts.do(t, "GET", "/api/token", &user1, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := ts.do(t, "GET", "/api/token", &user1, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errorCode(t, w))
	assert.Equal(t, float64(1), testutil.ToFloat64(ts.metrics.RateLimited))

	// separate bucket
	w = ts.do(t, "GET", "/api/token", &user2, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// health checks bypass the limiter
	w = ts.do(t, "GET", "/health", &user1, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := setupServer(t, 100, 100)

	req := httptest.NewRequest("OPTIONS", "/api/transfer", nil)
	w := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(w, req)

	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), headerAccount)
}

func TestCompression(t *testing.T) {
	ts := setupServer(t, 100, 100)

	req := httptest.NewRequest("GET", "/api/token", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupServer(t, 100, 100)

	ts.do(t, "GET", "/api/token", nil, nil)

	w := ts.do(t, "GET", "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rudolf_api_request_duration_seconds")
	assert.Contains(t, w.Body.String(), `route="/api/token"`)
}

// panicking service for recovery
type panicService struct{ TokenServiceInterface }

func (panicService) Info(context.Context) types.TokenInfo { panic("boom") }

func TestRecovery(t *testing.T) {
	s := NewServer(&ServerConfig{RequestsPerSecond: 100, Burst: 100}, panicService{}, nil, prometheus.NewRegistry(), logging.NewNopLogger())

	req := httptest.NewRequest("GET", "/api/token", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

type stubJournal struct {
	filter storage.EventFilter
	out    []storage.StoredEvent
}

func (j *stubJournal) List(_ context.Context, f storage.EventFilter) ([]storage.StoredEvent, error) {
	j.filter = f
	return j.out, nil
}

func TestGetEvents(t *testing.T) {
	ts := setupServer(t, 100, 100)

	w := ts.do(t, "GET", "/api/events", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	j := &stubJournal{out: []storage.StoredEvent{
		{Seq: 7, Event: events.NewTransfer(1, owner, user1, types.WithDecimals(1))},
		{Seq: 9, Event: events.NewSnapshot(2, 1)},
	}}
	ts.server.SetEventJournal(j)

	w = ts.do(t, "GET", "/api/events?kind=transfer&account="+user1.Hex()+"&after=3&limit=2", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp JournalResponse
	decode(t, w, &resp)
	require.Len(t, resp.Events, 2)
	assert.Equal(t, int64(9), resp.NextAfter)
	assert.Equal(t, types.EventTransfer, resp.Events[0].Event.Kind)

	assert.Equal(t, types.EventTransfer, j.filter.Kind)
	require.NotNil(t, j.filter.Account)
	assert.Equal(t, user1, *j.filter.Account)
	assert.Equal(t, int64(3), j.filter.AfterSeq)
	assert.Equal(t, 2, j.filter.Limit)

	w = ts.do(t, "GET", "/api/events?kind=bogus", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
