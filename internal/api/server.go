// Package api provides the HTTP API of the token ledger.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rudolf-ledger/internal/logging"
	"github.com/rudolf-ledger/internal/metrics"
	"github.com/rudolf-ledger/internal/types"
)

// TokenServiceInterface defines the token operations the API serves
type TokenServiceInterface interface {
	Info(ctx context.Context) types.TokenInfo
	BalanceOf(ctx context.Context, account common.Address) *uint256.Int
	Allowance(ctx context.Context, owner, spender common.Address) *uint256.Int
	BalanceOfAt(ctx context.Context, account common.Address, id uint64) (*uint256.Int, error)
	TotalSupplyAt(ctx context.Context, id uint64) (*uint256.Int, error)
	Claimable(ctx context.Context, account common.Address) (*uint256.Int, error)
	Vested(ctx context.Context, account common.Address) []types.VestedAmount
	Distributions(ctx context.Context) types.DistributionInfo
	Airdrops(ctx context.Context) []types.AirdropInfo

	Transfer(ctx context.Context, caller, to common.Address, amount *uint256.Int) (*types.ReceiptInfo, error)
	Approve(ctx context.Context, caller, spender common.Address, amount *uint256.Int) (*types.ReceiptInfo, error)
	TransferFrom(ctx context.Context, caller, from, to common.Address, amount *uint256.Int) (*types.ReceiptInfo, error)
	Claim(ctx context.Context, caller common.Address) (*types.ReceiptInfo, error)
	Pause(ctx context.Context, caller common.Address) (*types.ReceiptInfo, error)
	Unpause(ctx context.Context, caller common.Address) (*types.ReceiptInfo, error)
	TransferOwnership(ctx context.Context, caller, newOwner common.Address) (*types.ReceiptInfo, error)
	RenounceOwnership(ctx context.Context, caller common.Address) (*types.ReceiptInfo, error)
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	token      TokenServiceInterface
	journal    EventJournal
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	logger     *logging.Logger
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// RequestsPerSecond and Burst bound each caller's token bucket
	RequestsPerSecond int
	Burst             int
}

// NewServer creates a new API server instance. m and gatherer may be nil,
// in which case no request metrics are recorded and /metrics uses the
// default registry.
func NewServer(
	config *ServerConfig,
	token TokenServiceInterface,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	logger *logging.Logger,
) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	s := &Server{
		router:   mux.NewRouter(),
		token:    token,
		metrics:  m,
		gatherer: gatherer,
		logger:   logger.WithField("component", "api"),
		config:   config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// order matters
	s.router.Use(LoggingMiddleware(s.logger, s.metrics))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter, s.metrics))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Token queries
	api.HandleFunc("/token", s.handleGetToken).Methods("GET")
	api.HandleFunc("/accounts/{address}/balance", s.handleGetBalance).Methods("GET")
	api.HandleFunc("/accounts/{address}/allowance/{spender}", s.handleGetAllowance).Methods("GET")
	api.HandleFunc("/accounts/{address}/claimable", s.handleGetClaimable).Methods("GET")
	api.HandleFunc("/accounts/{address}/vested", s.handleGetVested).Methods("GET")

	// Snapshots and distributions
	api.HandleFunc("/snapshots/{id}", s.handleGetSnapshot).Methods("GET")
	api.HandleFunc("/snapshots/{id}/balances/{address}", s.handleGetSnapshotBalance).Methods("GET")
	api.HandleFunc("/distributions", s.handleGetDistributions).Methods("GET")
	api.HandleFunc("/distributions/records", s.handleGetDistributionRecords).Methods("GET")
	api.HandleFunc("/events", s.handleGetEvents).Methods("GET")

	// Mutations, caller from X-Account
	api.HandleFunc("/transfer", s.handleTransfer).Methods("POST")
	api.HandleFunc("/approve", s.handleApprove).Methods("POST")
	api.HandleFunc("/transfer-from", s.handleTransferFrom).Methods("POST")
	api.HandleFunc("/claim", s.handleClaim).Methods("POST")

	// Owner-only
	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/pause", s.handlePause).Methods("POST")
	admin.HandleFunc("/unpause", s.handleUnpause).Methods("POST")
	admin.HandleFunc("/ownership", s.handleTransferOwnership).Methods("POST")
	admin.HandleFunc("/ownership", s.handleRenounceOwnership).Methods("DELETE")

	// preflight requests only reach the middleware chain on a matched route
	s.router.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

// Router returns the configured handler
func (s *Server) Router() http.Handler {
	return s.router
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "rudolf-ledger",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
