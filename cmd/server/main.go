// Package main provides the API server entry point for the token ledger.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rudolf-ledger/internal/api"
	"github.com/rudolf-ledger/internal/config"
	"github.com/rudolf-ledger/internal/events"
	"github.com/rudolf-ledger/internal/logging"
	"github.com/rudolf-ledger/internal/metrics"
	"github.com/rudolf-ledger/internal/service"
	"github.com/rudolf-ledger/internal/storage"
	"github.com/rudolf-ledger/internal/token"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	defer logger.Sync() // nolint:errcheck // best effort on exit

	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	dispatcher := events.NewDispatcher(logger, events.NewLogSink(logger), m)
	svcOpts := []service.Option{
		service.WithDispatcher(dispatcher),
		service.WithMetrics(m),
		service.WithLogger(logger),
	}

	var journal *storage.EventRepository
	if cfg.Database.Postgres.Enabled {
		postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Postgres")
		}
		defer postgres.Close()
		if err := checkSchema(postgres); err != nil {
			logger.WithError(err).Fatal("Postgres journal schema check failed")
		}
		journal = storage.NewEventRepository(postgres)
		dispatcher.Register(events.NewResilientSink(journal, nil, nil))
	}

	if cfg.Database.Redis.Enabled {
		redis, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redis.Close()

		cache := storage.NewClaimableCache(redis, cfg.Database.Redis.ClaimableTTL)
		dispatcher.Register(events.NewResilientSink(storage.NewEventPublisher(redis, cfg.Database.Redis.EventChannel), nil, nil))
		dispatcher.Register(cache)
		svcOpts = append(svcOpts, service.WithClaimableCache(cache))
	}

	if cfg.Database.ClickHouse.Enabled {
		clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to ClickHouse")
		}
		defer clickhouse.Close()
		if err := checkSchema(clickhouse); err != nil {
			logger.WithError(err).Fatal("ClickHouse archive schema check failed")
		}
		dispatcher.Register(events.NewResilientSink(storage.NewDistributionArchive(clickhouse), nil, nil))
	}

	logger.WithField("sinks", dispatcher.Sinks()).Info("Event sinks configured")

	deployTime := time.Now().Unix()
	tok, genesis, err := token.New(token.Config{
		Deployer:          common.HexToAddress(cfg.Token.Deployer),
		DeployTime:        deployTime,
		ReferenceEpoch:    cfg.Token.ReferenceEpoch,
		MaxCatchUpPerCall: cfg.Token.MaxCatchUpPerCall,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create token")
	}

	tokenService := service.NewTokenService(tok, svcOpts...)
	tokenService.Publish(context.Background(), deployTime, genesis)

	logger.WithFields(map[string]interface{}{
		"deployer":          cfg.Token.Deployer,
		"next_distribution": time.Unix(tok.NextDistributionTime(), 0).UTC().Format(time.RFC3339),
		"max_catchup":       cfg.Token.MaxCatchUpPerCall,
	}).Info("Token deployed")

	server := api.NewServer(&api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}, tokenService, m, reg, logger)
	if journal != nil {
		server.SetEventJournal(journal)
	}

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

type schemaChecker interface {
	CheckSchema(ctx context.Context) error
}

func checkSchema(db schemaChecker) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.CheckSchema(ctx)
}
