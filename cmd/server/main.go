// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carrental/internal/audit"
	"carrental/internal/auth"
	"carrental/internal/catalog"
	"carrental/internal/config"
	"carrental/internal/customer"
	"carrental/internal/database"
	"carrental/internal/eventstore"
	"carrental/internal/logger"
	"carrental/internal/rental"
	"carrental/internal/server"
	"carrental/internal/telemetry"

	"go.uber.org/zap"
)

var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("CARRENTAL_CONFIG"), "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "carrental: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:    cfg.Telemetry.ServiceName,
		Version:        version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
		MetricInterval: cfg.Telemetry.MetricInterval,
	})
	if err != nil {
		return err
	}

	db, err := database.Open(ctx, database.Options{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		log.Info("database schema ready")
	}

	customers := customer.NewStore(db)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL).
		WithLookup(customer.LookupIdentity(customers))
	accounts := customer.NewService(customers, tokens, customer.RateLimit{
		PerMinute: cfg.Auth.LoginPerMinute,
		Burst:     cfg.Auth.LoginBurst,
	}, log)

	events := eventstore.New(db)
	rentals, err := rental.NewService(rental.NewUnitOfWork(db, events), rental.NewLedger(db), events, log)
	if err != nil {
		return err
	}

	var scheduler *audit.Scheduler
	if cfg.Audit.Enabled {
		auditor, err := audit.NewAuditor(db, log)
		if err != nil {
			return err
		}
		scheduler, err = audit.NewScheduler(auditor, cfg.Audit.Schedule, 30*time.Second, log)
		if err != nil {
			return err
		}
		scheduler.Start()
		log.Info("availability audit scheduled", zap.String("schedule", cfg.Audit.Schedule))
	}

	srv := &http.Server{
		Addr: cfg.Address(),
		Handler: server.NewRouter(server.Deps{
			Logger:    log,
			DB:        db,
			Tokens:    tokens,
			Cars:      catalog.NewStore(db),
			Customers: customers,
			Accounts:  accounts,
			Rentals:   rentals,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", zap.Error(err))
	}
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracer shutdown failed", zap.Error(err))
	}
	return nil
}
