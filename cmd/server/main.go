package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"econexus/internal/adapters/artifacts"
	httpadapter "econexus/internal/adapters/http"
	pg "econexus/internal/adapters/postgres"
	"econexus/internal/config"
	"econexus/internal/platform/logger"
	"econexus/internal/platform/metrics"
	"econexus/internal/ports"
	dealsvc "econexus/internal/services/deals"
	kpisvc "econexus/internal/services/kpi"
	passportsvc "econexus/internal/services/passports"
	"econexus/internal/workers/notifier"
)

func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func main() {
	cfg, err := config.Load(os.Getenv("ECONEXUS_CONFIG"))
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)
	if cfg.Postgres.DSN == "" {
		log.Error("ECONEXUS_POSTGRES_DSN is required")
		os.Exit(1)
	}

	if err := runMigrations(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := pg.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("db connected")

	m := metrics.New()

	var artifactClient ports.ArtifactRequester
	if cfg.Artifacts.QRServiceURL != "" {
		artifactClient = artifacts.NewQRClient(cfg.Artifacts.QRServiceURL)
	}

	passports := passportsvc.New(db, artifactClient, m, log)
	deals := dealsvc.New(db, passports, m, log)
	kpi := kpisvc.New(db, m, log)

	if cfg.Notifier.Workers > 0 {
		interval := time.Duration(cfg.Notifier.PollMillis) * time.Millisecond
		notifier.Run(ctx, db.Notifications(), notifier.SlogSink{Log: log}, log, cfg.Notifier.Workers, interval)
		log.Info("notifier workers started", "count", cfg.Notifier.Workers)
	}

	srv := httpadapter.New(deals, passports, kpi, log, cfg.Metrics.Enabled)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: r}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	log.Info("listening", "addr", cfg.HTTP.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		log.Info("graceful shutdown complete")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}
