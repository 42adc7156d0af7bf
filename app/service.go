package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/voltq/stationd/api"
	"github.com/voltq/stationd/config"
	"github.com/voltq/stationd/core/station"
	corestorage "github.com/voltq/stationd/core/storage"
	"github.com/voltq/stationd/infra/logger"
	"github.com/voltq/stationd/infra/metrics"
	infrastorage "github.com/voltq/stationd/infra/storage"
)

// Service orchestrates the station engine, its background loops and the
// HTTP surface.
type Service struct {
	Engine *station.Engine

	cfg         *config.Config
	store       corestorage.Store
	pg          *infrastorage.Postgres
	log         logger.Logger
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var store corestorage.Store
	var pg *infrastorage.Postgres
	switch cfg.Storage.Backend {
	case "postgres":
		var err error
		pg, err = infrastorage.Connect(ctx, cfg.Storage.URL)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		store = pg
	case "memory":
		store = corestorage.NewMemory()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	engine, err := station.New(store, cfg.Station, cfg.Tariff, logger.New("station"))
	if err != nil {
		if pg != nil {
			pg.Close()
		}
		return nil, fmt.Errorf("station engine: %w", err)
	}

	return &Service{
		Engine:      engine,
		cfg:         cfg,
		store:       store,
		pg:          pg,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}, nil
}

// Run starts the background loops and the HTTP server and blocks until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Engine.Initialize(ctx); err != nil {
		return fmt.Errorf("engine init: %w", err)
	}

	go s.loop(ctx, time.Duration(s.cfg.Station.SchedulerIntervalSeconds)*time.Second, "scheduler", s.Engine.Schedule)
	go s.loop(ctx, time.Duration(s.cfg.Station.MonitorIntervalSeconds)*time.Second, "monitor", s.Engine.CheckCompletedSessions)

	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:    s.cfg.API.Addr,
		Handler: api.NewServer(s.Engine, s.store, logger.New("api")).Routes(),
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("http server listening on %s", s.cfg.API.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("http shutdown: %v", err)
	}
	return nil
}

// loop runs fn on a fixed interval until the context is cancelled. Errors are
// logged and the loop keeps going.
func (s *Service) loop(ctx context.Context, interval time.Duration, name string, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				s.log.Errorf("%s pass: %v", name, err)
			}
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.pg != nil {
		s.pg.Close()
	}
	return nil
}
