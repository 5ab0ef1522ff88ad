// Package app wires the parking engine together from configuration.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/parkade/parkade/api/status"
	"github.com/parkade/parkade/config"
	"github.com/parkade/parkade/core/fine"
	coremetrics "github.com/parkade/parkade/core/metrics"
	"github.com/parkade/parkade/core/parking"
	"github.com/parkade/parkade/core/registry"
	"github.com/parkade/parkade/core/report"
	"github.com/parkade/parkade/core/reservation"
	"github.com/parkade/parkade/core/scheduler"
	"github.com/parkade/parkade/infra/gate"
	"github.com/parkade/parkade/infra/logger"
	"github.com/parkade/parkade/infra/metrics"
	"github.com/parkade/parkade/internal/eventbus"
	"github.com/parkade/parkade/store"
	"github.com/parkade/parkade/store/memory"
	"github.com/parkade/parkade/store/sqlite"
)

// Service bundles the wired engine and its background workers.
type Service struct {
	Orchestrator *parking.Orchestrator
	Registry     *registry.SpotRegistry
	Ledger       *reservation.Ledger
	Fines        *fine.Service
	Reports      *report.Collector
	Stores       store.Stores

	cfg      *config.Config
	bus      *eventbus.Bus
	sweeper  *scheduler.Sweeper
	notifier *gate.Notifier
	db       *sqlite.DB
	log      logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logger.SetGlobalLevel(cfg.Logging.Level)
	logg := logger.New("service")

	var (
		stores store.Stores
		db     *sqlite.DB
	)
	switch cfg.Store.Backend {
	case "sqlite":
		var err error
		db, err = sqlite.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		stores = db.Stores()
	default:
		stores = memory.New()
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PromEnabled {
		sink, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.Influx.Enabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics.Influx))
	}
	var sink coremetrics.Sink
	switch len(sinks) {
	case 0:
		sink = coremetrics.NopSink{}
	case 1:
		sink = sinks[0]
	default:
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New()
	spots := registry.New(stores.Spots, logger.New("registry"))
	ledger := reservation.New(stores.Reservations, sink, bus, logger.New("reservation"))
	fines := fine.NewService(stores.Fines, cfg.Fines.Policy(), logger.New("fine"))
	orch := parking.New(cfg.Parking, spots, ledger, fines,
		stores.Vehicles, stores.Tickets, stores.Payments,
		sink, bus, logger.New("parking"))
	reports := report.New(stores)
	sweeper := scheduler.New(cfg.Sweep, ledger, logger.New("sweeper"))

	svc := &Service{
		Orchestrator: orch,
		Registry:     spots,
		Ledger:       ledger,
		Fines:        fines,
		Reports:      reports,
		Stores:       stores,
		cfg:          cfg,
		bus:          bus,
		sweeper:      sweeper,
		db:           db,
		log:          logg,
	}

	if cfg.Gate.Enabled {
		notifier, err := gate.New(cfg.Gate, logger.New("gate"))
		if err != nil {
			return nil, fmt.Errorf("gate notifier: %w", err)
		}
		svc.notifier = notifier
	}
	return svc, nil
}

// Run starts the background workers and blocks until the context is
// cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.sweeper.Run(ctx)

	if s.notifier != nil {
		events := s.bus.Subscribe()
		go s.notifier.Consume(events)
	}

	if s.cfg.Metrics.PromEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PromAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	if s.cfg.API.Enabled {
		go func() {
			if err := s.serveAPI(ctx); err != nil {
				s.log.Errorf("status api: %v", err)
			}
		}()
	}

	<-ctx.Done()
	return nil
}

func (s *Service) serveAPI(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/api/lot", status.NewLotHandler(s.Reports))
	mux.Handle("/api/spots", status.NewAvailabilityHandler(s.Orchestrator))
	mux.Handle("/api/fines", status.NewFinesHandler(s.Reports))

	srv := &http.Server{Addr: s.cfg.API.Addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Infof("status api listening on %s", s.cfg.API.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.notifier != nil {
		s.notifier.Close()
	}
	s.bus.Close()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
