// Package server wires the engines behind the stable v0 HTTP surface.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/StrungPattern-coder/context/engine/bus"
	"github.com/StrungPattern-coder/context/engine/composer"
	"github.com/StrungPattern-coder/context/engine/device"
	"github.com/StrungPattern-coder/context/engine/drift"
	"github.com/StrungPattern-coder/context/engine/memory"
	"github.com/StrungPattern-coder/context/engine/metrics"
	"github.com/StrungPattern-coder/context/engine/resolver"
	"github.com/StrungPattern-coder/context/engine/situational"
	"github.com/StrungPattern-coder/context/engine/snapshot"
	"github.com/StrungPattern-coder/context/engine/spatial"
	"github.com/StrungPattern-coder/context/engine/temporal"
	"github.com/StrungPattern-coder/context/internal/profile"
	"github.com/StrungPattern-coder/context/plugin/cron"
	"github.com/StrungPattern-coder/context/server/router/apiv0"
	"github.com/StrungPattern-coder/context/store"
)

// Server is the composition root: every engine is constructed here and
// injected; nothing reaches across the module boundary at import time.
type Server struct {
	echo    *echo.Echo
	profile *profile.Profile
	store   *store.Store

	broker *bus.InMemoryBroker
	bus    *bus.Bus
	cron   *cron.Runner
	cancel context.CancelFunc
}

// NewServer builds the echo server and all engines from the profile.
func NewServer(ctx context.Context, instanceProfile *profile.Profile, storeInstance *store.Store) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	if origins := instanceProfile.CORSOriginList(); len(origins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: origins}))
	}

	exporter := metrics.NewExporter(metrics.DefaultConfig())

	memoryService := memory.NewService(storeInstance, memory.Config{
		DecayThreshold:  time.Duration(instanceProfile.ContextDecayHours) * time.Hour,
		EphemeralTTL:    time.Duration(instanceProfile.EphemeralTTLSeconds) * time.Second,
		ConfidenceFloor: 0.1,
	})

	temporalReasoner := temporal.NewReasoner()
	spatialReasoner := spatial.NewReasoner("en-US")
	assumptionResolver := resolver.NewResolver(
		temporalReasoner, spatialReasoner,
		instanceProfile.DefaultConfidenceThreshold,
		instanceProfile.HighConfidenceThreshold,
	)
	promptComposer := composer.NewComposer(composer.Config{
		MaxContextTokens: instanceProfile.MaxContextTokens,
		MinRelevance:     instanceProfile.MinRelevanceScore,
	})
	driftDetector := drift.NewDetector(drift.Config{
		StalenessWindow: time.Duration(instanceProfile.ContextDecayHours) * time.Hour,
	}, memoryService)
	snapshotManager := snapshot.NewManager(storeInstance, snapshot.Config{})

	// The in-process broker is always used; a configured BusURL is only
	// logged.
	broker := bus.NewInMemoryBroker(256)
	if instanceProfile.BusURL != "" {
		slog.Info("external bus configured; using in-process broker as local transport", "bus_url", instanceProfile.BusURL)
	}
	resolutionBus := bus.New(broker, bus.Options{
		SlowPathTimeout: time.Duration(instanceProfile.SlowPathTimeoutMillis) * time.Millisecond,
		Metrics:         exporter,
	})

	busCtx, cancel := context.WithCancel(ctx)
	resolutionBus.StartListener(busCtx)

	apiv0.Register(e, &apiv0.Service{
		Profile:     instanceProfile,
		Store:       storeInstance,
		Memory:      memoryService,
		Temporal:    temporalReasoner,
		Spatial:     spatialReasoner,
		Resolver:    assumptionResolver,
		Composer:    promptComposer,
		Drift:       driftDetector,
		Snapshot:    snapshotManager,
		Bus:         resolutionBus,
		Situational: situational.NewEngine(),
		Device:      device.NewIngress(),
		Metrics:     exporter,
	})

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":  "ok",
			"version": instanceProfile.Version,
		})
	})
	e.GET("/metrics", echo.WrapHandler(exporter.Handler()))

	// Background maintenance: decay sweeps on the configured cadence,
	// ephemeral cleanup every five minutes.
	runner := cron.NewRunner()
	runner.Add("confidence-decay", time.Duration(instanceProfile.ContextDecayHours)*time.Hour, func(jobCtx context.Context) error {
		count, err := memoryService.ApplyDecay(jobCtx)
		if err == nil {
			exporter.RecordDecayed(count)
		}
		return err
	})
	runner.Add("ephemeral-cleanup", 5*time.Minute, func(jobCtx context.Context) error {
		count, err := memoryService.CleanupExpired(jobCtx)
		if err == nil {
			exporter.RecordExpired(count)
		}
		return err
	})
	runner.Add("session-reaper", time.Hour, func(jobCtx context.Context) error {
		_, err := memoryService.ReapStaleSessions(jobCtx, time.Duration(instanceProfile.ContextDecayHours)*time.Hour)
		return err
	})
	runner.Start(busCtx)

	return &Server{
		echo:    e,
		profile: instanceProfile,
		store:   storeInstance,
		broker:  broker,
		bus:     resolutionBus,
		cron:    runner,
		cancel:  cancel,
	}, nil
}

// Echo exposes the router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start begins serving. It blocks until the listener stops.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	return s.echo.Start(addr)
}

// Shutdown drains the server and stops the bus listener.
func (s *Server) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	s.cancel()
	s.cron.Stop()
	if err := s.broker.Close(); err != nil {
		slog.Error("failed to close broker", "error", err)
	}
	if err := s.store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("server shutdown complete")
}
