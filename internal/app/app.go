// -----------------------------------------------------------------------
// Application - component wiring and lifecycle
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendwatch/internal/common"
	"github.com/ternarybob/trendwatch/internal/interfaces"
	"github.com/ternarybob/trendwatch/internal/pipeline"
	"github.com/ternarybob/trendwatch/internal/publisher"
	"github.com/ternarybob/trendwatch/internal/renderer"
	"github.com/ternarybob/trendwatch/internal/scheduler"
	"github.com/ternarybob/trendwatch/internal/storage"
	"github.com/ternarybob/trendwatch/internal/upstream"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	UpstreamClient interfaces.UpstreamClient
	Renderer       interfaces.Renderer
	Publisher      interfaces.Publisher
	Notifier       interfaces.AdminNotifier

	Orchestrator *pipeline.Orchestrator
	Scheduler    interfaces.SchedulerService
}

// New wires the application in dependency order: storage first, then the
// pipeline collaborators, then the orchestrator and scheduler on top.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	upstreamClient := upstream.NewClient(&config.Upstream, logger)
	checkUpstream(upstreamClient, logger)
	renderService := renderer.NewService(logger)
	telegramPublisher := publisher.NewTelegramPublisher(&config.Publisher, logger)
	notifier := publisher.NewNotifier(telegramPublisher, config.Publisher.AdminChannel, logger)

	orchestrator := pipeline.NewOrchestrator(
		config,
		storageManager.JobStore(),
		storageManager.SettingsStore(),
		upstreamClient,
		renderService,
		telegramPublisher,
		notifier,
		logger,
	)

	app := &App{
		Config:         config,
		Logger:         logger,
		StorageManager: storageManager,
		UpstreamClient: upstreamClient,
		Renderer:       renderService,
		Publisher:      telegramPublisher,
		Notifier:       notifier,
		Orchestrator:   orchestrator,
	}

	if config.Scheduler.Enabled {
		app.Scheduler = scheduler.NewService(orchestrator, storageManager.ScheduleStore(), logger)
		if err := app.Scheduler.Start(); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		logger.Info().Msg("Scheduler disabled by configuration")
	}

	logger.Info().
		Str("upstream_url", config.Upstream.ServerURL).
		Bool("scheduler_enabled", config.Scheduler.Enabled).
		Msg("Application initialized")

	return app, nil
}

// checkUpstream pings the analysis service once at startup. Best-effort: an
// unreachable upstream is logged, not fatal, since non-strict jobs fall back
// to stub data.
func checkUpstream(client interfaces.UpstreamClient, logger arbor.ILogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.HealthCheck(ctx); err != nil {
		logger.Warn().Err(err).Msg("Analysis service unreachable at startup, stub fallback will apply")
		return
	}
	logger.Info().Msg("Analysis service reachable")
}

// Close shuts components down in reverse dependency order. The orchestrator
// stops first so no job goroutine touches a closed store.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}

	if a.Orchestrator != nil {
		a.Orchestrator.Stop()
	}

	if a.UpstreamClient != nil {
		if err := a.UpstreamClient.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close upstream client")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}

	a.Logger.Info().Msg("Application closed")
}
