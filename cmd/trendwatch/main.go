package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendwatch/internal/app"
	"github.com/ternarybob/trendwatch/internal/common"
	"github.com/ternarybob/trendwatch/internal/models"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	// One-shot modes: act once, then exit
	runOnce      = flag.Bool("once", false, "Submit one report, wait for completion, then exit")
	addSchedule  = flag.String("add-schedule", "", "Persist a recurring report schedule (5-field cron expression) and exit")
	saveDefaults = flag.Bool("save-defaults", false, "Persist -days/-format/-channel as the requester's defaults and exit")
	reqDays      = flag.Int("days", 0, "Analysis window in days (0: use the requester's saved default)")
	reqFormat    = flag.String("format", "", "Report format: pdf, excel or html")
	reqChannel   = flag.String("channel", "", "Destination channel")
	reqUser      = flag.String("requested-by", "cli", "Requester identity")

	config *common.Config
	logger arbor.ILogger
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Trendwatch version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("trendwatch.toml"); err == nil {
			configFiles = append(configFiles, "trendwatch.toml")
		} else if _, err := os.Stat("deployments/local/trendwatch.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/trendwatch.toml")
		}
	}

	// Startup order: config (defaults -> files -> env), logger, banner
	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Str("environment", config.Environment).
		Str("log_level", config.Logging.Level).
		Msg("Application configuration loaded")

	// Scheduler is pointless for a one-shot run
	oneShot := *runOnce || *addSchedule != "" || *saveDefaults
	if oneShot {
		config.Scheduler.Enabled = false
	}

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	switch {
	case *addSchedule != "":
		os.Exit(runAddSchedule(application))
	case *saveDefaults:
		os.Exit(runSaveDefaults(application))
	case *runOnce:
		os.Exit(runOneShot(application))
	}

	logger.Info().Msg("Trendwatch ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Interrupt signal received, shutting down")
}

// requestParams builds report params from the CLI flags. An omitted -days
// flag falls back to the requester's saved default; zero stays zero when no
// settings exist and the submission is rejected downstream.
func requestParams(application *app.App) models.ReportParams {
	days := *reqDays
	if days == 0 {
		if settings, err := application.StorageManager.SettingsStore().GetSettings(context.Background(), *reqUser); err == nil {
			days = settings.DefaultDays
		}
	}
	return models.ReportParams{
		Days:               days,
		Format:             models.ReportFormat(*reqFormat),
		DestinationChannel: *reqChannel,
	}
}

// runOneShot submits a single report job and polls until it settles
func runOneShot(application *app.App) int {
	ctx := context.Background()
	jobID, err := application.Orchestrator.Submit(ctx, *reqUser, requestParams(application))
	if err != nil {
		logger.Error().Err(err).Msg("Submission failed")
		fmt.Fprintf(os.Stderr, "error: %s\n", models.CategoryOf(err).UserMessage())
		return 1
	}

	fmt.Printf("submitted job %s\n", jobID)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		job, err := application.Orchestrator.GetStatus(ctx, jobID)
		if err != nil {
			logger.Error().Err(err).Str("job_id", jobID).Msg("Status lookup failed")
			return 1
		}

		if !job.State.IsTerminal() {
			continue
		}

		if job.State == models.JobStateDone {
			fmt.Printf("done: %s\n", job.ResultURI)
			return 0
		}

		fmt.Fprintf(os.Stderr, "failed (%s): %s\n", job.ErrorCategory, job.LastError)
		return 1
	}
	return 1
}

// runAddSchedule persists a recurring report schedule
func runAddSchedule(application *app.App) int {
	schedule := models.NewReportSchedule(*reqUser, *addSchedule, requestParams(application))
	if err := application.StorageManager.ScheduleStore().SaveSchedule(context.Background(), schedule); err != nil {
		logger.Error().Err(err).Msg("Failed to save schedule")
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Printf("saved schedule %s (%s)\n", schedule.ID, schedule.CronExpr)
	return 0
}

// runSaveDefaults persists the requester's default report parameters
func runSaveDefaults(application *app.App) int {
	settings := &models.RequesterSettings{
		RequesterID:    *reqUser,
		DefaultDays:    *reqDays,
		DefaultFormat:  models.ReportFormat(*reqFormat),
		DefaultChannel: *reqChannel,
	}
	if err := application.StorageManager.SettingsStore().SaveSettings(context.Background(), settings); err != nil {
		logger.Error().Err(err).Msg("Failed to save requester defaults")
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Printf("saved defaults for %s\n", *reqUser)
	return 0
}
