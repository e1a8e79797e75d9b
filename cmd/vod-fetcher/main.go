package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/vod-fetcher/internal/adapter/ffmpeg"
	"github.com/vertextoedge/vod-fetcher/internal/adapter/filesystem"
	"github.com/vertextoedge/vod-fetcher/internal/adapter/hls"
	"github.com/vertextoedge/vod-fetcher/internal/adapter/sqlite"
	"github.com/vertextoedge/vod-fetcher/internal/adapter/vodapi"
	"github.com/vertextoedge/vod-fetcher/internal/config"
	"github.com/vertextoedge/vod-fetcher/internal/domain"
	"github.com/vertextoedge/vod-fetcher/internal/logger"
	"github.com/vertextoedge/vod-fetcher/internal/port"
	"github.com/vertextoedge/vod-fetcher/internal/service/maintenance"
	"github.com/vertextoedge/vod-fetcher/internal/service/orchestrator"
	"github.com/vertextoedge/vod-fetcher/internal/service/pipeline"
	"github.com/vertextoedge/vod-fetcher/internal/service/server"
	"github.com/vertextoedge/vod-fetcher/internal/tasklist"
)

const version = "0.1.0"

// exitFailures is the process status when some tasks exhausted every round
const exitFailures = 2

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	tasksPath := flag.String("tasks", "tasks.json", "Path to task list (.json, .yaml or .yml)")
	flag.Parse()

	os.Exit(run(*configPath, *tasksPath))
}

func run(configPath, tasksPath string) int {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	zapLogger := logger.GetZapLogger()
	zapLogger.Info("starting vod-fetcher",
		zap.String("version", version),
		zap.String("config", configPath),
		zap.String("tasks", tasksPath),
	)

	// Load task list
	tasks, err := tasklist.LoadFile(tasksPath)
	if err != nil {
		zapLogger.Error("failed to load task list", zap.Error(err))
		return 1
	}

	// Verify the remux utility before any network work
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ffmpegVersion, err := ffmpeg.CheckBinary(ctx, cfg.Assemble.FfmpegPath)
	if err != nil {
		zapLogger.Error("remux utility unavailable", zap.Error(err))
		return 1
	}
	zapLogger.Debug("found remux utility", zap.String("version", ffmpegVersion))

	// Initialize destination store
	fsManager, err := filesystem.NewManager(cfg.Output.Dir, cfg.Assemble.FinalExt)
	if err != nil {
		zapLogger.Error("failed to create output directory", zap.Error(err))
		return 1
	}

	// Open run history
	var history port.HistoryRepository
	var store *sqlite.Store
	if cfg.Database.Enabled {
		dbPath := cfg.Database.Path
		if dbPath == "" {
			dbPath = filepath.Join(cfg.Output.Dir, ".vod-fetcher.db")
		}
		store, err = sqlite.Open(dbPath)
		if err != nil {
			zapLogger.Error("failed to open database", zap.Error(err), zap.String("path", dbPath))
			return 1
		}
		defer store.Close()
		history = store
	}

	// Session cookies
	cookies, err := vodapi.LoadCookies(cfg.API.CookiesFile)
	if err != nil {
		zapLogger.Warn("continuing without session cookies",
			zap.String("path", cfg.API.CookiesFile),
			zap.Error(err))
	}

	// Create API client
	client, err := vodapi.NewClient(vodapi.Config{
		BaseURL:               cfg.API.BaseURL,
		TokenPath:             cfg.API.TokenPath,
		VideoURL:              cfg.API.VideoURL,
		ClientType:            cfg.API.ClientType,
		Secret:                cfg.Auth.Secret,
		Scope:                 cfg.Auth.Scope,
		ContentType:           cfg.Auth.ContentType,
		CSRFCookie:            cfg.Auth.CSRFCookie,
		Referer:               cfg.API.Referer,
		UserAgent:             cfg.API.UserAgent,
		Cookies:               cookies,
		Timeout:               cfg.API.GetTimeout(),
		ResponseHeaderTimeout: cfg.Fetch.GetResponseHeaderTimeout(),
		BufferSize:            cfg.Fetch.GetBufferSize(),
		SkipTLSVerify:         cfg.API.SkipTLSVerify,
		MinInterval:           cfg.API.GetMinInterval(),
	}, zapLogger)
	if err != nil {
		zapLogger.Error("failed to create API client", zap.Error(err))
		return 1
	}

	fetcher := hls.NewFetcher(client, hls.Config{
		SegmentExt:       cfg.Fetch.SegmentExt,
		BufferSize:       cfg.Fetch.GetBufferSize(),
		ProgressInterval: cfg.Fetch.GetProgressInterval(),
		RequestTimeout:   cfg.Fetch.GetRequestTimeout(),
	}, zapLogger)

	assembler := ffmpeg.NewAssembler(ffmpeg.Config{
		FfmpegPath:           cfg.Assemble.FfmpegPath,
		AudioBitstreamFilter: cfg.Assemble.AudioBitstreamFilter,
		Format:               ffmpeg.FormatForExt(cfg.Assemble.FinalExt),
	}, zapLogger)

	runner := pipeline.New(client, client, fetcher, assembler, fsManager, zapLogger)

	// Sweep leftovers of crashed runs, then keep sweeping while running
	maintenanceService := maintenance.New(&maintenance.Config{
		CleanupInterval: time.Hour,
		PartialMaxAge:   cfg.Maintenance.GetPartialMaxAge(),
		HistoryMaxAge:   cfg.Maintenance.GetHistoryMaxAge(),
	}, fsManager, history, zapLogger)
	maintenanceService.RunOnce()

	go func() {
		if err := maintenanceService.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Error("maintenance service stopped with error", zap.Error(err))
		}
	}()
	defer maintenanceService.Stop()

	// Status server
	if cfg.HTTP.Enabled && store != nil {
		httpServer := server.New(&server.Config{
			BindAddr:     cfg.HTTP.BindAddr,
			ReadTimeout:  cfg.HTTP.GetReadTimeout(),
			WriteTimeout: cfg.HTTP.GetWriteTimeout(),
			IdleTimeout:  cfg.HTTP.GetIdleTimeout(),
		}, store, fsManager, fsManager, zapLogger)

		go func() {
			if err := httpServer.Start(); err != nil {
				zapLogger.Error("HTTP server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Stop(shutdownCtx); err != nil {
				zapLogger.Error("failed to stop HTTP server gracefully", zap.Error(err))
			}
		}()
	} else if cfg.HTTP.Enabled {
		zapLogger.Warn("status server requires database.enabled, not starting")
	}

	orch := orchestrator.New(&orchestrator.Config{
		MaxRounds: cfg.Retry.Rounds,
		Workers:   cfg.Retry.Workers,
		Retry:     cfg.Retry.Policy(),
	}, runner, fsManager, history, zapLogger)

	report, err := orch.Run(ctx, tasks)
	if err != nil {
		zapLogger.Error("run aborted", zap.Error(err))
		return 1
	}

	runLogger := logger.ForRun(report.RunID)
	for _, name := range report.Failed {
		runLogger.Warn("task failed", zap.String("name", name), zap.Error(report.Errors[name]))
	}

	printReport(os.Stdout, report)

	if report.HasFailures() {
		return exitFailures
	}
	return 0
}

// printReport writes the three sorted name lists of a report
func printReport(w io.Writer, report *domain.Report) {
	sections := []struct {
		title string
		names []string
	}{
		{"Skipped (already present)", report.Skipped},
		{"Succeeded", report.Succeeded},
		{"Failed", report.Failed},
	}

	for _, s := range sections {
		fmt.Fprintf(w, "%s: %d\n", s.title, len(s.names))
		for _, name := range s.names {
			fmt.Fprintf(w, "  %s\n", name)
		}
	}
}
