// Command seaicedrift computes the sea-ice drift diagnostic for the datasets
// of a recipe and writes climatologies, metric reports and figures.
//
// Usage:
//
//	RECIPE_FILE=recipe.toml go run ./cmd/seaicedrift
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/seaice-drift/internal/adapter/httpadapter"
	"github.com/couchcryptid/seaice-drift/internal/adapter/netcdf"
	"github.com/couchcryptid/seaice-drift/internal/adapter/plot"
	"github.com/couchcryptid/seaice-drift/internal/adapter/report"
	"github.com/couchcryptid/seaice-drift/internal/config"
	"github.com/couchcryptid/seaice-drift/internal/observability"
	"github.com/couchcryptid/seaice-drift/internal/pipeline"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	var plotter pipeline.Plotter
	if cfg.WritePlots {
		plotter = plot.NewPlotter(logger)
		logger.Info("plotting enabled", "plot_dir", cfg.PlotDir, "format", cfg.OutputFileType)
	} else {
		logger.Info("plotting disabled")
	}

	p := pipeline.New(pipeline.Options{
		Datasets:         cfg.Datasets,
		ReferenceDataset: cfg.ReferenceDataset,
		Region:           cfg.Region,
		AreaBounds:       cfg.AreaBounds,
		WorkDir:          cfg.WorkDir,
		PlotDir:          cfg.PlotDir,
		OutputFileType:   cfg.OutputFileType,
		MaskCacheSize:    cfg.MaskCacheSize,
	},
		netcdf.NewReader(logger),
		netcdf.NewWriter(logger, "seaice-drift"),
		report.NewCSVWriter(),
		plotter,
		logger,
		metrics,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Status server for long runs, feature-flagged via HTTP_ADDR.
	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, metrics.Handler(), logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server error", "error", err)
			}
		}()
	}

	logger.Info("starting drift run",
		"recipe", cfg.RecipeFile,
		"datasets", len(cfg.Datasets),
		"reference", cfg.ReferenceDataset,
		"region", cfg.Region.Describe(),
	)
	summary, runErr := p.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("status server shutdown error", "error", err)
		}
		cancel()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.MetricsFile), 0o755); err != nil {
		logger.Error("metrics dir error", "error", err)
	} else if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
		logger.Error("metrics export error", "error", err)
	}

	if runErr != nil {
		logger.Error("drift run failed", "error", runErr)
		os.Exit(1)
	}
	logger.Info("drift run complete", "completed", len(summary.Completed), "failed", len(summary.Failed))
	if err := summary.Err(); err != nil {
		logger.Error("datasets failed", "error", err)
		os.Exit(1)
	}
}
