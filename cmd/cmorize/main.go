// Command cmorize reformats ERA5 monthly reanalysis files into CMOR
// convention output.
//
// Usage:
//
//	go run ./cmd/cmorize -config era5.toml -in raw/Tier3/ERA5 -out obs/Tier3/ERA5
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/seaice-drift/internal/adapter/netcdf"
	"github.com/couchcryptid/seaice-drift/internal/cmorize"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "era5.toml", "CMORizer TOML configuration")
	inDir := flag.String("in", "", "directory with the raw ERA5 files")
	outDir := flag.String("out", "", "output directory")
	flag.Parse()

	logger := sharedobs.NewLogger(
		sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
	)
	if err := run(logger, *configPath, *inDir, *outDir); err != nil {
		logger.Error("cmorize failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath, inDir, outDir string) error {
	if inDir == "" || outDir == "" {
		flag.Usage()
		return errors.New("missing required flags: -in, -out")
	}
	cfg, err := cmorize.LoadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := cmorize.New(cfg, netcdf.NewReader(logger), netcdf.NewWriter(logger, "seaice-drift cmorize"), logger)
	written, err := c.Run(ctx, inDir, outDir)
	if err != nil {
		return err
	}
	logger.Info("cmorize complete", "dataset", cfg.Attributes.DatasetID, "files", len(written), "out", outDir)
	return nil
}
