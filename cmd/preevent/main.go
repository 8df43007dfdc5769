// Command preevent drives the pre-event extraction pipeline: fetching
// gray-sky AOI candidates from the imagery provider, running extractions
// from the command line, and serving the HTTP control surface.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/config"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/database"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/handlers"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/logger"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/pipeline"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/regularize"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/store"
)

// Exit codes for fatal run conditions, distinct so wrapper scripts can tell
// an unusable AOI from a broken environment.
const (
	exitUsage          = 1
	exitNoRegionMatch  = 2
	exitLoadFailure    = 3
	exitNoAssociations = 4
)

const usage = `Usage: preevent <command> [flags]

Commands:
  fetch-aois   fetch gray-sky AOI candidates and write the candidates file
  extract      run the pre-event extraction for one AOI
  serve        serve the HTTP control surface

Run 'preevent <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(exitUsage)
	}

	switch os.Args[1] {
	case "fetch-aois":
		runFetchAOIs(os.Args[2:])
	case "extract":
		runExtract(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(exitUsage)
	}
}

// mustLoadConfig loads an optional env file, then the environment-driven
// configuration. Configuration failures are fatal for every subcommand.
func mustLoadConfig(envFile string) *config.Config {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load env file %s: %v\n", envFile, err)
			os.Exit(exitUsage)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(exitUsage)
	}
	return cfg
}

// newLogger builds the subcommand logger, dropping to debug level when
// verbose is set.
func newLogger(cfg *config.Config, verbose bool) *logger.Logger {
	log := logger.New(cfg.Server.Env)
	if verbose {
		log = log.Verbose()
	}
	return log
}

// openStore builds the configured feature source along with its readiness
// check. The returned cleanup closes the postgres pool when one was opened.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.LayerStore, handlers.SourceChecker, func()) {
	if cfg.Pipeline.Source == config.SourcePostgres {
		db, err := database.NewPostgresPool(ctx, cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database", err, map[string]interface{}{
				"pool_min": cfg.Database.PoolMin,
				"pool_max": cfg.Database.PoolMax,
			})
		}
		log.Info("Database connection established", map[string]interface{}{
			"pool_min": cfg.Database.PoolMin,
			"pool_max": cfg.Database.PoolMax,
		})
		return store.NewPostgresStore(db), db, db.Close
	}

	fileStore := store.NewFileStore(cfg.Pipeline.DataRoot)
	return fileStore, fileStore, func() {}
}

// pipelineOptions maps the loaded configuration onto pipeline options.
func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		Dedup:     cfg.Pipeline.Dedup,
		OutputDir: cfg.Pipeline.OutputDir,
		Regularization: regularize.Params{
			Enabled:                    cfg.Regularization.Enabled,
			ParallelThreshold:          cfg.Regularization.ParallelThreshold,
			SimplifyTolerance:          cfg.Regularization.SimplifyTolerance,
			Allow45:                    cfg.Regularization.Allow45,
			DiagonalThresholdReduction: cfg.Regularization.DiagonalThresholdReduction,
			AllowCircles:               cfg.Regularization.AllowCircles,
			Workers:                    cfg.Regularization.Workers,
		},
	}
}
