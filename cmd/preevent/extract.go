package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/aoi"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/assoc"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/loader"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/metrics"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/pipeline"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/regions"
)

// runExtract runs one extraction from the command line.
func runExtract(args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	aoiIndex := fs.Int("aoi-index", -1, "AOI candidate index to extract; prompts when unset")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	envFile := fs.String("config", "", "env file loaded before the environment")
	fs.Parse(args)

	cfg := mustLoadConfig(*envFile)
	log := newLogger(cfg, *verbose)

	candidates, err := aoi.Load(cfg.Pipeline.AOIPath)
	if err != nil {
		log.Fatal("Failed to load AOI candidates, run fetch-aois first", err, map[string]interface{}{
			"path": cfg.Pipeline.AOIPath,
		})
	}

	var selector aoi.Selector
	if *aoiIndex >= 0 {
		selector = aoi.IndexSelector{Index: *aoiIndex}
	} else {
		selector = aoi.PromptSelector{In: os.Stdin, Out: os.Stdout}
	}

	target, err := selector.Select(candidates)
	if err != nil {
		log.Fatal("AOI selection failed", err, nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, _, cleanup := openStore(ctx, cfg, log)
	defer cleanup()

	p := pipeline.New(st, pipelineOptions(cfg), metrics.NewRegistry(), log)

	result, err := p.Run(ctx, target)
	if err != nil {
		log.Error("Extraction failed", err, map[string]interface{}{
			"event_id": target.EventID,
		})
		os.Exit(extractionExitCode(err))
	}

	fmt.Printf("Wrote %d records for %s\n", result.Records, target.EventName)
	fmt.Printf("  archive:    %s\n", result.ArchivePath)
	fmt.Printf("  descriptor: %s\n", result.DescriptorPath)
}

// extractionExitCode maps fatal pipeline errors onto the documented exit
// codes.
func extractionExitCode(err error) int {
	switch {
	case errors.Is(err, regions.ErrNoRegionMatch):
		return exitNoRegionMatch
	case errors.Is(err, loader.ErrNoStructures):
		return exitLoadFailure
	case errors.Is(err, assoc.ErrNoAssociations):
		return exitNoAssociations
	default:
		return exitUsage
	}
}
