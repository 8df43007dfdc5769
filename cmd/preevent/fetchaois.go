package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/aoi"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/models"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/regions"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/vexcel"
)

// runFetchAOIs pulls the gray-sky collections intersecting the supported
// coverage area and writes them to the AOI candidates file, newest capture
// first.
func runFetchAOIs(args []string) {
	fs := flag.NewFlagSet("fetch-aois", flag.ExitOnError)
	out := fs.String("out", "", "candidates file to write (defaults to AOI_PATH)")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	envFile := fs.String("config", "", "env file loaded before the environment")
	fs.Parse(args)

	cfg := mustLoadConfig(*envFile)
	log := newLogger(cfg, *verbose)

	if cfg.Vexcel.Username == "" || cfg.Vexcel.Password == "" {
		log.Fatal("Vexcel credentials are not configured", nil, map[string]interface{}{
			"username_set": cfg.Vexcel.Username != "",
		})
	}

	path := cfg.Pipeline.AOIPath
	if *out != "" {
		path = *out
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := vexcel.NewClient(cfg.Vexcel.BaseURL, log)
	if err := client.Login(ctx, cfg.Vexcel.Username, cfg.Vexcel.Password); err != nil {
		log.Fatal("Vexcel login failed", err, nil)
	}

	searchArea := models.NewGeometry(regions.CoverageBound().ToPolygon())
	candidates, err := client.GraySkyCollections(ctx, searchArea.WKT())
	if err != nil {
		log.Fatal("Failed to fetch gray-sky collections", err, nil)
	}
	if len(candidates) == 0 {
		log.Warn("No gray-sky collections intersect the coverage area", nil)
	}

	aoi.ComputeAreas(candidates)
	aoi.SortCandidates(candidates)

	if err := aoi.Save(path, candidates); err != nil {
		log.Fatal("Failed to write AOI candidates", err, map[string]interface{}{
			"path": path,
		})
	}

	fmt.Printf("Saved %d AOI candidates to %s\n", len(candidates), path)
}
