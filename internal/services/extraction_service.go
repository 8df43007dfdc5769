package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/aoi"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/logger"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/models"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/pipeline"
)

// Service-level errors
var (
	ErrNoAOICandidates    = errors.New("no AOI candidates available")
	ErrAOIIndexOutOfRange = errors.New("AOI index out of range")
)

// Runner abstracts the extraction pipeline so handlers can be tested without
// performing a full run.
type Runner interface {
	Run(ctx context.Context, target models.AOI) (*pipeline.Result, error)
}

// ExtractionService defines the business operations behind the extraction
// endpoints.
type ExtractionService interface {
	// ListAOIs returns the extraction candidates from the configured AOI
	// file, in file order.
	// Returns ErrNoAOICandidates if the file is missing or holds no
	// candidates.
	ListAOIs(ctx context.Context) ([]models.AOI, error)

	// Extract runs the pre-event extraction for the candidate at the given
	// index and returns the run summary.
	// Returns ErrNoAOICandidates if the AOI file is missing or empty.
	// Returns ErrAOIIndexOutOfRange if the index does not name a candidate.
	// Pipeline failures are returned wrapped, with the run sentinels
	// (regions.ErrNoRegionMatch, loader.ErrNoStructures,
	// assoc.ErrNoAssociations) preserved for errors.Is.
	Extract(ctx context.Context, index int) (*pipeline.Result, error)
}

// extractionService is the concrete implementation of ExtractionService.
type extractionService struct {
	aoiPath string
	runner  Runner
	log     *logger.Logger
}

// NewExtractionService creates a new instance of ExtractionService reading
// candidates from the AOI file at aoiPath.
func NewExtractionService(aoiPath string, runner Runner, log *logger.Logger) ExtractionService {
	return &extractionService{
		aoiPath: aoiPath,
		runner:  runner,
		log:     log,
	}
}

// ListAOIs loads the candidate file and returns its AOIs in file order.
func (s *extractionService) ListAOIs(ctx context.Context) ([]models.AOI, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.loadCandidates()
}

// Extract validates the index against the candidate file and hands the
// selected AOI to the pipeline.
func (s *extractionService) Extract(ctx context.Context, index int) (*pipeline.Result, error) {
	candidates, err := s.loadCandidates()
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(candidates) {
		s.log.Warn("Extraction requested for unknown AOI index", map[string]interface{}{
			"aoi_index":  index,
			"candidates": len(candidates),
		})
		return nil, fmt.Errorf("%w: index %d, have %d candidates",
			ErrAOIIndexOutOfRange, index, len(candidates))
	}

	target := candidates[index]
	s.log.Info("Starting extraction run", map[string]interface{}{
		"aoi_index":  index,
		"event_id":   target.EventID,
		"event_name": target.EventName,
		"collection": target.Collection,
	})

	result, err := s.runner.Run(ctx, target)
	if err != nil {
		s.log.Error("Extraction run failed", err, map[string]interface{}{
			"aoi_index": index,
			"event_id":  target.EventID,
		})
		return nil, fmt.Errorf("extraction run for %s: %w", target.EventID, err)
	}

	s.log.Info("Extraction run succeeded", map[string]interface{}{
		"aoi_index": index,
		"event_id":  target.EventID,
		"records":   result.Records,
		"archive":   result.ArchivePath,
	})

	return result, nil
}

func (s *extractionService) loadCandidates() ([]models.AOI, error) {
	candidates, err := aoi.Load(s.aoiPath)
	if err != nil {
		s.log.Warn("AOI candidate file unavailable", map[string]interface{}{
			"path": s.aoiPath,
		})
		return nil, fmt.Errorf("%w: %s", ErrNoAOICandidates, s.aoiPath)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s holds no candidates", ErrNoAOICandidates, s.aoiPath)
	}
	return candidates, nil
}
