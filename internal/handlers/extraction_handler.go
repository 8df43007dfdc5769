package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/assoc"
	apierrors "github.com/buglovic/AU-pre-event-Elements-extraction/internal/errors"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/loader"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/middleware"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/models"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/pipeline"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/regions"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/services"
)

// ExtractionHandler handles AOI listing and extraction-run HTTP requests.
type ExtractionHandler struct {
	service services.ExtractionService
}

// NewExtractionHandler creates a new ExtractionHandler instance.
func NewExtractionHandler(service services.ExtractionService) *ExtractionHandler {
	return &ExtractionHandler{
		service: service,
	}
}

// CreateExtractionRequest represents the body of the create-extraction
// endpoint. AOIIndex is a pointer so that index 0 survives the required
// check.
type CreateExtractionRequest struct {
	AOIIndex *int `json:"aoi_index" binding:"required,gte=0"`
}

// AOISummary represents one extraction candidate in the listing response.
// Geometry is omitted; candidates are selected by index.
type AOISummary struct {
	Index      int     `json:"index"`
	EventID    string  `json:"event_id"`
	EventName  string  `json:"event_name"`
	Collection string  `json:"collection"`
	Layer      string  `json:"layer"`
	AvgGSD     float64 `json:"avg_gsd"`
	AreaKM2    float64 `json:"area_km2"`
}

// AOIListResponse represents the response for the AOI listing endpoint.
type AOIListResponse struct {
	AOIs  []AOISummary `json:"aois"`
	Count int          `json:"count"`
}

// ExtractionResponse represents the response for a completed extraction run.
type ExtractionResponse struct {
	Result *pipeline.Result `json:"result"`
}

// ListAOIs handles GET /api/v1/aois endpoint.
// It returns the extraction candidates from the configured AOI file.
func (h *ExtractionHandler) ListAOIs(c *gin.Context) {
	candidates, err := h.service.ListAOIs(c.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrNoAOICandidates) {
			apierrors.NotFound(c, "No AOI candidates available, run fetch-aois first")
			return
		}
		apierrors.InternalServerError(c, "Failed to list AOI candidates", err)
		return
	}

	summaries := make([]AOISummary, 0, len(candidates))
	for i, a := range candidates {
		summaries = append(summaries, mapAOIToSummary(i, a))
	}

	c.JSON(http.StatusOK, AOIListResponse{
		AOIs:  summaries,
		Count: len(summaries),
	})
}

// CreateExtraction handles POST /api/v1/extractions endpoint.
// It runs the pre-event extraction for the requested AOI candidate and
// returns the run summary.
func (h *ExtractionHandler) CreateExtraction(c *gin.Context) {
	log := middleware.GetLogger(c)

	// Bind and validate the request body
	var req CreateExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Check if it's a validation error
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		// Generic bad request for other binding errors
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	if log != nil {
		log.Info("Processing extraction request", map[string]interface{}{
			"aoi_index": *req.AOIIndex,
		})
	}

	// Call service layer
	result, err := h.service.Extract(c.Request.Context(), *req.AOIIndex)
	if err != nil {
		h.writeExtractionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ExtractionResponse{
		Result: result,
	})
}

// writeExtractionError maps service and pipeline errors onto HTTP responses.
// The three run sentinels become 422s with distinct codes so callers can
// tell an unusable AOI apart from a broken server.
func (h *ExtractionHandler) writeExtractionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNoAOICandidates):
		apierrors.NotFound(c, "No AOI candidates available, run fetch-aois first")
	case errors.Is(err, services.ErrAOIIndexOutOfRange):
		apierrors.BadRequest(c, err.Error(), nil)
	case errors.Is(err, regions.ErrNoRegionMatch):
		apierrors.UnprocessableRun(c, apierrors.ErrNoRegionMatch,
			"AOI does not intersect any supported region")
	case errors.Is(err, loader.ErrNoStructures):
		apierrors.UnprocessableRun(c, apierrors.ErrNoSourceData,
			"No structure source data found for the AOI")
	case errors.Is(err, assoc.ErrNoAssociations):
		apierrors.UnprocessableRun(c, apierrors.ErrNoAssociations,
			"No structure-parcel associations could be formed")
	default:
		apierrors.InternalServerError(c, "Extraction run failed", err)
	}
}

// mapAOIToSummary converts a candidate AOI to its listing DTO.
func mapAOIToSummary(index int, a models.AOI) AOISummary {
	return AOISummary{
		Index:      index,
		EventID:    a.EventID,
		EventName:  a.EventName,
		Collection: a.Collection,
		Layer:      a.Layer,
		AvgGSD:     a.AvgGSD,
		AreaKM2:    a.AreaKM2,
	}
}
