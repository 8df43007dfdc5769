// Package vexcel is a minimal client for the Vexcel imagery API, covering
// authentication and gray-sky collection discovery.
package vexcel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/logger"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/models"
)

// DefaultBaseURL is the production Vexcel API endpoint.
const DefaultBaseURL = "https://api.vexcelgroup.com/v2"

// Query parameters of the collections endpoint. The layer and include lists
// are passed verbatim, spaces included.
const (
	graySkyLayers     = "graysky, graysky-suncorp"
	collectionInclude = "layer, collection, graysky-event, graysky-event-pretty-name, avg-gsd, geometry, first-capture-date, last-capture-date"
	maxRecords        = "1000"
)

const (
	loginTimeout       = 30 * time.Second
	collectionsTimeout = 120 * time.Second
)

// ErrNotAuthenticated is returned when a call requiring a token happens
// before a successful Login.
var ErrNotAuthenticated = errors.New("vexcel client is not authenticated")

// Client talks to the Vexcel API. It is not safe for concurrent use; the
// pipeline only ever drives it from one goroutine.
type Client struct {
	baseURL string
	httpc   *http.Client
	log     *logger.Logger
	token   string
}

// NewClient creates a Client against the given base URL, falling back to
// DefaultBaseURL when empty.
func NewClient(baseURL string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{},
		log:     log,
	}
}

// Login authenticates against the API and stores the session token for
// subsequent calls.
func (c *Client) Login(ctx context.Context, username, password string) error {
	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}
	if payload.Token == "" {
		return errors.New("login response carried no token")
	}

	c.token = payload.Token
	c.log.Info("Authenticated with Vexcel API", map[string]interface{}{
		"base_url": c.baseURL,
	})
	return nil
}

// GraySkyCollections lists the gray-sky event collections intersecting the
// given WKT search area. The response is a GeoJSON FeatureCollection carrying
// the collection metadata under each feature's properties; features without
// a footprint geometry are skipped with a warning.
func (c *Client) GraySkyCollections(ctx context.Context, searchWKT string) ([]models.AOI, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, collectionsTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("wkt", searchWKT)
	q.Set("srid", "4326")
	q.Set("layer", graySkyLayers)
	q.Set("include", collectionInclude)
	q.Set("max-records", maxRecords)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ortho/collections?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build collections request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("collections request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("collections request failed with status %d", resp.StatusCode)
	}

	var fc geojson.FeatureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("failed to decode collections response: %w", err)
	}

	aois := make([]models.AOI, 0, len(fc.Features))
	skipped := 0
	for _, f := range fc.Features {
		if f.Geometry == nil {
			skipped++
			continue
		}
		aois = append(aois, collectionAOI(f))
	}
	if skipped > 0 {
		c.log.Warn("Skipped collections without footprint geometry", map[string]interface{}{
			"skipped": skipped,
		})
	}

	c.log.Info("Fetched gray-sky collections", map[string]interface{}{
		"count": len(aois),
	})
	return aois, nil
}

// collectionAOI maps one collection feature onto an AOI. The provider keys
// the feature properties with hyphens; a missing pretty name falls back to
// the event ID.
func collectionAOI(f *geojson.Feature) models.AOI {
	event := f.Properties.MustString("graysky-event", "")
	name := f.Properties.MustString("graysky-event-pretty-name", "")
	if name == "" {
		name = event
	}
	return models.AOI{
		EventID:          event,
		EventName:        name,
		Collection:       f.Properties.MustString("collection", ""),
		Layer:            f.Properties.MustString("layer", ""),
		AvgGSD:           f.Properties.MustFloat64("avg-gsd", 0),
		FirstCaptureDate: parseCaptureDate(f.Properties.MustString("first-capture-date", "")),
		LastCaptureDate:  parseCaptureDate(f.Properties.MustString("last-capture-date", "")),
		Geometry:         models.NewGeometry(f.Geometry),
	}
}

// parseCaptureDate accepts both timestamp and plain-date forms. Unparseable
// values yield the zero time rather than an error; capture dates only order
// candidates and never gate the pipeline.
func parseCaptureDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
