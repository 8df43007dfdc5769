package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the pipeline's Prometheus collectors behind a private
// registry so runs never pollute the global default.
type Registry struct {
	reg *prometheus.Registry

	FeaturesLoaded          *prometheus.CounterVec
	BuildingsDropped        *prometheus.CounterVec
	DuplicatesRemoved       prometheus.Counter
	RegularizationFallbacks prometheus.Counter
	IntersectionFailures    prometheus.Counter
	RecordsEmitted          prometheus.Counter
	RunsTotal               *prometheus.CounterVec
	StageDuration           *prometheus.HistogramVec
}

// Drop reasons recorded on BuildingsDropped.
const (
	ReasonOutsideAOI = "outside_aoi"
	ReasonInvalid    = "invalid_geometry"
	ReasonUnmatched  = "no_property_match"
)

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	featuresLoaded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "preevent_features_loaded_total",
	}, []string{"layer", "region"})
	buildingsDropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "preevent_buildings_dropped_total",
	}, []string{"reason"})
	duplicatesRemoved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preevent_duplicates_removed_total",
	})
	regularizationFallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preevent_regularization_fallbacks_total",
	})
	intersectionFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preevent_intersection_failures_total",
	})
	recordsEmitted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preevent_records_emitted_total",
	})
	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "preevent_runs_total",
	}, []string{"status"})
	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "preevent_stage_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	r.MustRegister(featuresLoaded, buildingsDropped, duplicatesRemoved,
		regularizationFallbacks, intersectionFailures, recordsEmitted, runsTotal, stageDuration)

	return &Registry{
		reg:                     r,
		FeaturesLoaded:          featuresLoaded,
		BuildingsDropped:        buildingsDropped,
		DuplicatesRemoved:       duplicatesRemoved,
		RegularizationFallbacks: regularizationFallbacks,
		IntersectionFailures:    intersectionFailures,
		RecordsEmitted:          recordsEmitted,
		RunsTotal:               runsTotal,
		StageDuration:           stageDuration,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
