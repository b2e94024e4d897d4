// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exposes Prometheus instrumentation for provider calls,
// the response cache, and pipeline runs.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	apiCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overlap_api_calls_total",
			Help: "Total provider API calls by endpoint and HTTP status",
		},
		[]string{"endpoint", "status"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overlap_cache_lookups_total",
			Help: "Response cache lookups by outcome (hit, miss)",
		},
		[]string{"outcome"},
	)

	pipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "overlap_pipeline_duration_seconds",
			Help:    "Duration of overlap-discovery runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 240},
		},
	)

	supportingFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "overlap_supporting_phrases_total",
			Help: "Total supporting phrases promoted across all runs",
		},
	)
)

// APICall records one provider call.
func APICall(endpoint string, httpStatus int) {
	apiCallsTotal.WithLabelValues(endpoint, strconv.Itoa(httpStatus)).Inc()
}

// CacheHit records a response cache hit.
func CacheHit() { cacheLookupsTotal.WithLabelValues("hit").Inc() }

// CacheMiss records a response cache miss.
func CacheMiss() { cacheLookupsTotal.WithLabelValues("miss").Inc() }

// PipelineRun records the duration and yield of one completed run.
func PipelineRun(elapsed time.Duration, supporting int) {
	pipelineDuration.Observe(elapsed.Seconds())
	supportingFound.Add(float64(supporting))
}

// Server encapsulates an HTTP server exposing /metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the given port and serves Prometheus metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
