// Package metrics exposes prometheus counters for the harvest pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PagesFetched tracks feed pages retrieved successfully.
	PagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_pages_fetched_total",
		Help: "The total number of feed pages fetched.",
	})
	// PostsHarvested tracks posts accepted into the run buffer.
	PostsHarvested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_posts_total",
		Help: "The total number of posts accepted after dedup and filtering.",
	})
	// LongTextFallbacks tracks long-form fetches that fell back to the
	// truncated text after exhausting retries.
	LongTextFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_longtext_fallbacks_total",
		Help: "The total number of long-form fetches that fell back to short form.",
	})
	// SinkErrors tracks individual sink write failures.
	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_sink_errors_total",
		Help: "The total number of sink write failures.",
	}, []string{"sink"})
	// DownloadErrors tracks per-media-file download failures.
	DownloadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_download_errors_total",
		Help: "The total number of failed media downloads.",
	})
	// TargetsSkipped tracks targets dropped because identity resolution
	// reported not-ok.
	TargetsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_targets_skipped_total",
		Help: "The total number of targets skipped as non-existent.",
	})
)

// StartServer exposes /metrics on addr when addr is non-empty.
func StartServer(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() { _ = http.ListenAndServe(addr, mux) }()
}
