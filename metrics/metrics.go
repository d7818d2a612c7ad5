package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "captionsys"

var (
	once sync.Once

	// UploadFilesTotal counts files seen by the upload endpoint, labeled by result
	// (success, error, skipped).
	UploadFilesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "upload",
		Name:      "files_total",
		Help:      "Total number of uploaded files by processing result.",
	}, []string{"result"})

	// CaptionDurationSeconds is the time spent inside the caption provider per image.
	CaptionDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "caption",
		Name:      "duration_seconds",
		Help:      "Time to caption one image, labeled by provider and result.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 60, 120},
	}, []string{"provider", "result"})

	// TranslationTotal counts translation requests by outcome
	// (ok, retried, fallback).
	TranslationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "translation",
		Name:      "requests_total",
		Help:      "Total number of caption translations by outcome.",
	}, []string{"language", "outcome"})

	ThumbnailsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "thumbnail",
		Name:      "jobs_total",
		Help:      "Total number of thumbnail jobs by result (generated, failed, dropped).",
	}, []string{"result"})

	ThumbnailQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "thumbnail",
		Name:      "queue_depth",
		Help:      "Thumbnail jobs waiting for a worker.",
	})

	WebsocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "clients",
		Help:      "Currently connected websocket clients.",
	})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Register registers the service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			UploadFilesTotal,
			CaptionDurationSeconds,
			TranslationTotal,
			ThumbnailsTotal,
			ThumbnailQueueDepth,
			WebsocketClients,
			HTTPRequestsTotal,
			HTTPRequestDuration,
		)
	})
}
