package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framescope_sessions_total",
		Help: "Total number of extraction sessions, by outcome",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framescope_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framescope_frames_extracted_total",
		Help: "Total number of frames extracted across all sessions",
	})

	BlurryFramesRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framescope_blurry_frames_removed_total",
		Help: "Total number of frames deleted by blur filtering",
	})

	AIAnnotationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framescope_ai_annotations_total",
		Help: "Total number of AI frame annotations, by outcome",
	}, []string{"outcome"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framescope_active_sessions",
		Help: "Number of sessions currently running the pipeline",
	})

	SweptEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framescope_retention_swept_total",
		Help: "Total number of expired upload and frame entries removed",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framescope_http_requests_total",
		Help: "Total number of HTTP requests, by method and status code",
	}, []string{"method", "status"})

	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framescope_queue_deliveries_total",
		Help: "Total number of queue deliveries settled by the worker, by result",
	}, []string{"result"})
)
