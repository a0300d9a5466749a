package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blip_jobs_processed_total",
		Help: "Total number of jobs processed, by queue and status",
	}, []string{"queue", "status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blip_stage_duration_seconds",
		Help:    "Duration of pipeline stage handlers",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blip_frames_extracted_total",
		Help: "Total number of scene frames extracted across all assets",
	})

	FramesDedupedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blip_frames_deduped_total",
		Help: "Frames processed by the dedup stage, by outcome",
	}, []string{"result"})

	InferenceBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blip_inference_batches_total",
		Help: "Vision inference batch flushes, by trigger and status",
	}, []string{"trigger", "status"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blip_active_workers",
		Help: "Number of handler invocations currently in flight",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blip_retry_total",
		Help: "Total number of job retries, by queue",
	}, []string{"queue"})

	DeadLettersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blip_dead_letters_total",
		Help: "Jobs moved to the dead-letter queue, by origin queue",
	}, []string{"queue"})
)
