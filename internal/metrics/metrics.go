package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Key-frame detection metrics
	keyframeFramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyframe_frames_processed_total",
		Help: "Total frames handed to a key-frame detector",
	}, []string{"algorithm"})

	keyframeDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyframe_detected_total",
		Help: "Total frames classified as key frames",
	}, []string{"algorithm"})

	keyframeSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyframe_skipped_total",
		Help: "Total frames skipped by the minimum key-frame distance",
	}, []string{"algorithm"})

	// Blob store metrics
	blobstoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blobstore_operations_total",
		Help: "Total blob store operations by result",
	}, []string{"op", "result"})

	blobstoreBytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blobstore_bytes_written_total",
		Help: "Total file bytes written into the blob store",
	})

	// Indexing run metrics
	indexRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_runs_total",
		Help: "Total indexing runs by final status",
	}, []string{"status"})

	indexRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "indexer_run_duration_seconds",
		Help:    "Indexing run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 14), // 0.5s to ~68min
	}, []string{"algorithm"})

	// HTTP API metrics
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Result labels for blob store operations.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// IncFramesProcessed counts one frame handed to a detector.
func IncFramesProcessed(algorithm string) {
	keyframeFramesProcessed.WithLabelValues(algorithm).Inc()
}

// IncKeyFrames counts one detected key frame.
func IncKeyFrames(algorithm string) {
	keyframeDetected.WithLabelValues(algorithm).Inc()
}

// IncSkippedFrames counts one frame skipped by hysteresis.
func IncSkippedFrames(algorithm string) {
	keyframeSkipped.WithLabelValues(algorithm).Inc()
}

// RecordStoreOperation records the outcome of a blob store operation.
func RecordStoreOperation(op string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	blobstoreOperations.WithLabelValues(op, result).Inc()
}

// AddBytesWritten adds to the blob store write counter.
func AddBytesWritten(n int) {
	blobstoreBytesWritten.Add(float64(n))
}

// RecordIndexRun records a finished indexing run.
func RecordIndexRun(algorithm, status string, seconds float64) {
	indexRuns.WithLabelValues(status).Inc()
	indexRunDuration.WithLabelValues(algorithm).Observe(seconds)
}

// RecordHTTPRequest records a served API request.
func RecordHTTPRequest(method, route string, status int, seconds float64) {
	httpRequests.WithLabelValues(method, route, statusLabel(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
