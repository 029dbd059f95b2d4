package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencast_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screencast_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screencast_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencast_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screencast_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screencast_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "screencast_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Object storage metrics
var (
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencast_storage_operations_total",
			Help: "Total number of object storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "screencast_storage_bytes_written_total",
			Help: "Total bytes written to object storage",
		},
	)

	StorageObjectBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screencast_storage_object_bytes",
			Help: "Total size of stored video objects in bytes",
		},
	)
)

// Filesystem metrics, fed by the filesystem observer
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screencast_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencast_filesystem_operation_errors_total",
			Help: "Total number of failed filesystem operations",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencast_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retries after a stale file handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencast_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencast_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencast_filesystem_stale_errors_total",
			Help: "Total number of ESTALE errors seen",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screencast_filesystem_retry_duration_seconds",
			Help:    "Total time spent in a filesystem operation including retries",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation", "volume"},
	)
)

// Upload metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencast_uploads_total",
			Help: "Total number of recording uploads",
		},
		[]string{"status"},
	)

	UploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "screencast_upload_bytes_total",
			Help: "Total bytes of uploaded recordings",
		},
	)

	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screencast_upload_duration_seconds",
			Help:    "Time to publish a recording",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	ShareIDCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "screencast_share_id_collisions_total",
			Help: "Total number of share id collisions retried during upload",
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencast_thumbnail_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"status"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screencast_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// Catalog metrics
var (
	CommentOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencast_comment_operations_total",
			Help: "Total number of comment operations",
		},
		[]string{"operation", "status"},
	)

	VideoViewsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "screencast_video_views_total",
			Help: "Total number of playback page views",
		},
	)

	SidecarDecodeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "screencast_sidecar_decode_errors_total",
			Help: "Total number of metadata sidecars skipped because they could not be parsed",
		},
	)

	CatalogVideos = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screencast_catalog_videos",
			Help: "Number of recordings in the catalog",
		},
	)

	CatalogComments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screencast_catalog_comments",
			Help: "Number of comments in the catalog",
		},
	)
)

// Capture metrics, recorded by the terminal recorder
var (
	CaptureSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencast_capture_sessions_total",
			Help: "Capture session lifecycle events",
		},
		[]string{"event"}, // "started", "start_failed", "stopped"
	)

	DeviceAcquisitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencast_device_acquisitions_total",
			Help: "Device acquisition outcomes",
		},
		[]string{"device", "status"},
	)
)

// Memory backpressure metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screencast_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screencast_memory_ingest_paused",
			Help: "1 while new recordings are refused due to memory pressure",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "screencast_memory_pauses_total",
			Help: "Times ingest was paused for memory pressure",
		},
	)

	IngestRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "screencast_ingest_rejected_total",
			Help: "Recordings refused while ingest was paused",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "screencast_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version", "persistence"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion, persistence string) {
	AppInfo.WithLabelValues(version, commit, goVersion, persistence).Set(1)
}
