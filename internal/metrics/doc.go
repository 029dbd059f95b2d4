// Package metrics provides Prometheus instrumentation for screencast.
//
// Collectors are package-level promauto globals prefixed "screencast_",
// grouped as:
//
//   - HTTP: request totals, durations and in-flight requests, recorded by
//     middleware.Metrics.
//   - Database: query totals and durations per operation, SQLite file sizes.
//   - Object storage and filesystem: operation outcomes, bytes written,
//     retry and ESTALE counts (through NewFilesystemObserver).
//   - Uploads: outcome, bytes, duration and share id collisions.
//   - Thumbnails: outcome and duration.
//   - Catalog: comment operations, page views, skipped sidecars and the
//     periodic video/comment gauges refreshed by Collector.
//   - Memory: heap usage against the limit and ingest pauses, set by
//     memory.Monitor.
//   - Capture: session lifecycle and device acquisition outcomes, recorded
//     by the terminal recorder.
//
// InitializeMetrics pre-populates label combinations so dashboards see
// every series from the first scrape. The metrics endpoint is served on a
// separate port by the server binary with promhttp.
package metrics
