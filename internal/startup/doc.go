// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] reads a .env file from the working directory (if present)
// and then the environment through viper. Supported variables:
//
//   - BASE_URL: Origin used for share links and object URLs (default: http://localhost:PORT)
//   - STORAGE_DIR: Object storage root (default: /data/recordings)
//   - DATABASE_DIR: Path to database directory (default: /database)
//   - PERSISTENCE: Catalog strategy, records or blobs (default: records)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - THUMBNAILS_ENABLED: Generate poster images on ingest (default: true)
//   - MAX_UPLOAD_SIZE: Largest accepted recording in bytes (default: 2GiB)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_FORMAT: text or json (default: text)
//   - LOG_STATIC_FILES: Log object requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - MEMORY_LIMIT: Container memory limit in bytes, used to set GOMEMLIMIT (default: unset)
//   - MEMORY_RATIO: Share of MEMORY_LIMIT given to the Go heap (default: 0.85)
//
// The database directory is only created and checked when PERSISTENCE is
// records.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogStorageInit]: Object storage root and public prefix
//   - [LogDatabaseInit]: Database initialization timing
//   - [LogCatalogInit]: Active persistence strategy
//   - [LogThumbnailInit]: FFmpeg availability for poster images
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownStep], [LogShutdownComplete]
package startup
