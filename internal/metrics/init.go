package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup.
func InitializeMetrics() {
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	volumes := []string{"recordings", "database", "unknown"}
	fsOps := []string{"stat", "open", "readdir", "write", "remove"}
	for _, vol := range volumes {
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, op := range []string{"upload", "download", "list", "remove"} {
		StorageOperationsTotal.WithLabelValues(op, "success")
		StorageOperationsTotal.WithLabelValues(op, "error")
	}

	for _, status := range []string{"success", "error", "collision"} {
		UploadsTotal.WithLabelValues(status)
	}

	for _, status := range []string{"success", "error"} {
		ThumbnailGenerationsTotal.WithLabelValues(status)
	}

	for _, op := range []string{"list", "add", "delete", "replace"} {
		CommentOperationsTotal.WithLabelValues(op, "success")
		CommentOperationsTotal.WithLabelValues(op, "error")
	}

	for _, op := range []string{"initialize_schema", "insert_video", "get_video", "list_videos",
		"delete_video", "increment_views", "update_status", "set_thumbnail", "list_comments", "insert_comment",
		"delete_comment", "replace_comments", "stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}

// InitializeCaptureMetrics pre-populates the recorder's capture labels.
func InitializeCaptureMetrics() {
	for _, ev := range []string{"started", "start_failed", "stopped"} {
		CaptureSessionsTotal.WithLabelValues(ev)
	}
	for _, dev := range []string{"screen", "webcam", "microphone"} {
		for _, st := range []string{"granted", "denied", "unavailable"} {
			DeviceAcquisitionsTotal.WithLabelValues(dev, st)
		}
	}
}
