package filesystem

// Observer records filesystem operation metrics. The metrics package
// provides the Prometheus implementation; filesystem cannot import it
// directly without a cycle.
type Observer interface {
	// ObserveOperation records duration and error status for one operation.
	// volume is the resolved mount label ("recordings", "database").
	ObserveOperation(volume, operation string, durationSeconds float64, err error)

	ObserveRetryAttempt(retryOp, volume string)
	ObserveRetrySuccess(retryOp, volume string)
	ObserveRetryFailure(retryOp, volume string)
	ObserveRetryDuration(retryOp, volume string, durationSeconds float64)
	ObserveStaleError(retryOp, volume string)
}

// defaultObserver is nil in tests; recording is then skipped.
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}

func observe() Observer {
	return defaultObserver
}
