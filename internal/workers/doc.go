/*
Package workers sizes bounded worker pools from the CPUs actually available
to the process.

runtime.NumCPU reports the host's CPUs, while GOMAXPROCS follows container
CPU limits, so pool sizes are derived from GOMAXPROCS:

	// metadata downloads for the dashboard listing
	g.SetLimit(workers.ForIO(16))

	// concurrent ffmpeg thumbnail extractions
	sem := make(chan struct{}, workers.ForCPU(4))

Operators can pin the count with SCREENCAST_WORKERS; the caller's limit
still applies.
*/
package workers
