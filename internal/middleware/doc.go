// Package middleware wraps the screencast router.
//
// Route is installed on the router itself and reports the matched route
// template and share id to the wrappers outside it: Logger, which writes a
// W3C extended access log line, and Metrics, which labels Prometheus
// series by route. Compression gzips pages and JSON and leaves object
// downloads and uploads alone.
package middleware
