// Package logging provides a simple leveled logging interface for the
// screencast service and recorder, backed by logrus.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions (soft device failures, skipped thumbnails)
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL or DEBUG environment
// variables. LOG_FORMAT=json switches to JSON output.
package logging
