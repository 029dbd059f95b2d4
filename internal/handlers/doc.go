// Package handlers provides the HTTP handlers for the screencast server.
//
// It includes handlers for:
//   - The share page at /v/{shareId}, rendered from embedded templates
//   - The dashboard API: listing and deleting recordings
//   - Comment threads: listing, adding and deleting comments
//   - Ingest of finished recordings from the recorder
//   - Serving stored objects with Range support
//   - Health checks and version information
package handlers
