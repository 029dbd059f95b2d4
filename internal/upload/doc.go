// Package upload publishes finished recordings.
//
// Publisher runs inside the service: it claims a share id, stores the
// binary, derives a thumbnail, persists the metadata through the active
// catalog and returns the share URL, reporting progress at fixed
// milestones along the way. Remote is the recorder-side client
// that hands an artifact to a running service over HTTP, and is the
// recorder's capture.Uploader.
package upload
