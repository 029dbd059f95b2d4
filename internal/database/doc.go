// Package database provides the SQLite record store behind the records
// persistence strategy.
//
// It holds two tables:
//   - videos: one row per published recording, keyed by id with a unique
//     share id, carrying title, client, duration, size, object paths, the
//     view counter and a processing/ready/failed status.
//   - comments: timestamped comments referencing a video, deleted with it.
//
// The database uses WAL mode for concurrent reads and enforces foreign
// keys. The schema is created on open and migrated in place.
package database
