/*
Package filesystem provides the filesystem primitives behind the object
store, with retry logic for NFS stale file handle errors.

Recordings are usually kept on a network mount. ESTALE (errno 116) shows up
there when a file is replaced on the server between lookups, so every
operation is retried with exponential backoff on that error and only that
error; anything else is returned to the caller unchanged.

# Operations

  - StatWithRetry, OpenWithRetry and ReadDirWithRetry wrap their os
    counterparts.
  - RemoveWithRetry treats a missing file as success.
  - WriteFile writes through a temporary file in the target directory and
    then either renames it into place (overwrite) or hard-links it, which
    fails with os.ErrExist when the object is already present.

# Metrics

Operations report to an Observer set with SetObserver. Paths are labeled
by volume using a VolumeResolver with longest-prefix matching:

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
	    "recordings": cfg.StorageDir,
	    "database":   cfg.DatabaseDir,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())

With no observer set (as in tests) nothing is recorded.
*/
package filesystem
