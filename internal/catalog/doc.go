/*
Package catalog is the persistence collaborator for recordings and their
comments.

Two strategies implement Catalog, and a process runs exactly one of them,
chosen by PERSISTENCE:

  - RecordCatalog keeps videos and comments as SQLite rows (package
    database). It tracks view counts, a processing/ready/failed status and
    comment categories.
  - BlobCatalog keeps everything in object storage. Each recording has a
    JSON sidecar next to its binary and a comments file holding the whole
    collection. It has no view counter and no comment categories.

Both store the binary at videos/{shareId}.webm and the thumbnail at
thumbnails/{shareId}.jpg, so the upload path is the same for either.

# Comment overwrites

BlobCatalog has no append operation: adding or deleting a comment reads the
collection, edits it and writes the whole file back. A mutex serializes
this inside one process, but two processes editing the same recording can
still race, and the last write wins. TestBlobCommentsLastWriterWins pins
that behavior down.
*/
package catalog
