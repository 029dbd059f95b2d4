// Package memory sizes the Go heap for containers and refuses new
// recordings while heap usage is critical.
//
// [Configure] derives GOMEMLIMIT from the container limit (MEMORY_LIMIT)
// and a ratio (MEMORY_RATIO, default 0.85); an explicit GOMEMLIMIT wins.
//
// A [Monitor] samples the heap every few seconds. Above the critical
// water mark it pauses: the ingest handler answers 503 until usage drops
// below the high water mark again. Recordings are read whole into memory
// before publishing, so one large upload can matter.
package memory
