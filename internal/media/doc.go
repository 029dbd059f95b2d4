// Package media derives the poster image for a recording.
//
// A Generator extracts one frame two seconds into the artifact with
// ffmpeg, fits it onto a fixed 320x180 raster, stamps the duration in the
// bottom-right corner and encodes a JPEG. libvips does the encoding when
// InitVips has run; otherwise the pure-Go encoder is used.
//
// Thumbnails are optional. Callers log a failed Generate and carry on.
package media
