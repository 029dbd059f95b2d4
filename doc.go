// Command screencast serves recorded screencasts.
//
// It accepts finished recordings from the recorder CLI (cmd/record),
// stores them as objects, catalogs them in SQLite or in JSON sidecars,
// and serves a share page per recording with timestamped comments.
//
// Configuration comes from environment variables (and an optional .env
// file); see the startup package for the full list.
package main
