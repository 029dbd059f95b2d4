// Package storage is the object store recordings are published to.
//
// Objects are addressed by slash-separated keys such as
// "videos/3f2a9c1e.webm" and are public: PublicURL returns the address the
// server exposes them under. LocalStore keeps them in a directory tree,
// using the filesystem package's retrying primitives so the root can live
// on a network mount.
//
// Uploads do not replace existing objects unless asked to, which lets the
// publisher detect share id collisions with ErrExists.
package storage
