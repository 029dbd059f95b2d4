// Package playback is the model behind the share page.
//
// Service.Load resolves a share id to a Page: the video, its comments and
// what the active catalog supports. A missing recording yields a page in
// the not-found state rather than an error.
//
// The page script takes its tunables from this package: the skip step, the
// controls hide delay, the speed menu and the keyboard shortcuts.
package playback
