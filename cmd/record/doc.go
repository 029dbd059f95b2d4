// Command record captures the screen with ffmpeg and shares the result
// through a screencast server.
//
// Usage:
//
//	record [flags]              record until s is pressed
//	record list                 list recordings on the server
//	record delete SHARE_ID...   delete recordings
//
// While recording, p pauses or resumes and s (or Ctrl+C) stops. The
// finished recording is then uploaded, saved as {title}-{unixms}.webm, or
// discarded, as chosen by --after or at the prompt.
//
// --webcam shows the webcam in an ffplay window placed in the --position
// corner of the screen, so the screen recording picks it up.
//
// Environment:
//
//	SCREENCAST_SERVER         server URL (default http://localhost:8080)
//	SCREENCAST_SCREEN_INPUT   ffmpeg screen device, e.g. :1.0 for x11grab
//	SCREENCAST_MIC_INPUT      ffmpeg microphone device
//	SCREENCAST_WEBCAM_DEVICE  ffmpeg webcam device
//
// Every other flag can also be set as SCREENCAST_<FLAG> with dashes
// replaced by underscores.
package main
