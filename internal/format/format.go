// Package format renders durations, sizes and dates the way the recorder
// and the playback page display them.
package format

import (
	"fmt"
	"math"
	"time"
)

// Clock renders whole seconds as mm:ss, the recorder's elapsed display.
func Clock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// Timestamp renders seconds as m:ss, used for player time, comment anchors
// and video durations. NaN and negative values render as 0:00.
func Timestamp(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "0:00"
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// Size renders a byte count as KB below one megabyte and MB above.
func Size(bytes int64) string {
	const mb = 1024 * 1024
	if bytes < mb {
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	}
	return fmt.Sprintf("%.1f MB", float64(bytes)/mb)
}

// Date renders a creation time as "Jan 2, 2006". The zero time renders empty.
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}
