package session

import (
	"fmt"
	"time"
)

// FormatClock renders remaining seconds as a "m:ss" countdown clock with the
// seconds zero-padded, e.g. 247 -> "4:07".
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FormatTimeTaken renders elapsed seconds in the backend's "M min S sec"
// form, e.g. 120 -> "2 min 0 sec".
func FormatTimeTaken(elapsed int) string {
	if elapsed < 0 {
		elapsed = 0
	}
	return fmt.Sprintf("%d min %d sec", elapsed/60, elapsed%60)
}

// FormatDateTime renders a timestamp as "02 Jan 2006 03:04 PM", matching the
// format the web client showed for start and end times.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return "Invalid date"
	}
	return t.Format("02 Jan 2006 03:04 PM")
}
