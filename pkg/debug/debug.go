// Package debug provides global debug output flags
package debug

import "fmt"

// Enabled controls whether debug output is active
var Enabled bool

// Tracking controls per-frame output (angle diffs, bad counts, missing landmarks).
// At ~30 frames per second this is very verbose; use --debug-frames to enable it.
var Tracking bool

// Log prints a message only if debug mode is enabled
func Log(format string, args ...interface{}) {
	if Enabled {
		fmt.Printf(format, args...)
	}
}

// TrackLog prints a message only if per-frame debug output is enabled
func TrackLog(format string, args ...interface{}) {
	if Tracking {
		fmt.Printf(format, args...)
	}
}

// Configure sets both flags. Per-frame output implies debug output.
func Configure(enabled, frames bool) {
	Enabled = enabled || frames
	Tracking = frames
}
