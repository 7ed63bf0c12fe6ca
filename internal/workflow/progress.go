// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"fmt"
	"math"
)

// Progress labels.
const (
	LabelNotStarted = "Not started"
	LabelComplete   = "Processing complete"
)

// StatusLabel renders a progress percentage the way the progress indicator
// shows it: "Not started" at 0, "N% complete" in between, and
// "Processing complete" at 100.
func StatusLabel(progress float64) string {
	switch {
	case progress >= 100:
		return LabelComplete
	case progress > 0:
		return fmt.Sprintf("%d%% complete", int(math.Round(progress)))
	default:
		return LabelNotStarted
	}
}
