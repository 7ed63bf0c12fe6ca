// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/rule-harvester/internal/workflow"
)

const (
	barWidth      = 24
	summaryLength = 80
	ellipsis      = "..."
)

// ProgressBar renders progress as a fixed-width text bar followed by the
// status label, e.g. "[############------------] 50% complete".
func ProgressBar(progress float64, width int) string {
	if width <= 0 {
		width = barWidth
	}
	progress = math.Max(0, math.Min(100, progress))
	filled := int(math.Round(progress / 100 * float64(width)))
	return fmt.Sprintf("[%s%s] %s",
		strings.Repeat("#", filled),
		strings.Repeat("-", width-filled),
		workflow.StatusLabel(progress))
}

// Truncate shortens s to at most n runes, collapsing whitespace and marking
// the cut with an ellipsis.
func Truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	cut := n - len(ellipsis)
	if cut < 0 {
		cut = 0
	}
	return strings.TrimRight(string(runes[:cut]), " ") + ellipsis
}
