// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package segment splits a document into paragraphs on blank-line boundaries.
package segment

import (
	"regexp"
	"strings"
)

// paragraphBreak matches any whitespace run that contains at least two
// newlines, i.e. one or more blank lines.
var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Split returns the trimmed, non-empty paragraphs of text in document order.
// Blank or whitespace-only input yields an empty, non-nil slice. Text without
// blank lines is a single paragraph.
func Split(text string) []string {
	blocks := paragraphBreak.Split(text, -1)

	paragraphs := make([]string, 0, len(blocks))
	for _, block := range blocks {
		p := strings.TrimSpace(block)
		if p == "" {
			continue
		}
		paragraphs = append(paragraphs, p)
	}
	return paragraphs
}

// Count returns the number of paragraphs Split would produce.
func Count(text string) int {
	return len(Split(text))
}
