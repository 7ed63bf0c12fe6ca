// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import "errors"

// Notices. None of them changes workflow state; callers report them and
// carry on.
var (
	// ErrEmptyInput means the document has no paragraphs to process.
	ErrEmptyInput = errors.New("no text to process: enter some text to extract rules from")

	// ErrAlreadyComplete means every paragraph has been processed.
	ErrAlreadyComplete = errors.New("processing complete: all paragraphs have been processed")

	// ErrBusy means an extraction is already in flight. The trigger is
	// ignored, not queued.
	ErrBusy = errors.New("an extraction is already in progress")

	// ErrStale means the document was reset while the extraction was in
	// flight; its result was discarded.
	ErrStale = errors.New("document changed during extraction; result discarded")

	// ErrEmptyExport means there are no rules to export.
	ErrEmptyExport = errors.New("nothing to export: there are no rules to export")
)

// IsNotice reports whether err is one of the non-fatal workflow notices
// rather than an extraction failure.
func IsNotice(err error) bool {
	return errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrAlreadyComplete) ||
		errors.Is(err, ErrBusy) ||
		errors.Is(err, ErrStale) ||
		errors.Is(err, ErrEmptyExport)
}
