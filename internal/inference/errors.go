// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inference

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential is returned when no API key is configured.
	ErrMissingCredential = errors.New("API key not set; configure it with 'rule-harvester key set'")

	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("inference request failed")

	// ErrParse matches every *ParseError.
	ErrParse = errors.New("failed to parse rule from model response")
)

// TransportError reports a failed request or a non-success response status.
type TransportError struct {
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("model API error: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("model API error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) match.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ParseError reports response content that is not a rule object.
type ParseError struct {
	// Content is the raw message content returned by the model.
	Content string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %v", ErrParse, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrParse) match.
func (e *ParseError) Is(target error) bool { return target == ErrParse }
