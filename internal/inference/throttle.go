// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inference

import (
	"context"

	"golang.org/x/time/rate"
)

// ThrottledExtractor waits for limiter clearance before each model call.
type ThrottledExtractor struct {
	next    Extractor
	limiter *rate.Limiter
}

// NewThrottledExtractor wraps next with a token bucket of requestsPerSecond
// and burst. A burst below 1 is raised to 1.
func NewThrottledExtractor(next Extractor, requestsPerSecond float64, burst int) *ThrottledExtractor {
	if burst < 1 {
		burst = 1
	}
	return &ThrottledExtractor{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Extract implements Extractor.
func (t *ThrottledExtractor) Extract(ctx context.Context, paragraph, credential string) (Outcome, error) {
	if credential == "" {
		return Outcome{}, ErrMissingCredential
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return Outcome{}, &TransportError{Err: err}
	}
	return t.next.Extract(ctx, paragraph, credential)
}
