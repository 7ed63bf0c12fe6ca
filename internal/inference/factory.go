// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inference

import (
	"go.uber.org/zap"

	"github.com/pdiddy/rule-harvester/pkg/types"
)

// New builds the extractor chain for cfg: the OpenAI backend, optionally
// behind a rate limiter, optionally behind a cache. The cache sits outermost
// so hits never consume limiter tokens.
func New(cfg types.InferenceConfig, logger *zap.Logger) Extractor {
	backend := NewOpenAIBackend(cfg, logger)

	var ext Extractor = backend
	if cfg.RequestsPerSecond > 0 {
		ext = NewThrottledExtractor(ext, cfg.RequestsPerSecond, cfg.Burst)
	}
	if cfg.CacheTTL > 0 {
		ext = NewCachedExtractor(ext, backend.Model(), cfg.CacheTTL)
	}
	return ext
}
