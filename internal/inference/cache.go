// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inference

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/pdiddy/rule-harvester/pkg/types"
)

// cachedOutcome is stored without an ID so every hit gets a fresh one and
// repeated paragraphs never produce duplicate identifiers.
type cachedOutcome struct {
	kind        OutcomeKind
	title       string
	description string
}

// CachedExtractor remembers successful outcomes per model and paragraph.
// Errors are never cached.
type CachedExtractor struct {
	next  Extractor
	model string
	cache *gocache.Cache
}

// NewCachedExtractor wraps next with an in-memory cache whose entries expire
// after ttl.
func NewCachedExtractor(next Extractor, model string, ttl time.Duration) *CachedExtractor {
	return &CachedExtractor{
		next:  next,
		model: model,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// CacheKey derives the cache key for a paragraph sent to model.
func CacheKey(model, paragraph string) string {
	hash := sha256.Sum256([]byte(model + "\x00" + paragraph))
	return "rule-harvester:v1:" + hex.EncodeToString(hash[:])
}

// Extract implements Extractor.
func (c *CachedExtractor) Extract(ctx context.Context, paragraph, credential string) (Outcome, error) {
	if credential == "" {
		return Outcome{}, ErrMissingCredential
	}

	key := CacheKey(c.model, paragraph)
	if v, found := c.cache.Get(key); found {
		hit := v.(cachedOutcome)
		if hit.kind != RuleFound {
			return NotFound(), nil
		}
		return Found(types.Rule{ID: newID(), Title: hit.title, Description: hit.description}), nil
	}

	outcome, err := c.next.Extract(ctx, paragraph, credential)
	if err != nil {
		return Outcome{}, err
	}

	c.cache.SetDefault(key, cachedOutcome{
		kind:        outcome.Kind,
		title:       outcome.Rule.Title,
		description: outcome.Rule.Description,
	})
	return outcome, nil
}

// Len reports the number of cached paragraphs.
func (c *CachedExtractor) Len() int {
	return c.cache.ItemCount()
}

// Flush drops every cached outcome.
func (c *CachedExtractor) Flush() {
	c.cache.Flush()
}
