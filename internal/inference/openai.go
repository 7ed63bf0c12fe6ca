// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/pdiddy/rule-harvester/pkg/types"
)

// OpenAIBackend sends each paragraph to an OpenAI-compatible chat completions
// endpoint. The credential is supplied per call, so a key change in the
// credential store takes effect on the next paragraph.
type OpenAIBackend struct {
	cfg    types.InferenceConfig
	client *http.Client
	logger *zap.Logger
}

// NewOpenAIBackend returns a backend for cfg. Zero-valued request parameters
// fall back to the package defaults.
func NewOpenAIBackend(cfg types.InferenceConfig, logger *zap.Logger) *OpenAIBackend {
	if cfg.Endpoint == "" {
		cfg.Endpoint = types.DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = types.DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = types.DefaultMaxTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIBackend{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Model returns the model identifier sent with each request.
func (b *OpenAIBackend) Model() string {
	return b.cfg.Model
}

// Extract implements Extractor.
func (b *OpenAIBackend) Extract(ctx context.Context, paragraph, credential string) (Outcome, error) {
	if credential == "" {
		return Outcome{}, ErrMissingCredential
	}

	clientConfig := openai.DefaultConfig(credential)
	clientConfig.BaseURL = b.cfg.Endpoint
	clientConfig.HTTPClient = b.client
	client := openai.NewClientWithConfig(clientConfig)

	req := openai.ChatCompletionRequest{
		Model: b.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: paragraph},
		},
		Temperature: sendable(b.cfg.Temperature),
		MaxTokens:   b.cfg.MaxTokens,
		TopP:        sendable(b.cfg.TopP),
	}

	b.logger.Debug("sending paragraph to model",
		zap.String("model", req.Model),
		zap.Int("paragraph_bytes", len(paragraph)))

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		terr := &TransportError{StatusCode: statusCode(err), Err: err}
		b.logger.Error("model request failed", zap.Int("status", terr.StatusCode), zap.Error(err))
		return Outcome{}, terr
	}

	if len(resp.Choices) == 0 {
		return Outcome{}, &ParseError{Err: errors.New("response contained no choices")}
	}
	content := resp.Choices[0].Message.Content

	outcome, err := parseRule(content)
	if err != nil {
		b.logger.Warn("unparseable model response", zap.String("content", content), zap.Error(err))
		return Outcome{}, err
	}

	b.logger.Debug("model response parsed",
		zap.Stringer("outcome", outcome.Kind),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return outcome, nil
}

// sendable maps zero to the smallest positive float32. go-openai omits zero
// sampling parameters from the request body.
func sendable(v float32) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return v
}

// statusCode extracts the HTTP status from a go-openai error, or 0.
func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// String describes the backend as model and endpoint.
func (b *OpenAIBackend) String() string {
	return fmt.Sprintf("%s at %s", b.cfg.Model, b.cfg.Endpoint)
}
