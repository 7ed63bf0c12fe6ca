// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"path/filepath"
	"time"
)

// Default inference parameters. They match the request the hosted
// GitHub Models endpoint expects for gpt-4o.
const (
	DefaultEndpoint    = "https://models.inference.ai.azure.com"
	DefaultModel       = "gpt-4o"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048
	DefaultTopP        = 1.0
)

// InferenceConfig holds settings for calls to the chat completions endpoint.
type InferenceConfig struct {
	// Endpoint is the base URL; "/chat/completions" is appended per request.
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`

	// Model is the model identifier sent with every request.
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// Temperature and TopP are always sent. Zero is sent as the smallest
	// positive float32, which servers treat as zero.
	Temperature float32 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
	TopP        float32 `json:"top_p" yaml:"top_p" mapstructure:"top_p"`

	// Timeout bounds a single request. Zero means no client-side timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// RequestsPerSecond throttles calls when positive. Zero disables throttling.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// Burst is the limiter bucket size used with RequestsPerSecond.
	Burst int `json:"burst" yaml:"burst" mapstructure:"burst"`

	// CacheTTL keeps successful outcomes per paragraph. Zero disables the cache.
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// CredentialConfig locates the persisted API key.
type CredentialConfig struct {
	// Dir holds one file per secret; the API key lives in rule-harvester-api-key.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// ExportConfig holds settings for rule export files.
type ExportConfig struct {
	// Dir is where rules-export-YYYY-MM-DD.json files are written.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// LibraryConfig holds settings for the SQLite rule library.
type LibraryConfig struct {
	// Dir contains library.db.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// MaxResults is the default search limit (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// LogConfig controls the structured log.
type LogConfig struct {
	// File is the rotated JSON log file. Empty disables file logging.
	File string `json:"file" yaml:"file" mapstructure:"file"`

	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Console mirrors log entries to stderr.
	Console bool `json:"console" yaml:"console" mapstructure:"console"`
}

// Config groups all settings for the rule-harvester CLI.
type Config struct {
	Inference   InferenceConfig  `json:"inference" yaml:"inference" mapstructure:"inference"`
	Credentials CredentialConfig `json:"credentials" yaml:"credentials" mapstructure:"credentials"`
	Export      ExportConfig     `json:"export" yaml:"export" mapstructure:"export"`
	Library     LibraryConfig    `json:"library" yaml:"library" mapstructure:"library"`
	Log         LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultConfig returns the configuration used when no file, environment
// variable, or flag overrides a value. baseDir is the per-user state
// directory (e.g. ~/.config/rule-harvester).
func DefaultConfig(baseDir string) Config {
	return Config{
		Inference: InferenceConfig{
			Endpoint:    DefaultEndpoint,
			Model:       DefaultModel,
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
			TopP:        DefaultTopP,
			Timeout:     60 * time.Second,
			Burst:       1,
		},
		Credentials: CredentialConfig{
			Dir: joinDir(baseDir, "secrets"),
		},
		Export: ExportConfig{
			Dir: ".",
		},
		Library: LibraryConfig{
			Dir:        joinDir(baseDir, "library"),
			MaxResults: 20,
		},
		Log: LogConfig{
			File:  joinDir(baseDir, "rule-harvester.log"),
			Level: "info",
		},
	}
}

func joinDir(base, name string) string {
	if base == "" {
		return name
	}
	return filepath.Join(base, name)
}
