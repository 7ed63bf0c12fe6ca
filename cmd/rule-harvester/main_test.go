// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/rule-harvester/internal/inference"
	"github.com/pdiddy/rule-harvester/internal/workflow"
	"github.com/pdiddy/rule-harvester/pkg/types"
)

func TestLoadConfigDefaults(t *testing.T) {
	v := viper.New()
	configure(v, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := loadConfig(v)
	require.NoError(t, err)

	want := types.DefaultConfig(stateDir())
	assert.Equal(t, want, cfg)
	assert.Equal(t, "gpt-4o", cfg.Inference.Model)
	assert.Equal(t, 60*time.Second, cfg.Inference.Timeout)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rule-harvester.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
inference:
  model: gpt-4o-mini
  timeout: 15s
  cache_ttl: 1h
library:
  max_results: 5
log:
  level: debug
`), 0o644))

	t.Setenv("RULE_HARVESTER_INFERENCE_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("RULE_HARVESTER_EXPORT_DIR", "/tmp/exports")
	t.Setenv("RULE_HARVESTER_API_KEY", "sk-env")

	v := viper.New()
	configure(v, path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.Inference.Model)
	assert.Equal(t, 15*time.Second, cfg.Inference.Timeout)
	assert.Equal(t, time.Hour, cfg.Inference.CacheTTL)
	assert.Equal(t, 2.5, cfg.Inference.RequestsPerSecond)
	assert.Equal(t, 5, cfg.Library.MaxResults)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/exports", cfg.Export.Dir)
	assert.Equal(t, types.DefaultEndpoint, cfg.Inference.Endpoint, "unset keys keep defaults")
	assert.Equal(t, "sk-env", v.GetString(apiKeyKey))
}

func TestWriteDefaultConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "rule-harvester.yaml")
	defaults := types.DefaultConfig("/home/test/.config/rule-harvester")

	require.NoError(t, writeDefaultConfig(path, defaults, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# rule-harvester configuration."))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	cfg := types.Config{}
	require.NoError(t, v.Unmarshal(&cfg))
	assert.Equal(t, defaults, cfg)

	err = writeDefaultConfig(path, defaults, false)
	assert.ErrorContains(t, err, "already exists")
	assert.NoError(t, writeDefaultConfig(path, defaults, true))
}

func TestRenderConfig(t *testing.T) {
	data, err := renderConfig(types.DefaultConfig(""))
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "model: gpt-4o")
	assert.Contains(t, out, "max_tokens: 2048")
	assert.Contains(t, out, "timeout: 1m0s")
	assert.Contains(t, out, "dir: secrets")
}

func TestExtractAll(t *testing.T) {
	replies := map[string]inference.Outcome{
		"Refunds within 30 days.": inference.Found(types.Rule{ID: "1", Title: "Refund window", Description: "30 days"}),
		"Welcome to the handbook.": inference.NotFound(),
	}
	ext := inference.ExtractorFunc(func(_ context.Context, p, _ string) (inference.Outcome, error) {
		return replies[p], nil
	})
	wf := workflow.New(ext, workflow.CredentialFunc(func() string { return "k" }))
	wf.Load("Welcome to the handbook.\n\nRefunds within 30 days.")

	var out strings.Builder
	require.NoError(t, extractAll(context.Background(), wf, &out))

	assert.Equal(t, "[1/2] no rule\n[2/2] Refund window\nProcessing complete\n", out.String())
	assert.Len(t, wf.Rules(), 1)
}

func TestExtractAllStopsAtFirstError(t *testing.T) {
	calls := 0
	ext := inference.ExtractorFunc(func(_ context.Context, p, _ string) (inference.Outcome, error) {
		calls++
		if p == "two" {
			return inference.Outcome{}, &inference.ParseError{Content: "??", Err: errors.New("bad")}
		}
		return inference.Found(types.Rule{ID: p, Title: p}), nil
	})
	wf := workflow.New(ext, workflow.CredentialFunc(func() string { return "k" }))
	wf.Load("one\n\ntwo\n\nthree")

	var out strings.Builder
	err := extractAll(context.Background(), wf, &out)
	assert.ErrorIs(t, err, inference.ErrParse)
	assert.Equal(t, 2, calls)
	assert.Len(t, wf.Rules(), 1, "rules found before the failure are kept")
}

func TestExtractAllEmptyDocument(t *testing.T) {
	wf := workflow.New(inference.ExtractorFunc(func(context.Context, string, string) (inference.Outcome, error) {
		t.Fatal("no call expected")
		return inference.Outcome{}, nil
	}), nil)
	wf.Load("  \n\n ")

	err := extractAll(context.Background(), wf, &strings.Builder{})
	assert.ErrorIs(t, err, workflow.ErrEmptyInput)
}

func TestParseSetID(t *testing.T) {
	id, err := parseSetID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-1", "abc"} {
		_, err := parseSetID(bad)
		assert.Error(t, err, bad)
	}
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "a b", clip("a\n b", 10))
	assert.Equal(t, "abcdefg...", clip("abcdefghijklmnop", 10))
}
