// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/rule-harvester/pkg/types"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "rule-harvester.log")
	logger, err := New(types.LogConfig{File: path, Level: "info"})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("paragraph processed", zap.Int("paragraph", 2))
	require.NoError(t, logger.Sync())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry), sc.Text())
		lines = append(lines, entry)
	}
	require.Len(t, lines, 1, "debug is below the configured level")

	entry := lines[0]
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "paragraph processed", entry["message"])
	assert.EqualValues(t, 2, entry["paragraph"])
	assert.Contains(t, entry, "timestamp")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewTo(types.LogConfig{Console: true, Level: "debug"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Debug("document loaded", zap.Int("bytes", 42))
	require.NoError(t, logger.Sync())

	assert.Contains(t, buf.String(), "document loaded")
	assert.Contains(t, buf.String(), "DEBUG")
}

func TestNewWithoutOutputsIsNop(t *testing.T) {
	logger, err := New(types.LogConfig{})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(types.LogConfig{Level: "loud"})
	assert.ErrorContains(t, err, "invalid log level")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{" WARN ", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
