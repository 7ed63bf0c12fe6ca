// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSinkDeliver(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "exports")
	s := NewFileSink(dir, nil)

	require.NoError(t, s.Deliver("rules-export-2024-01-02.json", []byte(`[]`)))

	path := filepath.Join(dir, "rules-export-2024-01-02.json")
	assert.Equal(t, path, s.Path())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestFileSinkOverwrites(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSink(dir, nil)

	require.NoError(t, s.Deliver("out.json", []byte("first")))
	require.NoError(t, s.Deliver("out.json", []byte("second")))

	data, err := os.ReadFile(filepath.Join(dir, "out.json"))
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(data))
}

func TestFileSinkRejectsPaths(t *testing.T) {
	s := NewFileSink(t.TempDir(), nil)
	for _, name := range []string{"", "../escape.json", "sub/dir.json"} {
		assert.Error(t, s.Deliver(name, []byte("x")), name)
	}
	assert.Equal(t, "", s.Path())
}

func TestNewFileSinkDefaultsToWorkingDir(t *testing.T) {
	assert.Equal(t, ".", NewFileSink("", nil).Dir)
}
