// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export writes rule export artifacts to disk.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileSink writes each artifact into Dir, creating it if needed. An existing
// file with the same name is overwritten.
type FileSink struct {
	Dir    string
	Logger *zap.Logger

	// written records the last path delivered.
	written string
}

// NewFileSink returns a sink writing into dir ("" means the working directory).
func NewFileSink(dir string, logger *zap.Logger) *FileSink {
	if dir == "" {
		dir = "."
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSink{Dir: dir, Logger: logger}
}

// Deliver writes data to Dir/filename.
func (s *FileSink) Deliver(filename string, data []byte) error {
	if filename == "" || filepath.Base(filename) != filename {
		return fmt.Errorf("invalid export filename %q", filename)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating export directory %s: %w", s.Dir, err)
	}
	path := filepath.Join(s.Dir, filename)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	s.written = path
	if s.Logger != nil {
		s.Logger.Debug("export written", zap.String("path", path), zap.Int("bytes", len(data)))
	}
	return nil
}

// Path returns the path of the last artifact written, or "".
func (s *FileSink) Path() string {
	return s.written
}
