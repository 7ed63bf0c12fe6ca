// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/rule-harvester/pkg/types"
)

// Sink receives an export artifact, e.g. by writing it to disk.
type Sink interface {
	Deliver(filename string, data []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(filename string, data []byte) error

// Deliver calls f.
func (f SinkFunc) Deliver(filename string, data []byte) error { return f(filename, data) }

// Export describes a delivered export.
type Export struct {
	Filename string
	Count    int
	Data     []byte
}

// ExportFilename returns rules-export-YYYY-MM-DD.json for the UTC date of now.
func ExportFilename(now time.Time) string {
	return "rules-export-" + now.UTC().Format(time.DateOnly) + ".json"
}

// EncodeRules renders rules as a two-space indented JSON array of
// {title, description} objects, without identifiers.
func EncodeRules(rules []types.Rule) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(types.ExportRules(rules)); err != nil {
		return nil, fmt.Errorf("encoding rules: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ExportRules encodes the current rules and hands them to sink. It returns
// ErrEmptyExport when there is nothing to export.
func (w *Workflow) ExportRules(now time.Time, sink Sink) (Export, error) {
	rules := w.Rules()
	if len(rules) == 0 {
		return Export{}, ErrEmptyExport
	}

	data, err := EncodeRules(rules)
	if err != nil {
		return Export{}, err
	}

	exp := Export{
		Filename: ExportFilename(now),
		Count:    len(rules),
		Data:     data,
	}
	if err := sink.Deliver(exp.Filename, data); err != nil {
		w.logger.Error("export failed", zap.String("file", exp.Filename), zap.Error(err))
		return Export{}, fmt.Errorf("delivering %s: %w", exp.Filename, err)
	}

	w.logger.Info("rules exported", zap.String("file", exp.Filename), zap.Int("rules", exp.Count))
	return exp, nil
}
