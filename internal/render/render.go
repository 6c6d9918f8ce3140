// Package render turns linked universes into visualization and learning
// inputs written as JSON files.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/obernardovieira/solvis/internal/callgraph"
)

// Format names an output transform.
type Format string

const (
	FormatEdgeBundle Format = "edgebundle"
	FormatGNN        Format = "gnn"
	FormatJSON       Format = "json"
)

// Formats lists every supported format.
var Formats = []Format{FormatEdgeBundle, FormatGNN, FormatJSON}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (want one of edgebundle, gnn, json)", s)
}

// Render returns the value written for format.
func Render(format Format, u *callgraph.Universe) (any, error) {
	switch format {
	case FormatEdgeBundle:
		return EdgeBundle(u), nil
	case FormatGNN:
		return GNN(u), nil
	case FormatJSON:
		return u, nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

// OutputPath is where format output for entryFile is written under dir.
func OutputPath(dir, entryFile string, format Format) string {
	base := strings.TrimSuffix(filepath.Base(entryFile), filepath.Ext(entryFile))
	return filepath.Join(dir, base+"."+string(format)+".json")
}

// FileSink writes every configured format for each universe.
type FileSink struct {
	Dir     string
	Formats []Format
	Log     *slog.Logger
}

// NewFileSink returns a sink writing formats under dir.
func NewFileSink(dir string, formats []Format, logger *slog.Logger) *FileSink {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FileSink{Dir: dir, Formats: formats, Log: logger}
}

func (s *FileSink) Name() string { return "files" }

func (s *FileSink) Consume(_ context.Context, entryFile string, u *callgraph.Universe) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, f := range s.Formats {
		v, err := Render(f, u)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %s: %w", f, err)
		}
		path := OutputPath(s.Dir, entryFile, f)
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		s.Log.Debug("wrote output", "entry", entryFile, "format", f, "path", path)
	}
	return nil
}
