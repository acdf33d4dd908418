package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/propharvest/internal/listing"
	"github.com/jmylchreest/propharvest/internal/logger"
)

// DefaultDir is where output files are written.
const DefaultDir = "output"

// FileName derives an output file name from a base search URL: the scheme
// is dropped and every "/" becomes "_".
func FileName(baseURL string, format Format) string {
	name := baseURL
	if i := strings.Index(name, "://"); i >= 0 {
		name = name[i+3:]
	}
	name = strings.ReplaceAll(name, "/", "_")
	return name + "." + format.Extension()
}

// FileSink writes each base URL's records to its own file, replacing any
// previous file of the same name.
type FileSink struct {
	dir    string
	format Format
	opts   []WriterOption
}

// NewFileSink creates a sink writing format files into dir.
func NewFileSink(dir string, format Format, opts ...WriterOption) *FileSink {
	if dir == "" {
		dir = DefaultDir
	}
	return &FileSink{dir: dir, format: format, opts: opts}
}

// Name identifies the sink in diagnostics.
func (s *FileSink) Name() string {
	return "file:" + string(s.format)
}

// Path returns the file that records for baseURL are written to.
func (s *FileSink) Path(baseURL string) string {
	return filepath.Join(s.dir, FileName(baseURL, s.format))
}

// Write serializes records to the file for baseURL, then confirms the file
// exists.
func (s *FileSink) Write(_ context.Context, baseURL string, records []listing.Record) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	path := s.Path(baseURL)
	if err := s.writeFile(path, records); err != nil {
		logger.Error("failed to create file", "path", path, "error", err)
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		logger.Error("failed to create file", "path", path, "error", err)
		return fmt.Errorf("output file missing after write: %w", err)
	}

	logger.Info("file successfully created",
		"path", path,
		"records", len(records),
		"size", humanize.Bytes(uint64(info.Size())))
	return nil
}

func (s *FileSink) writeFile(path string, records []listing.Record) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()

	w, err := NewWriter(f, s.format, s.opts...)
	if err != nil {
		return err
	}
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	return w.Close()
}
