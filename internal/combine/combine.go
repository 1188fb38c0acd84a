// Package combine merges the per-batch checkpoint files of a run into one
// consolidated JSON document without holding the dataset in memory.
package combine

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const DefaultChunkSize = 1000

// NoInputError is returned when no batch file matches the pattern.
type NoInputError struct {
	Pattern string
}

func (e *NoInputError) Error() string {
	return fmt.Sprintf("no batch files found matching pattern: %s", e.Pattern)
}

type Options struct {
	InputDir  string
	Pattern   string // e.g. "videos_batch_*.json", the * is the batch number
	Output    string
	ChunkSize int
}

type Result struct {
	Files      int
	Entries    int
	Duplicates int
	Output     string
}

type batchFile struct {
	path   string
	number int
}

// MatchBatchFiles returns the files in dir matching pattern, ordered by the batch
// number embedded in the name (batch_2 before batch_10).
func MatchBatchFiles(dir, pattern string) ([]string, error) {
	re, err := patternRegexp(pattern)
	if err != nil {
		return nil, err
	}

	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to glob %s: %w", pattern, err)
	}

	files := make([]batchFile, 0, len(paths))
	for _, p := range paths {
		m := re.FindStringSubmatch(filepath.Base(p))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		files = append(files, batchFile{path: p, number: n})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].number < files[j].number })

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out, nil
}

func patternRegexp(pattern string) (*regexp.Regexp, error) {
	prefix, suffix, ok := strings.Cut(pattern, "*")
	if !ok || strings.Contains(suffix, "*") {
		return nil, fmt.Errorf("pattern %q must contain exactly one *", pattern)
	}
	return regexp.Compile("^" + regexp.QuoteMeta(prefix) + `(\d+)` + regexp.QuoteMeta(suffix) + "$")
}

// Combine merges the top-level mappings of every matching batch file into
// opts.Output. Entries are flushed every ChunkSize keys. When a key appears in
// more than one file the first occurrence is kept.
func Combine(opts Options) (Result, error) {
	if opts.ChunkSize < 1 {
		opts.ChunkSize = DefaultChunkSize
	}

	files, err := MatchBatchFiles(opts.InputDir, opts.Pattern)
	if err != nil {
		return Result{}, err
	}
	if len(files) == 0 {
		return Result{}, &NoInputError{Pattern: opts.Pattern}
	}
	log.Printf("Found %d batch files", len(files))

	if err := os.MkdirAll(filepath.Dir(opts.Output), 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(opts.Output), ".combine-tmp-*")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create output file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	cw := newChunkWriter(bufio.NewWriter(tmp), opts.ChunkSize)
	result := Result{Files: len(files), Output: opts.Output}
	seen := make(map[string]struct{})

	if err := cw.open(); err != nil {
		tmp.Close()
		return result, err
	}

	for _, path := range files {
		log.Printf("Processing %s", filepath.Base(path))
		err := ReadEntries(path, func(key string, value json.RawMessage) error {
			if _, dup := seen[key]; dup {
				log.Printf("Duplicate key %q in %s, keeping first occurrence", key, filepath.Base(path))
				result.Duplicates++
				return nil
			}
			seen[key] = struct{}{}
			result.Entries++
			return cw.add(key, value)
		})
		if err != nil {
			var readErr *ReadError
			if !errors.As(err, &readErr) {
				tmp.Close()
				return result, err
			}
			log.Printf("Error reading %s: %v", path, readErr.Err)
		}
		// chunks never span batch files
		if err := cw.flush(); err != nil {
			tmp.Close()
			return result, err
		}
	}

	if err := cw.close(); err != nil {
		tmp.Close()
		return result, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return result, fmt.Errorf("failed to sync output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return result, fmt.Errorf("failed to close output: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return result, fmt.Errorf("failed to chmod output: %w", err)
	}
	if err := os.Rename(tmpPath, opts.Output); err != nil {
		return result, fmt.Errorf("failed to move output into place: %w", err)
	}

	log.Printf("Successfully combined %d batch files into %s", result.Files, opts.Output)
	log.Printf("Combined data contains %d entries", result.Entries)
	return result, nil
}

// chunkWriter buffers up to size entries and writes them as one block. Entries of
// a block are separated by ", ", blocks by ",\n".
type chunkWriter struct {
	w       *bufio.Writer
	size    int
	pending []string
	written bool
}

func newChunkWriter(w *bufio.Writer, size int) *chunkWriter {
	return &chunkWriter{w: w, size: size, pending: make([]string, 0, size)}
}

func (c *chunkWriter) open() error {
	_, err := c.w.WriteString("{\n")
	return err
}

func (c *chunkWriter) add(key string, value json.RawMessage) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, value); err != nil {
		return fmt.Errorf("invalid value for key %q: %w", key, err)
	}
	c.pending = append(c.pending, string(k)+": "+buf.String())
	if len(c.pending) >= c.size {
		return c.flush()
	}
	return nil
}

func (c *chunkWriter) flush() error {
	if len(c.pending) == 0 {
		return nil
	}
	if c.written {
		if _, err := c.w.WriteString(",\n"); err != nil {
			return err
		}
	}
	if _, err := c.w.WriteString(strings.Join(c.pending, ", ")); err != nil {
		return err
	}
	c.written = true
	c.pending = c.pending[:0]
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("failed to write chunk: %w", err)
	}
	return nil
}

func (c *chunkWriter) close() error {
	if err := c.flush(); err != nil {
		return err
	}
	if _, err := c.w.WriteString("\n}"); err != nil {
		return err
	}
	return c.w.Flush()
}
