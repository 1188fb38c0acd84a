package combine

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ReadError is a batch file that could not be parsed. Entries yielded before the
// error stay yielded.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// ReadEntries streams the top-level object of a JSON file and calls fn for each
// key in file order. Only one value is decoded at a time.
func ReadEntries(path string, fn func(key string, value json.RawMessage) error) error {
	f, err := os.Open(path)
	if err != nil {
		return &ReadError{Path: path, Err: err}
	}
	defer f.Close()
	return decodeEntries(path, f, fn)
}

func decodeEntries(path string, r io.Reader, fn func(key string, value json.RawMessage) error) error {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return &ReadError{Path: path, Err: err}
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return &ReadError{Path: path, Err: fmt.Errorf("expected top-level object, got %v", tok)}
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return &ReadError{Path: path, Err: err}
		}
		key, ok := tok.(string)
		if !ok {
			return &ReadError{Path: path, Err: fmt.Errorf("expected object key, got %v", tok)}
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return &ReadError{Path: path, Err: fmt.Errorf("value of %q: %w", key, err)}
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return &ReadError{Path: path, Err: err}
	}
	return nil
}
