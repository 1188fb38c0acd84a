package harvest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var ErrEmptyInput = errors.New("playlist input list is empty")

// ReadPlaylistIDs reads the ordered playlist id list, one id in the first column of
// each record. Blank lines are not records. A record with an empty first column
// is kept as "" so batch slicing counts it as a position; the processor skips it.
func ReadPlaylistIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist input: %w", err)
	}
	defer f.Close()

	ids, err := parsePlaylistIDs(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ids, nil
}

func parsePlaylistIDs(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var ids []string
	named := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) == 0 {
			continue
		}
		id := strings.TrimSpace(record[0])
		if id != "" {
			named++
		}
		ids = append(ids, id)
	}

	if named == 0 {
		return nil, ErrEmptyInput
	}
	return ids, nil
}
