package checkpoint

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

type PairStatus string

const (
	StatusComplete         PairStatus = "complete"
	StatusMissingVideos    PairStatus = "missing_videos"
	StatusMissingPlaylists PairStatus = "missing_playlists"
)

// Entry describes the files present on disk for one batch number.
type Entry struct {
	BatchNumber   int        `json:"batch_number"`
	Status        PairStatus `json:"status"`
	PlaylistsPath string     `json:"playlists_path,omitempty"`
	VideosPath    string     `json:"videos_path,omitempty"`
}

func (e Entry) Complete() bool {
	return e.Status == StatusComplete
}

// Scan lists every batch number with at least one checkpoint file in dir, ascending.
// A missing directory yields no entries.
func Scan(dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("read checkpoint directory %s: %w", dir, err)
	}

	byBatch := make(map[int]*Entry)
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()

		var prefix string
		switch {
		case strings.HasPrefix(name, PlaylistsPrefix):
			prefix = PlaylistsPrefix
		case strings.HasPrefix(name, VideosPrefix):
			prefix = VideosPrefix
		default:
			continue
		}
		n, ok := BatchNumberFromName(name, prefix)
		if !ok {
			continue
		}

		e, found := byBatch[n]
		if !found {
			e = &Entry{BatchNumber: n}
			byBatch[n] = e
		}
		if prefix == PlaylistsPrefix {
			e.PlaylistsPath = filepath.Join(dir, name)
		} else {
			e.VideosPath = filepath.Join(dir, name)
		}
	}

	entries := make([]Entry, 0, len(byBatch))
	for _, e := range byBatch {
		switch {
		case e.PlaylistsPath != "" && e.VideosPath != "":
			e.Status = StatusComplete
		case e.PlaylistsPath != "":
			e.Status = StatusMissingVideos
		default:
			e.Status = StatusMissingPlaylists
		}
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].BatchNumber < entries[j].BatchNumber })
	return entries, nil
}

// BatchNumberFromName extracts N from "<prefix>N.json".
func BatchNumberFromName(name, prefix string) (int, bool) {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ResumePoint returns the batch number to continue from. When the newest batch is a
// partial pair it is returned as well and must be redone.
func ResumePoint(entries []Entry) (int, *Entry) {
	if len(entries) == 0 {
		return 0, nil
	}
	last := entries[len(entries)-1]
	if last.Complete() {
		return last.BatchNumber + 1, nil
	}
	return last.BatchNumber, &last
}

// Quarantine moves the surviving file of a partial pair out of the batch namespace
// so the batch can be written again without reopening an existing file.
func Quarantine(e Entry) error {
	if e.Complete() {
		return fmt.Errorf("batch %d is complete, refusing to quarantine", e.BatchNumber)
	}
	for _, p := range []string{e.PlaylistsPath, e.VideosPath} {
		if p == "" {
			continue
		}
		target, err := orphanPath(p)
		if err != nil {
			return fmt.Errorf("quarantine %s: %w", p, err)
		}
		if err := os.Rename(p, target); err != nil {
			return fmt.Errorf("quarantine %s: %w", p, err)
		}
		log.Printf("Moved partial checkpoint %s to %s", filepath.Base(p), filepath.Base(target))
	}
	return nil
}

// orphanPath returns the first free name of <p>.orphan, <p>.orphan.1, ... so an
// earlier quarantined file is never replaced.
func orphanPath(p string) (string, error) {
	target := p + ".orphan"
	for i := 1; ; i++ {
		_, err := os.Lstat(target)
		if os.IsNotExist(err) {
			return target, nil
		}
		if err != nil {
			return "", err
		}
		target = fmt.Sprintf("%s.orphan.%d", p, i)
	}
}
