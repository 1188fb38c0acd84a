package checkpoint

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"yt-dataset-harvester/internal/models"
)

const (
	PlaylistsPrefix = "playlists_batch_"
	VideosPrefix    = "videos_batch_"
)

var ErrBatchExists = errors.New("checkpoint file already exists")

// WriteError is a failed checkpoint write. It is fatal for the run: every advanced
// batch number must have its files on disk.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("checkpoint write failed for %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func PlaylistsFileName(batchNumber int) string {
	return fmt.Sprintf("%s%d.json", PlaylistsPrefix, batchNumber)
}

func VideosFileName(batchNumber int) string {
	return fmt.Sprintf("%s%d.json", VideosPrefix, batchNumber)
}

// Writer persists batch results into one run-scoped directory. Files are append-only
// by batch number; an existing batch file is never overwritten.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Dir() string {
	return w.dir
}

// Write stores the enumeration map then the metadata map of one batch.
// A crash between the two leaves a partial pair that Scan reports.
func (w *Writer) Write(b *models.BatchResult) error {
	playlistsPath := filepath.Join(w.dir, PlaylistsFileName(b.BatchNumber))
	videosPath := filepath.Join(w.dir, VideosFileName(b.BatchNumber))

	for _, p := range []string{playlistsPath, videosPath} {
		found, err := exists(p)
		if err != nil {
			return &WriteError{Path: p, Err: err}
		}
		if found {
			return &WriteError{Path: p, Err: ErrBatchExists}
		}
	}

	if err := writeJSONAtomic(playlistsPath, b.Playlists); err != nil {
		return &WriteError{Path: playlistsPath, Err: err}
	}
	log.Printf("Playlists batch %d dumped", b.BatchNumber)

	if err := writeJSONAtomic(videosPath, b.Videos); err != nil {
		return &WriteError{Path: videosPath, Err: err}
	}
	log.Printf("Videos batch %d dumped", b.BatchNumber)

	return nil
}
