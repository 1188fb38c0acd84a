// Package harvest walks playlists, collects video metadata in bounded chunks and
// checkpoints the results batch by batch so an interrupted run can be resumed.
package harvest

import (
	"context"

	"yt-dataset-harvester/internal/models"
)

// MetadataClient is the remote video-hosting service.
type MetadataClient interface {
	ListPlaylistItems(ctx context.Context, playlistID, pageToken string) (models.PlaylistPage, error)
	GetVideosByIDs(ctx context.Context, ids []string) ([]models.VideoRecord, error)
}

// Reporter receives progress events. Implementations must not block for long.
type Reporter interface {
	Report(ctx context.Context, ev models.ProgressEvent)
}

// BatchLocker guards the single-writer rule for one batch number.
type BatchLocker interface {
	Acquire(ctx context.Context, runDir string, batchNumber int) (release func(), err error)
}

// BatchLedger records committed batches outside the checkpoint directory.
type BatchLedger interface {
	RecordBatch(ctx context.Context, run models.RunState, b *models.BatchResult) error
}

type MultiReporter []Reporter

func (m MultiReporter) Report(ctx context.Context, ev models.ProgressEvent) {
	for _, r := range m {
		if r != nil {
			r.Report(ctx, ev)
		}
	}
}

type nopReporter struct{}

func (nopReporter) Report(context.Context, models.ProgressEvent) {}
