package harvest

import (
	"context"
	"log"

	"github.com/google/uuid"

	"yt-dataset-harvester/internal/models"
	"yt-dataset-harvester/internal/worker"
)

// Processor turns one slice of playlists into a BatchResult.
type Processor struct {
	enumerator *Enumerator
	client     MetadataClient
	chunkSize  int
	pool       *worker.Pool
	reporter   Reporter
}

func NewProcessor(client MetadataClient, enumerator *Enumerator, chunkSize int, pool *worker.Pool, reporter Reporter) *Processor {
	if chunkSize < 1 {
		chunkSize = 50
	}
	if pool == nil {
		pool = worker.NewPool(1)
	}
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Processor{
		enumerator: enumerator,
		client:     client,
		chunkSize:  chunkSize,
		pool:       pool,
		reporter:   reporter,
	}
}

type playlistOutcome struct {
	videoIDs []string
	records  []models.VideoRecord
	ok       bool
}

// ProcessBatch harvests every playlist of the slice. Playlists run on the worker
// pool, but results are assembled in slice order and handed back as one value, so
// the caller is the only writer for this batch. A failed or empty playlist is left
// out of both maps; it never aborts the batch.
func (p *Processor) ProcessBatch(ctx context.Context, runID uuid.UUID, playlists []string, batchNumber int) *models.BatchResult {
	outcomes := make([]playlistOutcome, len(playlists))

	p.pool.Run(ctx, len(playlists), func(ctx context.Context, workerID, i int) {
		outcomes[i] = p.processPlaylist(ctx, runID, playlists[i], batchNumber)
	})

	result := models.NewBatchResult(batchNumber, playlists)
	for i, playlistID := range playlists {
		out := outcomes[i]
		if !out.ok {
			result.Failed = append(result.Failed, playlistID)
			continue
		}
		result.Playlists[playlistID] = out.videoIDs
		result.Videos[playlistID] = out.records
	}
	return result
}

func (p *Processor) processPlaylist(ctx context.Context, runID uuid.UUID, playlistID string, batchNumber int) playlistOutcome {
	if playlistID == "" {
		log.Printf("Skipping input row without a playlist id")
		p.reporter.Report(ctx, models.ProgressEvent{
			Type: models.EventPlaylistSkipped, RunID: runID, BatchNumber: batchNumber,
			Reason: "empty playlist id",
		})
		return playlistOutcome{}
	}
	log.Printf("Processing playlist: %s", playlistID)

	videoIDs, err := p.enumerator.Enumerate(ctx, playlistID)
	if err != nil {
		log.Printf("Skipping playlist %s: %v", playlistID, err)
		p.reporter.Report(ctx, models.ProgressEvent{
			Type: models.EventPlaylistSkipped, RunID: runID, BatchNumber: batchNumber,
			PlaylistID: playlistID, Reason: err.Error(),
		})
		return playlistOutcome{}
	}
	if len(videoIDs) == 0 {
		log.Printf("Skipping playlist %s: no videos since %s", playlistID, p.enumerator.Cutoff().Format("2006-01-02"))
		p.reporter.Report(ctx, models.ProgressEvent{
			Type: models.EventPlaylistSkipped, RunID: runID, BatchNumber: batchNumber,
			PlaylistID: playlistID, Reason: "no videos after cutoff",
		})
		return playlistOutcome{}
	}

	records := p.fetchVideos(ctx, playlistID, videoIDs)

	p.reporter.Report(ctx, models.ProgressEvent{
		Type: models.EventPlaylistCompleted, RunID: runID, BatchNumber: batchNumber,
		PlaylistID: playlistID, Videos: len(records),
	})
	log.Printf("Playlist %s done: %d ids, %d videos fetched", playlistID, len(videoIDs), len(records))

	return playlistOutcome{videoIDs: videoIDs, records: records, ok: true}
}

// fetchVideos requests metadata chunk by chunk. A failed chunk contributes no
// records; later chunks are still fetched.
func (p *Processor) fetchVideos(ctx context.Context, playlistID string, videoIDs []string) []models.VideoRecord {
	chunks := ChunkIDs(videoIDs, p.chunkSize)
	records := make([]models.VideoRecord, 0, len(videoIDs))

	for i, chunk := range chunks {
		log.Printf("Processing chunk %d/%d for playlist %s", i+1, len(chunks), playlistID)
		recs, err := p.client.GetVideosByIDs(ctx, chunk)
		if err != nil {
			log.Printf("Chunk %d/%d for playlist %s failed, %d ids dropped: %v", i+1, len(chunks), playlistID, len(chunk), err)
			continue
		}
		records = append(records, recs...)
	}
	return records
}

// ChunkIDs splits ids into contiguous chunks of at most size elements.
func ChunkIDs(ids []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
