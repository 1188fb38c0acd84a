package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"yt-dataset-harvester/internal/combine"
	"yt-dataset-harvester/internal/models"
)

type VideoStore interface {
	UpsertVideos(ctx context.Context, playlistID, runDate string, records []models.VideoRecord) error
}

type IngestResult struct {
	Playlists int
	Videos    int
	Rejected  int
	Failed    int
}

// Ingester loads a combined videos document (playlist id -> array of video
// resources) into the dataset table, one playlist at a time.
type Ingester struct {
	store VideoStore
}

func NewIngester(store VideoStore) *Ingester {
	return &Ingester{store: store}
}

// IngestFile streams path. A record without an id is rejected; a playlist the
// store refuses is logged and counted, and the rest of the file is still loaded.
func (i *Ingester) IngestFile(ctx context.Context, path, runDate string) (IngestResult, error) {
	var res IngestResult

	err := combine.ReadEntries(path, func(playlistID string, value json.RawMessage) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		var raw []json.RawMessage
		if err := json.Unmarshal(value, &raw); err != nil {
			log.Printf("Skipping playlist %s: %v", playlistID, err)
			res.Failed++
			return nil
		}

		records := make([]models.VideoRecord, 0, len(raw))
		for _, body := range raw {
			rec, err := models.NewVideoRecord(body)
			if err != nil {
				res.Rejected++
				continue
			}
			records = append(records, rec)
		}

		if err := i.store.UpsertVideos(ctx, playlistID, runDate, records); err != nil {
			log.Printf("failed to ingest playlist %s: %v", playlistID, err)
			res.Failed++
			return nil
		}
		res.Playlists++
		res.Videos += len(records)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("failed to ingest %s: %w", path, err)
	}

	log.Printf("Ingested %d videos from %d playlists (%d rejected, %d playlists failed)", res.Videos, res.Playlists, res.Rejected, res.Failed)
	return res, nil
}
