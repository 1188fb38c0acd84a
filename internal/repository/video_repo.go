package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"yt-dataset-harvester/internal/models"
)

type VideoRepo struct {
	pool *pgxpool.Pool
}

func NewVideoRepo(pool *pgxpool.Pool) *VideoRepo {
	return &VideoRepo{pool: pool}
}

// UpsertVideos writes the records of one playlist in a single round trip. A video
// already present is overwritten with the newer body.
func (r *VideoRepo) UpsertVideos(ctx context.Context, playlistID, runDate string, records []models.VideoRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `INSERT INTO videos (video_id, playlist_id, run_date, data)
		VALUES ($1, $2, NULLIF($3, '')::date, $4)
		ON CONFLICT (video_id) DO UPDATE SET
			playlist_id = EXCLUDED.playlist_id,
			run_date = EXCLUDED.run_date,
			data = EXCLUDED.data,
			ingested_at = NOW()`

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query, rec.ID, playlistID, runDate, []byte(rec.Body))
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for _, rec := range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert video %s: %w", rec.ID, err)
		}
	}
	return nil
}
