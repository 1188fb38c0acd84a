package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"yt-dataset-harvester/internal/models"
)

type BatchRepo struct {
	pool *pgxpool.Pool
}

func NewBatchRepo(pool *pgxpool.Pool) *BatchRepo {
	return &BatchRepo{pool: pool}
}

// RecordBatch stores a committed batch. Re-recording the same (run date, batch)
// replaces the previous row, which happens when a partial pair is redone.
func (r *BatchRepo) RecordBatch(ctx context.Context, run models.RunState, b *models.BatchResult) error {
	query := `INSERT INTO harvest_batches (run_id, run_date, batch_number, playlists, videos, last_playlist_id)
		VALUES ($1, $2::date, $3, $4, $5, $6)
		ON CONFLICT (run_date, batch_number) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			playlists = EXCLUDED.playlists,
			videos = EXCLUDED.videos,
			last_playlist_id = EXCLUDED.last_playlist_id,
			completed_at = NOW()`

	_, err := r.pool.Exec(ctx, query,
		run.RunID, run.RunDate, b.BatchNumber, len(b.Playlists), b.VideoCount(), b.LastPlaylistID(),
	)
	return err
}

func (r *BatchRepo) ListByRunDate(ctx context.Context, runDate string) ([]models.LedgerEntry, error) {
	query := `SELECT run_id, run_date::text, batch_number, playlists, videos, last_playlist_id, completed_at
		FROM harvest_batches WHERE run_date = $1::date ORDER BY batch_number`

	rows, err := r.pool.Query(ctx, query, runDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.RunID, &e.RunDate, &e.BatchNumber, &e.Playlists, &e.Videos, &e.LastPlaylistID, &e.CompletedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
