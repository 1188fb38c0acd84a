package models

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEntry is one committed batch as recorded in the harvest_batches table.
type LedgerEntry struct {
	RunID          uuid.UUID `json:"run_id"`
	RunDate        string    `json:"run_date"`
	BatchNumber    int       `json:"batch_number"`
	Playlists      int       `json:"playlists"`
	Videos         int       `json:"videos"`
	LastPlaylistID string    `json:"last_playlist_id"`
	CompletedAt    time.Time `json:"completed_at"`
}
