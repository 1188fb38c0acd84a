package models

import (
	"time"

	"github.com/google/uuid"
)

type HarvestState string

const (
	StateInit            HarvestState = "init"
	StateLoadingInput    HarvestState = "loading_input"
	StateProcessingBatch HarvestState = "processing_batch"
	StateCheckpointing   HarvestState = "checkpointing"
	StateDone            HarvestState = "done"
)

// RunState carries the resume cursor and running totals of one driver invocation.
// It is passed by value and returned from each step; nothing else holds it.
type RunState struct {
	RunID                   uuid.UUID    `json:"run_id"`
	RunDate                 string       `json:"run_date"`
	State                   HarvestState `json:"state"`
	StartBatch              int          `json:"start_batch"`
	BatchNumber             int          `json:"batch_number"`
	BatchesWritten          int          `json:"batches_written"`
	TotalPlaylistsProcessed int          `json:"total_playlists_processed"`
	TotalVideosProcessed    int          `json:"total_videos_processed"`
	PlaylistsSkipped        int          `json:"playlists_skipped"`
	InputOffset             int          `json:"input_offset"`
	InputTotal              int          `json:"input_total"`
	Interrupted             bool         `json:"interrupted,omitempty"`
	StartedAt               time.Time    `json:"started_at"`
	FinishedAt              *time.Time   `json:"finished_at,omitempty"`
}

// Commit folds a written batch into the totals and advances the batch cursor.
func (s RunState) Commit(b *BatchResult) RunState {
	s.BatchNumber++
	s.BatchesWritten++
	s.TotalPlaylistsProcessed += len(b.Playlists)
	s.TotalVideosProcessed += b.VideoCount()
	return s
}
