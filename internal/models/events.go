package models

import "github.com/google/uuid"

// Progress event types
const (
	EventStateChanged      = "state_changed"
	EventPlaylistCompleted = "playlist_completed"
	EventPlaylistSkipped   = "playlist_skipped"
	EventBatchCommitted    = "batch_committed"
	EventBatchEmpty        = "batch_empty"
	EventRunFinished       = "run_finished"
)

type ProgressEvent struct {
	Type        string    `json:"type"`
	RunID       uuid.UUID `json:"run_id"`
	BatchNumber int       `json:"batch_number"`
	PlaylistID  string    `json:"playlist_id,omitempty"`
	Videos      int       `json:"videos,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Run         *RunState `json:"run,omitempty"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

// WebSocket message envelope
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
