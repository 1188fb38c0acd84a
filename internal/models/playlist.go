package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// PlaylistItem is one entry of a playlist page, reduced to what the harvester needs.
type PlaylistItem struct {
	VideoID     string    `json:"video_id"`
	PublishedAt time.Time `json:"published_at"` // always UTC
}

// PlaylistPage is a single page of a paginated playlist listing.
// NextPageToken is empty on the last page.
type PlaylistPage struct {
	Items         []PlaylistItem `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

// VideoRecord is a fully populated video resource as returned by the remote service.
// The body is kept verbatim; only the ID is interpreted.
type VideoRecord struct {
	ID   string
	Body json.RawMessage
}

func NewVideoRecord(body []byte) (VideoRecord, error) {
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return VideoRecord{}, fmt.Errorf("failed to decode video record: %w", err)
	}
	if head.ID == "" {
		return VideoRecord{}, fmt.Errorf("video record has no id")
	}
	raw := make(json.RawMessage, len(body))
	copy(raw, body)
	return VideoRecord{ID: head.ID, Body: raw}, nil
}

func (v VideoRecord) MarshalJSON() ([]byte, error) {
	if len(v.Body) == 0 {
		return json.Marshal(map[string]string{"id": v.ID})
	}
	return v.Body, nil
}

func (v *VideoRecord) UnmarshalJSON(data []byte) error {
	rec, err := NewVideoRecord(data)
	if err != nil {
		return err
	}
	*v = rec
	return nil
}
