package harvest

import (
	"context"
	"fmt"
	"time"

	"yt-dataset-harvester/internal/models"
	"yt-dataset-harvester/internal/services"
)

// Enumerator lists the video ids of one playlist published at or after a cutoff.
//
// Playlist pages are assumed to be reverse-chronological. Pagination therefore stops
// at the first page with no qualifying entry, and anything newer than the cutoff on a
// later page is never seen. This is a deliberate limitation, not an optimisation: an
// out-of-order playlist yields a truncated list.
type Enumerator struct {
	client MetadataClient
	cutoff time.Time
}

func NewEnumerator(client MetadataClient, cutoff time.Time) *Enumerator {
	return &Enumerator{client: client, cutoff: cutoff.UTC()}
}

func (e *Enumerator) Cutoff() time.Time {
	return e.cutoff
}

// Enumerate walks the playlist from its first page. On any remote failure it returns
// an error and no ids, never a partial list.
func (e *Enumerator) Enumerate(ctx context.Context, playlistID string) ([]string, error) {
	var videoIDs []string
	pageToken := ""
	seen := make(map[string]bool)

	for {
		page, err := e.client.ListPlaylistItems(ctx, playlistID, pageToken)
		if err != nil {
			return nil, fmt.Errorf("playlist %s: %w", playlistID, err)
		}

		qualifying := filterSince(page.Items, e.cutoff)
		if len(qualifying) == 0 {
			break
		}
		videoIDs = append(videoIDs, qualifying...)

		if page.NextPageToken == "" {
			break
		}
		if seen[page.NextPageToken] {
			return nil, fmt.Errorf("playlist %s: %w", playlistID, &services.MalformedResponseError{
				Op:     "playlistItems.list",
				Reason: fmt.Sprintf("page token %q repeated", page.NextPageToken),
			})
		}
		seen[page.NextPageToken] = true
		pageToken = page.NextPageToken
	}

	return videoIDs, nil
}

func filterSince(items []models.PlaylistItem, cutoff time.Time) []string {
	var ids []string
	for _, item := range items {
		if !item.PublishedAt.Before(cutoff) {
			ids = append(ids, item.VideoID)
		}
	}
	return ids
}
