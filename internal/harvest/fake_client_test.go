package harvest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"yt-dataset-harvester/internal/models"
	"yt-dataset-harvester/internal/services"
)

var testCutoff = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func day(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 12, 0, 0, 0, time.UTC)
}

// fakeClient serves canned playlist pages and answers video lookups for any id
// it has handed out, unless told otherwise.
type fakeClient struct {
	mu sync.Mutex

	pages      map[string][]models.PlaylistPage
	listErr    map[string]error
	failChunk  map[string]bool // keyed by first id of the chunk
	listCalls  map[string]int
	videoCalls [][]string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		pages:     make(map[string][]models.PlaylistPage),
		listErr:   make(map[string]error),
		failChunk: make(map[string]bool),
		listCalls: make(map[string]int),
	}
}

// addPlaylist registers a playlist whose pages hold one video per timestamp.
func (f *fakeClient) addPlaylist(id string, pages ...[]time.Time) {
	n := 0
	for i, stamps := range pages {
		page := models.PlaylistPage{}
		for _, ts := range stamps {
			page.Items = append(page.Items, models.PlaylistItem{VideoID: fmt.Sprintf("%s-v%d", id, n), PublishedAt: ts})
			n++
		}
		if i < len(pages)-1 {
			page.NextPageToken = fmt.Sprintf("tok-%d", i+1)
		}
		f.pages[id] = append(f.pages[id], page)
	}
}

func (f *fakeClient) ListPlaylistItems(ctx context.Context, playlistID, pageToken string) (models.PlaylistPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls[playlistID]++

	if err, ok := f.listErr[playlistID]; ok {
		return models.PlaylistPage{}, err
	}

	idx := 0
	if pageToken != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(pageToken, "tok-"))
		if err != nil {
			return models.PlaylistPage{}, &services.RemoteServiceError{Op: "list", Status: 400, Body: "bad token"}
		}
		idx = n
	}
	pages := f.pages[playlistID]
	if idx >= len(pages) {
		return models.PlaylistPage{}, nil
	}
	return pages[idx], nil
}

func (f *fakeClient) GetVideosByIDs(ctx context.Context, ids []string) ([]models.VideoRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := append([]string(nil), ids...)
	f.videoCalls = append(f.videoCalls, cp)

	if len(ids) > 0 && f.failChunk[ids[0]] {
		return nil, &services.RemoteServiceError{Op: "videos.list", Status: 500, Body: "backendError"}
	}

	records := make([]models.VideoRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := models.NewVideoRecord([]byte(fmt.Sprintf(`{"id":%q,"snippet":{"title":"video %s"}}`, id, id)))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (f *fakeClient) videoCallsFor(prefix string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, c := range f.videoCalls {
		if len(c) > 0 && strings.HasPrefix(c[0], prefix+"-") {
			out = append(out, c)
		}
	}
	return out
}

// writeInput writes playlist ids P1..Pn, one per line, and registers each with a
// single recent video on the fake client.
func writeInput(t *testing.T, f *fakeClient, n int) (string, []string) {
	t.Helper()
	ids := make([]string, n)
	var sb strings.Builder
	for i := range ids {
		ids[i] = fmt.Sprintf("P%d", i+1)
		sb.WriteString(ids[i] + "\n")
		if f != nil {
			f.addPlaylist(ids[i], []time.Time{day(time.June, 1)})
		}
	}
	path := filepath.Join(t.TempDir(), "playlist_id.csv")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path, ids
}
