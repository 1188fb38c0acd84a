package harvest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"yt-dataset-harvester/internal/services"
	"yt-dataset-harvester/internal/worker"
)

func recentStamps(n int) []time.Time {
	stamps := make([]time.Time, n)
	for i := range stamps {
		stamps[i] = day(time.June, 1)
	}
	return stamps
}

func TestChunkIDs(t *testing.T) {
	tests := []struct {
		length     int
		size       int
		wantChunks int
	}{
		{0, 50, 0},
		{1, 50, 1},
		{50, 50, 1},
		{51, 50, 2},
		{120, 50, 3},
		{7, 3, 3},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%d/%d", tc.length, tc.size), func(t *testing.T) {
			ids := make([]string, tc.length)
			for i := range ids {
				ids[i] = fmt.Sprintf("v%d", i)
			}

			chunks := ChunkIDs(ids, tc.size)
			if len(chunks) != tc.wantChunks {
				t.Fatalf("expected %d chunks, got %d", tc.wantChunks, len(chunks))
			}

			n := 0
			for _, c := range chunks {
				if len(c) > tc.size {
					t.Errorf("chunk of %d exceeds size %d", len(c), tc.size)
				}
				for _, id := range c {
					if id != ids[n] {
						t.Fatalf("chunks are not contiguous: expected %s, got %s", ids[n], id)
					}
					n++
				}
			}
			if n != tc.length {
				t.Errorf("expected %d ids across chunks, got %d", tc.length, n)
			}
		})
	}
}

func TestProcessBatch_ChunksMetadataCalls(t *testing.T) {
	f := newFakeClient()
	f.addPlaylist("PL", recentStamps(50), recentStamps(50), recentStamps(20))

	p := NewProcessor(f, NewEnumerator(f, testCutoff), 50, nil, nil)
	result := p.ProcessBatch(context.Background(), uuid.New(), []string{"PL"}, 0)

	calls := f.videoCallsFor("PL")
	if len(calls) != 3 {
		t.Fatalf("expected ceil(120/50)=3 metadata calls, got %d", len(calls))
	}

	input := make(map[string]bool)
	for _, id := range result.Playlists["PL"] {
		input[id] = true
	}
	if len(input) != 120 {
		t.Fatalf("expected 120 enumerated ids, got %d", len(input))
	}
	for _, rec := range result.Videos["PL"] {
		if !input[rec.ID] {
			t.Errorf("record %s was not requested", rec.ID)
		}
	}
	if len(result.Videos["PL"]) != 120 {
		t.Errorf("expected 120 records, got %d", len(result.Videos["PL"]))
	}
	if result.Videos["PL"][0].ID != "PL-v0" || result.Videos["PL"][119].ID != "PL-v119" {
		t.Errorf("expected records in chunk order")
	}
}

func TestProcessBatch_ChunkFailureKeepsPlaylist(t *testing.T) {
	f := newFakeClient()
	f.addPlaylist("PL", recentStamps(50), recentStamps(50), recentStamps(20))
	f.failChunk["PL-v50"] = true

	p := NewProcessor(f, NewEnumerator(f, testCutoff), 50, nil, nil)
	result := p.ProcessBatch(context.Background(), uuid.New(), []string{"PL"}, 0)

	if len(result.Playlists["PL"]) != 120 {
		t.Errorf("expected all 120 ids to be recorded, got %d", len(result.Playlists["PL"]))
	}
	if got := len(result.Videos["PL"]); got != 70 {
		t.Errorf("expected 70 records after one failed chunk, got %d", got)
	}
	if len(f.videoCallsFor("PL")) != 3 {
		t.Errorf("expected remaining chunks to still be fetched")
	}
}

func TestProcessBatch_PartialFailureIsolation(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("%d workers", workers), func(t *testing.T) {
			f := newFakeClient()
			slice := make([]string, 50)
			for i := range slice {
				slice[i] = fmt.Sprintf("P%d", i+1)
				f.addPlaylist(slice[i], recentStamps(2))
			}
			f.listErr["P17"] = &services.RemoteServiceError{Op: "playlistItems.list", Status: 404, Body: "playlistNotFound"}

			p := NewProcessor(f, NewEnumerator(f, testCutoff), 50, worker.NewPool(workers), nil)
			result := p.ProcessBatch(context.Background(), uuid.New(), slice, 4)

			if result.BatchNumber != 4 {
				t.Errorf("expected batch number 4, got %d", result.BatchNumber)
			}
			if len(result.Playlists) != 49 || len(result.Videos) != 49 {
				t.Fatalf("expected 49 entries, got %d/%d", len(result.Playlists), len(result.Videos))
			}
			if _, ok := result.Playlists["P17"]; ok {
				t.Errorf("failed playlist must not appear in the enumeration map")
			}
			if _, ok := result.Videos["P17"]; ok {
				t.Errorf("failed playlist must not appear in the metadata map")
			}
			if len(result.Failed) != 1 || result.Failed[0] != "P17" {
				t.Errorf("expected P17 as the only failure, got %v", result.Failed)
			}
			if result.LastPlaylistID() != "P50" {
				t.Errorf("expected last playlist P50, got %s", result.LastPlaylistID())
			}
		})
	}
}

func TestProcessBatch_EmptyPlaylistIsSkipped(t *testing.T) {
	f := newFakeClient()
	f.addPlaylist("OLD", []time.Time{day(time.January, 1)})
	f.addPlaylist("NEW", recentStamps(1))

	p := NewProcessor(f, NewEnumerator(f, testCutoff), 50, nil, nil)
	result := p.ProcessBatch(context.Background(), uuid.New(), []string{"OLD", "NEW"}, 0)

	if _, ok := result.Playlists["OLD"]; ok {
		t.Errorf("playlist without recent videos must be skipped")
	}
	if len(result.Playlists["NEW"]) != 1 {
		t.Errorf("expected NEW to be harvested")
	}
	if len(f.videoCallsFor("OLD")) != 0 {
		t.Errorf("no metadata should be fetched for a skipped playlist")
	}
}

func TestProcessBatch_EmptyIDIsSkipped(t *testing.T) {
	f := newFakeClient()
	f.addPlaylist("A", recentStamps(2))

	rec := &recordingReporter{}
	p := NewProcessor(f, NewEnumerator(f, testCutoff), 50, nil, rec)
	result := p.ProcessBatch(context.Background(), uuid.New(), []string{"", "A"}, 0)

	if len(result.Playlists) != 1 || len(result.Playlists["A"]) != 2 {
		t.Errorf("expected only A to be harvested, got %v", result.Playlists)
	}
	if f.listCalls[""] != 0 {
		t.Errorf("empty id must not be enumerated")
	}
	if rec.count("playlist_skipped") != 1 || result.LastPlaylistID() != "A" {
		t.Errorf("expected one skip and last id A")
	}
}

func TestProcessBatch_ReportsEvents(t *testing.T) {
	f := newFakeClient()
	f.addPlaylist("A", recentStamps(3))
	f.listErr["B"] = errors.New("connection reset")

	rec := &recordingReporter{}
	p := NewProcessor(f, NewEnumerator(f, testCutoff), 50, nil, rec)
	p.ProcessBatch(context.Background(), uuid.New(), []string{"A", "B"}, 0)

	completed, skipped := rec.count("playlist_completed"), rec.count("playlist_skipped")
	if completed != 1 || skipped != 1 {
		t.Errorf("expected 1 completed and 1 skipped event, got %d/%d", completed, skipped)
	}
}
