package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/api/option"
)

var testRetry = RetryConfig{MaxRetries: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Multiplier: 1}

func newTestYouTubeService(t *testing.T, h http.HandlerFunc) *YouTubeService {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	svc, err := NewYouTubeService(context.Background(), "test-key",
		YouTubeOptions{ConcurrentRequests: 2, Retry: testRetry},
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

func writeJSONBody(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func queryIDs(r *http.Request) []string {
	var ids []string
	for _, v := range r.URL.Query()["id"] {
		ids = append(ids, strings.Split(v, ",")...)
	}
	return ids
}

func TestNewYouTubeService_RequiresKey(t *testing.T) {
	if _, err := NewYouTubeService(context.Background(), "", YouTubeOptions{}); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestListPlaylistItems_ParsesPage(t *testing.T) {
	var gotQuery atomic.Value
	svc := newTestYouTubeService(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/playlistItems") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery.Store(r.URL.Query())
		writeJSONBody(w, http.StatusOK, map[string]interface{}{
			"nextPageToken": "PAGE2",
			"items": []map[string]interface{}{
				{"contentDetails": map[string]string{"videoId": "v1"}, "snippet": map[string]string{"publishedAt": "2024-06-01T10:00:00Z"}},
				{"contentDetails": map[string]string{"videoId": "v2"}, "snippet": map[string]string{"publishedAt": "2024-05-31T23:59:59Z"}},
			},
		})
	})

	page, err := svc.ListPlaylistItems(context.Background(), "UUabc", "PAGE1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q := gotQuery.Load().(url.Values)
	if q["playlistId"][0] != "UUabc" {
		t.Errorf("expected playlistId UUabc, got %v", q["playlistId"])
	}
	if q["pageToken"][0] != "PAGE1" {
		t.Errorf("expected pageToken PAGE1, got %v", q["pageToken"])
	}
	if q["maxResults"][0] != "50" {
		t.Errorf("expected maxResults 50, got %v", q["maxResults"])
	}

	if page.NextPageToken != "PAGE2" {
		t.Errorf("expected next token PAGE2, got %q", page.NextPageToken)
	}
	if len(page.Items) != 2 || page.Items[0].VideoID != "v1" || page.Items[1].VideoID != "v2" {
		t.Fatalf("unexpected items: %+v", page.Items)
	}
	want := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	if !page.Items[0].PublishedAt.Equal(want) || page.Items[0].PublishedAt.Location() != time.UTC {
		t.Errorf("expected %s in UTC, got %s", want, page.Items[0].PublishedAt)
	}
}

func TestListPlaylistItems_Malformed(t *testing.T) {
	tests := []struct {
		name string
		item map[string]interface{}
	}{
		{"missing video id", map[string]interface{}{"snippet": map[string]string{"publishedAt": "2024-06-01T10:00:00Z"}}},
		{"missing snippet", map[string]interface{}{"contentDetails": map[string]string{"videoId": "v1"}}},
		{"bad timestamp", map[string]interface{}{"contentDetails": map[string]string{"videoId": "v1"}, "snippet": map[string]string{"publishedAt": "June 1st"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestYouTubeService(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSONBody(w, http.StatusOK, map[string]interface{}{"items": []interface{}{tc.item}})
			})

			_, err := svc.ListPlaylistItems(context.Background(), "UUabc", "")
			var malformed *MalformedResponseError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedResponseError, got %v", err)
			}
			if !IsRecoverable(err) {
				t.Errorf("malformed responses must be recoverable")
			}
		})
	}
}

func TestListPlaylistItems_NotFoundIsNotRetried(t *testing.T) {
	var calls int32
	svc := newTestYouTubeService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSONBody(w, http.StatusNotFound, map[string]interface{}{
			"error": map[string]interface{}{"code": 404, "message": "playlistNotFound"},
		})
	})

	_, err := svc.ListPlaylistItems(context.Background(), "UUmissing", "")
	var remote *RemoteServiceError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteServiceError, got %v", err)
	}
	if remote.Status != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", remote.Status)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
}

func TestListPlaylistItems_RetriesTransientFailures(t *testing.T) {
	var calls int32
	svc := newTestYouTubeService(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			writeJSONBody(w, http.StatusServiceUnavailable, map[string]interface{}{
				"error": map[string]interface{}{"code": 503, "message": "backendError"},
			})
			return
		}
		writeJSONBody(w, http.StatusOK, map[string]interface{}{"items": []interface{}{}})
	})

	page, err := svc.ListPlaylistItems(context.Background(), "UUabc", "")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if len(page.Items) != 0 {
		t.Errorf("expected empty page, got %d items", len(page.Items))
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 calls, got %d", got)
	}
}

func TestListPlaylistItems_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	svc := newTestYouTubeService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSONBody(w, http.StatusTooManyRequests, map[string]interface{}{
			"error": map[string]interface{}{"code": 429, "message": "rateLimitExceeded"},
		})
	})

	_, err := svc.ListPlaylistItems(context.Background(), "UUabc", "")
	var remote *RemoteServiceError
	if !errors.As(err, &remote) || remote.Status != http.StatusTooManyRequests {
		t.Fatalf("expected 429 RemoteServiceError, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != int32(testRetry.MaxRetries+1) {
		t.Errorf("expected %d calls, got %d", testRetry.MaxRetries+1, got)
	}
}

func TestGetVideosByIDs_OmitsUnknown(t *testing.T) {
	known := map[string]bool{"v1": true, "v3": true}
	svc := newTestYouTubeService(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/videos") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var items []map[string]interface{}
		for _, id := range queryIDs(r) {
			if known[id] {
				items = append(items, map[string]interface{}{
					"id":         id,
					"snippet":    map[string]string{"title": "title " + id},
					"statistics": map[string]string{"viewCount": "10"},
				})
			}
		}
		writeJSONBody(w, http.StatusOK, map[string]interface{}{"items": items})
	})

	records, err := svc.GetVideosByIDs(context.Background(), []string{"v1", "v2", "v3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "v1" || records[1].ID != "v3" {
		t.Errorf("unexpected ids %q, %q", records[0].ID, records[1].ID)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(records[0].Body, &body); err != nil {
		t.Fatalf("record body is not JSON: %v", err)
	}
	if _, ok := body["statistics"]; !ok {
		t.Errorf("expected statistics to be kept in record body, got %s", records[0].Body)
	}
}

func TestGetVideosByIDs_RejectsOversizedBatch(t *testing.T) {
	var calls int32
	svc := newTestYouTubeService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	ids := make([]string, MaxIDsPerVideoCall+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("v%d", i)
	}

	if _, err := svc.GetVideosByIDs(context.Background(), ids); err == nil {
		t.Fatal("expected error for more than 50 ids")
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("expected no remote calls")
	}
}

func TestParsePublishedAt(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{"utc marker", "2024-05-01T00:00:00Z", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), false},
		{"offset converted to UTC", "2024-05-01T02:00:00+02:00", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), false},
		{"empty", "", time.Time{}, true},
		{"garbage", "01/05/2024", time.Time{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParsePublishedAt(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("expected error=%v, got %v", tc.wantErr, err)
			}
			if !tc.wantErr && !got.Equal(tc.want) {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"remote", &RemoteServiceError{Op: "x", Status: 500}, true},
		{"wrapped remote", fmt.Errorf("playlist P1: %w", &RemoteServiceError{Op: "x"}), true},
		{"malformed", &MalformedResponseError{Op: "x", Reason: "y"}, true},
		{"other", errors.New("disk full"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRecoverable(tc.err); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{429, true},
		{500, true},
		{503, true},
		{403, false},
		{404, false},
		{400, false},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			err := &RemoteServiceError{Op: "x", Status: tc.status}
			if got := isTransient(err); got != tc.want {
				t.Errorf("status %d: expected %v, got %v", tc.status, tc.want, got)
			}
		})
	}
}

func TestBatchLockKey(t *testing.T) {
	if got := BatchLockKey("data/data_json/batch_2024-10-15", 7); got != "harvest_lock:data/data_json/batch_2024-10-15:7" {
		t.Errorf("unexpected key %q", got)
	}
}
