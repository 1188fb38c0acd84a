package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"yt-dataset-harvester/internal/models"
)

const (
	// PlaylistPageSize is the largest page the playlistItems endpoint serves.
	PlaylistPageSize = 50
	// MaxIDsPerVideoCall is the largest id list the videos endpoint accepts.
	MaxIDsPerVideoCall = 50
)

var (
	playlistItemParts = []string{"contentDetails", "snippet"}
	videoParts        = []string{"statistics", "contentDetails", "snippet", "status", "topicDetails"}
)

// YouTubeService is the Remote Metadata Client backed by the YouTube Data API v3.
type YouTubeService struct {
	service  *youtube.Service
	limiter  *rate.Limiter
	rateChan chan struct{} // in-flight request slots
	retry    RetryConfig
}

type YouTubeOptions struct {
	RequestsPerSecond  float64
	ConcurrentRequests int
	Retry              RetryConfig
}

func NewYouTubeService(ctx context.Context, apiKey string, opts YouTubeOptions, clientOpts ...option.ClientOption) (*YouTubeService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("YouTube API key is required")
	}

	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, clientOpts...)
	svc, err := youtube.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	return newYouTubeService(svc, opts), nil
}

func newYouTubeService(svc *youtube.Service, opts YouTubeOptions) *YouTubeService {
	concurrent := opts.ConcurrentRequests
	if concurrent < 1 {
		concurrent = 1
	}
	rateChan := make(chan struct{}, concurrent)
	for i := 0; i < concurrent; i++ {
		rateChan <- struct{}{}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &YouTubeService{
		service:  svc,
		limiter:  rate.NewLimiter(limit, concurrent),
		rateChan: rateChan,
		retry:    opts.Retry,
	}
}

// acquireRate blocks until both an in-flight slot and a request token are available.
func (s *YouTubeService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := s.limiter.Wait(ctx); err != nil {
		s.releaseRate()
		return err
	}
	return nil
}

func (s *YouTubeService) releaseRate() {
	s.rateChan <- struct{}{}
}

// ListPlaylistItems fetches one page (up to 50 entries) of a playlist.
func (s *YouTubeService) ListPlaylistItems(ctx context.Context, playlistID, pageToken string) (models.PlaylistPage, error) {
	const op = "playlistItems.list"

	call := s.service.PlaylistItems.List(playlistItemParts).
		PlaylistId(playlistID).
		MaxResults(PlaylistPageSize)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := retryDo(ctx, s.retry, op+" "+playlistID, func() (*youtube.PlaylistItemListResponse, error) {
		if err := s.acquireRate(ctx); err != nil {
			return nil, err
		}
		defer s.releaseRate()

		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, toRemoteError(op, err)
		}
		return resp, nil
	})
	if err != nil {
		return models.PlaylistPage{}, err
	}

	return parsePlaylistPage(op, resp)
}

func parsePlaylistPage(op string, resp *youtube.PlaylistItemListResponse) (models.PlaylistPage, error) {
	if resp == nil {
		return models.PlaylistPage{}, &MalformedResponseError{Op: op, Reason: "empty response"}
	}

	page := models.PlaylistPage{
		Items:         make([]models.PlaylistItem, 0, len(resp.Items)),
		NextPageToken: resp.NextPageToken,
	}
	for i, item := range resp.Items {
		if item == nil || item.ContentDetails == nil || item.ContentDetails.VideoId == "" {
			return models.PlaylistPage{}, &MalformedResponseError{Op: op, Reason: fmt.Sprintf("item %d has no contentDetails.videoId", i)}
		}
		if item.Snippet == nil {
			return models.PlaylistPage{}, &MalformedResponseError{Op: op, Reason: fmt.Sprintf("item %d has no snippet", i)}
		}
		published, err := ParsePublishedAt(item.Snippet.PublishedAt)
		if err != nil {
			return models.PlaylistPage{}, &MalformedResponseError{Op: op, Reason: fmt.Sprintf("item %d: %v", i, err)}
		}
		page.Items = append(page.Items, models.PlaylistItem{
			VideoID:     item.ContentDetails.VideoId,
			PublishedAt: published,
		})
	}
	return page, nil
}

// ParsePublishedAt parses the service's timestamp encoding (e.g. 2024-05-01T12:00:00Z) into UTC.
func ParsePublishedAt(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing publishedAt")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid publishedAt %q: %w", s, err)
	}
	return t.UTC(), nil
}

// GetVideosByIDs fetches full metadata for up to 50 videos. Unknown ids are omitted.
func (s *YouTubeService) GetVideosByIDs(ctx context.Context, ids []string) ([]models.VideoRecord, error) {
	const op = "videos.list"

	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxIDsPerVideoCall {
		return nil, fmt.Errorf("%s: %d ids exceeds the limit of %d", op, len(ids), MaxIDsPerVideoCall)
	}

	call := s.service.Videos.List(videoParts).Id(ids...)

	resp, err := retryDo(ctx, s.retry, op, func() (*youtube.VideoListResponse, error) {
		if err := s.acquireRate(ctx); err != nil {
			return nil, err
		}
		defer s.releaseRate()

		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, toRemoteError(op, err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, &MalformedResponseError{Op: op, Reason: "empty response"}
	}

	records := make([]models.VideoRecord, 0, len(resp.Items))
	for i, item := range resp.Items {
		if item == nil {
			return nil, &MalformedResponseError{Op: op, Reason: fmt.Sprintf("item %d is null", i)}
		}
		body, err := json.Marshal(item)
		if err != nil {
			return nil, &MalformedResponseError{Op: op, Reason: err.Error()}
		}
		rec, err := models.NewVideoRecord(body)
		if err != nil {
			return nil, &MalformedResponseError{Op: op, Reason: err.Error()}
		}
		records = append(records, rec)
	}
	return records, nil
}

func toRemoteError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		body := apiErr.Body
		if body == "" {
			body = apiErr.Message
		}
		return &RemoteServiceError{Op: op, Status: apiErr.Code, Body: body, Err: err}
	}
	return &RemoteServiceError{Op: op, Err: err}
}
