// Package youtube wraps the YouTube Data API v3 read operations the ingestion
// pipeline needs, each gated by the quota budget monitor.
package youtube

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/googleapi/transport"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"ytcatalog/config"
	"ytcatalog/quota"
	"ytcatalog/storage"
)

// Sentinel errors for client construction.
var (
	// ErrMissingAPIKey means no platform credential was configured. Fatal,
	// non-retryable.
	ErrMissingAPIKey = errors.New("youtube: api key not configured")
	// ErrMissingChannelID means no channel scope was configured.
	ErrMissingChannelID = errors.New("youtube: channel id not configured")
)

// detailParts are the metadata groups requested for every video detail fetch.
var detailParts = []string{
	"snippet",
	"contentDetails",
	"statistics",
	"liveStreamingDetails",
	"topicDetails",
	"status",
	"recordingDetails",
}

// pacer is the optional per-second pacing capability of a quota monitor.
type pacer interface {
	Wait(ctx context.Context) error
}

// SearchPage is one page of channel search results.
type SearchPage struct {
	// VideoIDs are the IDs discovered on this page, newest first.
	VideoIDs []string
	// NextPageToken continues the search. Empty on the last page.
	NextPageToken string
}

// Client issues quota-gated read operations against one channel's catalog.
type Client struct {
	svc        *yt.Service
	monitor    quota.Monitor
	channelID  string
	maxResults int64

	// listVideos issues one videos.list call for a chunk of IDs.
	listVideos func(ctx context.Context, ids []string) ([]*yt.Video, error)
}

// apiHTTPClient builds the transport every platform call goes through:
// per-request timeout from config, API key attached to every request.
func apiHTTPClient(cfg *config.Config) *http.Client {
	return &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: &transport.APIKey{Key: cfg.APIKey},
	}
}

// NewClient validates credentials and constructs the API service.
func NewClient(ctx context.Context, cfg *config.Config, monitor quota.Monitor) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.ChannelID == "" {
		return nil, ErrMissingChannelID
	}

	svc, err := yt.NewService(ctx, option.WithHTTPClient(apiHTTPClient(cfg)))
	if err != nil {
		return nil, errors.Wrap(err, "create youtube service")
	}

	c := &Client{
		svc:        svc,
		monitor:    monitor,
		channelID:  cfg.ChannelID,
		maxResults: int64(cfg.MaxResults),
	}
	c.listVideos = c.doListVideos
	return c, nil
}

// pace blocks on the monitor's request pacing when it offers one.
func (c *Client) pace(ctx context.Context) error {
	if p, ok := c.monitor.(pacer); ok {
		return p.Wait(ctx)
	}
	return nil
}

// SearchVideos fetches one page of the channel's videos, newest first.
// pageToken is empty for the initial page. Costs 100 units per call.
func (c *Client) SearchVideos(ctx context.Context, pageToken string) (*SearchPage, error) {
	if !c.monitor.CanExecute(quota.OpSearch, 1) {
		return nil, errors.Wrap(quota.ErrExceeded, "search denied by budget monitor")
	}
	if err := c.pace(ctx); err != nil {
		return nil, err
	}

	call := c.svc.Search.List([]string{"id"}).
		ChannelId(c.channelID).
		Type("video").
		Order("date").
		MaxResults(c.maxResults).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, classifyError(err, "search videos")
	}

	// search.list is the expensive operation; report it per page so the
	// ledger stays accurate even when a run ends mid-pagination.
	c.monitor.RecordUsage(quota.OpSearch, 1)
	c.monitor.LogUsage(quota.OpSearch, quota.Cost(quota.OpSearch), "channel video search page")

	page := &SearchPage{NextPageToken: resp.NextPageToken}
	for _, item := range resp.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			page.VideoIDs = append(page.VideoIDs, item.Id.VideoId)
		}
	}
	return page, nil
}

// FetchVideoDetails fetches full metadata for the given IDs, chunked to the
// configured batch size, one unit per chunk. When the pre-check for the total
// chunk count fails, the monitor's plan suggestion decides whether to proceed
// anyway; an infeasible plan raises before any call is made.
func (c *Client) FetchVideoDetails(ctx context.Context, ids []string) ([]*yt.Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	chunks := chunkIDs(ids, int(c.maxResults))
	if !c.monitor.CanExecute(quota.OpVideosList, len(chunks)) {
		plan := c.monitor.SuggestPlan(len(ids))
		if !plan.Feasible {
			return nil, errors.Wrapf(quota.ErrExceeded,
				"video detail fetch for %d ids denied by budget monitor", len(ids))
		}
		log.WithFields(log.Fields{
			"ids":          len(ids),
			"chunks":       len(chunks),
			"alternatives": plan.Alternatives,
		}).Warn("youtube: detail pre-check denied, proceeding on suggested plan")
	}

	var videos []*yt.Video
	for _, chunk := range chunks {
		if err := c.pace(ctx); err != nil {
			return nil, err
		}

		items, err := c.listVideos(ctx, chunk)
		if err != nil {
			return nil, err
		}

		// One unit per videos.list call regardless of part count.
		c.monitor.RecordUsage(quota.OpVideosList, 1)
		c.monitor.LogUsage(quota.OpVideosList, quota.Cost(quota.OpVideosList), "video detail chunk")

		videos = append(videos, items...)
	}
	return videos, nil
}

// doListVideos issues one videos.list call requesting all detail parts.
func (c *Client) doListVideos(ctx context.Context, ids []string) ([]*yt.Video, error) {
	resp, err := c.svc.Videos.List(detailParts).
		Id(ids...).
		MaxResults(c.maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyError(err, "fetch video details")
	}
	return resp.Items, nil
}

// FetchChannelPlaylists lists all playlists of the channel. One unit per page.
func (c *Client) FetchChannelPlaylists(ctx context.Context) ([]storage.PlaylistInfo, error) {
	var playlists []storage.PlaylistInfo

	pageToken := ""
	for {
		if !c.monitor.CanExecute(quota.OpPlaylistsList, 1) {
			return nil, errors.Wrap(quota.ErrExceeded, "playlist listing denied by budget monitor")
		}
		if err := c.pace(ctx); err != nil {
			return nil, err
		}

		call := c.svc.Playlists.List([]string{"snippet", "contentDetails"}).
			ChannelId(c.channelID).
			MaxResults(c.maxResults).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, classifyError(err, "list channel playlists")
		}

		c.monitor.RecordUsage(quota.OpPlaylistsList, 1)
		c.monitor.LogUsage(quota.OpPlaylistsList, quota.Cost(quota.OpPlaylistsList), "channel playlist page")

		for _, item := range resp.Items {
			info := storage.PlaylistInfo{ID: item.Id}
			if item.Snippet != nil {
				info.Title = item.Snippet.Title
				info.Description = item.Snippet.Description
				if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
					info.PublishedAt = t
				}
			}
			if item.ContentDetails != nil {
				info.VideoCount = item.ContentDetails.ItemCount
			}
			playlists = append(playlists, info)
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			return playlists, nil
		}
	}
}

// FetchPlaylistItems lists the video IDs in a playlist. One unit per page.
// Quota exhaustion mid-playlist stops pagination and returns the IDs
// collected so far, not an error.
func (c *Client) FetchPlaylistItems(ctx context.Context, playlistID string) ([]string, error) {
	var ids []string

	pageToken := ""
	for {
		if !c.monitor.CanExecute(quota.OpPlaylistItems, 1) {
			log.WithField("playlist_id", playlistID).
				Warn("youtube: budget exhausted mid-playlist, returning partial items")
			return ids, nil
		}
		if err := c.pace(ctx); err != nil {
			return ids, err
		}

		call := c.svc.PlaylistItems.List([]string{"contentDetails"}).
			PlaylistId(playlistID).
			MaxResults(c.maxResults).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, classifyError(err, "list playlist items")
		}

		c.monitor.RecordUsage(quota.OpPlaylistItems, 1)
		c.monitor.LogUsage(quota.OpPlaylistItems, quota.Cost(quota.OpPlaylistItems), "playlist item page")

		for _, item := range resp.Items {
			if item.ContentDetails != nil && item.ContentDetails.VideoId != "" {
				ids = append(ids, item.ContentDetails.VideoId)
			}
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			return ids, nil
		}
	}
}

// classifyError maps platform errors to typed variants. Quota denials become
// quota.ErrExceeded based on the structured googleapi reason codes rather
// than message text.
func classifyError(err error, op string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		for _, e := range apiErr.Errors {
			switch e.Reason {
			case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded":
				return errors.Wrap(quota.ErrExceeded, op)
			}
		}
	}
	return errors.Wrap(err, op)
}

// chunkIDs splits ids into groups of at most size.
func chunkIDs(ids []string, size int) [][]string {
	if size <= 0 {
		size = 50
	}
	var chunks [][]string
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}
