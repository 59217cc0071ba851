// Package ingest implements the catalog ingestion pipeline: execution
// locking, resumable pagination, quota-aware fetching, playlist tag
// aggregation, and batched idempotent persistence.
package ingest

import (
	"context"

	yt "google.golang.org/api/youtube/v3"

	"ytcatalog/storage"
	"ytcatalog/youtube"
)

// PlatformClient is the set of read operations the pipeline issues against
// the video platform. Implementations gate every call on the quota budget.
type PlatformClient interface {
	// SearchVideos fetches one page of the channel's videos, newest first.
	SearchVideos(ctx context.Context, pageToken string) (*youtube.SearchPage, error)
	// FetchVideoDetails fetches full metadata for the given IDs, chunked
	// internally to the platform's batch limit.
	FetchVideoDetails(ctx context.Context, ids []string) ([]*yt.Video, error)
	// FetchChannelPlaylists lists all playlists of the channel.
	FetchChannelPlaylists(ctx context.Context) ([]storage.PlaylistInfo, error)
	// FetchPlaylistItems lists the video IDs in one playlist. Quota
	// exhaustion mid-playlist yields a partial list, not an error.
	FetchPlaylistItems(ctx context.Context, playlistID string) ([]string, error)
}

// ClientFactory constructs the platform client at run start so that a missing
// credential fails the run before any state is touched.
type ClientFactory func(ctx context.Context) (PlatformClient, error)

// RunResult is the terminal outcome of one pipeline run.
type RunResult struct {
	// VideoCount is the number of records validated and queued for
	// persistence. It does not reflect commit failures, which are logged
	// and swallowed.
	VideoCount int
	// Skipped is true when another run held a fresh lock and this
	// invocation did nothing.
	Skipped bool
	// Err is the failure that ended the run, nil on success or skip.
	Err error
}
