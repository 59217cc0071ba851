package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yt "google.golang.org/api/youtube/v3"

	"ytcatalog/config"
	"ytcatalog/quota"
	"ytcatalog/storage"
	"ytcatalog/youtube"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.ChannelID = "UCtest"
	cfg.MaxPages = 3
	cfg.BatchSize = 500
	return cfg
}

func newCoordinator(client PlatformClient, runs *fakeRunStore, videos *fakeVideoStore) *Coordinator {
	factory := func(ctx context.Context) (PlatformClient, error) {
		return client, nil
	}
	return NewCoordinator(factory, runs, videos, testConfig())
}

func detailVideo(id, title string) *yt.Video {
	return &yt.Video{Id: id, Snippet: &yt.VideoSnippet{Title: title}}
}

func TestRunHappyPath(t *testing.T) {
	client := &fakeClient{
		pages: []*youtube.SearchPage{
			{VideoIDs: []string{"v1", "v2"}},
		},
		details: []*yt.Video{detailVideo("v1", "one"), detailVideo("v2", "two")},
	}
	runs := &fakeRunStore{}
	videos := &fakeVideoStore{}

	result := newCoordinator(client, runs, videos).Run(context.Background())

	require.NoError(t, result.Err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 2, result.VideoCount)

	require.NotNil(t, runs.meta)
	assert.False(t, runs.meta.InProgress)
	assert.Empty(t, runs.meta.LastError)
	assert.Empty(t, runs.meta.NextPageToken)
	assert.False(t, runs.meta.LastSuccessfulCompleteFetch.IsZero(),
		"a drained run must stamp the complete-fetch time")
	require.Len(t, videos.commits, 1)
	assert.Len(t, videos.commits[0], 2)
}

func TestRunLockExclusion(t *testing.T) {
	runs := &fakeRunStore{meta: &storage.RunMetadata{
		InProgress:    true,
		LastFetchedAt: time.Now().Add(-5 * time.Minute),
	}}
	videos := &fakeVideoStore{}
	client := &fakeClient{}

	result := newCoordinator(client, runs, videos).Run(context.Background())

	assert.True(t, result.Skipped)
	assert.NoError(t, result.Err)
	assert.Empty(t, runs.saves, "a skipped run must not mutate state")
	assert.Empty(t, videos.commits)
	assert.Zero(t, client.searchCalls)
}

func TestRunStaleLockOverride(t *testing.T) {
	runs := &fakeRunStore{meta: &storage.RunMetadata{
		InProgress:    true,
		LastFetchedAt: time.Now().Add(-time.Hour),
	}}
	client := &fakeClient{
		pages:   []*youtube.SearchPage{{VideoIDs: []string{"v1"}}},
		details: []*yt.Video{detailVideo("v1", "one")},
	}
	videos := &fakeVideoStore{}

	result := newCoordinator(client, runs, videos).Run(context.Background())

	require.NoError(t, result.Err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.VideoCount)
	assert.False(t, runs.meta.InProgress, "the overridden lock must be cleared")
}

func TestRunEmptyResultIsSuccess(t *testing.T) {
	client := &fakeClient{pages: []*youtube.SearchPage{{}}}
	runs := &fakeRunStore{}
	videos := &fakeVideoStore{}

	result := newCoordinator(client, runs, videos).Run(context.Background())

	require.NoError(t, result.Err)
	assert.Equal(t, 0, result.VideoCount)
	assert.False(t, runs.meta.InProgress)
	assert.True(t, runs.meta.LastSuccessfulCompleteFetch.IsZero(),
		"an initial empty run is not a completed fetch")
	assert.Empty(t, videos.commits)
	assert.Equal(t, 0, client.detailCalls)
}

func TestRunClientInitFailure(t *testing.T) {
	factory := func(ctx context.Context) (PlatformClient, error) {
		return nil, youtube.ErrMissingAPIKey
	}
	runs := &fakeRunStore{}
	coordinator := NewCoordinator(factory, runs, &fakeVideoStore{}, testConfig())

	result := coordinator.Run(context.Background())

	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, youtube.ErrMissingAPIKey)
	assert.Empty(t, runs.saves, "a config error must not mutate state")
}

func TestRunDetailFetchFailure(t *testing.T) {
	client := &fakeClient{
		pages:      []*youtube.SearchPage{{VideoIDs: []string{"v1"}}},
		detailsErr: errors.New("network down"),
	}
	runs := &fakeRunStore{}
	videos := &fakeVideoStore{}

	result := newCoordinator(client, runs, videos).Run(context.Background())

	require.Error(t, result.Err)
	assert.Equal(t, 0, result.VideoCount)
	assert.False(t, runs.meta.InProgress)
	assert.Contains(t, runs.meta.LastError, "network down")
	assert.Empty(t, videos.commits)
}

func TestRunQuotaExceeded(t *testing.T) {
	client := &fakeClient{
		searchErr: errors.Wrap(quota.ErrExceeded, "search videos"),
	}
	runs := &fakeRunStore{}
	videos := &fakeVideoStore{}

	result := newCoordinator(client, runs, videos).Run(context.Background())

	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, quota.ErrExceeded)
	assert.False(t, runs.meta.InProgress)
	assert.Contains(t, runs.meta.LastError, "quota exceeded")
	assert.Empty(t, videos.commits, "no persistence is attempted after quota exhaustion")
}

func TestRunResumableTokenPreserved(t *testing.T) {
	// Page cap is 3; every page returns a further token, so the run ends
	// resumable rather than complete.
	client := &fakeClient{
		pages: []*youtube.SearchPage{
			{VideoIDs: []string{"a"}, NextPageToken: "t1"},
			{VideoIDs: []string{"b"}, NextPageToken: "t2"},
			{VideoIDs: []string{"c"}, NextPageToken: "t3"},
		},
		details: []*yt.Video{detailVideo("a", "a"), detailVideo("b", "b"), detailVideo("c", "c")},
	}
	runs := &fakeRunStore{}
	videos := &fakeVideoStore{}

	result := newCoordinator(client, runs, videos).Run(context.Background())

	require.NoError(t, result.Err)
	assert.Equal(t, 3, client.searchCalls)
	assert.Equal(t, "t3", runs.meta.NextPageToken)
	assert.True(t, runs.meta.LastSuccessfulCompleteFetch.IsZero())
	assert.False(t, runs.meta.InProgress)
	assert.Empty(t, runs.meta.LastError)
}

func TestRunMergesPlaylistTags(t *testing.T) {
	client := &fakeClient{
		pages:   []*youtube.SearchPage{{VideoIDs: []string{"v1", "v2"}}},
		details: []*yt.Video{detailVideo("v1", "one"), detailVideo("v2", "two")},
		playlists: []storage.PlaylistInfo{
			{ID: "pl1", Title: "Tutorials"},
		},
		items: map[string][]string{"pl1": {"v1"}},
	}
	runs := &fakeRunStore{}
	videos := &fakeVideoStore{}

	result := newCoordinator(client, runs, videos).Run(context.Background())

	require.NoError(t, result.Err)
	require.Len(t, videos.commits, 1)

	byID := make(map[string]storage.VideoDoc)
	for _, doc := range videos.commits[0] {
		byID[doc.Record.VideoID] = doc
	}
	assert.Equal(t, []string{"Tutorials"}, byID["v1"].Record.PlaylistTags)
	assert.Equal(t, []string{}, byID["v2"].Record.PlaylistTags)
}
