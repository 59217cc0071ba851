package ingest

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"ytcatalog/storage"
)

func TestAggregatorBuildsMapping(t *testing.T) {
	client := &fakeClient{
		playlists: []storage.PlaylistInfo{
			{ID: "pl1", Title: "Tutorials"},
			{ID: "pl2", Title: "Livestreams"},
		},
		items: map[string][]string{
			"pl1": {"v1", "v2"},
			"pl2": {"v2", "v3"},
		},
	}

	tags := NewAggregator(client, nil).BuildPlaylistMapping(context.Background())

	assert.Equal(t, []string{"Tutorials"}, tags["v1"])
	assert.Equal(t, []string{"Tutorials", "Livestreams"}, tags["v2"])
	assert.Equal(t, []string{"Livestreams"}, tags["v3"])
}

func TestAggregatorSuppressesDuplicateTitles(t *testing.T) {
	client := &fakeClient{
		playlists: []storage.PlaylistInfo{{ID: "pl1", Title: "Tutorials"}},
		items:     map[string][]string{"pl1": {"v1", "v1"}},
	}

	tags := NewAggregator(client, nil).BuildPlaylistMapping(context.Background())

	assert.Equal(t, []string{"Tutorials"}, tags["v1"])
}

func TestAggregatorSkipsFailedPlaylist(t *testing.T) {
	client := &fakeClient{
		playlists: []storage.PlaylistInfo{
			{ID: "pl1", Title: "Tutorials"},
			{ID: "pl2", Title: "Broken"},
			{ID: "pl3", Title: "Livestreams"},
		},
		items: map[string][]string{
			"pl1": {"v1"},
			"pl3": {"v1", "v2"},
		},
		itemErrs: map[string]error{"pl2": errors.New("playlist gone")},
	}

	tags := NewAggregator(client, nil).BuildPlaylistMapping(context.Background())

	assert.Equal(t, []string{"Tutorials", "Livestreams"}, tags["v1"],
		"one playlist's failure must not lose the others' tags")
	assert.Equal(t, []string{"Livestreams"}, tags["v2"])
}

func TestAggregatorListingFailureYieldsEmptyMap(t *testing.T) {
	client := &fakeClient{playlistsErr: errors.New("api unavailable")}

	tags := NewAggregator(client, nil).BuildPlaylistMapping(context.Background())

	assert.NotNil(t, tags)
	assert.Empty(t, tags)
}
