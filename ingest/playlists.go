package ingest

import (
	"context"
	"slices"

	log "github.com/sirupsen/logrus"
)

// Aggregator expands the channel's playlists into a map from video ID to the
// playlist titles containing it. Every failure is absorbed: the aggregator
// always returns a (possibly partial, possibly empty) map.
type Aggregator struct {
	client PlatformClient
	log    *log.Entry
}

// NewAggregator creates a playlist aggregator.
func NewAggregator(client PlatformClient, logger *log.Entry) *Aggregator {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Aggregator{client: client, log: logger}
}

// BuildPlaylistMapping lists all playlists and collects, per video ID, the
// titles of the playlists containing it. Titles keep insertion order with
// duplicates suppressed. A failure fetching one playlist's items skips that
// playlist only; a failure listing playlists yields an empty map.
func (a *Aggregator) BuildPlaylistMapping(ctx context.Context) map[string][]string {
	tags := make(map[string][]string)

	playlists, err := a.client.FetchChannelPlaylists(ctx)
	if err != nil {
		a.log.WithError(err).Warn("playlists: listing failed, continuing without tags")
		return tags
	}

	for _, pl := range playlists {
		ids, err := a.client.FetchPlaylistItems(ctx, pl.ID)
		if err != nil {
			a.log.WithError(err).WithFields(log.Fields{
				"playlist_id":    pl.ID,
				"playlist_title": pl.Title,
			}).Warn("playlists: item fetch failed, skipping playlist")
			continue
		}
		for _, id := range ids {
			if !slices.Contains(tags[id], pl.Title) {
				tags[id] = append(tags[id], pl.Title)
			}
		}
	}

	a.log.WithFields(log.Fields{
		"playlists": len(playlists),
		"videos":    len(tags),
	}).Info("playlists: mapping built")
	return tags
}
