package ingest

import (
	yt "google.golang.org/api/youtube/v3"
)

// TaggedVideo pairs a platform detail record with its derived playlist tags.
type TaggedVideo struct {
	Video        *yt.Video
	PlaylistTags []string
}

// AttachPlaylistTags joins detail records with the playlist mapping by video
// ID. Videos absent from the mapping get an empty tag list. Pure function,
// no I/O.
func AttachPlaylistTags(videos []*yt.Video, tags map[string][]string) []TaggedVideo {
	tagged := make([]TaggedVideo, 0, len(videos))
	for _, v := range videos {
		t := []string{}
		if v != nil {
			if found, ok := tags[v.Id]; ok {
				t = found
			}
		}
		tagged = append(tagged, TaggedVideo{Video: v, PlaylistTags: t})
	}
	return tagged
}
