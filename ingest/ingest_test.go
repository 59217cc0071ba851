package ingest

import (
	"context"

	yt "google.golang.org/api/youtube/v3"

	"ytcatalog/storage"
	"ytcatalog/youtube"
)

// fakeClient is a scripted PlatformClient.
type fakeClient struct {
	pages       []*youtube.SearchPage
	searchErr   error
	searchErrAt int // 1-based call index at which searchErr fires, 0 = first
	searchCalls int
	gotTokens   []string

	details     []*yt.Video
	detailsErr  error
	detailCalls int

	playlists    []storage.PlaylistInfo
	playlistsErr error
	items        map[string][]string
	itemErrs     map[string]error
}

func (f *fakeClient) SearchVideos(ctx context.Context, pageToken string) (*youtube.SearchPage, error) {
	f.gotTokens = append(f.gotTokens, pageToken)
	call := f.searchCalls
	f.searchCalls++
	if f.searchErr != nil && call >= f.searchErrAt {
		return nil, f.searchErr
	}
	if call < len(f.pages) {
		return f.pages[call], nil
	}
	return &youtube.SearchPage{}, nil
}

func (f *fakeClient) FetchVideoDetails(ctx context.Context, ids []string) ([]*yt.Video, error) {
	f.detailCalls++
	if f.detailsErr != nil {
		return nil, f.detailsErr
	}
	return f.details, nil
}

func (f *fakeClient) FetchChannelPlaylists(ctx context.Context) ([]storage.PlaylistInfo, error) {
	if f.playlistsErr != nil {
		return nil, f.playlistsErr
	}
	return f.playlists, nil
}

func (f *fakeClient) FetchPlaylistItems(ctx context.Context, playlistID string) ([]string, error) {
	if err, ok := f.itemErrs[playlistID]; ok {
		return nil, err
	}
	return f.items[playlistID], nil
}

// fakeRunStore is an in-memory RunStore recording every save.
type fakeRunStore struct {
	meta    *storage.RunMetadata
	saves   []storage.RunMetadata
	getErr  error
	saveErr error
}

func (f *fakeRunStore) GetRunMetadata(ctx context.Context) (*storage.RunMetadata, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.meta == nil {
		return nil, storage.ErrNotFound
	}
	m := *f.meta
	return &m, nil
}

func (f *fakeRunStore) SaveRunMetadata(ctx context.Context, m *storage.RunMetadata) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	cp := *m
	f.meta = &cp
	f.saves = append(f.saves, cp)
	return nil
}

// fakeVideoStore is an in-memory VideoStore recording every commit.
type fakeVideoStore struct {
	existing  map[string]struct{}
	commits   [][]storage.VideoDoc
	existErr  error
	commitErr error
}

func (f *fakeVideoStore) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	if f.existErr != nil {
		return nil, f.existErr
	}
	found := make(map[string]struct{})
	for _, id := range ids {
		if _, ok := f.existing[id]; ok {
			found[id] = struct{}{}
		}
	}
	return found, nil
}

func (f *fakeVideoStore) CommitBatch(ctx context.Context, docs []storage.VideoDoc) error {
	f.commits = append(f.commits, docs)
	if f.commitErr != nil {
		return f.commitErr
	}
	if f.existing == nil {
		f.existing = make(map[string]struct{})
	}
	for _, doc := range docs {
		f.existing[doc.Record.VideoID] = struct{}{}
	}
	return nil
}
