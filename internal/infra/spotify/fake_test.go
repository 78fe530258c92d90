package spotify

import (
	"context"
	"fmt"
	"sync"

	"github.com/zmb3/spotify/v2"
)

// fakeAPI is an in-memory webAPI.
type fakeAPI struct {
	mu sync.Mutex

	tracks        map[spotify.ID]*spotify.FullTrack
	artists       map[spotify.ID]*spotify.FullArtist
	albums        map[spotify.ID]*spotify.FullAlbum
	albumPages    map[spotify.ID][]*spotify.SimpleTrackPage
	playlists     map[spotify.ID]*spotify.FullPlaylist
	playlistPages map[spotify.ID][]*spotify.PlaylistItemPage
	artistsErr    error

	state     *spotify.PlayerState
	player    []string
	playerErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		tracks:        make(map[spotify.ID]*spotify.FullTrack),
		artists:       make(map[spotify.ID]*spotify.FullArtist),
		albums:        make(map[spotify.ID]*spotify.FullAlbum),
		albumPages:    make(map[spotify.ID][]*spotify.SimpleTrackPage),
		playlists:     make(map[spotify.ID]*spotify.FullPlaylist),
		playlistPages: make(map[spotify.ID][]*spotify.PlaylistItemPage),
	}
}

var errNotFound = spotify.Error{Status: 404, Message: "non existing id"}

func (f *fakeAPI) GetTrack(_ context.Context, id spotify.ID, _ ...spotify.RequestOption) (*spotify.FullTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tracks[id]
	if !ok {
		return nil, errNotFound
	}
	return t, nil
}

func (f *fakeAPI) GetArtists(_ context.Context, ids ...spotify.ID) ([]*spotify.FullArtist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.artistsErr != nil {
		return nil, f.artistsErr
	}
	out := make([]*spotify.FullArtist, len(ids))
	for i, id := range ids {
		out[i] = f.artists[id]
	}
	return out, nil
}

func (f *fakeAPI) GetAlbum(_ context.Context, id spotify.ID, _ ...spotify.RequestOption) (*spotify.FullAlbum, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.albums[id]
	if !ok {
		return nil, errNotFound
	}
	return a, nil
}

// GetAlbumTracks returns the stored pages in order, one per call.
func (f *fakeAPI) GetAlbumTracks(_ context.Context, id spotify.ID, _ ...spotify.RequestOption) (*spotify.SimpleTrackPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pages, ok := f.albumPages[id]
	if !ok {
		return nil, errNotFound
	}
	if len(pages) == 0 {
		return &spotify.SimpleTrackPage{}, nil
	}
	f.albumPages[id] = pages[1:]
	return pages[0], nil
}

func (f *fakeAPI) GetPlaylist(_ context.Context, id spotify.ID, _ ...spotify.RequestOption) (*spotify.FullPlaylist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.playlists[id]
	if !ok {
		return nil, errNotFound
	}
	return p, nil
}

// GetPlaylistItems returns the stored pages in order, one per call.
func (f *fakeAPI) GetPlaylistItems(_ context.Context, id spotify.ID, _ ...spotify.RequestOption) (*spotify.PlaylistItemPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pages, ok := f.playlistPages[id]
	if !ok {
		return nil, errNotFound
	}
	if len(pages) == 0 {
		return &spotify.PlaylistItemPage{}, nil
	}
	f.playlistPages[id] = pages[1:]
	return pages[0], nil
}

func (f *fakeAPI) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.player = append(f.player, call)
	return f.playerErr
}

func (f *fakeAPI) PlayOpt(_ context.Context, opt *spotify.PlayOptions) error {
	if len(opt.URIs) > 0 {
		return f.record(fmt.Sprintf("PlayOpt:%s", opt.URIs[0]))
	}
	return f.record("PlayOpt")
}

func (f *fakeAPI) PauseOpt(_ context.Context, _ *spotify.PlayOptions) error {
	return f.record("PauseOpt")
}

func (f *fakeAPI) SeekOpt(_ context.Context, position int, _ *spotify.PlayOptions) error {
	return f.record(fmt.Sprintf("SeekOpt:%d", position))
}

func (f *fakeAPI) PlayerState(_ context.Context, _ ...spotify.RequestOption) (*spotify.PlayerState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, nil
}

func (f *fakeAPI) playerCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.player...)
}

// fullTrack builds a three minute track.
func fullTrack(id, name string) *spotify.FullTrack {
	return &spotify.FullTrack{
		SimpleTrack: spotify.SimpleTrack{
			ID:       spotify.ID(id),
			Name:     name,
			Artists:  []spotify.SimpleArtist{{ID: spotify.ID("ar-" + id), Name: "Artist " + id}},
			Duration: 180000,
		},
		Album: spotify.SimpleAlbum{
			ID:          spotify.ID("al-" + id),
			Name:        "Album " + id,
			ReleaseDate: "2020-01-01",
			Images:      []spotify.Image{{URL: "https://i.scdn.co/" + id}},
		},
	}
}
