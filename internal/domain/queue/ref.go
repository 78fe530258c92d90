package queue

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// RefKind identifies what a Ref points at.
type RefKind int

const (
	RefTrack    RefKind = iota // A single track
	RefAlbum                   // An album, expanded to its tracks
	RefPlaylist                // A playlist, expanded to its tracks
)

// String returns the string representation of the kind.
func (k RefKind) String() string {
	switch k {
	case RefTrack:
		return "track"
	case RefAlbum:
		return "album"
	case RefPlaylist:
		return "playlist"
	default:
		return "unknown"
	}
}

// Ref is an unresolved reference to something that can be queued.
type Ref struct {
	Kind RefKind
	ID   string
}

// TrackRef returns a reference to a track.
func TrackRef(id string) Ref { return Ref{Kind: RefTrack, ID: id} }

// AlbumRef returns a reference to an album.
func AlbumRef(id string) Ref { return Ref{Kind: RefAlbum, ID: id} }

// PlaylistRef returns a reference to a playlist.
func PlaylistRef(id string) Ref { return Ref{Kind: RefPlaylist, ID: id} }

// String returns the "kind:id" form accepted by ParseRef.
func (r Ref) String() string {
	return r.Kind.String() + ":" + r.ID
}

// ParseRef parses "track:ID", "album:ID" or "playlist:ID".
// Spotify URIs ("spotify:album:ID") are accepted as well.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "spotify:")

	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return Ref{}, errors.Newf("invalid reference %q (want kind:id)", s)
	}

	switch strings.ToLower(kind) {
	case "track":
		return TrackRef(id), nil
	case "album":
		return AlbumRef(id), nil
	case "playlist":
		return PlaylistRef(id), nil
	default:
		return Ref{}, errors.Newf("unknown reference kind %q", kind)
	}
}

// ParseRefs parses a list of references, failing on the first invalid one.
func ParseRefs(ss []string) ([]Ref, error) {
	refs := make([]Ref, 0, len(ss))
	for _, s := range ss {
		r, err := ParseRef(s)
		if err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, nil
}
