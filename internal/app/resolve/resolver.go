package resolve

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/osa030/tapedeck/internal/domain/queue"
	"github.com/osa030/tapedeck/internal/domain/track"
)

const defaultConcurrency = 4

// Config holds resolver configuration.
type Config struct {
	Concurrency int // Maximum number of catalog lookups in flight
}

// Resolver resolves queue references against a Catalog.
type Resolver struct {
	catalog     Catalog
	concurrency int
}

// NewResolver creates a new resolver.
func NewResolver(catalog Catalog, cfg Config) *Resolver {
	n := cfg.Concurrency
	if n <= 0 {
		n = defaultConcurrency
	}
	return &Resolver{
		catalog:     catalog,
		concurrency: n,
	}
}

// ResolveAll resolves refs in parallel and returns the entries in the order of refs.
// The first failing reference fails the whole call.
func (r *Resolver) ResolveAll(ctx context.Context, refs []queue.Ref) ([]queue.Entry, error) {
	entries := make([]queue.Entry, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			e, err := r.Resolve(gctx, ref)
			if err != nil {
				return err
			}
			entries[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Resolve resolves a single reference.
func (r *Resolver) Resolve(ctx context.Context, ref queue.Ref) (queue.Entry, error) {
	switch ref.Kind {
	case queue.RefTrack:
		return r.resolveTrack(ctx, ref.ID)
	case queue.RefAlbum:
		return r.resolveAlbum(ctx, ref.ID)
	case queue.RefPlaylist:
		return r.resolvePlaylist(ctx, ref.ID)
	default:
		return nil, errors.Newf("unknown reference kind %d", ref.Kind)
	}
}

func (r *Resolver) resolveTrack(ctx context.Context, id string) (queue.Entry, error) {
	t, err := r.catalog.Track(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve track %s", id)
	}
	return queue.NewTrackEntry(r.hydrate(ctx, *t, false)), nil
}

func (r *Resolver) resolveAlbum(ctx context.Context, id string) (queue.Entry, error) {
	album, err := r.catalog.Album(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve album %s", id)
	}

	items, err := r.catalog.AlbumTracks(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve album %s tracks", id)
	}
	for i := range items {
		if items[i].Album == nil {
			a := *album
			items[i].Album = &a
		}
	}

	return queue.NewAlbumEntry(*album, r.hydrateAll(ctx, items))
}

func (r *Resolver) resolvePlaylist(ctx context.Context, id string) (queue.Entry, error) {
	playlist, err := r.catalog.Playlist(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve playlist %s", id)
	}

	items, err := r.catalog.PlaylistTracks(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve playlist %s tracks", id)
	}

	return queue.NewPlaylistEntry(*playlist, r.hydrateAll(ctx, items))
}

// hydrateAll hydrates container members in parallel. It never fails.
func (r *Resolver) hydrateAll(ctx context.Context, items []track.Track) []track.Track {
	out := make([]track.Track, len(items))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, t := range items {
		g.Go(func() error {
			out[i] = r.hydrate(ctx, t, true)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// hydrate fills in missing artists and, if fetchSource is set, a missing source.
// Lookup failures leave the track as is; a track without a source stays unplayable.
func (r *Resolver) hydrate(ctx context.Context, t track.Track, fetchSource bool) track.Track {
	if fetchSource && !t.Playable() {
		full, err := r.catalog.Track(ctx, t.ID)
		switch {
		case err != nil:
			zlog.Debug().Msgf("resolve: source lookup failed, track stays unplayable: track=%s error=%v", t.ID, err)
		case full.Playable():
			t.Source = full.Source
			if t.Album == nil {
				t.Album = full.Album
			}
			if len(t.Artists) == 0 {
				t.Artists = full.Artists
			}
		default:
			zlog.Debug().Msgf("resolve: track has no playable source: track=%s", t.ID)
		}
	}

	if len(t.Artists) == 0 {
		artists, err := r.catalog.TrackArtists(ctx, t.ID)
		if err != nil {
			zlog.Debug().Msgf("resolve: artist lookup failed: track=%s error=%v", t.ID, err)
		} else {
			t.Artists = artists
		}
	}

	return t
}
