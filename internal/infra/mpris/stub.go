//go:build !linux

package mpris

import zlog "github.com/rs/zerolog/log"

// Adapter is a no-op on non-Linux platforms.
type Adapter struct{}

// New returns a no-op adapter on non-Linux platforms.
func New(_ Player, name string) (*Adapter, error) {
	zlog.Debug().Msgf("mpris: not supported on this platform: name=%s", name)
	return &Adapter{}, nil
}

// Close is a no-op on non-Linux platforms.
func (a *Adapter) Close() error {
	return nil
}
