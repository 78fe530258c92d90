package audio

import (
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// output is the audio device the backend streams to.
type output interface {
	Init(sr beep.SampleRate, bufferSize int) error
	Play(s beep.Streamer)
	Clear()
	Lock()
	Unlock()
	Close()
}

var (
	speakerOnce sync.Once
	speakerErr  error
)

// speakerOutput is the process wide beep speaker. It can only be initialized once.
type speakerOutput struct{}

func (speakerOutput) Init(sr beep.SampleRate, bufferSize int) error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(sr, bufferSize)
	})
	return speakerErr
}

func (speakerOutput) Play(s beep.Streamer) { speaker.Play(s) }
func (speakerOutput) Clear()               { speaker.Clear() }
func (speakerOutput) Lock()                { speaker.Lock() }
func (speakerOutput) Unlock()              { speaker.Unlock() }

// Close clears the speaker but keeps the device open for later backends.
func (speakerOutput) Close() { speaker.Clear() }
