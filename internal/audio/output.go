package audio

import "fmt"

// Output is a started or paused audio stream.
type Output interface {
	Play()
	Pause()
	IsPlaying() bool
	Stop() error
}

// Backend selects the audio library used for playback.
type Backend string

const (
	BackendEbiten Backend = "ebiten"
	BackendOto    Backend = "oto"
)

// Open creates a paused output for source on the given backend.
func Open(backend Backend, sampleRate int, source SampleSource) (Output, error) {
	switch backend {
	case BackendEbiten, "":
		return NewPlayer(sampleRate, source)
	case BackendOto:
		return NewOtoPlayer(sampleRate, source)
	}
	return nil, fmt.Errorf("unknown audio backend %q", backend)
}
