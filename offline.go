// Package sfsynth renders standard MIDI files through SF2 banks.
package sfsynth

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/cbegin/sfsynth-go/internal/config"
	"github.com/cbegin/sfsynth-go/internal/engine"
	"github.com/cbegin/sfsynth-go/internal/sequencer"
	"github.com/cbegin/sfsynth-go/internal/soundfont"
)

type RenderOption func(*renderConfig)

type renderConfig struct {
	sampleRate int
	params     engine.Params
	seq        sequencer.Options
}

func defaultRenderConfig() renderConfig {
	c := config.Default()
	return renderConfig{sampleRate: c.SampleRate, params: c.EngineParams(), seq: c.SequencerOptions()}
}

// WithConfig takes the sample rate, master stage and song length settings
// from c.
func WithConfig(c config.Config) RenderOption {
	return func(cfg *renderConfig) {
		cfg.sampleRate = c.SampleRate
		cfg.params = c.EngineParams()
		cfg.seq = c.SequencerOptions()
	}
}

func WithSampleRate(sampleRate int) RenderOption {
	return func(cfg *renderConfig) {
		cfg.sampleRate = sampleRate
	}
}

func WithEngineParams(p engine.Params) RenderOption {
	return func(cfg *renderConfig) {
		cfg.params = p
	}
}

func WithSequencerOptions(o sequencer.Options) RenderOption {
	return func(cfg *renderConfig) {
		cfg.seq = o
	}
}

func buildRenderConfig(opts []RenderOption) (renderConfig, error) {
	cfg := defaultRenderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sampleRate <= 0 {
		return cfg, fmt.Errorf("sample rate must be positive")
	}
	return cfg, nil
}

// LoadBank reads an SF2 file, discarding load diagnostics.
func LoadBank(path string) (*soundfont.Bank, error) {
	return soundfont.LoadFile(path, soundfont.Quiet())
}

// LoadSong reads a standard MIDI file.
func LoadSong(path string) (*sequencer.Song, error) {
	return sequencer.ReadSMFFile(path)
}

// Render plays song through banks from lib and returns interleaved stereo
// samples.
func Render(ctx context.Context, song *sequencer.Song, lib *Library, opts ...RenderOption) ([]float32, error) {
	cfg, err := buildRenderConfig(opts)
	if err != nil {
		return nil, err
	}
	mixer, err := lib.Mixer(song.Modules(), cfg.sampleRate, cfg.params)
	if err != nil {
		return nil, err
	}
	return sequencer.Render(ctx, song, mixer, cfg.sampleRate, cfg.seq)
}

// RenderFile renders the MIDI file at path.
func RenderFile(ctx context.Context, path string, lib *Library, opts ...RenderOption) ([]float32, error) {
	song, err := LoadSong(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return Render(ctx, song, lib, opts...)
}

// ToInt16 converts a sample to 16-bit PCM, saturating out of range values.
func ToInt16(x float32) int {
	v := float64(x) * 32768
	switch {
	case v >= 32767:
		return 32767
	case v <= -32768:
		return -32768
	}
	return int(v)
}

// WriteWAV encodes interleaved stereo samples as 16-bit PCM.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 2, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = ToInt16(s)
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}
	return nil
}

func WriteWAVFile(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
