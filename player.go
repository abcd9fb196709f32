package sfsynth

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	intaudio "github.com/cbegin/sfsynth-go/internal/audio"
	"github.com/cbegin/sfsynth-go/internal/sequencer"
)

type PlayerOption func(*playerConfig)

type playerConfig struct {
	backend   intaudio.Backend
	sampleTap func([]float32)
	render    []RenderOption
	open      func(intaudio.Backend, int, intaudio.SampleSource) (intaudio.Output, error)
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{backend: intaudio.BackendEbiten, open: intaudio.Open}
}

// WithBackend selects the audio library, ebiten (default) or oto.
func WithBackend(b intaudio.Backend) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.backend = b
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

// WithRender sets the render options used for every song.
func WithRender(opts ...RenderOption) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.render = append(cfg.render, opts...)
	}
}

// Player streams songs to the audio device.
type Player struct {
	mu      sync.Mutex
	lib     *Library
	cfg     playerConfig
	render  renderConfig
	volume  atomic.Uint64
	audio   intaudio.Output
	current *songSource
	done    chan struct{}
}

// songSource adapts a sequencer to the audio stream.
type songSource struct {
	mu        sync.Mutex
	seq       *sequencer.Sequencer
	volume    *atomic.Uint64
	sampleTap func([]float32)
	err       error
	onEnd     func()
	ended     bool
}

func (s *songSource) Process(dst []float32) error {
	s.mu.Lock()
	err := s.seq.Process(dst)
	if err != nil {
		s.err = err
	}
	ended := !s.ended && (err != nil || s.seq.Finished())
	if ended {
		s.ended = true
	}
	s.mu.Unlock()

	if vol := math.Float64frombits(s.volume.Load()); vol != 1 {
		for i := range dst {
			dst[i] *= float32(vol)
		}
	}
	if s.sampleTap != nil {
		s.sampleTap(dst)
	}
	if ended && s.onEnd != nil {
		s.onEnd()
	}
	return err
}

func (s *songSource) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *songSource) position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.Position()
}

func (s *songSource) error() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func NewPlayer(lib *Library, opts ...PlayerOption) (*Player, error) {
	if lib == nil {
		return nil, errors.New("nil library")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	render, err := buildRenderConfig(cfg.render)
	if err != nil {
		return nil, err
	}
	p := &Player{lib: lib, cfg: cfg, render: render}
	p.volume.Store(math.Float64bits(1))
	return p, nil
}

func (p *Player) SampleRate() int { return p.render.sampleRate }

// Play starts song, replacing any song already playing.
func (p *Player) Play(song *sequencer.Song) error {
	mixer, err := p.lib.Mixer(song.Modules(), p.render.sampleRate, p.render.params)
	if err != nil {
		return err
	}
	seq, err := sequencer.NewWithOptions(song, mixer, p.render.sampleRate, p.render.seq)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		close(p.done)
	}
	done := make(chan struct{})
	p.done = done
	src := &songSource{seq: seq, volume: &p.volume, sampleTap: p.cfg.sampleTap}
	src.onEnd = func() { p.signalDone(done) }

	out, err := p.cfg.open(p.cfg.backend, p.render.sampleRate, src)
	if err != nil {
		p.done = nil
		close(done)
		return err
	}
	if p.audio != nil {
		if err := p.audio.Stop(); err != nil {
			p.lib.logger.Printf("[warning] stopping previous song: %v", err)
		}
	}
	p.audio = out
	p.current = src
	p.audio.Play()
	return nil
}

// PlayFile loads and plays a MIDI file.
func (p *Player) PlayFile(path string) error {
	song, err := LoadSong(path)
	if err != nil {
		return err
	}
	return p.Play(song)
}

func (p *Player) signalDone(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == done {
		p.done = nil
		close(done)
	}
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
	}
}

func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio == nil {
		return nil
	}
	err := p.audio.Stop()
	p.audio = nil
	if p.done != nil {
		close(p.done)
		p.done = nil
	}
	return err
}

// Wait blocks until the current song has been fully rendered, or was
// stopped or replaced, and returns any render error.
func (p *Player) Wait() error {
	p.mu.Lock()
	done, src := p.done, p.current
	p.mu.Unlock()
	if done != nil {
		<-done
	}
	if src == nil {
		return nil
	}
	return src.error()
}

// Position is how much of the current song has been rendered.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	src := p.current
	p.mu.Unlock()
	if src == nil {
		return 0
	}
	return src.position()
}

// SetMasterVolume sets runtime volume scalar. 1.0 is default.
func (p *Player) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	p.volume.Store(math.Float64bits(volume))
}

func (p *Player) MasterVolume() float64 {
	return math.Float64frombits(p.volume.Load())
}
