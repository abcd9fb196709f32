package audio

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// OtoPlayer plays directly through oto, without an ebiten context.
type OtoPlayer struct {
	mu     sync.Mutex
	player *oto.Player
	reader *StreamReader
}

var _ Output = (*OtoPlayer)(nil)

var (
	otoOnce    sync.Once
	otoContext *oto.Context
	otoErr     error
	otoRate    int
)

func sharedOtoContext(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		otoRate = sampleRate
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatFloat32LE,
		})
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoContext = ctx
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoRate != sampleRate {
		return nil, fmt.Errorf("oto context already initialized at %d Hz (requested %d Hz)", otoRate, sampleRate)
	}
	return otoContext, nil
}

func NewOtoPlayer(sampleRate int, source SampleSource) (*OtoPlayer, error) {
	ctx, err := sharedOtoContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	return &OtoPlayer{player: ctx.NewPlayer(reader), reader: reader}, nil
}

func (p *OtoPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.player.Play()
}

func (p *OtoPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.player.Pause()
}

func (p *OtoPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.player.IsPlaying()
}

func (p *OtoPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return err
	}
	return p.reader.Close()
}
