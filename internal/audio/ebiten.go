package audio

import (
	"fmt"
	"sync"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Player plays through ebiten's audio context.
type Player struct {
	player *ebitaudio.Player
	reader *StreamReader
}

var _ Output = (*Player)(nil)

var (
	ebitenOnce sync.Once
	ebitenCtx  *ebitaudio.Context
	ebitenRate int
)

// ebiten allows one context per process.
func ebitenContext(sampleRate int) (*ebitaudio.Context, error) {
	ebitenOnce.Do(func() {
		ebitenRate = sampleRate
		ebitenCtx = ebitaudio.NewContext(sampleRate)
	})
	if ebitenRate != sampleRate {
		return nil, fmt.Errorf("ebiten audio context runs at %d Hz, cannot play at %d Hz", ebitenRate, sampleRate)
	}
	return ebitenCtx, nil
}

// NewPlayer creates a paused ebiten player. All players share one context,
// so every player must use the same sample rate.
func NewPlayer(sampleRate int, source SampleSource) (*Player, error) {
	ctx, err := ebitenContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &Player{player: pl, reader: reader}, nil
}

func (p *Player) Play()           { p.player.Play() }
func (p *Player) Pause()          { p.player.Pause() }
func (p *Player) IsPlaying() bool { return p.player.IsPlaying() }

func (p *Player) Stop() error {
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return err
	}
	return p.reader.Close()
}
