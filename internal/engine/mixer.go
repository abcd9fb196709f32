package engine

import (
	"github.com/cbegin/sfsynth-go/internal/effects"
	"github.com/cbegin/sfsynth-go/internal/renderer"
)

// ReverbParams configure the reverb send bus.
type ReverbParams struct {
	Enabled  bool
	RoomSize float64
	Feedback float64
}

// ChorusParams configure the chorus send bus.
type ChorusParams struct {
	Enabled  bool
	DelayMs  float64
	Feedback float64
	DepthMs  float64
	RateHz   float64
}

// CompressorParams configure an optional compressor ahead of the limiter.
type CompressorParams struct {
	Enabled     bool
	ThresholdDB float64
	Ratio       float64
	AttackMs    float64
	ReleaseMs   float64
	MakeupDB    float64
}

// Params holds the master stage settings of a module.
type Params struct {
	MasterGain       float64
	LimiterThreshold float64
	LimiterRatio     float64
	Reverb           ReverbParams
	Chorus           ChorusParams
	Compressor       CompressorParams
	// Serial renders without goroutines. Output is identical either way.
	Serial bool
}

func DefaultParams() Params {
	return Params{
		MasterGain:       1.8,
		LimiterThreshold: 0.7,
		LimiterRatio:     0.3,
		Reverb:           ReverbParams{RoomSize: 0.6, Feedback: 0.75},
		Chorus:           ChorusParams{DelayMs: 12, Feedback: 0.2, DepthMs: 3, RateHz: 0.6},
		Compressor:       CompressorParams{ThresholdDB: -12, Ratio: 3, AttackMs: 5, ReleaseMs: 120},
	}
}

// master sums the send returns into the dry mix and applies gain and limiting.
type master struct {
	reverb effects.Effector
	chorus effects.Effector
	chain  *effects.Chain
}

func newMaster(sampleRate int, p Params) *master {
	m := &master{chain: effects.NewChain()}
	if p.Reverb.Enabled {
		m.reverb = effects.NewReverb(sampleRate, p.Reverb.RoomSize, p.Reverb.Feedback, 1)
	}
	if p.Chorus.Enabled {
		m.chorus = effects.NewChorus(sampleRate, p.Chorus.DelayMs, p.Chorus.Feedback, p.Chorus.DepthMs, p.Chorus.RateHz, 1)
	}
	m.chain.Add(effects.Gain(p.MasterGain))
	if c := p.Compressor; c.Enabled {
		m.chain.Add(effects.NewCompressor(sampleRate, c.ThresholdDB, c.Ratio, c.AttackMs, c.ReleaseMs, c.MakeupDB))
	}
	m.chain.Add(effects.NewLimiter(p.LimiterThreshold, p.LimiterRatio))
	return m
}

func (m *master) process(bus *renderer.Bus, dst []float32) {
	for i := range bus.L {
		l, r := bus.L[i], bus.R[i]
		if m.reverb != nil {
			wl, wr := m.reverb.Process(bus.ReverbL[i], bus.ReverbR[i])
			l += wl
			r += wr
		}
		if m.chorus != nil {
			wl, wr := m.chorus.Process(bus.ChorusL[i], bus.ChorusR[i])
			l += wl
			r += wr
		}
		l, r = m.chain.Process(l, r)
		dst[2*i] = float32(l)
		dst[2*i+1] = float32(r)
	}
}
