package renderer

import (
	"math"

	"github.com/cbegin/sfsynth-go/internal/lfo"
	sf "github.com/cbegin/sfsynth-go/internal/soundfont"
)

// Voice plays one zone of a note.
type Voice struct {
	r        *Renderer
	ref      sf.InstrumentRefer
	note     uint8
	velocity uint8

	info     *InterInfo
	env      Envelope
	semi     float64
	base     float64 // sample rate ratio
	pos      float64
	rendered int
	released bool

	vib, mod lfo.LFO
}

func (v *Voice) ensure() error {
	if v.info != nil {
		return nil
	}
	info, err := v.r.Info(v.ref)
	if err != nil {
		return err
	}
	v.info = info
	v.env = NewEnvelope(info.Env)
	v.base = info.SampleRate / float64(v.r.rate)

	n := float64(int(v.note) - (info.RootKey - info.CoarseTune))
	if info.PitchCorrection != 0 {
		n += float64(info.PitchCorrection) * 0.01
	}
	if info.ScaleTuning != 100 {
		n *= float64(info.ScaleTuning) * 0.01
	}
	if info.FineTune != 0 {
		n += float64(info.FineTune) * 0.01
	}
	v.semi = n

	v.vib.Set(info.Vibrato.Depth, info.Vibrato.Hz, info.Vibrato.Delay)
	v.mod.Set(info.Modulation.Depth, info.Modulation.Hz, info.Modulation.Delay)
	return nil
}

// Info returns the zone parameters, building them if needed.
func (v *Voice) Info() (*InterInfo, error) {
	if err := v.ensure(); err != nil {
		return nil, err
	}
	return v.info, nil
}

// Gain is the attenuation and velocity amplitude of the voice.
func (v *Voice) Gain() float64 {
	return v.info.Attenuation * VolumeTable[v.velocity&0x7f]
}

func (v *Voice) step(pitch float64) float64 {
	return v.base * math.Pow(2, (v.semi+pitch)/12)
}

// KeyOff starts the release. Repeated calls are ignored.
func (v *Voice) KeyOff() error {
	if err := v.ensure(); err != nil {
		return err
	}
	if v.released {
		return nil
	}
	v.released = true
	v.env.KeyOff(v.rendered)
	return nil
}

// Render writes up to len(dst) enveloped mono samples, with pitch in
// semitones added to the zone tuning. It returns fewer than len(dst)
// once the voice has finished.
func (v *Voice) Render(dst []float64, pitch float64) (int, error) {
	if err := v.ensure(); err != nil {
		return 0, err
	}
	info := v.info
	wave := info.Wave
	loop := info.Loops() && !(v.released && info.Mode == LoopUntilRelease)
	loopStart, loopEnd := info.LoopStart, info.LoopEnd
	span := float64(loopEnd - loopStart)

	step := v.step(pitch)
	vibrato := v.vib.Active()
	tremolo := v.mod.Active()
	rate := float64(v.r.rate)

	for i := range dst {
		if v.env.Finished(v.rendered) {
			return i, nil
		}
		p := int(v.pos)
		if loop {
			if p > loopEnd {
				v.pos = float64(loopStart) + math.Mod(v.pos-float64(loopStart), span)
				p = int(v.pos)
			}
		} else if p >= len(wave) {
			return i, nil
		}
		frac := v.pos - float64(p)

		a := wave[p]
		var b float64
		switch {
		case loop && p == loopEnd:
			b = wave[loopStart]
		case p+1 < len(wave):
			b = wave[p+1]
		}
		s := (a + (b-a)*frac) * v.env.Level(v.rendered)
		if tremolo {
			s *= math.Pow(10, v.mod.Sample(rate)/20)
		}
		dst[i] = s
		v.rendered++

		if vibrato {
			v.pos += v.step(pitch + v.vib.Sample(rate))
		} else {
			v.pos += step
		}
	}
	return len(dst), nil
}

// Phase reports the envelope stage at the current position.
func (v *Voice) Phase() Phase {
	if v.info == nil {
		return PhaseDelay
	}
	return v.env.Phase(v.rendered)
}
