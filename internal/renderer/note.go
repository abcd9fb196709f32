package renderer

import sf "github.com/cbegin/sfsynth-go/internal/soundfont"

// Bus is one block of stereo output plus the reverb and chorus sends.
type Bus struct {
	L, R             []float64
	ReverbL, ReverbR []float64
	ChorusL, ChorusR []float64
}

func NewBus(frames int) *Bus {
	b := &Bus{}
	b.Reset(frames)
	return b
}

func (b *Bus) Len() int { return len(b.L) }

// Reset resizes the bus to frames and zeroes it.
func (b *Bus) Reset(frames int) {
	for _, s := range []*[]float64{&b.L, &b.R, &b.ReverbL, &b.ReverbR, &b.ChorusL, &b.ChorusR} {
		if cap(*s) < frames {
			*s = make([]float64, frames)
			continue
		}
		*s = (*s)[:frames]
		clear(*s)
	}
}

// Mix adds o scaled by the left and right gains to b.
func (b *Bus) Mix(o *Bus, l, r float64) {
	for i := range b.L {
		b.L[i] += o.L[i] * l
		b.R[i] += o.R[i] * r
		b.ReverbL[i] += o.ReverbL[i] * l
		b.ReverbR[i] += o.ReverbR[i] * r
		b.ChorusL[i] += o.ChorusL[i] * l
		b.ChorusR[i] += o.ChorusR[i] * r
	}
}

// Note is the set of voices started by one NoteOn.
type Note struct {
	Key    sf.PresetKey
	voices []*Voice
	buf    []float64
}

func (n *Note) Voices() int { return len(n.voices) }

func (n *Note) Finished() bool { return len(n.voices) == 0 }

func (n *Note) KeyOff() error {
	for _, v := range n.voices {
		if err := v.KeyOff(); err != nil {
			return err
		}
	}
	return nil
}

// ExclusiveClasses lists the nonzero exclusive classes of the note's zones.
func (n *Note) ExclusiveClasses() ([]int, error) {
	var out []int
	for _, v := range n.voices {
		info, err := v.Info()
		if err != nil {
			return nil, err
		}
		if info.ExclusiveClass != 0 {
			out = append(out, info.ExclusiveClass)
		}
	}
	return out, nil
}

// ReleaseClass keys off every voice in the given exclusive class.
func (n *Note) ReleaseClass(class int) error {
	for _, v := range n.voices {
		info, err := v.Info()
		if err != nil {
			return err
		}
		if info.ExclusiveClass == class {
			if err := v.KeyOff(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Render adds the note's voices to bus, in zone order, and drops
// voices that finished.
func (n *Note) Render(bus *Bus, pitch float64) error {
	frames := bus.Len()
	if cap(n.buf) < frames {
		n.buf = make([]float64, frames)
	}
	buf := n.buf[:frames]
	live := n.voices[:0]
	for _, v := range n.voices {
		k, err := v.Render(buf, pitch)
		if err != nil {
			return err
		}
		info := v.info
		gain := v.Gain()
		l, r := gain*info.PanL, gain*info.PanR
		rl, rr := l*info.ReverbSend, r*info.ReverbSend
		cl, cr := l*info.ChorusSend, r*info.ChorusSend
		for i, s := range buf[:k] {
			bus.L[i] += s * l
			bus.R[i] += s * r
			bus.ReverbL[i] += s * rl
			bus.ReverbR[i] += s * rr
			bus.ChorusL[i] += s * cl
			bus.ChorusR[i] += s * cr
		}
		if k == frames {
			live = append(live, v)
		}
	}
	clear(n.voices[len(live):])
	n.voices = live
	return nil
}
