package effects

// Reverb is a Schroeder reverb: four parallel comb filters per side feeding
// two allpass filters. The right side uses slightly longer delays for width.
type Reverb struct {
	left, right reverbSide
	wet         float64
}

type reverbSide struct {
	combs   [4]combFilter
	allpass [2]allpassFilter
}

type combFilter struct {
	buf []float64
	pos int
	fb  float64
}

type allpassFilter struct {
	buf []float64
	pos int
	fb  float64
}

// stereoSpread is the extra delay, in samples, of the right side.
const stereoSpread = 23

// NewReverb creates a reverb effect.
// roomSize: 0..1 controls delay lengths
// feedback: 0..1 controls decay time
// wet: output mix 0..1; 1 returns only the reverberated signal
func NewReverb(sampleRate int, roomSize, feedback, wet float64) *Reverb {
	base := int(float64(sampleRate) * roomSize * 0.05)
	if base < 10 {
		base = 10
	}
	fb := clamp(feedback, 0, 0.95)
	return &Reverb{
		left:  newReverbSide(base, fb),
		right: newReverbSide(base+stereoSpread, fb),
		wet:   clamp(wet, 0, 1),
	}
}

func newReverbSide(base int, fb float64) reverbSide {
	var s reverbSide
	// Comb filter delay lengths (prime-ish ratios to avoid resonances)
	combLens := [4]int{base, base * 1117 / 1000, base * 1271 / 1000, base * 1437 / 1000}
	for i := range s.combs {
		s.combs[i] = combFilter{buf: make([]float64, combLens[i]), fb: fb}
	}
	apLens := [2]int{base * 347 / 1000, base * 213 / 1000}
	for i := range s.allpass {
		s.allpass[i] = allpassFilter{buf: make([]float64, max(apLens[i], 1)), fb: 0.5}
	}
	return s
}

func (r *Reverb) Process(l, rr float64) (float64, float64) {
	mono := (l + rr) * 0.5
	outL := r.left.process(mono)
	outR := r.right.process(mono)
	return l*(1-r.wet) + outL*r.wet, rr*(1-r.wet) + outR*r.wet
}

func (r *Reverb) Reset() {
	r.left.reset()
	r.right.reset()
}

func (s *reverbSide) process(in float64) float64 {
	var out float64
	for i := range s.combs {
		out += s.combs[i].process(in)
	}
	out *= 0.25
	for i := range s.allpass {
		out = s.allpass[i].process(out)
	}
	return out
}

func (s *reverbSide) reset() {
	for i := range s.combs {
		clear(s.combs[i].buf)
		s.combs[i].pos = 0
	}
	for i := range s.allpass {
		clear(s.allpass[i].buf)
		s.allpass[i].pos = 0
	}
}

func (c *combFilter) process(in float64) float64 {
	out := c.buf[c.pos]
	c.buf[c.pos] = in + out*c.fb
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

func (a *allpassFilter) process(in float64) float64 {
	bufOut := a.buf[a.pos]
	out := -in + bufOut
	a.buf[a.pos] = in + bufOut*a.fb
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return out
}
