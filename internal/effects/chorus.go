package effects

import "math"

// Chorus is a modulated stereo delay. The right channel's modulation runs
// a quarter cycle behind the left.
type Chorus struct {
	bufL, bufR []float64
	pos        int
	size       int
	depth      float64 // modulation depth in samples
	rate       float64 // modulation rate in radians per sample
	phase      float64
	feedback   float64
	wet        float64
}

// NewChorus creates a chorus effect.
// delayMs: base delay time in ms (typically 5-30ms)
// feedback: feedback amount 0..1
// depthMs: modulation depth in ms
// rateHz: modulation rate in Hz (typically 0.1-5Hz)
// wet: output mix 0..1; 1 returns only the delayed signal
func NewChorus(sampleRate int, delayMs, feedback, depthMs, rateHz, wet float64) *Chorus {
	baseSamples := int(delayMs * float64(sampleRate) / 1000.0)
	depthSamples := depthMs * float64(sampleRate) / 1000.0
	size := 2*(baseSamples+int(depthSamples)) + 2
	if size < 4 {
		size = 4
	}
	return &Chorus{
		bufL:     make([]float64, size),
		bufR:     make([]float64, size),
		size:     size,
		depth:    depthSamples,
		rate:     2.0 * math.Pi * rateHz / float64(sampleRate),
		feedback: clamp(feedback, 0, 0.9),
		wet:      clamp(wet, 0, 1),
	}
}

func (c *Chorus) Process(l, r float64) (float64, float64) {
	modL := math.Sin(c.phase) * c.depth
	modR := math.Cos(c.phase) * c.depth
	c.phase += c.rate
	if c.phase > 2*math.Pi {
		c.phase -= 2 * math.Pi
	}
	c.bufL[c.pos] = l
	c.bufR[c.pos] = r

	delL := c.read(c.bufL, modL)
	delR := c.read(c.bufR, modR)

	c.bufL[c.pos] += delL * c.feedback
	c.bufR[c.pos] += delR * c.feedback

	c.pos++
	if c.pos >= c.size {
		c.pos = 0
	}
	return l*(1-c.wet) + delL*c.wet, r*(1-c.wet) + delR*c.wet
}

// read returns the buffer value half the buffer plus mod samples back.
func (c *Chorus) read(buf []float64, mod float64) float64 {
	readPos := float64(c.pos) - (float64(c.size/2) + mod)
	for readPos < 0 {
		readPos += float64(c.size)
	}
	idx := int(readPos)
	if idx >= c.size {
		idx -= c.size
	}
	frac := readPos - math.Floor(readPos)
	idx2 := idx + 1
	if idx2 >= c.size {
		idx2 = 0
	}
	return buf[idx]*(1-frac) + buf[idx2]*frac
}

func (c *Chorus) Reset() {
	clear(c.bufL)
	clear(c.bufR)
	c.pos = 0
	c.phase = 0
}
