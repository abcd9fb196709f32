// Package effects holds the stereo processors of the master stage and
// the reverb and chorus send buses.
package effects

// Effector processes one stereo frame.
type Effector interface {
	Process(l, r float64) (float64, float64)
	Reset()
}

// Chain applies a sequence of effects in order.
type Chain struct {
	effects []Effector
}

func NewChain(effects ...Effector) *Chain {
	return &Chain{effects: effects}
}

func (c *Chain) Process(l, r float64) (float64, float64) {
	for _, e := range c.effects {
		l, r = e.Process(l, r)
	}
	return l, r
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

func (c *Chain) Add(e Effector) {
	c.effects = append(c.effects, e)
}

func (c *Chain) Len() int { return len(c.effects) }

// Gain scales both channels.
type Gain float64

func (g Gain) Process(l, r float64) (float64, float64) {
	return l * float64(g), r * float64(g)
}

func (Gain) Reset() {}

// Limiter reduces the slope above a threshold: |x| > t becomes
// t + (|x|-t)*ratio, sign preserved.
type Limiter struct {
	Threshold float64
	Ratio     float64
}

func NewLimiter(threshold, ratio float64) *Limiter {
	return &Limiter{Threshold: threshold, Ratio: ratio}
}

func (m *Limiter) Process(l, r float64) (float64, float64) {
	return m.limit(l), m.limit(r)
}

func (m *Limiter) limit(x float64) float64 {
	switch {
	case x > m.Threshold:
		return m.Threshold + (x-m.Threshold)*m.Ratio
	case x < -m.Threshold:
		return -m.Threshold + (x+m.Threshold)*m.Ratio
	}
	return x
}

func (*Limiter) Reset() {}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
