package lfo

// LFO is the triangle low-frequency oscillator of one voice. It holds at
// zero through its delay, then starts at zero and rises first.
type LFO struct {
	depth  float64 // peak modulation, in the caller's unit (semitones, dB)
	rateHz float64
	delay  int     // samples to hold before the first cycle
	phase  float64 // current phase [0, 1)
	held   int
}

// Set configures the LFO and restarts it.
func (l *LFO) Set(depth, rateHz float64, delay int) {
	l.depth = depth
	l.rateHz = rateHz
	if delay < 0 {
		delay = 0
	}
	l.delay = delay
	l.Reset()
}

// Sample advances the LFO by one sample and returns a value in [-depth, +depth].
// Returns 0 if depth or rate is zero.
func (l *LFO) Sample(sampleRate float64) float64 {
	if l.depth == 0 || l.rateHz == 0 || sampleRate == 0 {
		return 0
	}
	if l.held < l.delay {
		l.held++
		return 0
	}

	var wave float64
	switch {
	case l.phase < 0.25:
		wave = 4 * l.phase
	case l.phase < 0.75:
		wave = 2 - 4*l.phase
	default:
		wave = 4*l.phase - 4
	}

	l.phase += l.rateHz / sampleRate
	for l.phase >= 1.0 {
		l.phase -= 1.0
	}
	return wave * l.depth
}

// Active returns true if the LFO has non-zero depth and rate.
func (l *LFO) Active() bool {
	return l.depth != 0 && l.rateHz != 0
}

// Reset zeros the phase and restarts the delay.
func (l *LFO) Reset() {
	l.phase = 0
	l.held = 0
}
