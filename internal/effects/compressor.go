package effects

import "math"

// Compressor is a peak-following compressor with separate attack and
// release smoothing per channel.
type Compressor struct {
	threshold float64
	ratio     float64
	attack    float64 // coefficient
	release   float64 // coefficient
	makeup    float64
	envL      float64
	envR      float64
}

// NewCompressor creates a compressor effect.
// thresholdDB: threshold in dB (e.g., -20)
// ratio: compression ratio (e.g., 4 for 4:1)
// attackMs: attack time in ms
// releaseMs: release time in ms
// makeupDB: makeup gain in dB
func NewCompressor(sampleRate int, thresholdDB, ratio, attackMs, releaseMs, makeupDB float64) *Compressor {
	sr := float64(sampleRate)
	if ratio < 1 {
		ratio = 1
	}
	return &Compressor{
		threshold: math.Pow(10, thresholdDB/20),
		ratio:     ratio,
		attack:    1.0 - math.Exp(-1.0/(attackMs*sr/1000.0)),
		release:   1.0 - math.Exp(-1.0/(releaseMs*sr/1000.0)),
		makeup:    math.Pow(10, makeupDB/20),
	}
}

func (c *Compressor) Process(l, r float64) (float64, float64) {
	c.envL = c.follow(c.envL, math.Abs(l))
	c.envR = c.follow(c.envR, math.Abs(r))
	return l * c.gain(c.envL) * c.makeup, r * c.gain(c.envR) * c.makeup
}

func (c *Compressor) follow(env, x float64) float64 {
	if x > env {
		return env + c.attack*(x-env)
	}
	return env + c.release*(x-env)
}

func (c *Compressor) gain(env float64) float64 {
	if env <= c.threshold || c.threshold <= 0 {
		return 1.0
	}
	return math.Pow(env/c.threshold, 1.0/c.ratio-1)
}

func (c *Compressor) Reset() {
	c.envL = 0
	c.envR = 0
}
