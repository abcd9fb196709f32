// Package renderer turns resolved SoundFont zones into sample blocks.
package renderer

import (
	"math"
	"sync"

	sf "github.com/cbegin/sfsynth-go/internal/soundfont"
)

// SampleMode is the sampleModes generator value.
type SampleMode int

const (
	NoLoop SampleMode = iota
	Loop
	unusedNoLoop
	LoopUntilRelease
)

// minLoopSpan is the shortest loop, in samples, that is played as a loop.
const minLoopSpan = 32

// LFOParams configure one of the voice LFOs.
type LFOParams struct {
	Depth float64 // semitones for vibrato, dB for modulation
	Hz    float64
	Delay int // samples
}

// InterInfo is everything a voice needs from its zone, derived once.
type InterInfo struct {
	Wave       []float64
	LoopStart  int
	LoopEnd    int
	Mode       SampleMode
	SampleRate float64

	RootKey         int
	PitchCorrection int
	CoarseTune      int
	FineTune        int
	ScaleTuning     int

	Attenuation    float64 // linear
	PanL, PanR     float64
	ExclusiveClass int
	Env            EnvelopeParams

	ReverbSend float64 // 0..1
	ChorusSend float64 // 0..1

	Vibrato    LFOParams
	Modulation LFOParams
}

// Loops reports whether the sample loop is played at all.
func (i *InterInfo) Loops() bool {
	if i.Mode != Loop && i.Mode != LoopUntilRelease {
		return false
	}
	return i.LoopStart >= 0 && i.LoopEnd < len(i.Wave) && i.LoopEnd-i.LoopStart >= minLoopSpan
}

// Renderer owns the per-zone caches for one bank and output rate.
// It is safe for concurrent use.
type Renderer struct {
	bank *sf.Bank
	rate int

	mu    sync.Mutex
	infos map[sf.InstrumentRefer]*InterInfo
	waves map[int][]float64
}

func New(bank *sf.Bank, sampleRate int) *Renderer {
	return &Renderer{
		bank:  bank,
		rate:  sampleRate,
		infos: map[sf.InstrumentRefer]*InterInfo{},
		waves: map[int][]float64{},
	}
}

func (r *Renderer) Bank() *sf.Bank  { return r.bank }
func (r *Renderer) SampleRate() int { return r.rate }

// Info returns the cached InterInfo for ref, building it on first use.
func (r *Renderer) Info(ref sf.InstrumentRefer) (*InterInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.infos[ref]; ok {
		return info, nil
	}
	info, err := r.build(ref)
	if err != nil {
		return nil, err
	}
	r.infos[ref] = info
	return info, nil
}

func (r *Renderer) build(ref sf.InstrumentRefer) (*InterInfo, error) {
	_, _, zone, err := r.bank.Resolve(ref)
	if err != nil {
		return nil, err
	}
	eval := func(op sf.GenOperator) sf.Amount {
		a, _ := r.bank.Evaluate(ref, op)
		return a
	}
	samples := func(op sf.GenOperator) int {
		return int(float64(r.rate) * eval(op).Value)
	}
	body := zone.Sample
	info := &InterInfo{
		Wave:            r.wave(body),
		LoopStart:       int(body.LoopStart),
		LoopEnd:         int(body.LoopEnd),
		Mode:            SampleMode(eval(sf.GenSampleModes).Raw),
		SampleRate:      float64(body.SampleRate),
		RootKey:         int(body.OriginalKey),
		PitchCorrection: int(body.PitchCorrection),
		CoarseTune:      eval(sf.GenCoarseTune).Raw,
		FineTune:        eval(sf.GenFineTune).Raw,
		ScaleTuning:     eval(sf.GenScaleTuning).Raw,
		Attenuation:     eval(sf.GenInitialAttenuation).Amplitude(),
		Env: EnvelopeParams{
			Delay:   samples(sf.GenDelayVolEnv),
			Attack:  samples(sf.GenAttackVolEnv),
			Hold:    samples(sf.GenHoldVolEnv),
			Decay:   samples(sf.GenDecayVolEnv),
			Release: samples(sf.GenReleaseVolEnv),
			Sustain: eval(sf.GenSustainVolEnv).Amplitude(),
		},
		ReverbSend: eval(sf.GenReverbEffectsSend).Value / 100,
		ChorusSend: eval(sf.GenChorusEffectsSend).Value / 100,
		Vibrato: LFOParams{
			Depth: eval(sf.GenVibLfoToPitch).Value,
			Hz:    eval(sf.GenFreqVibLFO).Value,
			Delay: samples(sf.GenDelayVibLFO),
		},
		Modulation: LFOParams{
			Depth: eval(sf.GenModLfoToVolume).Value,
			Hz:    eval(sf.GenFreqModLFO).Value,
			Delay: samples(sf.GenDelayModLFO),
		},
	}
	if root := eval(sf.GenOverridingRootKey); root.Valid {
		info.RootKey = root.Raw
	}
	if class := eval(sf.GenExclusiveClass); class.Valid {
		info.ExclusiveClass = class.Raw
	}
	info.PanL, info.PanR = ZonePan(eval(sf.GenPan).Value)
	if info.SampleRate <= 0 {
		info.SampleRate = float64(r.rate)
	}
	return info, nil
}

// wave converts a sample body to floats. Callers hold r.mu.
func (r *Renderer) wave(body *sf.SampleBody) []float64 {
	if w, ok := r.waves[body.Index]; ok {
		return w
	}
	var w []float64
	if body.Stub {
		w = make([]float64, 2)
	} else {
		src := r.bank.Samples()
		end := max(body.End, body.Start+body.LoopEnd) + 1
		if end > uint32(len(src)) {
			end = uint32(len(src))
		}
		w = make([]float64, end-body.Start)
		lo := r.bank.Samples24()
		for i := range w {
			j := int(body.Start) + i
			if lo != nil {
				w[i] = float64(int32(src[j])<<8|int32(lo[j])) / 8388607
			} else {
				w[i] = float64(src[j]) / 32767
			}
		}
	}
	r.waves[body.Index] = w
	return w
}

// NewNote creates the voices for every zone matching key, or nil when
// no zone matches.
func (r *Renderer) NewNote(key sf.PresetKey) *Note {
	refs := r.bank.Zones(key)
	if len(refs) == 0 {
		return nil
	}
	n := &Note{Key: key}
	for _, ref := range refs {
		n.voices = append(n.voices, &Voice{r: r, ref: ref, note: key.Note, velocity: key.Velocity})
	}
	return n
}

// VolumeTable maps a 7-bit controller or velocity value to amplitude,
// following the 40*log10(v/127) dB curve.
var VolumeTable = func() (t [128]float64) {
	for i := range t {
		db := 40 * math.Log10(float64(i)/127)
		t[i] = math.Pow(10, db/20)
	}
	return t
}()

// ZonePan converts a zone pan in percent (-50..50) to left/right gains.
func ZonePan(pan float64) (l, r float64) {
	n := (pan + 50) / 100
	return math.Sin((1 - n) * math.Pi / 2), math.Sin(n * math.Pi / 2)
}
