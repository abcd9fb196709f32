package soundfont

import (
	"log"
	"math"
)

type policy uint8

const (
	policyNone     policy = iota // not evaluable
	policyInstOnly               // instrument local, then instrument global, then default
	policyAdditive               // instrument value plus preset offset
	policyRange                  // intersection of instrument and preset ranges
	policyOptional               // instrument only, unset when absent
)

type unit uint8

const (
	unitRaw        unit = iota
	unitEnvTime         // timecents, minimum means zero seconds
	unitTimecents       // timecents to seconds
	unitAbsCents        // absolute cents to Hz
	unitTenths          // 0.1 steps: percent, dB from centibels
	unitHundredths      // cents to semitones
)

type genSpec struct {
	policy   policy
	unit     unit
	min, max int16
	def      int16
}

const (
	envMin   = -12000
	rangeMax = 0x7f7f
)

var genSpecs = [GenCount]genSpec{
	GenStartAddrsOffset:           {policyInstOnly, unitRaw, math.MinInt16, math.MaxInt16, 0},
	GenEndAddrsOffset:             {policyInstOnly, unitRaw, math.MinInt16, math.MaxInt16, 0},
	GenStartloopAddrsOffset:       {policyInstOnly, unitRaw, math.MinInt16, math.MaxInt16, 0},
	GenEndloopAddrsOffset:         {policyInstOnly, unitRaw, math.MinInt16, math.MaxInt16, 0},
	GenStartAddrsCoarseOffset:     {policyInstOnly, unitRaw, math.MinInt16, math.MaxInt16, 0},
	GenModLfoToPitch:              {policyAdditive, unitHundredths, -12000, 12000, 0},
	GenVibLfoToPitch:              {policyAdditive, unitHundredths, -12000, 12000, 0},
	GenModEnvToPitch:              {policyAdditive, unitHundredths, -12000, 12000, 0},
	GenInitialFilterFc:            {policyAdditive, unitAbsCents, 1500, 13500, 13500},
	GenInitialFilterQ:             {policyAdditive, unitTenths, 0, 960, 0},
	GenModLfoToFilterFc:           {policyAdditive, unitHundredths, -12000, 12000, 0},
	GenModEnvToFilterFc:           {policyAdditive, unitHundredths, -12000, 12000, 0},
	GenEndAddrsCoarseOffset:       {policyInstOnly, unitRaw, math.MinInt16, math.MaxInt16, 0},
	GenModLfoToVolume:             {policyAdditive, unitTenths, -960, 960, 0},
	GenChorusEffectsSend:          {policyAdditive, unitTenths, 0, 1000, 0},
	GenReverbEffectsSend:          {policyAdditive, unitTenths, 0, 1000, 0},
	GenPan:                        {policyAdditive, unitTenths, -500, 500, 0},
	GenDelayModLFO:                {policyAdditive, unitTimecents, envMin, 5000, envMin},
	GenFreqModLFO:                 {policyAdditive, unitAbsCents, -16000, 4500, 0},
	GenDelayVibLFO:                {policyAdditive, unitTimecents, envMin, 5000, envMin},
	GenFreqVibLFO:                 {policyAdditive, unitAbsCents, -16000, 4500, 0},
	GenDelayModEnv:                {policyAdditive, unitEnvTime, envMin, 5000, envMin},
	GenAttackModEnv:               {policyAdditive, unitEnvTime, envMin, 8000, envMin},
	GenHoldModEnv:                 {policyAdditive, unitEnvTime, envMin, 5000, envMin},
	GenDecayModEnv:                {policyAdditive, unitEnvTime, envMin, 8000, envMin},
	GenSustainModEnv:              {policyAdditive, unitTenths, 0, 1000, 0},
	GenReleaseModEnv:              {policyAdditive, unitEnvTime, envMin, 8000, envMin},
	GenKeynumToModEnvHold:         {policyAdditive, unitHundredths, -1200, 1200, 0},
	GenKeynumToModEnvDecay:        {policyAdditive, unitHundredths, -1200, 1200, 0},
	GenDelayVolEnv:                {policyAdditive, unitEnvTime, envMin, 5000, envMin},
	GenAttackVolEnv:               {policyAdditive, unitEnvTime, envMin, 8000, envMin},
	GenHoldVolEnv:                 {policyAdditive, unitEnvTime, envMin, 5000, envMin},
	GenDecayVolEnv:                {policyAdditive, unitEnvTime, envMin, 8000, envMin},
	GenSustainVolEnv:              {policyAdditive, unitTenths, 0, 1440, 0},
	GenReleaseVolEnv:              {policyAdditive, unitEnvTime, envMin, 8000, envMin},
	GenKeynumToVolEnvHold:         {policyAdditive, unitHundredths, -1200, 1200, 0},
	GenKeynumToVolEnvDecay:        {policyAdditive, unitHundredths, -1200, 1200, 0},
	GenKeyRange:                   {policyRange, unitRaw, 0, rangeMax, 0x7f00},
	GenVelRange:                   {policyRange, unitRaw, 0, rangeMax, 0x7f00},
	GenStartloopAddrsCoarseOffset: {policyInstOnly, unitRaw, math.MinInt16, math.MaxInt16, 0},
	GenInitialAttenuation:         {policyAdditive, unitTenths, 0, 1440, 0},
	GenEndloopAddrsCoarseOffset:   {policyInstOnly, unitRaw, math.MinInt16, math.MaxInt16, 0},
	GenCoarseTune:                 {policyAdditive, unitRaw, -120, 120, 0},
	GenFineTune:                   {policyAdditive, unitRaw, -99, 99, 0},
	GenSampleModes:                {policyInstOnly, unitRaw, 0, 3, 0},
	GenScaleTuning:                {policyAdditive, unitRaw, 0, 1200, 100},
	GenExclusiveClass:             {policyOptional, unitRaw, 0, 127, 0},
	GenOverridingRootKey:          {policyOptional, unitRaw, 0, 127, 0},
}

// Evaluable reports whether op has an evaluation policy.
func Evaluable(op GenOperator) bool {
	return op < GenCount && genSpecs[op].policy != policyNone
}

// Range is an inclusive key or velocity span.
type Range struct {
	Lo, Hi uint8
}

func (r Range) Empty() bool { return r.Lo > r.Hi }

func (r Range) Contains(v uint8) bool { return r.Lo <= v && v <= r.Hi }

func (r Range) Intersect(o Range) Range {
	if o.Lo > r.Lo {
		r.Lo = o.Lo
	}
	if o.Hi < r.Hi {
		r.Hi = o.Hi
	}
	return r
}

// Amount is the effective value of one operator for one zone.
type Amount struct {
	Op    GenOperator
	Valid bool
	// Raw is the clamped integer value after inheritance.
	Raw int
	// Value is Raw in the operator's natural unit: seconds, Hz, dB,
	// percent or semitones depending on the operator.
	Value float64
	Range Range
}

// Amplitude treats Raw as centibels of attenuation.
func (a Amount) Amplitude() float64 {
	return math.Pow(10, -float64(a.Raw)/200)
}

// Evaluator resolves operators against the four overlays of a zone.
// Out of range values are logged through Logger, when set, and clamped.
type Evaluator struct {
	Logger *log.Logger
}

// Evaluate returns the effective amount of op. Any overlay may be nil.
func (e Evaluator) Evaluate(op GenOperator, instLocal, instGlobal, presetLocal, presetGlobal *GeneratorMap) Amount {
	if !Evaluable(op) {
		return Amount{Op: op}
	}
	spec := genSpecs[op]
	switch spec.policy {
	case policyInstOnly:
		return e.amount(op, spec, e.layered(op, spec, instLocal, instGlobal))
	case policyOptional:
		v, ok := e.lookup(op, spec, instLocal, instGlobal)
		if !ok {
			return Amount{Op: op}
		}
		return e.amount(op, spec, v)
	case policyAdditive:
		n := e.layered(op, spec, instLocal, instGlobal)
		if p, ok := e.lookup(op, spec, presetLocal, presetGlobal); ok {
			n = clamp(n+p, int(spec.min), int(spec.max))
		}
		return e.amount(op, spec, n)
	case policyRange:
		r := toRange(e.layered(op, spec, instLocal, instGlobal))
		if p, ok := e.lookup(op, spec, presetLocal, presetGlobal); ok {
			r = r.Intersect(toRange(p))
		}
		return Amount{Op: op, Valid: true, Raw: int(r.Hi)<<8 | int(r.Lo), Range: r}
	}
	return Amount{Op: op}
}

func (e Evaluator) amount(op GenOperator, spec genSpec, n int) Amount {
	return Amount{Op: op, Valid: true, Raw: n, Value: convert(spec.unit, n)}
}

// layered reads local, then global, then the default.
func (e Evaluator) layered(op GenOperator, spec genSpec, local, global *GeneratorMap) int {
	if v, ok := e.lookup(op, spec, local, global); ok {
		return v
	}
	return int(spec.def)
}

func (e Evaluator) lookup(op GenOperator, spec genSpec, local, global *GeneratorMap) (int, bool) {
	if v, ok := local.Get(op); ok {
		return e.checked(op, spec, v), true
	}
	if v, ok := global.Get(op); ok {
		return e.checked(op, spec, v), true
	}
	return 0, false
}

func (e Evaluator) checked(op GenOperator, spec genSpec, v int16) int {
	if v < spec.min || v > spec.max {
		if e.Logger != nil {
			e.Logger.Printf("[info] %s: value %d outside [%d, %d], clamped", op, v, spec.min, spec.max)
		}
	}
	return clamp(int(v), int(spec.min), int(spec.max))
}

func toRange(v int) Range {
	lo := clamp(v&0xff, 0, 127)
	hi := clamp(v>>8&0xff, 0, 127)
	return Range{Lo: uint8(lo), Hi: uint8(hi)}
}

func convert(u unit, n int) float64 {
	switch u {
	case unitEnvTime:
		if n <= envMin {
			return 0
		}
		return TimecentsToSeconds(n)
	case unitTimecents:
		return TimecentsToSeconds(n)
	case unitAbsCents:
		return AbsCentsToHz(n)
	case unitTenths:
		return float64(n) / 10
	case unitHundredths:
		return float64(n) / 100
	}
	return float64(n)
}

func TimecentsToSeconds(n int) float64 {
	return math.Pow(2, float64(n)/1200)
}

func AbsCentsToHz(n int) float64 {
	return 8.176 * math.Pow(2, float64(n)/1200)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
