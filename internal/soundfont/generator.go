package soundfont

import "strconv"

// GenOperator identifies one SF2 synthesis parameter.
type GenOperator uint16

const (
	GenStartAddrsOffset GenOperator = iota
	GenEndAddrsOffset
	GenStartloopAddrsOffset
	GenEndloopAddrsOffset
	GenStartAddrsCoarseOffset
	GenModLfoToPitch
	GenVibLfoToPitch
	GenModEnvToPitch
	GenInitialFilterFc
	GenInitialFilterQ
	GenModLfoToFilterFc
	GenModEnvToFilterFc
	GenEndAddrsCoarseOffset
	GenModLfoToVolume
	GenUnused1
	GenChorusEffectsSend
	GenReverbEffectsSend
	GenPan
	GenUnused2
	GenUnused3
	GenUnused4
	GenDelayModLFO
	GenFreqModLFO
	GenDelayVibLFO
	GenFreqVibLFO
	GenDelayModEnv
	GenAttackModEnv
	GenHoldModEnv
	GenDecayModEnv
	GenSustainModEnv
	GenReleaseModEnv
	GenKeynumToModEnvHold
	GenKeynumToModEnvDecay
	GenDelayVolEnv
	GenAttackVolEnv
	GenHoldVolEnv
	GenDecayVolEnv
	GenSustainVolEnv
	GenReleaseVolEnv
	GenKeynumToVolEnvHold
	GenKeynumToVolEnvDecay
	GenInstrument
	GenReserved1
	GenKeyRange
	GenVelRange
	GenStartloopAddrsCoarseOffset
	GenKeynum
	GenVelocity
	GenInitialAttenuation
	GenReserved2
	GenEndloopAddrsCoarseOffset
	GenCoarseTune
	GenFineTune
	GenSampleID
	GenSampleModes
	GenReserved3
	GenScaleTuning
	GenExclusiveClass
	GenOverridingRootKey
	GenUnused5

	// GenCount is the number of defined operators; endOper is not stored.
	GenCount
)

var genNames = [GenCount]string{
	"startAddrsOffset", "endAddrsOffset", "startloopAddrsOffset", "endloopAddrsOffset",
	"startAddrsCoarseOffset", "modLfoToPitch", "vibLfoToPitch", "modEnvToPitch",
	"initialFilterFc", "initialFilterQ", "modLfoToFilterFc", "modEnvToFilterFc",
	"endAddrsCoarseOffset", "modLfoToVolume", "unused1", "chorusEffectsSend",
	"reverbEffectsSend", "pan", "unused2", "unused3", "unused4", "delayModLFO",
	"freqModLFO", "delayVibLFO", "freqVibLFO", "delayModEnv", "attackModEnv",
	"holdModEnv", "decayModEnv", "sustainModEnv", "releaseModEnv", "keynumToModEnvHold",
	"keynumToModEnvDecay", "delayVolEnv", "attackVolEnv", "holdVolEnv", "decayVolEnv",
	"sustainVolEnv", "releaseVolEnv", "keynumToVolEnvHold", "keynumToVolEnvDecay",
	"instrument", "reserved1", "keyRange", "velRange", "startloopAddrsCoarseOffset",
	"keynum", "velocity", "initialAttenuation", "reserved2", "endloopAddrsCoarseOffset",
	"coarseTune", "fineTune", "sampleID", "sampleModes", "reserved3", "scaleTuning",
	"exclusiveClass", "overridingRootKey", "unused5",
}

func (op GenOperator) String() string {
	if op < GenCount {
		return genNames[op]
	}
	return "gen(" + strconv.Itoa(int(op)) + ")"
}

// Generator is one raw (operator, amount) record from a pgen/igen table.
type Generator struct {
	Oper   GenOperator
	Amount int16
}

// Modulator is a raw pmod/imod record. Modulators are parsed but not applied.
type Modulator struct {
	Src    uint16
	Dest   GenOperator
	Amount int16
	AmtSrc uint16
	Trans  uint16
}

// GeneratorMap holds at most one amount per operator.
// A map is immutable once built and may be shared between zones.
type GeneratorMap struct {
	amount [GenCount]int16
	set    uint64
}

// NewGeneratorMap builds a map from records in file order; later records win.
// Operators outside the defined range are dropped.
func NewGeneratorMap(gens []Generator) *GeneratorMap {
	m := &GeneratorMap{}
	for _, g := range gens {
		if g.Oper >= GenCount {
			continue
		}
		m.amount[g.Oper] = g.Amount
		m.set |= 1 << g.Oper
	}
	return m
}

// Get reports the raw amount for op. A nil map is empty.
func (m *GeneratorMap) Get(op GenOperator) (int16, bool) {
	if m == nil || op >= GenCount || m.set&(1<<op) == 0 {
		return 0, false
	}
	return m.amount[op], true
}

func (m *GeneratorMap) Has(op GenOperator) bool {
	_, ok := m.Get(op)
	return ok
}

func (m *GeneratorMap) Len() int {
	if m == nil {
		return 0
	}
	n := 0
	for s := m.set; s != 0; s &= s - 1 {
		n++
	}
	return n
}

// Each visits the stored operators in operator order.
func (m *GeneratorMap) Each(fn func(op GenOperator, amount int16)) {
	if m == nil {
		return
	}
	for op := GenOperator(0); op < GenCount; op++ {
		if m.set&(1<<op) != 0 {
			fn(op, m.amount[op])
		}
	}
}

// Zone is the generator overlay and modulator list of one bag.
type Zone struct {
	Generators *GeneratorMap
	Modulators []Modulator
}
