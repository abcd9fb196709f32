package renderer

// Phase is the volume envelope stage at a sample position.
type Phase int

const (
	PhaseDelay Phase = iota
	PhaseAttack
	PhaseHold
	PhaseDecay
	PhaseSustain
	PhaseRelease
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseDelay:
		return "delay"
	case PhaseAttack:
		return "attack"
	case PhaseHold:
		return "hold"
	case PhaseDecay:
		return "decay"
	case PhaseSustain:
		return "sustain"
	case PhaseRelease:
		return "release"
	}
	return "finished"
}

// EnvelopeParams are stage lengths in output samples and the sustain
// level as a linear amplitude.
type EnvelopeParams struct {
	Delay   int
	Attack  int
	Hold    int
	Decay   int
	Release int
	Sustain float64
}

// Envelope is a DAHDSR volume envelope over absolute sample positions.
type Envelope struct {
	p EnvelopeParams

	attackAt, holdAt, decayAt, sustainAt int

	keyoff      bool
	keyoffAt    int
	keyoffLevel float64
}

func NewEnvelope(p EnvelopeParams) Envelope {
	if p.Release < 1 {
		p.Release = 1
	}
	e := Envelope{p: p}
	e.attackAt = p.Delay
	e.holdAt = e.attackAt + p.Attack
	e.decayAt = e.holdAt + p.Hold
	e.sustainAt = e.decayAt + p.Decay
	return e
}

// Phase reports the stage that covers pos.
func (e *Envelope) Phase(pos int) Phase {
	if e.keyoff && pos >= e.keyoffAt {
		if pos >= e.keyoffAt+e.p.Release {
			return PhaseFinished
		}
		return PhaseRelease
	}
	switch {
	case pos < e.attackAt:
		return PhaseDelay
	case pos < e.holdAt:
		return PhaseAttack
	case pos < e.decayAt:
		return PhaseHold
	case pos < e.sustainAt:
		return PhaseDecay
	}
	return PhaseSustain
}

// Level is the envelope amplitude at pos.
func (e *Envelope) Level(pos int) float64 {
	switch e.Phase(pos) {
	case PhaseAttack:
		return float64(pos-e.attackAt+1) / float64(e.p.Attack)
	case PhaseHold:
		return 1
	case PhaseDecay:
		remain := e.sustainAt - pos
		return e.p.Sustain + (1-e.p.Sustain)/float64(e.p.Decay)*float64(remain)
	case PhaseSustain:
		return e.p.Sustain
	case PhaseRelease:
		x := float64(e.keyoffAt+e.p.Release-pos) / float64(e.p.Release)
		x *= x
		x *= x
		return e.keyoffLevel * x * x
	}
	return 0
}

// KeyOff starts the release at pos from the level the envelope had there.
// Only the first call has an effect.
func (e *Envelope) KeyOff(pos int) {
	if e.keyoff {
		return
	}
	e.keyoffLevel = e.Level(pos)
	e.keyoffAt = pos
	e.keyoff = true
}

func (e *Envelope) Released() bool { return e.keyoff }

func (e *Envelope) Finished(pos int) bool { return e.Phase(pos) == PhaseFinished }
