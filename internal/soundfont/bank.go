package soundfont

import (
	"io"
	"log"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// PresetID is the unique (bank, program) key of a preset.
type PresetID struct {
	Bank    uint16
	Program uint16
}

// PresetKey selects the zones that sound for a note.
type PresetKey struct {
	Bank     uint16
	Program  uint16
	Note     uint8
	Velocity uint8
}

func (k PresetKey) ID() PresetID { return PresetID{Bank: k.Bank, Program: k.Program} }

// SampleBody describes one validated sample. Loop points are relative to Start.
type SampleBody struct {
	Index           int
	Name            string
	Start, End      uint32
	LoopStart       uint32
	LoopEnd         uint32
	SampleRate      uint32
	OriginalKey     uint8
	PitchCorrection int8
	// Stub is set when the sample bounds were corrupt and replaced by silence.
	Stub            bool
}

// InstrumentSample is one sounding zone of an instrument.
type InstrumentSample struct {
	KeyRange Range
	VelRange Range
	Local    *GeneratorMap
	Sample   *SampleBody
}

// Instrument is an instrument as referenced from one preset zone.
type Instrument struct {
	Name        string
	Global      *GeneratorMap
	PresetLocal *GeneratorMap
	Zones       []InstrumentSample
}

type Preset struct {
	Name    string
	ID      PresetID
	Global  *GeneratorMap
	Library uint32
	Genre   uint32
	Morph   uint32

	Instruments []Instrument
}

// InstrumentRefer names one zone: preset, instrument within the preset,
// zone within the instrument.
type InstrumentRefer struct {
	Preset     int
	Instrument int
	Zone       int
}

// Bank is an immutable SoundFont ready for rendering.
type Bank struct {
	info      FileInfo
	samples   []int16
	samples24 []byte
	bodies    []*SampleBody
	presets   []Preset
	index     map[PresetID]int
	log       *log.Logger
	eval      Evaluator
}

type Option func(*options)

type options struct {
	logger *log.Logger
}

// WithLogger routes load and evaluation diagnostics to l.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Quiet discards diagnostics.
func Quiet() Option {
	return WithLogger(log.New(io.Discard, "", 0))
}

// Load parses and resolves an SF2 stream.
func Load(r io.Reader, opts ...Option) (*Bank, error) {
	doc, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return NewBank(doc, opts...)
}

// LoadFile is Load on a named file.
func LoadFile(path string, opts ...Option) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	b, err := Load(f, opts...)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return b, nil
}

// NewBank resolves the zones of doc. The bank takes ownership of doc's tables.
func NewBank(doc *Doc, opts ...Option) (*Bank, error) {
	o := options{logger: log.New(os.Stderr, "", log.LstdFlags)}
	for _, opt := range opts {
		opt(&o)
	}
	r := &resolver{
		doc:       doc,
		log:       o.logger,
		bodies:    map[int]*SampleBody{},
		instZones: map[int]Zone{},
		insts:     map[int]Instrument{},
	}
	presets, err := r.presets()
	if err != nil {
		return nil, err
	}
	b := &Bank{
		info:    doc.Info,
		samples: doc.Samples,
		presets: presets,
		index:   make(map[PresetID]int, len(presets)),
		log:     o.logger,
		eval:    Evaluator{Logger: o.logger},
	}
	if len(doc.Samples24) >= len(doc.Samples) {
		b.samples24 = doc.Samples24
	}
	for i := range b.presets {
		b.index[b.presets[i].ID] = i
	}
	b.bodies = make([]*SampleBody, len(doc.SampleHeaders))
	for i, body := range r.bodies {
		b.bodies[i] = body
	}
	return b, nil
}

type resolver struct {
	doc       *Doc
	log       *log.Logger
	bodies    map[int]*SampleBody
	instZones map[int]Zone
	insts     map[int]Instrument
}

func (r *resolver) presets() ([]Preset, error) {
	byID := map[PresetID]Preset{}
	headers := r.doc.PresetHeaders
	for i := 0; i+1 < len(headers); i++ {
		p, err := r.preset(i)
		if err != nil {
			return nil, err
		}
		if _, dup := byID[p.ID]; dup {
			r.log.Printf("[info] preset overwrite: bank %d program %d %q", p.ID.Bank, p.ID.Program, p.Name)
		}
		byID[p.ID] = p
	}
	out := make([]Preset, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID.Bank != out[j].ID.Bank {
			return out[i].ID.Bank < out[j].ID.Bank
		}
		return out[i].ID.Program < out[j].ID.Program
	})
	return out, nil
}

func (r *resolver) preset(i int) (Preset, error) {
	h := r.doc.PresetHeaders[i]
	next := r.doc.PresetHeaders[i+1]
	p := Preset{
		Name:    h.Name,
		ID:      PresetID{Bank: h.Bank, Program: h.Preset},
		Library: h.Library,
		Genre:   h.Genre,
		Morph:   h.Morphology,
	}
	type local struct {
		index int
		gens  *GeneratorMap
	}
	var locals []local
	seenGlobal := false
	for bag := int(h.BagIndex); bag < int(next.BagIndex); bag++ {
		z, err := zone(r.doc.PresetBags, r.doc.PresetGenerators, r.doc.PresetModulators, bag, "pbag")
		if err != nil {
			return p, errors.Wrapf(err, "preset %q", h.Name)
		}
		inst, ok := z.Generators.Get(GenInstrument)
		if !ok {
			if seenGlobal {
				r.log.Printf("[info] multiple definitions of preset global zone: %q", h.Name)
			}
			seenGlobal = true
			p.Global = z.Generators
			continue
		}
		locals = append(locals, local{index: int(uint16(inst)), gens: z.Generators})
	}
	for _, l := range locals {
		inst, err := r.instrument(l.index)
		if err != nil {
			return p, errors.Wrapf(err, "preset %q", h.Name)
		}
		inst.PresetLocal = l.gens
		inst.Zones = r.keepZones(inst.Zones, l.gens, p.Global)
		p.Instruments = append(p.Instruments, inst)
	}
	return p, nil
}

// keepZones drops zones whose key or velocity range is empty once the
// preset ranges are applied.
func (r *resolver) keepZones(zones []InstrumentSample, presetLocal, presetGlobal *GeneratorMap) []InstrumentSample {
	var kept []InstrumentSample
	for _, z := range zones {
		key := rangeOf(GenKeyRange, presetLocal, presetGlobal, z.KeyRange)
		vel := rangeOf(GenVelRange, presetLocal, presetGlobal, z.VelRange)
		if key.Empty() || vel.Empty() {
			continue
		}
		z.KeyRange, z.VelRange = key, vel
		kept = append(kept, z)
	}
	return kept
}

func rangeOf(op GenOperator, local, global *GeneratorMap, inst Range) Range {
	if v, ok := local.Get(op); ok {
		return inst.Intersect(toRange(clamp(int(v), 0, rangeMax)))
	}
	if v, ok := global.Get(op); ok {
		return inst.Intersect(toRange(clamp(int(v), 0, rangeMax)))
	}
	return inst
}

func (r *resolver) instrument(index int) (Instrument, error) {
	headers := r.doc.InstrumentHeaders
	if index < 0 || index+1 >= len(headers) {
		return Instrument{}, errors.Wrapf(ErrIndexOutOfRange, "instrument %d", index)
	}
	if inst, ok := r.insts[index]; ok {
		return inst, nil
	}
	h := headers[index]
	next := headers[index+1]
	inst := Instrument{Name: h.Name}
	seenGlobal := false
	for bag := int(h.BagIndex); bag < int(next.BagIndex); bag++ {
		z, ok := r.instZones[bag]
		if !ok {
			var err error
			z, err = zone(r.doc.InstrumentBags, r.doc.InstGenerators, r.doc.InstModulators, bag, "ibag")
			if err != nil {
				return inst, errors.Wrapf(err, "instrument %q", h.Name)
			}
			r.instZones[bag] = z
		}
		sampleID, ok := z.Generators.Get(GenSampleID)
		if !ok {
			if seenGlobal {
				r.log.Printf("[info] multiple definitions of instrument global zone: %q", h.Name)
			}
			seenGlobal = true
			inst.Global = z.Generators
			continue
		}
		body, err := r.body(int(uint16(sampleID)))
		if err != nil {
			return inst, errors.Wrapf(err, "instrument %q", h.Name)
		}
		inst.Zones = append(inst.Zones, InstrumentSample{Local: z.Generators, Sample: body})
	}
	// The global zone may follow local zones, so ranges resolve afterwards.
	full := Range{Lo: 0, Hi: 127}
	for i := range inst.Zones {
		z := &inst.Zones[i]
		z.KeyRange = rangeOf(GenKeyRange, z.Local, inst.Global, full)
		z.VelRange = rangeOf(GenVelRange, z.Local, inst.Global, full)
	}
	r.insts[index] = inst
	return inst, nil
}

func zone(bags []Bag, gens []Generator, mods []Modulator, bag int, table string) (Zone, error) {
	if bag < 0 || bag+1 >= len(bags) {
		return Zone{}, errors.Wrapf(ErrIndexOutOfRange, "%s %d", table, bag)
	}
	g0, g1 := int(bags[bag].GenIndex), int(bags[bag+1].GenIndex)
	if g0 > g1 || g1 > len(gens) {
		return Zone{}, errors.Wrapf(ErrIndexOutOfRange, "%s %d generators [%d,%d)", table, bag, g0, g1)
	}
	z := Zone{Generators: NewGeneratorMap(gens[g0:g1])}
	m0, m1 := int(bags[bag].ModIndex), int(bags[bag+1].ModIndex)
	if m0 < m1 {
		if m1 > len(mods) {
			return Zone{}, errors.Wrapf(ErrIndexOutOfRange, "%s %d modulators [%d,%d)", table, bag, m0, m1)
		}
		z.Modulators = mods[m0:m1]
	}
	return z, nil
}

func (r *resolver) body(index int) (*SampleBody, error) {
	if b, ok := r.bodies[index]; ok {
		return b, nil
	}
	headers := r.doc.SampleHeaders
	if index < 0 || index >= len(headers) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "sample %d", index)
	}
	h := headers[index]
	n := uint32(len(r.doc.Samples))
	b := &SampleBody{
		Index:           index,
		Name:            h.Name,
		Start:           h.Start,
		End:             h.End,
		LoopStart:       h.StartLoop - h.Start,
		LoopEnd:         h.EndLoop - h.Start,
		SampleRate:      h.SampleRate,
		OriginalKey:     h.OriginalKey,
		PitchCorrection: h.PitchCorrection,
	}
	if b.Start > b.End || b.End >= n {
		r.log.Printf("[warning] sample %q: bad point [%d, %d], buffer %d", h.Name, h.Start, h.End, n)
		b.Start, b.End, b.Stub = 0, 1, true
		b.LoopStart, b.LoopEnd = 0, 1
	} else if h.StartLoop < h.Start || h.EndLoop < h.StartLoop || h.EndLoop >= n {
		r.log.Printf("[warning] sample %q: bad loop [%d, %d]", h.Name, h.StartLoop, h.EndLoop)
		b.LoopStart, b.LoopEnd = 0, 1
	}
	r.bodies[index] = b
	return b, nil
}

func (b *Bank) Info() FileInfo { return b.info }

// Presets returns presets in (bank, program) order. The slice must not be modified.
func (b *Bank) Presets() []Preset { return b.presets }

func (b *Bank) Preset(id PresetID) (*Preset, bool) {
	i, ok := b.index[id]
	if !ok {
		return nil, false
	}
	return &b.presets[i], true
}

// Samples returns the raw 16-bit sample buffer.
func (b *Bank) Samples() []int16 { return b.samples }

// Samples24 returns the sm24 low bytes, or nil when absent.
func (b *Bank) Samples24() []byte { return b.samples24 }

// SampleBody returns the interned body for a sample header index.
func (b *Bank) SampleBody(index int) *SampleBody {
	if index < 0 || index >= len(b.bodies) {
		return nil
	}
	return b.bodies[index]
}

// Zones lists every zone that sounds for key, in preset order.
func (b *Bank) Zones(key PresetKey) []InstrumentRefer {
	pi, ok := b.index[key.ID()]
	if !ok {
		return nil
	}
	var out []InstrumentRefer
	for ii, inst := range b.presets[pi].Instruments {
		for zi, z := range inst.Zones {
			if z.KeyRange.Contains(key.Note) && z.VelRange.Contains(key.Velocity) {
				out = append(out, InstrumentRefer{Preset: pi, Instrument: ii, Zone: zi})
			}
		}
	}
	return out
}

// Resolve returns the preset, instrument and zone named by ref.
func (b *Bank) Resolve(ref InstrumentRefer) (*Preset, *Instrument, *InstrumentSample, error) {
	if ref.Preset < 0 || ref.Preset >= len(b.presets) {
		return nil, nil, nil, errors.Wrapf(ErrIndexOutOfRange, "preset %d", ref.Preset)
	}
	p := &b.presets[ref.Preset]
	if ref.Instrument < 0 || ref.Instrument >= len(p.Instruments) {
		return nil, nil, nil, errors.Wrapf(ErrIndexOutOfRange, "instrument %d", ref.Instrument)
	}
	inst := &p.Instruments[ref.Instrument]
	if ref.Zone < 0 || ref.Zone >= len(inst.Zones) {
		return nil, nil, nil, errors.Wrapf(ErrIndexOutOfRange, "zone %d", ref.Zone)
	}
	return p, inst, &inst.Zones[ref.Zone], nil
}

// Evaluate returns the effective amount of op for the zone named by ref.
func (b *Bank) Evaluate(ref InstrumentRefer, op GenOperator) (Amount, error) {
	p, inst, z, err := b.Resolve(ref)
	if err != nil {
		return Amount{}, err
	}
	return b.eval.Evaluate(op, z.Local, inst.Global, inst.PresetLocal, p.Global), nil
}

// Logger returns the diagnostics logger the bank was loaded with.
func (b *Bank) Logger() *log.Logger { return b.log }
