// Package sftest builds small SF2 files for tests.
package sftest

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/cbegin/sfsynth-go/internal/riff"
	"github.com/cbegin/sfsynth-go/internal/soundfont"
)

type Preset struct {
	Name    string
	Bank    uint16
	Program uint16
	// Zones lists the generators of each bag. A bag without GenInstrument is global.
	Zones [][]soundfont.Generator
}

type Instrument struct {
	Name  string
	Zones [][]soundfont.Generator
}

type Sample struct {
	Name       string
	Start      uint32
	End        uint32
	LoopStart  uint32
	LoopEnd    uint32
	Rate       uint32
	Key        uint8
	Correction int8
}

// Font describes a whole bank.
type Font struct {
	Name        string
	Presets     []Preset
	Instruments []Instrument
	Samples     []Sample
	Data        []int16
	Data24      []byte
	// Extra chunks appended to the pdta list.
	Extra []riff.Chunk
	// Omit drops a pdta or sdta leaf by id, e.g. "pgen".
	Omit string
}

func Gen(op soundfont.GenOperator, amount int16) soundfont.Generator {
	return soundfont.Generator{Oper: op, Amount: amount}
}

// Range encodes a keyRange or velRange generator.
func Range(op soundfont.GenOperator, lo, hi uint8) soundfont.Generator {
	return soundfont.Generator{Oper: op, Amount: int16(uint16(hi)<<8 | uint16(lo))}
}

// Sine returns n samples of a full-scale sine with the given period.
func Sine(n, period int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(math.Round(32000 * math.Sin(2*math.Pi*float64(i)/float64(period))))
	}
	return out
}

// Simple is one preset (bank 0, program 0) over one looping sine zone.
func Simple() Font {
	return Font{
		Name: "simple",
		Presets: []Preset{{
			Name: "Sine",
			Zones: [][]soundfont.Generator{
				{Gen(soundfont.GenInstrument, 0)},
			},
		}},
		Instruments: []Instrument{{
			Name: "sine",
			Zones: [][]soundfont.Generator{{
				Gen(soundfont.GenSampleModes, 1),
				Gen(soundfont.GenReleaseVolEnv, -3600),
				Gen(soundfont.GenSampleID, 0),
			}},
		}},
		Samples: []Sample{{Name: "sine", Start: 0, End: 4400, LoopStart: 100, LoopEnd: 4300, Rate: 44100, Key: 69}},
		Data:    Sine(4446, 100),
	}
}

// Bytes encodes f as an SF2 container.
func (f Font) Bytes() ([]byte, error) {
	info := &riff.Group{Type: riff.NewID("INFO"), Chunks: []riff.Chunk{
		&riff.Data{ID: riff.NewID("ifil"), Data: le(uint16(2), uint16(1))},
		&riff.Data{ID: riff.NewID("INAM"), Data: cstr(f.Name, len(f.Name)+1)},
	}}

	sdta := &riff.Group{Type: riff.NewID("sdta")}
	f.add(sdta, "smpl", le(f.Data))
	if f.Data24 != nil {
		f.add(sdta, "sm24", f.Data24)
	}

	var phdr, pbag, pmod, pgen bytes.Buffer
	for _, p := range f.Presets {
		phdr.Write(cstr(p.Name, 20))
		phdr.Write(le(p.Program, p.Bank, uint16(pbag.Len()/4), uint32(0), uint32(0), uint32(0)))
		for _, z := range p.Zones {
			pbag.Write(le(uint16(pgen.Len()/4), uint16(0)))
			writeGens(&pgen, z)
		}
	}
	phdr.Write(cstr("EOP", 20))
	phdr.Write(le(uint16(0), uint16(0), uint16(pbag.Len()/4), uint32(0), uint32(0), uint32(0)))
	pbag.Write(le(uint16(pgen.Len()/4), uint16(0)))
	pmod.Write(make([]byte, 10))
	pgen.Write(le(uint16(0), int16(0)))

	var inst, ibag, imod, igen bytes.Buffer
	for _, in := range f.Instruments {
		inst.Write(cstr(in.Name, 20))
		inst.Write(le(uint16(ibag.Len() / 4)))
		for _, z := range in.Zones {
			ibag.Write(le(uint16(igen.Len()/4), uint16(0)))
			writeGens(&igen, z)
		}
	}
	inst.Write(cstr("EOI", 20))
	inst.Write(le(uint16(ibag.Len() / 4)))
	ibag.Write(le(uint16(igen.Len()/4), uint16(0)))
	imod.Write(make([]byte, 10))
	igen.Write(le(uint16(0), int16(0)))

	var shdr bytes.Buffer
	for _, s := range f.Samples {
		shdr.Write(cstr(s.Name, 20))
		shdr.Write(le(s.Start, s.End, s.LoopStart, s.LoopEnd, s.Rate, s.Key, s.Correction, uint16(0), uint16(1)))
	}
	shdr.Write(cstr("EOS", 20))
	shdr.Write(make([]byte, 26))

	pdta := &riff.Group{Type: riff.NewID("pdta")}
	f.add(pdta, "phdr", phdr.Bytes())
	f.add(pdta, "pbag", pbag.Bytes())
	f.add(pdta, "pmod", pmod.Bytes())
	f.add(pdta, "pgen", pgen.Bytes())
	f.add(pdta, "inst", inst.Bytes())
	f.add(pdta, "ibag", ibag.Bytes())
	f.add(pdta, "imod", imod.Bytes())
	f.add(pdta, "igen", igen.Bytes())
	f.add(pdta, "shdr", shdr.Bytes())
	pdta.Chunks = append(pdta.Chunks, f.Extra...)

	return riff.Encode(&riff.Group{Type: riff.NewID("sfbk"), Chunks: []riff.Chunk{info, sdta, pdta}})
}

// MustBytes is Bytes that panics on error.
func (f Font) MustBytes() []byte {
	b, err := f.Bytes()
	if err != nil {
		panic(err)
	}
	return b
}

// Load builds f and resolves it into a quiet bank.
func (f Font) Load() (*soundfont.Bank, error) {
	return soundfont.Load(bytes.NewReader(f.MustBytes()), soundfont.Quiet())
}

func (f Font) add(g *riff.Group, id string, data []byte) {
	if id == f.Omit {
		return
	}
	g.Chunks = append(g.Chunks, &riff.Data{ID: riff.NewID(id), Data: data})
}

func writeGens(buf *bytes.Buffer, gens []soundfont.Generator) {
	for _, g := range gens {
		buf.Write(le(uint16(g.Oper), g.Amount))
	}
}

func le(values ...any) []byte {
	var buf bytes.Buffer
	for _, v := range values {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			panic(err)
		}
	}
	return buf.Bytes()
}

func cstr(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}
