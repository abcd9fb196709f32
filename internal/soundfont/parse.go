package soundfont

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/cbegin/sfsynth-go/internal/riff"
)

var (
	ErrUnknownChunk    = errors.New("soundfont: unknown chunk")
	ErrMissingChunk    = errors.New("soundfont: missing chunk")
	ErrIndexOutOfRange = errors.New("soundfont: index out of range")
	ErrNotSoundFont    = errors.New("soundfont: not an sfbk container")
	ErrChunkSize       = riff.ErrChunkSize
	ErrNotRIFF         = riff.ErrNotRIFF
)

// Version is an ifil or iver record.
type Version struct {
	Major, Minor uint16
}

// FileInfo holds the INFO list strings and versions.
type FileInfo struct {
	Version      Version
	SoundEngine  string
	Name         string
	ROM          string
	ROMVersion   *Version
	CreationDate string
	Engineers    string
	Product      string
	Copyright    string
	Comments     string
	Tools        string
}

// PresetHeader is a phdr record.
type PresetHeader struct {
	Name       string
	Preset     uint16
	Bank       uint16
	BagIndex   uint16
	Library    uint32
	Genre      uint32
	Morphology uint32
}

// Bag is a pbag or ibag record.
type Bag struct {
	GenIndex uint16
	ModIndex uint16
}

// InstrumentHeader is an inst record.
type InstrumentHeader struct {
	Name     string
	BagIndex uint16
}

// SampleHeader is a shdr record.
type SampleHeader struct {
	Name            string
	Start           uint32
	End             uint32
	StartLoop       uint32
	EndLoop         uint32
	SampleRate      uint32
	OriginalKey     uint8
	PitchCorrection int8
	SampleLink      uint16
	SampleType      uint16
}

// Doc is the flat content of an SF2 file. Header tables keep their
// terminal sentinel records.
type Doc struct {
	Info FileInfo

	PresetHeaders     []PresetHeader
	PresetBags        []Bag
	PresetModulators  []Modulator
	PresetGenerators  []Generator
	InstrumentHeaders []InstrumentHeader
	InstrumentBags    []Bag
	InstModulators    []Modulator
	InstGenerators    []Generator
	SampleHeaders     []SampleHeader

	// Samples is the 16-bit smpl body; Samples24 the optional sm24 low bytes.
	Samples   []int16
	Samples24 []byte
}

type rawPresetHeader struct {
	Name       [20]byte
	Preset     uint16
	Bank       uint16
	BagIndex   uint16
	Library    uint32
	Genre      uint32
	Morphology uint32
}

type rawInstrumentHeader struct {
	Name     [20]byte
	BagIndex uint16
}

type rawSampleHeader struct {
	Name            [20]byte
	Start           uint32
	End             uint32
	StartLoop       uint32
	EndLoop         uint32
	SampleRate      uint32
	OriginalKey     uint8
	PitchCorrection int8
	SampleLink      uint16
	SampleType      uint16
}

type rawGenerator struct {
	Oper   uint16
	Amount int16
}

type rawModulator struct {
	Src    uint16
	Dest   uint16
	Amount int16
	AmtSrc uint16
	Trans  uint16
}

// Parse reads an SF2 document. Any chunk outside the known set is an error.
func Parse(r io.Reader) (*Doc, error) {
	p := &parser{doc: &Doc{}, seen: map[string]bool{}}
	if err := riff.Walk(r, p); err != nil {
		return nil, err
	}
	for _, path := range requiredChunks {
		if !p.seen[path] {
			return nil, errors.Wrap(ErrMissingChunk, path)
		}
	}
	d := p.doc
	if len(d.PresetHeaders) < 2 {
		return nil, errors.Wrap(ErrMissingChunk, "phdr has no terminal record")
	}
	if len(d.InstrumentHeaders) < 2 {
		return nil, errors.Wrap(ErrMissingChunk, "inst has no terminal record")
	}
	return d, nil
}

var requiredChunks = []string{
	"sfbk/pdta/phdr", "sfbk/pdta/pbag", "sfbk/pdta/pgen",
	"sfbk/pdta/inst", "sfbk/pdta/ibag", "sfbk/pdta/igen",
	"sfbk/pdta/shdr", "sfbk/sdta/smpl",
}

type parser struct {
	doc   *Doc
	stack []string
	seen  map[string]bool
}

func (p *parser) BeginGroup(h riff.ListHeader) error {
	if len(p.stack) == 0 && h.Type.String() != "sfbk" {
		return errors.Wrapf(ErrNotSoundFont, "form type %q", h.Type.String())
	}
	p.stack = append(p.stack, h.Type.String())
	return nil
}

func (p *parser) EndGroup() error {
	p.stack = p.stack[:len(p.stack)-1]
	return nil
}

func (p *parser) Leaf(h riff.Header, r io.Reader) error {
	path := strings.Join(append(p.stack[:len(p.stack):len(p.stack)], h.ID.String()), "/")
	handle, ok := leafHandlers[path]
	if !ok {
		return errors.Wrap(ErrUnknownChunk, path)
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) != int(h.Size) {
		return errors.Wrapf(ErrChunkSize, "reading %s", path)
	}
	p.seen[path] = true
	if err := handle(p.doc, data); err != nil {
		return errors.Wrap(err, path)
	}
	return nil
}

var leafHandlers = map[string]func(d *Doc, data []byte) error{
	"sfbk/INFO/ifil": func(d *Doc, data []byte) error {
		v, err := parseVersion(data)
		d.Info.Version = v
		return err
	},
	"sfbk/INFO/iver": func(d *Doc, data []byte) error {
		v, err := parseVersion(data)
		d.Info.ROMVersion = &v
		return err
	},
	"sfbk/INFO/isng": stringField(func(i *FileInfo) *string { return &i.SoundEngine }),
	"sfbk/INFO/INAM": stringField(func(i *FileInfo) *string { return &i.Name }),
	"sfbk/INFO/irom": stringField(func(i *FileInfo) *string { return &i.ROM }),
	"sfbk/INFO/ICRD": stringField(func(i *FileInfo) *string { return &i.CreationDate }),
	"sfbk/INFO/IENG": stringField(func(i *FileInfo) *string { return &i.Engineers }),
	"sfbk/INFO/IPRD": stringField(func(i *FileInfo) *string { return &i.Product }),
	"sfbk/INFO/ICOP": stringField(func(i *FileInfo) *string { return &i.Copyright }),
	"sfbk/INFO/ICMT": stringField(func(i *FileInfo) *string { return &i.Comments }),
	"sfbk/INFO/ISFT": stringField(func(i *FileInfo) *string { return &i.Tools }),

	"sfbk/sdta/smpl": func(d *Doc, data []byte) error {
		d.Samples = make([]int16, len(data)/2)
		return decode(data, d.Samples)
	},
	"sfbk/sdta/sm24": func(d *Doc, data []byte) error {
		d.Samples24 = data
		return nil
	},

	"sfbk/pdta/phdr": func(d *Doc, data []byte) error {
		raw, err := records[rawPresetHeader](data)
		for _, h := range raw {
			d.PresetHeaders = append(d.PresetHeaders, PresetHeader{
				Name: cString(h.Name[:]), Preset: h.Preset, Bank: h.Bank, BagIndex: h.BagIndex,
				Library: h.Library, Genre: h.Genre, Morphology: h.Morphology,
			})
		}
		return err
	},
	"sfbk/pdta/pbag": func(d *Doc, data []byte) (err error) {
		d.PresetBags, err = records[Bag](data)
		return err
	},
	"sfbk/pdta/pmod": func(d *Doc, data []byte) (err error) {
		d.PresetModulators, err = modulators(data)
		return err
	},
	"sfbk/pdta/pgen": func(d *Doc, data []byte) (err error) {
		d.PresetGenerators, err = generators(data)
		return err
	},
	"sfbk/pdta/inst": func(d *Doc, data []byte) error {
		raw, err := records[rawInstrumentHeader](data)
		for _, h := range raw {
			d.InstrumentHeaders = append(d.InstrumentHeaders, InstrumentHeader{
				Name: cString(h.Name[:]), BagIndex: h.BagIndex,
			})
		}
		return err
	},
	"sfbk/pdta/ibag": func(d *Doc, data []byte) (err error) {
		d.InstrumentBags, err = records[Bag](data)
		return err
	},
	"sfbk/pdta/imod": func(d *Doc, data []byte) (err error) {
		d.InstModulators, err = modulators(data)
		return err
	},
	"sfbk/pdta/igen": func(d *Doc, data []byte) (err error) {
		d.InstGenerators, err = generators(data)
		return err
	},
	"sfbk/pdta/shdr": func(d *Doc, data []byte) error {
		raw, err := records[rawSampleHeader](data)
		for _, h := range raw {
			d.SampleHeaders = append(d.SampleHeaders, SampleHeader{
				Name: cString(h.Name[:]), Start: h.Start, End: h.End,
				StartLoop: h.StartLoop, EndLoop: h.EndLoop, SampleRate: h.SampleRate,
				OriginalKey: h.OriginalKey, PitchCorrection: h.PitchCorrection,
				SampleLink: h.SampleLink, SampleType: h.SampleType,
			})
		}
		return err
	},
}

func parseVersion(data []byte) (Version, error) {
	var v Version
	if len(data) != 4 {
		return v, errors.Wrapf(ErrChunkSize, "version record of %d bytes", len(data))
	}
	err := decode(data, &v)
	return v, err
}

func stringField(field func(*FileInfo) *string) func(*Doc, []byte) error {
	return func(d *Doc, data []byte) error {
		*field(&d.Info) = cString(data)
		return nil
	}
}

// records decodes as many whole fixed-size records as data holds.
func records[T any](data []byte) ([]T, error) {
	var zero T
	size := binary.Size(zero)
	out := make([]T, len(data)/size)
	if err := decode(data[:len(out)*size], out); err != nil {
		return nil, err
	}
	return out, nil
}

func generators(data []byte) ([]Generator, error) {
	raw, err := records[rawGenerator](data)
	if err != nil {
		return nil, err
	}
	out := make([]Generator, len(raw))
	for i, g := range raw {
		out[i] = Generator{Oper: GenOperator(g.Oper), Amount: g.Amount}
	}
	return out, nil
}

func modulators(data []byte) ([]Modulator, error) {
	raw, err := records[rawModulator](data)
	if err != nil {
		return nil, err
	}
	out := make([]Modulator, len(raw))
	for i, m := range raw {
		out[i] = Modulator{Src: m.Src, Dest: GenOperator(m.Dest), Amount: m.Amount, AmtSrc: m.AmtSrc, Trans: m.Trans}
	}
	return out, nil
}

func decode(data []byte, v any) error {
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, v); err != nil {
		return errors.Wrap(ErrChunkSize, err.Error())
	}
	return nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
