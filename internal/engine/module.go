// Package engine is the 16-channel MIDI synthesizer built on the renderer.
package engine

import (
	"golang.org/x/sync/errgroup"

	"github.com/cbegin/sfsynth-go/internal/renderer"
	sf "github.com/cbegin/sfsynth-go/internal/soundfont"
)

// Module plays channel messages through one bank. It is not safe for
// concurrent use; Process fans out internally.
type Module struct {
	r        *renderer.Renderer
	params   Params
	channels [NumChannels]*channel
	master   *master
	bus      *renderer.Bus
	active   []*channel
}

// New creates a module rendering bank at sampleRate.
func New(bank *sf.Bank, sampleRate int, params Params) *Module {
	return NewWithRenderer(renderer.New(bank, sampleRate), params)
}

// NewWithRenderer shares an existing renderer and its caches.
func NewWithRenderer(r *renderer.Renderer, params Params) *Module {
	m := &Module{
		r:      r,
		params: params,
		master: newMaster(r.SampleRate(), params),
		bus:    renderer.NewBus(0),
	}
	for i := range m.channels {
		m.channels[i] = newChannel(i)
	}
	return m
}

func (m *Module) SampleRate() int { return m.r.SampleRate() }

func (m *Module) Bank() *sf.Bank { return m.r.Bank() }

// Handle applies one message. Messages for channels past 15 are ignored.
func (m *Module) Handle(msg Message) error {
	if int(msg.Channel) >= NumChannels {
		return nil
	}
	c := m.channels[msg.Channel]
	switch msg.Kind {
	case KindNoteOn:
		if msg.Data2 == 0 {
			return c.keyOff(msg.Data1)
		}
		return m.noteOn(c, msg.Data1&0x7f, msg.Data2&0x7f)
	case KindNoteOff:
		return c.keyOff(msg.Data1)
	case KindControlChange:
		switch msg.Data1 {
		case ccAllSoundOff:
			c.allSoundOff()
		case ccAllNotesOff:
			return c.allNotesOff()
		default:
			c.controlChange(msg.Data1, msg.Data2)
		}
	case KindProgramChange:
		c.programChange(msg.Data1 & 0x7f)
	case KindPitchBend:
		c.bend = msg.Bend
	}
	return nil
}

func (m *Module) noteOn(c *channel, key, vel uint8) error {
	note := int(key) + c.coarse
	if note < 0 || note > 127 {
		return nil
	}
	pk := sf.PresetKey{Bank: c.bank, Program: uint16(c.program), Note: uint8(note), Velocity: vel}
	n := m.r.NewNote(pk)
	if n == nil && c.bank != 0 && c.bank != drumBank {
		pk.Bank = 0
		n = m.r.NewNote(pk)
	}
	if n == nil {
		return nil
	}
	classes, err := n.ExclusiveClasses()
	if err != nil {
		return err
	}
	for _, class := range classes {
		if err := c.releaseClass(class); err != nil {
			return err
		}
	}
	c.notes[key] = append(c.notes[key], n)
	return nil
}

// Silent reports whether no note is sounding.
func (m *Module) Silent() bool {
	for _, c := range m.channels {
		if c.active() {
			return false
		}
	}
	return true
}

// ActiveNotes counts sounding notes over all channels.
func (m *Module) ActiveNotes() int {
	n := 0
	for _, c := range m.channels {
		n += c.noteCount()
	}
	return n
}

// Process renders len(dst)/2 interleaved stereo frames.
func (m *Module) Process(dst []float32) error {
	frames := len(dst) / 2
	m.bus.Reset(frames)
	m.active = m.active[:0]
	for _, c := range m.channels {
		if c.active() {
			m.active = append(m.active, c)
		}
	}
	serial := m.params.Serial
	err := fanOut(serial, len(m.active), func(i int) error {
		return m.active[i].render(frames, serial)
	})
	if err != nil {
		return err
	}
	for _, c := range m.active {
		l, r := c.gains()
		m.bus.Mix(c.mix, l, r)
	}
	m.master.process(m.bus, dst)
	return nil
}

// fanOut runs fn for 0..n-1, concurrently unless serial.
func fanOut(serial bool, n int, fn func(i int) error) error {
	if serial || n < 2 {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error { return fn(i) })
	}
	return g.Wait()
}
