package engine

import (
	"math"

	"github.com/cbegin/sfsynth-go/internal/renderer"
)

// Controller numbers handled by the channel.
const (
	ccBankSelectMSB = 0
	ccDataEntryMSB  = 6
	ccVolume        = 7
	ccPan           = 10
	ccBankSelectLSB = 32
	ccDataEntryLSB  = 38
	ccNRPNLSB       = 98
	ccNRPNMSB       = 99
	ccRPNLSB        = 100
	ccRPNMSB        = 101
	ccAllSoundOff   = 120
	ccResetAll      = 121
	ccAllNotesOff   = 123
)

const (
	NumChannels = 16
	drumChannel = 9
	drumBank    = 128
)

// Registered parameter numbers.
const (
	rpnBendRange  = 0
	rpnFineTune   = 1
	rpnCoarseTune = 2
)

// pair is a 14-bit controller value split in two 7-bit halves.
type pair struct {
	msb, lsb uint8
}

func (p pair) value() int { return int(p.msb)<<7 | int(p.lsb) }

type channel struct {
	number int

	bankSelect pair
	bank       uint16
	program    uint8
	volume     uint8
	pan        uint8

	bend      int16
	bendRange uint8
	fineTune  float64 // semitones, -1..1
	coarse    int     // semitones, -64..63

	rpn, nrpn       pair
	hasRPN, hasNRPN bool
	dataEntry       pair

	notes [128][]*renderer.Note

	mix     *renderer.Bus
	scratch []*renderer.Bus
	order   []*renderer.Note
}

func newChannel(number int) *channel {
	c := &channel{number: number, mix: renderer.NewBus(0)}
	c.reset()
	if number == drumChannel {
		c.bankSelect = pair{msb: drumBank >> 7, lsb: drumBank & 0x7f}
		c.bank = drumBank
	}
	return c
}

// reset restores the controllers to their power-on values.
func (c *channel) reset() {
	c.volume = 100
	c.pan = 64
	c.bend = 0
	c.bendRange = 2
	c.fineTune = 0
	c.coarse = 0
	c.rpn, c.nrpn = pair{}, pair{}
	c.hasRPN, c.hasNRPN = false, false
	c.dataEntry = pair{}
}

// pitch is the channel pitch offset in semitones.
func (c *channel) pitch() float64 {
	div := 8191.0
	if c.bend < 0 {
		div = 8192
	}
	return float64(c.bend)/(div/float64(c.bendRange)) + c.fineTune
}

// gains are the channel volume and GM2 pan law.
func (c *channel) gains() (l, r float64) {
	vol := renderer.VolumeTable[c.volume&0x7f]
	x := float64(max(0, int(c.pan)-1)) / 126
	return vol * math.Cos(math.Pi/2*x), vol * math.Sin(math.Pi/2*x)
}

func (c *channel) controlChange(ctl, v uint8) {
	switch ctl {
	case ccBankSelectMSB:
		c.bankSelect.msb = v
	case ccBankSelectLSB:
		c.bankSelect.lsb = v
	case ccVolume:
		c.volume = v
	case ccPan:
		c.pan = v
	case ccNRPNLSB:
		c.selectNRPN()
		c.nrpn.lsb = v
	case ccNRPNMSB:
		c.selectNRPN()
		c.nrpn.msb = v
	case ccRPNLSB:
		c.selectRPN()
		c.rpn.lsb = v
	case ccRPNMSB:
		c.selectRPN()
		c.rpn.msb = v
	case ccDataEntryMSB:
		c.dataEntry = pair{msb: v}
		c.applyDataEntry()
	case ccDataEntryLSB:
		c.dataEntry.lsb = v
		c.applyDataEntry()
	case ccResetAll:
		c.reset()
	}
}

func (c *channel) selectRPN() {
	c.hasNRPN = false
	if !c.hasRPN {
		c.rpn = pair{}
		c.hasRPN = true
	}
}

func (c *channel) selectNRPN() {
	c.hasRPN = false
	if !c.hasNRPN {
		c.nrpn = pair{}
		c.hasNRPN = true
	}
}

// applyDataEntry updates the selected registered parameter. NRPNs are
// tracked but have no effect.
func (c *channel) applyDataEntry() {
	if !c.hasRPN {
		return
	}
	switch c.rpn.value() {
	case rpnBendRange:
		c.bendRange = c.dataEntry.msb
	case rpnFineTune:
		v := c.dataEntry.value() - 8192
		div := 8191.0
		if v < 0 {
			div = 8192
		}
		c.fineTune = float64(v) / div
	case rpnCoarseTune:
		c.coarse = int(c.dataEntry.msb) - 64
	}
}

func (c *channel) programChange(program uint8) {
	c.program = program
	c.bank = uint16(c.bankSelect.msb)*128 + uint16(c.bankSelect.lsb)
}

func (c *channel) active() bool {
	for _, list := range c.notes {
		if len(list) > 0 {
			return true
		}
	}
	return false
}

func (c *channel) noteCount() int {
	n := 0
	for _, list := range c.notes {
		n += len(list)
	}
	return n
}

func (c *channel) keyOff(key uint8) error {
	for _, n := range c.notes[key&0x7f] {
		if err := n.KeyOff(); err != nil {
			return err
		}
	}
	return nil
}

func (c *channel) allNotesOff() error {
	for key := range c.notes {
		if err := c.keyOff(uint8(key)); err != nil {
			return err
		}
	}
	return nil
}

func (c *channel) allSoundOff() {
	for key := range c.notes {
		c.notes[key] = nil
	}
}

func (c *channel) releaseClass(class int) error {
	for _, list := range c.notes {
		for _, n := range list {
			if err := n.ReleaseClass(class); err != nil {
				return err
			}
		}
	}
	return nil
}

// render mixes the channel's notes into c.mix, one task per note, and
// drops notes that finished.
func (c *channel) render(frames int, serial bool) error {
	c.mix.Reset(frames)
	c.order = c.order[:0]
	for _, list := range c.notes {
		c.order = append(c.order, list...)
	}
	for len(c.scratch) < len(c.order) {
		c.scratch = append(c.scratch, renderer.NewBus(frames))
	}
	pitch := c.pitch()
	err := fanOut(serial, len(c.order), func(i int) error {
		c.scratch[i].Reset(frames)
		return c.order[i].Render(c.scratch[i], pitch)
	})
	if err != nil {
		return err
	}
	for i := range c.order {
		c.mix.Mix(c.scratch[i], 1, 1)
	}
	for key, list := range c.notes {
		live := list[:0]
		for _, n := range list {
			if !n.Finished() {
				live = append(live, n)
			}
		}
		clear(list[len(live):])
		c.notes[key] = live
	}
	return nil
}
