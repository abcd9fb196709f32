package engine

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// Kind is the type of a channel message.
type Kind uint8

const (
	KindNoteOff Kind = iota + 1
	KindNoteOn
	KindControlChange
	KindProgramChange
	KindPitchBend
)

func (k Kind) String() string {
	switch k {
	case KindNoteOff:
		return "NoteOff"
	case KindNoteOn:
		return "NoteOn"
	case KindControlChange:
		return "ControlChange"
	case KindProgramChange:
		return "ProgramChange"
	case KindPitchBend:
		return "PitchBend"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Message is one channel voice message.
type Message struct {
	Kind    Kind
	Channel uint8
	// Data1 is the key, controller number or program.
	Data1 uint8
	// Data2 is the velocity or controller value.
	Data2 uint8
	// Bend is the signed pitch bend, -8192..8191.
	Bend int16
}

func NoteOn(ch, key, vel uint8) Message {
	return Message{Kind: KindNoteOn, Channel: ch, Data1: key, Data2: vel}
}

func NoteOff(ch, key uint8) Message {
	return Message{Kind: KindNoteOff, Channel: ch, Data1: key}
}

func ControlChange(ch, controller, value uint8) Message {
	return Message{Kind: KindControlChange, Channel: ch, Data1: controller, Data2: value}
}

func ProgramChange(ch, program uint8) Message {
	return Message{Kind: KindProgramChange, Channel: ch, Data1: program}
}

func PitchBend(ch uint8, bend int16) Message {
	return Message{Kind: KindPitchBend, Channel: ch, Bend: bend}
}

func (m Message) String() string {
	switch m.Kind {
	case KindPitchBend:
		return fmt.Sprintf("%s ch=%d bend=%d", m.Kind, m.Channel, m.Bend)
	case KindProgramChange:
		return fmt.Sprintf("%s ch=%d program=%d", m.Kind, m.Channel, m.Data1)
	}
	return fmt.Sprintf("%s ch=%d %d %d", m.Kind, m.Channel, m.Data1, m.Data2)
}

// FromMIDI converts a gomidi channel message. Other message types report false.
func FromMIDI(msg midi.Message) (Message, bool) {
	var ch, key, vel, ctl, val, prog uint8
	var rel int16
	var abs uint16
	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		return NoteOn(ch, key, vel), true
	case msg.GetNoteOff(&ch, &key, &vel):
		return NoteOff(ch, key), true
	case msg.GetControlChange(&ch, &ctl, &val):
		return ControlChange(ch, ctl, val), true
	case msg.GetProgramChange(&ch, &prog):
		return ProgramChange(ch, prog), true
	case msg.GetPitchBend(&ch, &rel, &abs):
		return PitchBend(ch, rel), true
	}
	return Message{}, false
}

// MIDI converts m back to a gomidi message.
func (m Message) MIDI() midi.Message {
	switch m.Kind {
	case KindNoteOn:
		return midi.NoteOn(m.Channel, m.Data1, m.Data2)
	case KindNoteOff:
		return midi.NoteOff(m.Channel, m.Data1)
	case KindControlChange:
		return midi.ControlChange(m.Channel, m.Data1, m.Data2)
	case KindProgramChange:
		return midi.ProgramChange(m.Channel, m.Data1)
	case KindPitchBend:
		return midi.Pitchbend(m.Channel, m.Bend)
	}
	return nil
}
