package engine

import (
	"math"
	"testing"

	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/sfsynth-go/internal/renderer"
	"github.com/cbegin/sfsynth-go/internal/sftest"
	sf "github.com/cbegin/sfsynth-go/internal/soundfont"
)

const testRate = 44100

func loadBank(t *testing.T, f sftest.Font) *sf.Bank {
	t.Helper()
	b, err := f.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return b
}

func newModule(t *testing.T, params Params) *Module {
	t.Helper()
	return New(loadBank(t, sftest.Simple()), testRate, params)
}

func play(t *testing.T, m *Module, frames int, msgs ...Message) []float32 {
	t.Helper()
	for _, msg := range msgs {
		if err := m.Handle(msg); err != nil {
			t.Fatalf("handle %s: %v", msg, err)
		}
	}
	out := make([]float32, 2*frames)
	if err := m.Process(out); err != nil {
		t.Fatalf("process: %v", err)
	}
	return out
}

func peak(buf []float32) float64 {
	p := 0.0
	for _, v := range buf {
		p = math.Max(p, math.Abs(float64(v)))
	}
	return p
}

func equal(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBankFallback(t *testing.T) {
	want := play(t, newModule(t, DefaultParams()), 2048, NoteOn(0, 60, 100))
	if peak(want) == 0 {
		t.Fatal("reference note is silent")
	}
	got := play(t, newModule(t, DefaultParams()), 2048,
		ControlChange(0, ccBankSelectMSB, 0),
		ControlChange(0, ccBankSelectLSB, 5),
		ProgramChange(0, 0),
		NoteOn(0, 60, 100))
	if !equal(want, got) {
		t.Fatal("bank 5 did not fall back to bank 0")
	}
}

func TestDrumChannelDoesNotFallBack(t *testing.T) {
	m := newModule(t, DefaultParams())
	out := play(t, m, 512, NoteOn(drumChannel, 36, 100))
	if peak(out) != 0 || !m.Silent() {
		t.Fatal("drum channel without a bank 128 preset should stay silent")
	}
}

func TestNoteOnZeroVelocityReleases(t *testing.T) {
	m := newModule(t, DefaultParams())
	play(t, m, 512, NoteOn(0, 60, 100))
	if m.ActiveNotes() != 1 {
		t.Fatalf("active = %d, want 1", m.ActiveNotes())
	}
	play(t, m, 512, NoteOn(0, 60, 0))
	// The release is 0.125 s.
	for i := 0; i < 20 && !m.Silent(); i++ {
		play(t, m, 1024)
	}
	if !m.Silent() {
		t.Fatal("note did not finish after NoteOn with velocity 0")
	}
}

func TestRPN(t *testing.T) {
	tests := []struct {
		name  string
		msgs  []Message
		check func(c *channel) bool
	}{
		{"bend range", []Message{
			ControlChange(0, ccRPNMSB, 0), ControlChange(0, ccRPNLSB, 0),
			ControlChange(0, ccDataEntryMSB, 12), PitchBend(0, 8191),
		}, func(c *channel) bool { return c.bendRange == 12 && math.Abs(c.pitch()-12) < 1e-9 }},
		{"negative bend", []Message{PitchBend(0, -8192)}, func(c *channel) bool { return c.pitch() == -2 }},
		{"fine tune", []Message{
			ControlChange(0, ccRPNMSB, 0), ControlChange(0, ccRPNLSB, 1),
			ControlChange(0, ccDataEntryMSB, 0x7f), ControlChange(0, ccDataEntryLSB, 0x7f),
		}, func(c *channel) bool { return c.fineTune == 1 }},
		{"data entry msb resets lsb", []Message{
			ControlChange(0, ccRPNMSB, 0), ControlChange(0, ccRPNLSB, 1),
			ControlChange(0, ccDataEntryLSB, 0x7f), ControlChange(0, ccDataEntryMSB, 0x40),
		}, func(c *channel) bool { return c.fineTune == 0 }},
		{"coarse tune", []Message{
			ControlChange(0, ccRPNMSB, 0), ControlChange(0, ccRPNLSB, 2),
			ControlChange(0, ccDataEntryMSB, 66),
		}, func(c *channel) bool { return c.coarse == 2 }},
		{"nrpn ignored", []Message{
			ControlChange(0, ccNRPNMSB, 0), ControlChange(0, ccNRPNLSB, 0),
			ControlChange(0, ccDataEntryMSB, 24),
		}, func(c *channel) bool { return c.bendRange == 2 && c.hasNRPN && !c.hasRPN }},
		{"reset controllers", []Message{
			ControlChange(0, ccVolume, 10), PitchBend(0, 100), ControlChange(0, ccResetAll, 0),
		}, func(c *channel) bool { return c.volume == 100 && c.bend == 0 && c.pan == 64 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := newModule(t, DefaultParams())
			for _, msg := range tc.msgs {
				if err := m.Handle(msg); err != nil {
					t.Fatal(err)
				}
			}
			if c := m.channels[0]; !tc.check(c) {
				t.Fatalf("unexpected channel state %+v", *c)
			}
		})
	}
}

func TestProgramChangeCommitsBank(t *testing.T) {
	m := newModule(t, DefaultParams())
	if m.channels[drumChannel].bank != 128 || m.channels[0].bank != 0 {
		t.Fatal("unexpected default banks")
	}
	play(t, m, 0, ControlChange(1, ccBankSelectMSB, 1), ControlChange(1, ccBankSelectLSB, 3))
	if m.channels[1].bank != 0 {
		t.Fatal("bank changed before program change")
	}
	play(t, m, 0, ProgramChange(1, 7))
	if c := m.channels[1]; c.bank != 131 || c.program != 7 {
		t.Fatalf("bank/program = %d/%d, want 131/7", c.bank, c.program)
	}
}

func TestSerialMatchesParallel(t *testing.T) {
	msgs := []Message{
		NoteOn(0, 60, 100), NoteOn(0, 64, 90), NoteOn(1, 67, 80),
		ControlChange(1, ccPan, 20), NoteOn(2, 72, 110), PitchBend(2, 3000),
	}
	serial := DefaultParams()
	serial.Serial = true
	a, b := newModule(t, serial), newModule(t, DefaultParams())
	for i := 0; i < 4; i++ {
		var sa, sb []float32
		if i == 0 {
			sa, sb = play(t, a, 1000, msgs...), play(t, b, 1000, msgs...)
		} else {
			sa, sb = play(t, a, 1000, NoteOff(0, 60)), play(t, b, 1000, NoteOff(0, 60))
		}
		if !equal(sa, sb) {
			t.Fatalf("block %d differs between serial and parallel rendering", i)
		}
	}
}

func TestAllSoundOff(t *testing.T) {
	m := newModule(t, DefaultParams())
	play(t, m, 256, NoteOn(3, 60, 100), NoteOn(3, 62, 100))
	play(t, m, 0, ControlChange(3, ccAllSoundOff, 0))
	if !m.Silent() {
		t.Fatal("all sound off left notes sounding")
	}
}

func TestIgnoresHighChannels(t *testing.T) {
	m := newModule(t, DefaultParams())
	if err := m.Handle(NoteOn(16, 60, 100)); err != nil {
		t.Fatal(err)
	}
	if !m.Silent() {
		t.Fatal("channel 16 should be ignored")
	}
}

func TestExclusiveClassReleases(t *testing.T) {
	f := sftest.Simple()
	f.Instruments[0].Zones[0] = append([]sf.Generator{sftest.Gen(sf.GenExclusiveClass, 1)}, f.Instruments[0].Zones[0]...)
	m := New(loadBank(t, f), testRate, DefaultParams())
	play(t, m, 256, NoteOn(0, 42, 100))
	play(t, m, 256, NoteOn(0, 44, 100))
	first := m.channels[0].notes[42][0]
	if first.Finished() {
		t.Fatal("first note finished too early")
	}
	for i := 0; i < 10; i++ {
		play(t, m, 1024)
	}
	if len(m.channels[0].notes[42]) != 0 {
		t.Fatal("first note of the exclusive class was not released")
	}
	if len(m.channels[0].notes[44]) != 1 {
		t.Fatal("second note should still sound")
	}
}

func TestMasterLimiter(t *testing.T) {
	m := newModule(t, DefaultParams())
	var msgs []Message
	for ch := uint8(0); ch < 8; ch++ {
		msgs = append(msgs, ControlChange(ch, ccVolume, 127), NoteOn(ch, 69, 127))
	}
	out := play(t, m, 4096, msgs...)
	// Unlimited, eight full-scale sines would exceed 2.
	if p := peak(out); p == 0 || p > 0.7+(8*1.8-0.7)*0.3 {
		t.Fatalf("peak = %v", p)
	}
}

func TestRenderThroughRelease(t *testing.T) {
	f := sftest.Simple()
	f.Instruments[0].Zones[0] = []sf.Generator{
		sftest.Gen(sf.GenSampleModes, 1),
		sftest.Gen(sf.GenDelayVolEnv, -3600),   // 0.125 s
		sftest.Gen(sf.GenAttackVolEnv, -3600),  // 0.125 s
		sftest.Gen(sf.GenHoldVolEnv, -2400),    // 0.25 s
		sftest.Gen(sf.GenDecayVolEnv, -3600),   // 0.125 s
		sftest.Gen(sf.GenSustainVolEnv, 100),   // -10 dB
		sftest.Gen(sf.GenReleaseVolEnv, -3600), // 0.125 s
		sftest.Gen(sf.GenSampleID, 0),
	}
	params := DefaultParams()
	params.Serial = true
	m := New(loadBank(t, f), testRate, params)

	const (
		delay, attack, hold, decay, release = 5512, 5512, 11025, 5512, 5512
		held                                = delay + attack + hold + decay + 200
	)
	// Peak sample of the sine, full velocity and channel volume, centered
	// zone and channel pan, master gain, then the limiter knee.
	zl, _ := renderer.ZonePan(0)
	dry := 32000.0 / 32767 * renderer.VolumeTable[127] * zl * renderer.VolumeTable[127] * math.Cos(math.Pi/4)
	limit := func(x float64) float64 {
		if x > 0.7 {
			return 0.7 + (x-0.7)*0.3
		}
		return x
	}

	out := play(t, m, held, ControlChange(0, ccVolume, 127), NoteOn(0, 69, 127))
	if want := limit(1.8 * dry); math.Abs(peak(out)-want) > 1e-5 {
		t.Fatalf("peak = %v, want %v", peak(out), want)
	}
	sustain := math.Pow(10, -100.0/200)
	if want := limit(1.8 * dry * sustain); math.Abs(peak(out[2*(held-200):])-want) > 1e-5 {
		t.Fatalf("sustain peak = %v, want %v", peak(out[2*(held-200):]), want)
	}
	if m.Silent() {
		t.Fatal("note ended while held")
	}

	tail := play(t, m, release, NoteOff(0, 69))
	if peak(tail) == 0 || m.Silent() {
		t.Fatal("release should sound for its full length")
	}
	if after := play(t, m, 1); !m.Silent() || peak(after) != 0 {
		t.Fatalf("note still sounds %d frames after keyoff", release)
	}
}

func TestFromMIDI(t *testing.T) {
	tests := []struct {
		in   midi.Message
		want Message
	}{
		{midi.NoteOn(2, 60, 100), NoteOn(2, 60, 100)},
		{midi.NoteOff(2, 60), NoteOff(2, 60)},
		{midi.ControlChange(1, 7, 90), ControlChange(1, 7, 90)},
		{midi.ProgramChange(3, 12), ProgramChange(3, 12)},
		{midi.Pitchbend(4, -100), PitchBend(4, -100)},
	}
	for _, tc := range tests {
		got, ok := FromMIDI(tc.in)
		if !ok || got != tc.want {
			t.Errorf("FromMIDI(%v) = %v, %v; want %v", tc.in, got, ok, tc.want)
		}
		if back, _ := FromMIDI(tc.want.MIDI()); back != tc.want {
			t.Errorf("MIDI round trip of %v = %v", tc.want, back)
		}
	}
	if _, ok := FromMIDI(midi.AfterTouch(0, 10)); ok {
		t.Error("aftertouch should not convert")
	}
}
