package sfsynth

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/go-audio/wav"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/sfsynth-go/internal/config"
	"github.com/cbegin/sfsynth-go/internal/sftest"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// writeSong writes a one-note song: note 69 held for half a second at
// 120 bpm, routed to instrument when it is not empty.
func writeSong(t *testing.T, path, instrument string) {
	t.Helper()
	var tr smf.Track
	if instrument != "" {
		tr.Add(0, smf.MetaInstrument(instrument))
	}
	tr.Add(0, midi.NoteOn(0, 69, 100))
	tr.Add(480, midi.NoteOff(0, 69))
	tr.Close(0)
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)
	if err := s.Add(tr); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, buf.Bytes())
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func bankDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "default.sf2"), sftest.Simple().MustBytes())
	organ := sftest.Simple()
	organ.Name = "organ"
	organ.Presets[0].Name = "Organ"
	writeFile(t, filepath.Join(dir, "ORGAN.SF2"), organ.MustBytes())
	writeFile(t, filepath.Join(dir, "notes.txt"), []byte("not a bank"))
	return dir
}

func TestRenderFileToWAV(t *testing.T) {
	dir := bankDir(t)
	mid := filepath.Join(dir, "song.mid")
	writeSong(t, mid, "")
	lib := NewLibrary(filepath.Join(dir, "default.sf2"), dir, quietLogger())

	c := config.Default()
	c.SampleRate = 22050
	samples, err := RenderFile(context.Background(), mid, lib, WithConfig(c))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	// Half a second of note, one tail second for the release, half a second of silence.
	const frames = 11025 + 22050 + 11025
	if len(samples) != 2*frames {
		t.Fatalf("samples = %d, want %d", len(samples), 2*frames)
	}

	out := filepath.Join(dir, "song.wav")
	if err := WriteWAVFile(out, samples, c.SampleRate); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("invalid wav file")
	}
	if dec.SampleRate != 22050 || dec.NumChans != 2 || dec.BitDepth != 16 {
		t.Fatalf("format = %d Hz, %d channels, %d bits", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if len(buf.Data) != 2*frames {
		t.Fatalf("pcm samples = %d, want %d", len(buf.Data), 2*frames)
	}
	peak := 0
	for i, v := range buf.Data {
		if v != ToInt16(samples[i]) {
			t.Fatalf("pcm[%d] = %d, want %d", i, v, ToInt16(samples[i]))
		}
		peak = max(peak, v)
	}
	if peak == 0 {
		t.Fatal("rendered song is silent")
	}
}

func TestRenderRoutesByInstrumentName(t *testing.T) {
	dir := bankDir(t)
	lib := NewLibrary(filepath.Join(dir, "default.sf2"), dir, quietLogger())
	render := func(instrument string) []float32 {
		mid := filepath.Join(t.TempDir(), "song.mid")
		writeSong(t, mid, instrument)
		samples, err := RenderFile(context.Background(), mid, lib, WithSampleRate(22050))
		if err != nil {
			t.Fatalf("render %q: %v", instrument, err)
		}
		return samples
	}
	def := render("")
	organ := render("ORGAN.SF2")
	missing := render("missing.sf2")
	// Both banks hold the same sample, so routing must not change the audio.
	if !slices.Equal(def, organ) || !slices.Equal(def, missing) {
		t.Fatal("renders differ")
	}
}

func TestLibraryMixer(t *testing.T) {
	dir := bankDir(t)
	lib := NewLibrary(filepath.Join(dir, "default.sf2"), dir, quietLogger())
	tests := []struct {
		name  string
		names []string
		want  []string
	}{
		{"empty song", nil, []string{""}},
		{"named bank", []string{"ORGAN.SF2"}, []string{"ORGAN.SF2"}},
		{"default and named", []string{"", "ORGAN.SF2"}, []string{"", "ORGAN.SF2"}},
		{"missing bank", []string{"missing.sf2"}, []string{""}},
		{"outside the directory", []string{"../default.sf2"}, []string{""}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := lib.Mixer(tc.names, 22050, config.Default().EngineParams())
			if err != nil {
				t.Fatal(err)
			}
			got := m.Names()
			if len(got) != len(tc.want) {
				t.Fatalf("modules = %q, want %q", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("modules = %q, want %q", got, tc.want)
				}
			}
		})
	}

	a, err := lib.Bank("ORGAN.SF2")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := lib.Bank("ORGAN.SF2")
	if a != b {
		t.Fatal("bank loaded twice")
	}
}

func TestLibraryWithoutDefault(t *testing.T) {
	lib := NewLibrary("", "", quietLogger())
	if _, err := lib.Mixer([]string{""}, 22050, config.Default().EngineParams()); err == nil {
		t.Fatal("expected an error without a default bank")
	}
	bank, err := sftest.Simple().Load()
	if err != nil {
		t.Fatal(err)
	}
	lib.Add("", bank)
	if got, err := lib.Default(); err != nil || got != bank {
		t.Fatalf("default = %v, %v", got, err)
	}
}

func TestDirectoryInfo(t *testing.T) {
	dir := bankDir(t)
	info, err := DirectoryInfo(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(info) != 2 {
		t.Fatalf("entries = %d, want 2", len(info))
	}
	if got := info["ORGAN.SF2"]; got.Name != "organ" || len(got.Presets) != 1 || got.Presets[0].Name != "Organ" {
		t.Fatalf("organ = %+v", got)
	}
	if got := info["default.sf2"].Version; got != "2.1" {
		t.Fatalf("version = %q", got)
	}
}

func TestToInt16(t *testing.T) {
	tests := []struct {
		in   float32
		want int
	}{
		{0, 0},
		{0.5, 16384},
		{-0.5, -16384},
		{1, 32767},
		{-1, -32768},
		{3, 32767},
		{-3, -32768},
		{0.00002, 0},
	}
	for _, tc := range tests {
		if got := ToInt16(tc.in); got != tc.want {
			t.Errorf("ToInt16(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
