package sfsynth

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	intaudio "github.com/cbegin/sfsynth-go/internal/audio"
	"github.com/cbegin/sfsynth-go/internal/engine"
	"github.com/cbegin/sfsynth-go/internal/sequencer"
	"github.com/cbegin/sfsynth-go/internal/sftest"
)

func TestPlayerMasterVolumeRuntimeAPI(t *testing.T) {
	pl, err := NewPlayer(NewLibrary("default.sf2", "", nil))
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	if got := pl.MasterVolume(); got != 1 {
		t.Fatalf("default master volume = %v, want 1", got)
	}
	pl.SetMasterVolume(0.35)
	if got := pl.MasterVolume(); got != 0.35 {
		t.Fatalf("master volume = %v, want 0.35", got)
	}
	pl.SetMasterVolume(-2)
	if got := pl.MasterVolume(); got != 0 {
		t.Fatalf("master volume should clamp to 0, got %v", got)
	}
}

func TestPlayerOptions(t *testing.T) {
	pl, err := NewPlayer(NewLibrary("", "", nil), WithRender(WithSampleRate(22050)))
	if err != nil {
		t.Fatal(err)
	}
	if pl.SampleRate() != 22050 {
		t.Fatalf("sample rate = %d", pl.SampleRate())
	}
	if _, err := NewPlayer(NewLibrary("", "", nil), WithRender(WithSampleRate(0))); err == nil {
		t.Fatal("expected an error for a zero sample rate")
	}
	if _, err := NewPlayer(nil); err == nil {
		t.Fatal("expected an error for a nil library")
	}
}

func TestPlayerIdle(t *testing.T) {
	pl, err := NewPlayer(NewLibrary("", "", nil))
	if err != nil {
		t.Fatal(err)
	}
	if err := pl.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := pl.Wait(); err != nil {
		t.Fatal(err)
	}
	if pl.Position() != 0 {
		t.Fatal("idle player has a position")
	}
}

type fakeOutput struct {
	playing bool
	stopErr error
}

func (o *fakeOutput) Play()           { o.playing = true }
func (o *fakeOutput) Pause()          { o.playing = false }
func (o *fakeOutput) IsPlaying() bool { return o.playing }

func (o *fakeOutput) Stop() error {
	o.playing = false
	return o.stopErr
}

func TestPlayerLogsStopError(t *testing.T) {
	var logs bytes.Buffer
	lib := NewLibrary("", "", log.New(&logs, "", 0))
	bank, err := sftest.Simple().Load()
	if err != nil {
		t.Fatal(err)
	}
	lib.Add("", bank)

	var outputs []*fakeOutput
	pl, err := NewPlayer(lib, WithRender(WithSampleRate(22050)))
	if err != nil {
		t.Fatal(err)
	}
	pl.cfg.open = func(intaudio.Backend, int, intaudio.SampleSource) (intaudio.Output, error) {
		o := &fakeOutput{stopErr: errors.New("device gone")}
		outputs = append(outputs, o)
		return o, nil
	}

	song := sequencer.NewSong([]sequencer.Event{{Msg: engine.NoteOn(0, 69, 100)}})
	for range 2 {
		if err := pl.Play(song); err != nil {
			t.Fatalf("play: %v", err)
		}
	}
	if len(outputs) != 2 || outputs[0].playing || !outputs[1].playing {
		t.Fatalf("outputs = %+v", outputs)
	}
	if !strings.Contains(logs.String(), "[warning] stopping previous song: device gone") {
		t.Fatalf("logs = %q", logs.String())
	}
	if err := pl.Stop(); err == nil {
		t.Fatal("Stop should return the output error")
	}
}
