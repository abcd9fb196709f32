package sequencer

import (
	"context"
	"testing"

	"github.com/cbegin/sfsynth-go/internal/engine"
	"github.com/cbegin/sfsynth-go/internal/sftest"
)

func BenchmarkRenderScale(b *testing.B) {
	bank, err := sftest.Simple().Load()
	if err != nil {
		b.Fatalf("load: %v", err)
	}
	var events []Event
	for i, key := range []uint8{60, 62, 64, 65, 67, 69, 71, 72} {
		events = append(events,
			at(i*125, "", engine.NoteOn(0, key, 100)),
			at(i*125+120, "", engine.NoteOff(0, key)))
	}
	song := NewSong(events)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := NewMixer()
		m.Add("", engine.New(bank, 48000, engine.DefaultParams()))
		if _, err := Render(context.Background(), song, m, 48000, Options{TailSeconds: 1}); err != nil {
			b.Fatal(err)
		}
	}
}
