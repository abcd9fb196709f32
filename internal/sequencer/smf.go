package sequencer

import (
	"io"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/sfsynth-go/internal/engine"
)

// TicksPerQuarter is the resolution event ticks are normalized to.
const TicksPerQuarter = 480

var ErrTimeFormat = errors.New("sequencer: SMPTE time format is not supported")

// Event is one channel message routed to a named module.
type Event struct {
	// Tick is the position at TicksPerQuarter resolution.
	Tick int64
	// Time is the position after applying the tempo map.
	Time   time.Duration
	Module string
	Msg    engine.Message
}

// Song is a time-ordered event list.
type Song struct {
	Events []Event
}

// NewSong sorts events by tick, keeping the given order for equal ticks.
func NewSong(events []Event) *Song {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Tick < events[j].Tick })
	return &Song{Events: events}
}

// Duration is the time of the last event.
func (s *Song) Duration() time.Duration {
	if len(s.Events) == 0 {
		return 0
	}
	return s.Events[len(s.Events)-1].Time
}

// Modules lists the distinct module names in sorted order.
func (s *Song) Modules() []string {
	seen := map[string]bool{}
	var names []string
	for _, ev := range s.Events {
		if !seen[ev.Module] {
			seen[ev.Module] = true
			names = append(names, ev.Module)
		}
	}
	sort.Strings(names)
	return names
}

// ReadSMF reads a standard MIDI file. An instrument name meta event routes
// the rest of its track to the module of that name; events before it go to
// the default module "". Meta and system messages are dropped.
func ReadSMF(r io.Reader) (*Song, error) {
	f, err := smf.ReadFrom(r)
	if err != nil {
		return nil, errors.Wrap(err, "read smf")
	}
	mt, ok := f.TimeFormat.(smf.MetricTicks)
	if !ok || mt.Resolution() == 0 {
		return nil, errors.WithStack(ErrTimeFormat)
	}
	res := int64(mt.Resolution())

	tempo := newTempoMap(res)
	for _, tr := range f.Tracks {
		var abs int64
		for _, ev := range tr {
			abs += int64(ev.Delta)
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) {
				tempo.add(abs, bpm)
			}
		}
	}
	tempo.build()

	var events []Event
	for _, tr := range f.Tracks {
		var abs int64
		module := ""
		for _, ev := range tr {
			abs += int64(ev.Delta)
			if ev.Message.IsMeta() {
				var name string
				if ev.Message.GetMetaInstrument(&name) {
					module = name
				}
				continue
			}
			msg, ok := engine.FromMIDI(midi.Message(ev.Message))
			if !ok {
				continue
			}
			events = append(events, Event{
				Tick:   abs * TicksPerQuarter / res,
				Time:   tempo.at(abs),
				Module: module,
				Msg:    msg,
			})
		}
	}
	return NewSong(events), nil
}

func ReadSMFFile(path string) (*Song, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSMF(f)
}
