package sequencer

import (
	"sort"
	"time"
)

const defaultBPM = 120

type tempoChange struct {
	tick int64
	bpm  float64
	at   time.Duration
}

// tempoMap converts absolute ticks to time. Changes are gathered from every
// track; a change at the same tick as an earlier one replaces it.
type tempoMap struct {
	resolution int64
	changes    []tempoChange
}

func newTempoMap(resolution int64) *tempoMap {
	return &tempoMap{resolution: resolution}
}

func (m *tempoMap) add(tick int64, bpm float64) {
	if bpm <= 0 {
		return
	}
	m.changes = append(m.changes, tempoChange{tick: tick, bpm: bpm})
}

// build sorts the changes and precomputes the time of each one.
func (m *tempoMap) build() {
	sort.SliceStable(m.changes, func(i, j int) bool { return m.changes[i].tick < m.changes[j].tick })
	out := m.changes[:0]
	for _, c := range m.changes {
		if n := len(out); n > 0 && out[n-1].tick == c.tick {
			out[n-1].bpm = c.bpm
			continue
		}
		out = append(out, c)
	}
	m.changes = out
	tick, bpm, at := int64(0), float64(defaultBPM), time.Duration(0)
	for i := range m.changes {
		c := &m.changes[i]
		c.at = at + m.span(c.tick-tick, bpm)
		tick, bpm, at = c.tick, c.bpm, c.at
	}
}

func (m *tempoMap) span(ticks int64, bpm float64) time.Duration {
	sec := float64(ticks) / float64(m.resolution) * 60 / bpm
	return time.Duration(sec * float64(time.Second))
}

// at returns the time of tick.
func (m *tempoMap) at(tick int64) time.Duration {
	i := sort.Search(len(m.changes), func(i int) bool { return m.changes[i].tick > tick })
	if i == 0 {
		return m.span(tick, defaultBPM)
	}
	c := m.changes[i-1]
	return c.at + m.span(tick-c.tick, c.bpm)
}
