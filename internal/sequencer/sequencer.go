// Package sequencer turns a timed event list into stereo audio through a
// set of named modules.
package sequencer

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrTimeOverrun = errors.New("sequencer: event time is before the rendered position")
	ErrTooLong     = errors.New("sequencer: song is too long")
	ErrNoModules   = errors.New("sequencer: no modules")
)

const (
	defaultMaxDuration     = 10 * time.Minute
	defaultTailSeconds     = 10
	defaultTrailingSilence = 500 * time.Millisecond
	defaultBlockFrames     = 4096
)

type Options struct {
	// MaxDuration bounds the time of the last event (0 = 10 minutes).
	MaxDuration time.Duration
	// TailSeconds bounds how long modules may ring after the last event.
	// The tail is rendered one second at a time until every module is
	// silent (0 = 10, negative = no tail).
	TailSeconds int
	// TrailingSilence is appended after the tail (0 = 0.5 s, negative = none).
	TrailingSilence time.Duration
	// BlockFrames is the block size used by Render (0 = 4096).
	BlockFrames int
}

func (o Options) withDefaults() Options {
	if o.MaxDuration <= 0 {
		o.MaxDuration = defaultMaxDuration
	}
	switch {
	case o.TailSeconds == 0:
		o.TailSeconds = defaultTailSeconds
	case o.TailSeconds < 0:
		o.TailSeconds = 0
	}
	switch {
	case o.TrailingSilence == 0:
		o.TrailingSilence = defaultTrailingSilence
	case o.TrailingSilence < 0:
		o.TrailingSilence = 0
	}
	if o.BlockFrames <= 0 {
		o.BlockFrames = defaultBlockFrames
	}
	return o
}

type stage int

const (
	stageLead stage = iota
	stageEvents
	stageTail
	stageSilence
	stageDone
)

// Sequencer streams a song. Output starts with silence up to the first
// event; events sharing a tick are dispatched together before the audio
// that follows them is rendered.
type Sequencer struct {
	song       *Song
	mixer      *Mixer
	sampleRate int
	opts       Options

	stage stage
	next  int
	pos   int64
	until int64
	tail  int
}

func New(song *Song, mixer *Mixer, sampleRate int) (*Sequencer, error) {
	return NewWithOptions(song, mixer, sampleRate, Options{})
}

func NewWithOptions(song *Song, mixer *Mixer, sampleRate int, opts Options) (*Sequencer, error) {
	if mixer == nil || mixer.Len() == 0 {
		return nil, errors.WithStack(ErrNoModules)
	}
	opts = opts.withDefaults()
	if d := song.Duration(); d > opts.MaxDuration {
		return nil, errors.Wrapf(ErrTooLong, "%v exceeds %v", d, opts.MaxDuration)
	}
	s := &Sequencer{
		song:       song,
		mixer:      mixer,
		sampleRate: sampleRate,
		opts:       opts,
	}
	if len(song.Events) == 0 {
		s.stage = stageDone
		return s, nil
	}
	s.until = s.frameAt(song.Events[0].Time)
	return s, nil
}

func (s *Sequencer) frameAt(t time.Duration) int64 {
	return int64(t) * int64(s.sampleRate) / int64(time.Second)
}

// Finished reports whether the song, its tail and the trailing silence
// have all been produced.
func (s *Sequencer) Finished() bool { return s.stage == stageDone }

// Position is the amount of audio produced so far.
func (s *Sequencer) Position() time.Duration {
	return time.Duration(s.pos * int64(time.Second) / int64(s.sampleRate))
}

// Frames is the number of frames produced so far.
func (s *Sequencer) Frames() int64 { return s.pos }

// Next fills dst with interleaved stereo frames and returns how many were
// written. It writes fewer than len(dst)/2 frames only at the end.
func (s *Sequencer) Next(dst []float32) (int, error) {
	frames := len(dst) / 2
	done := 0
	for done < frames && s.stage != stageDone {
		if s.pos >= s.until {
			if err := s.advance(); err != nil {
				return done, err
			}
			continue
		}
		n := int(min(int64(frames-done), s.until-s.pos))
		out := dst[2*done : 2*(done+n)]
		switch s.stage {
		case stageLead, stageSilence:
			clear(out)
		default:
			if err := s.mixer.Process(out); err != nil {
				return done, err
			}
		}
		s.pos += int64(n)
		done += n
	}
	return done, nil
}

// Process fills all of dst, padding with silence once finished.
func (s *Sequencer) Process(dst []float32) error {
	n, err := s.Next(dst)
	clear(dst[2*n:])
	return err
}

func (s *Sequencer) advance() error {
	switch s.stage {
	case stageLead, stageEvents:
		if err := s.dispatch(); err != nil {
			return err
		}
		if s.next < len(s.song.Events) {
			target := s.frameAt(s.song.Events[s.next].Time)
			if target < s.pos {
				return errors.Wrapf(ErrTimeOverrun, "event %d at frame %d, position %d", s.next, target, s.pos)
			}
			s.stage = stageEvents
			s.until = target
			return nil
		}
		s.startTail()
	case stageTail:
		s.startTail()
	case stageSilence:
		s.stage = stageDone
	}
	return nil
}

// dispatch sends every event at the next tick.
func (s *Sequencer) dispatch() error {
	events := s.song.Events
	tick := events[s.next].Tick
	for ; s.next < len(events) && events[s.next].Tick == tick; s.next++ {
		ev := events[s.next]
		if err := s.mixer.Handle(ev.Module, ev.Msg); err != nil {
			return errors.Wrapf(err, "tick %d: %s", ev.Tick, ev.Msg)
		}
	}
	return nil
}

func (s *Sequencer) startTail() {
	if s.tail < s.opts.TailSeconds && !s.mixer.Silent() {
		s.tail++
		s.stage = stageTail
		s.until = s.pos + int64(s.sampleRate)
		return
	}
	s.stage = stageSilence
	s.until = s.pos + s.frameAt(s.opts.TrailingSilence)
}

// Render produces the whole song. ctx is checked between blocks.
func Render(ctx context.Context, song *Song, mixer *Mixer, sampleRate int, opts Options) ([]float32, error) {
	s, err := NewWithOptions(song, mixer, sampleRate, opts)
	if err != nil {
		return nil, err
	}
	return s.Render(ctx)
}

// Render drains the sequencer.
func (s *Sequencer) Render(ctx context.Context) ([]float32, error) {
	out := make([]float32, 0, 2*(s.frameAt(s.song.Duration())+int64(s.sampleRate)))
	block := make([]float32, 2*s.opts.BlockFrames)
	for !s.Finished() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := s.Next(block)
		if err != nil {
			return nil, err
		}
		out = append(out, block[:2*n]...)
	}
	return out, nil
}
