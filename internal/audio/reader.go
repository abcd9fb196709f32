// Package audio plays a sample source through ebiten or oto.
package audio

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
)

const bytesPerFrame = 8 // two float32 channels

// SampleSource fills dst with interleaved stereo frames.
type SampleSource interface {
	Process(dst []float32) error
}

// FinishingSource reports when it has nothing more to play. The reader
// returns io.EOF together with the last block.
type FinishingSource interface {
	SampleSource
	Finished() bool
}

// StreamReader pulls whole frames from a source and encodes them as
// little-endian float32, the layout both backends consume.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	block  []float32
	frames int64
	err    error
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}

	n := len(p) / bytesPerFrame
	if n == 0 {
		return 0, nil
	}
	if cap(r.block) < 2*n {
		r.block = make([]float32, 2*n)
	}
	block := r.block[:2*n]
	if err := r.source.Process(block); err != nil {
		r.err = err
		return 0, err
	}
	for i, v := range block {
		binary.LittleEndian.PutUint32(p[4*i:], math.Float32bits(v))
	}
	r.frames += int64(n)

	if fs, ok := r.source.(FinishingSource); ok && fs.Finished() {
		r.err = io.EOF
	}
	return n * bytesPerFrame, r.err
}

// Frames is the number of frames handed to the backend so far.
func (r *StreamReader) Frames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close makes later reads fail with io.ErrClosedPipe.
func (r *StreamReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = io.ErrClosedPipe
	}
	return nil
}
