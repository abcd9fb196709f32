package audio

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"
)

type rampSource struct {
	next     float32
	left     int
	failWith error
}

func (s *rampSource) Process(dst []float32) error {
	if s.failWith != nil {
		return s.failWith
	}
	for i := range dst {
		dst[i] = s.next
		s.next += 0.25
	}
	s.left -= len(dst) / 2
	return nil
}

func (s *rampSource) Finished() bool { return s.left <= 0 }

func TestStreamReaderEncodesFloat32LE(t *testing.T) {
	r := NewStreamReader(&rampSource{left: 100})
	p := make([]byte, 2*8+3)
	n, err := r.Read(p)
	if err != nil {
		t.Fatal(err)
	}
	if n != 16 {
		t.Fatalf("n = %d, want 16", n)
	}
	for i, want := range []float32{0, 0.25, 0.5, 0.75} {
		if got := math.Float32frombits(binary.LittleEndian.Uint32(p[4*i:])); got != want {
			t.Fatalf("sample %d = %v, want %v", i, got, want)
		}
	}
}

func TestStreamReaderEOF(t *testing.T) {
	r := NewStreamReader(&rampSource{left: 2})
	n, err := r.Read(make([]byte, 16))
	if n != 16 || err != io.EOF {
		t.Fatalf("n, err = %d, %v; want 16, EOF", n, err)
	}
	if n, err := r.Read(make([]byte, 16)); n != 0 || err != io.EOF {
		t.Fatalf("read after EOF = %d, %v", n, err)
	}
	if r.Frames() != 2 {
		t.Fatalf("frames = %d, want 2", r.Frames())
	}
}

func TestStreamReaderClose(t *testing.T) {
	r := NewStreamReader(&rampSource{left: 100})
	if _, err := r.Read(make([]byte, 24)); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Read(make([]byte, 24)); err != io.ErrClosedPipe {
		t.Fatalf("err = %v, want ErrClosedPipe", err)
	}
	if r.Frames() != 3 {
		t.Fatalf("frames = %d, want 3", r.Frames())
	}
}

func TestStreamReaderError(t *testing.T) {
	boom := errors.New("boom")
	r := NewStreamReader(&rampSource{failWith: boom})
	for range 2 {
		if _, err := r.Read(make([]byte, 64)); !errors.Is(err, boom) {
			t.Fatalf("err = %v, want boom", err)
		}
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("alsa", 44100, &rampSource{}); err == nil {
		t.Fatal("expected an error")
	}
}
