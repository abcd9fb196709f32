package riff

import (
	"bytes"
	"encoding/binary"
	"io"
	"runtime"
	"testing"

	"github.com/pkg/errors"
)

func sampleTree() *Group {
	return &Group{
		Type: NewID("sfbk"),
		Chunks: []Chunk{
			&Group{Type: NewID("INFO"), Chunks: []Chunk{
				&Data{ID: NewID("ifil"), Data: []byte{2, 0, 1, 0}},
				&Data{ID: NewID("INAM"), Data: []byte("odd")},
			}},
			&DataRef{ID: NewID("smpl"), Get: func() []byte { return []byte{1, 2, 3, 4, 5} }},
		},
	}
}

func TestEncodePadsOddChunks(t *testing.T) {
	b, err := Encode(sampleTree())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(b)%2 != 0 {
		t.Fatalf("encoded length %d is odd", len(b))
	}
	if got := binary.LittleEndian.Uint32(b[4:8]); int(got) != len(b)-8 {
		t.Fatalf("root size = %d, want %d", got, len(b)-8)
	}
	// INAM header must carry the unpadded length.
	i := bytes.Index(b, []byte("INAM"))
	if i < 0 {
		t.Fatal("INAM chunk missing")
	}
	if got := binary.LittleEndian.Uint32(b[i+4 : i+8]); got != 3 {
		t.Fatalf("INAM size = %d, want 3", got)
	}
	if b[i+8+3] != 0 {
		t.Fatalf("pad byte = %d, want 0", b[i+8+3])
	}
}

func TestReadRoundTrip(t *testing.T) {
	b, err := Encode(sampleTree())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	root, err := Read(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if root.Type.String() != "sfbk" || len(root.Chunks) != 2 {
		t.Fatalf("unexpected root %s with %d chunks", root.Type, len(root.Chunks))
	}
	info, ok := root.Chunks[0].(*Group)
	if !ok || info.Type.String() != "INFO" || len(info.Chunks) != 2 {
		t.Fatalf("unexpected INFO group: %#v", root.Chunks[0])
	}
	name := info.Chunks[1].(*Data)
	if string(name.Data) != "odd" {
		t.Fatalf("INAM = %q, want odd", name.Data)
	}
	smpl := root.Chunks[1].(*Data)
	if !bytes.Equal(smpl.Data, []byte{1, 2, 3, 4, 5}) {
		t.Fatalf("smpl = %v", smpl.Data)
	}
	again, err := Encode(root)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if !bytes.Equal(b, again) {
		t.Fatal("re-encoded bytes differ")
	}
}

type pathRecorder struct {
	stack []string
	paths []string
}

func (p *pathRecorder) BeginGroup(h ListHeader) error {
	p.stack = append(p.stack, h.Type.String())
	return nil
}

func (p *pathRecorder) EndGroup() error {
	p.stack = p.stack[:len(p.stack)-1]
	return nil
}

func (p *pathRecorder) Leaf(h Header, r io.Reader) error {
	path := ""
	for _, s := range p.stack {
		path += s + "/"
	}
	p.paths = append(p.paths, path+h.ID.String())
	// Leave the payload unread; Walk must skip it.
	return nil
}

func TestWalkReportsPaths(t *testing.T) {
	b, err := Encode(sampleTree())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	rec := &pathRecorder{}
	if err := Walk(bytes.NewReader(b), rec); err != nil {
		t.Fatalf("walk: %v", err)
	}
	want := []string{"sfbk/INFO/ifil", "sfbk/INFO/INAM", "sfbk/smpl"}
	if len(rec.paths) != len(want) {
		t.Fatalf("paths = %v, want %v", rec.paths, want)
	}
	for i := range want {
		if rec.paths[i] != want[i] {
			t.Errorf("path[%d] = %s, want %s", i, rec.paths[i], want[i])
		}
	}
}

func TestWalkErrors(t *testing.T) {
	valid, err := Encode(sampleTree())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	notRIFF := append([]byte("RIFX"), valid[4:]...)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrChunkSize},
		{"not riff", notRIFF, ErrNotRIFF},
		{"truncated", valid[:len(valid)-3], ErrChunkSize},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Read(bytes.NewReader(tc.data))
			if errors.Cause(err) != tc.want {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func header(id string, size uint32) []byte {
	b := append([]byte(id), 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(b[4:], size)
	return b
}

// hugeLeaf is a 36-byte file whose smpl header claims almost 4 GiB.
func hugeLeaf(riffSize, listSize uint32) []byte {
	var b []byte
	b = append(b, header("RIFF", riffSize)...)
	b = append(b, "sfbk"...)
	b = append(b, header("LIST", listSize)...)
	b = append(b, "sdta"...)
	b = append(b, header("smpl", 0xFFFFFE00)...)
	return append(b, 1, 2, 3, 4)
}

func TestOversizedChunk(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"larger than parent", hugeLeaf(28, 16)},
		{"larger than file", hugeLeaf(0xFFFFFFF0, 0xFFFFFFE0)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)
			_, err := Read(bytes.NewReader(tc.data))
			runtime.ReadMemStats(&after)
			if errors.Cause(err) != ErrChunkSize {
				t.Fatalf("err = %v, want ErrChunkSize", err)
			}
			if grew := after.TotalAlloc - before.TotalAlloc; grew > 1<<20 {
				t.Fatalf("allocated %d bytes for a %d byte file", grew, len(tc.data))
			}
		})
	}
}
