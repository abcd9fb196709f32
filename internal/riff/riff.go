// Package riff reads and writes nested RIFF containers.
package riff

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

var (
	ErrNotRIFF      = errors.New("riff: missing RIFF header")
	ErrChunkSize    = errors.New("riff: chunk size error")
	ErrSizeOverflow = errors.New("riff: chunk size overflow")
)

// ID is a four character chunk identifier.
type ID [4]byte

func NewID(s string) ID {
	var id ID
	copy(id[:], s)
	return id
}

func (id ID) String() string { return string(id[:]) }

var (
	idRIFF = NewID("RIFF")
	idLIST = NewID("LIST")
)

// Header is the fixed eight byte prefix of every chunk.
type Header struct {
	ID   ID
	Size uint32
}

// ListHeader is a RIFF or LIST header followed by its form type.
type ListHeader struct {
	Header
	Type ID
}

// Visitor receives callbacks while Walk descends the container.
// Leaf may read any prefix of r; the remainder is skipped.
type Visitor interface {
	BeginGroup(h ListHeader) error
	EndGroup() error
	Leaf(h Header, r io.Reader) error
}

// Walk reads a RIFF container from r and reports every group and leaf to v.
func Walk(r io.Reader, v Visitor) error {
	root, err := readHeader(r)
	if err != nil {
		return err
	}
	if root.ID != idRIFF {
		return errors.Wrapf(ErrNotRIFF, "got %q", root.ID.String())
	}
	_, err = walkGroup(r, root, v)
	return err
}

func readHeader(r io.Reader) (Header, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, errors.Wrap(ErrChunkSize, "reading chunk header")
	}
	var h Header
	copy(h.ID[:], buf[:4])
	h.Size = binary.LittleEndian.Uint32(buf[4:])
	return h, nil
}

// walkGroup consumes the body of a RIFF/LIST chunk and returns the bytes read.
func walkGroup(r io.Reader, h Header, v Visitor) (uint64, error) {
	lh := ListHeader{Header: h}
	if _, err := io.ReadFull(r, lh.Type[:]); err != nil {
		return 0, errors.Wrapf(ErrChunkSize, "reading %s type", h.ID)
	}
	read := uint64(len(lh.Type))
	if err := v.BeginGroup(lh); err != nil {
		return read, err
	}
	for read < uint64(h.Size) {
		ch, err := readHeader(r)
		if err != nil {
			return read, errors.Wrapf(err, "inside %s", lh.Type)
		}
		read += 8
		if read+uint64(ch.Size) > uint64(h.Size) {
			return read, errors.Wrapf(ErrChunkSize, "chunk %s/%s claims %d bytes in a %d byte %s", lh.Type, ch.ID, ch.Size, h.Size, h.ID)
		}
		if ch.ID == idLIST {
			n, err := walkGroup(r, ch, v)
			read += n
			if err != nil {
				return read, err
			}
			continue
		}
		lr := &io.LimitedReader{R: r, N: int64(ch.Size)}
		if err := v.Leaf(ch, lr); err != nil {
			return read, err
		}
		if lr.N > 0 {
			if _, err := io.Copy(io.Discard, lr); err != nil || lr.N > 0 {
				return read, errors.Wrapf(ErrChunkSize, "chunk %s/%s truncated", lh.Type, ch.ID)
			}
		}
		read += uint64(ch.Size)
		if ch.Size%2 == 1 {
			var pad [1]byte
			if _, err := io.ReadFull(r, pad[:]); err != nil {
				return read, errors.Wrapf(ErrChunkSize, "chunk %s/%s missing pad byte", lh.Type, ch.ID)
			}
			read++
		}
	}
	if err := v.EndGroup(); err != nil {
		return read, err
	}
	return read, nil
}

// Chunk is one node of an in-memory container tree: *Group, *Data or *DataRef.
type Chunk interface {
	size() uint64
	write(w io.Writer) error
}

// Group is a LIST (or, at the root, RIFF) chunk.
type Group struct {
	Type   ID
	Chunks []Chunk
}

// Data is a leaf chunk that owns its payload.
type Data struct {
	ID   ID
	Data []byte
}

// DataRef is a leaf chunk whose payload is produced on demand.
type DataRef struct {
	ID  ID
	Get func() []byte
}

func (g *Group) size() uint64 {
	n := uint64(4)
	for _, c := range g.Chunks {
		n += 8 + c.size()
	}
	return n
}

func (d *Data) size() uint64    { return padded(len(d.Data)) }
func (d *DataRef) size() uint64 { return padded(len(d.Get())) }

func padded(n int) uint64 { return uint64(n + n%2) }

func (g *Group) write(w io.Writer) error {
	return g.writeAs(w, idLIST)
}

func (g *Group) writeAs(w io.Writer, id ID) error {
	n := g.size()
	if n > math.MaxUint32 {
		return errors.Wrapf(ErrSizeOverflow, "group %s", g.Type)
	}
	if err := writeHeader(w, id, uint32(n)); err != nil {
		return err
	}
	if _, err := w.Write(g.Type[:]); err != nil {
		return err
	}
	for _, c := range g.Chunks {
		if err := c.write(w); err != nil {
			return err
		}
	}
	return nil
}

func (d *Data) write(w io.Writer) error    { return writeLeaf(w, d.ID, d.Data) }
func (d *DataRef) write(w io.Writer) error { return writeLeaf(w, d.ID, d.Get()) }

func writeLeaf(w io.Writer, id ID, data []byte) error {
	if uint64(len(data)) > math.MaxUint32 {
		return errors.Wrapf(ErrSizeOverflow, "chunk %s", id)
	}
	// The header carries the unpadded length.
	if err := writeHeader(w, id, uint32(len(data))); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if len(data)%2 == 1 {
		_, err := w.Write([]byte{0})
		return err
	}
	return nil
}

func writeHeader(w io.Writer, id ID, size uint32) error {
	var buf [8]byte
	copy(buf[:4], id[:])
	binary.LittleEndian.PutUint32(buf[4:], size)
	_, err := w.Write(buf[:])
	return err
}

// Write serializes root as a RIFF container.
func Write(w io.Writer, root *Group) error {
	return root.writeAs(w, idRIFF)
}

// Encode is Write into a fresh byte slice.
func Encode(root *Group) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Read loads a whole container into memory.
func Read(r io.Reader) (*Group, error) {
	b := &treeBuilder{}
	if err := Walk(r, b); err != nil {
		return nil, err
	}
	if b.root == nil {
		return nil, ErrNotRIFF
	}
	return b.root, nil
}

type treeBuilder struct {
	root  *Group
	stack []*Group
}

func (b *treeBuilder) BeginGroup(h ListHeader) error {
	g := &Group{Type: h.Type}
	if len(b.stack) == 0 {
		b.root = g
	} else {
		parent := b.stack[len(b.stack)-1]
		parent.Chunks = append(parent.Chunks, g)
	}
	b.stack = append(b.stack, g)
	return nil
}

func (b *treeBuilder) EndGroup() error {
	b.stack = b.stack[:len(b.stack)-1]
	return nil
}

func (b *treeBuilder) Leaf(h Header, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil || len(data) != int(h.Size) {
		return errors.Wrapf(ErrChunkSize, "chunk %s", h.ID)
	}
	parent := b.stack[len(b.stack)-1]
	parent.Chunks = append(parent.Chunks, &Data{ID: h.ID, Data: data})
	return nil
}
