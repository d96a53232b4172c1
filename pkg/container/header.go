package container

import (
	"fmt"

	"github.com/goopsie/catpack/pkg/stream"
)

// Child describes one entry of a header's offset/size table, both measured
// absolutely from stream start.
type Child struct {
	Offset int64
	Size   int64
}

// Header is the decoded form of the two-part container header (§3.2).
type Header struct {
	Start       int64 // absolute position of Part 1's first byte
	Version     uint32
	HeaderSize  uint32
	ContentSize uint32
	Format      uint32
	Alignment   uint32
	Children    []Child

	// byteZero is the absolute position immediately after Part 1, from
	// which child offsets in the on-disk table are measured.
	byteZero int64
}

// End returns the absolute byte position immediately after this container,
// per header_size + content_size == end - start.
func (h *Header) End() int64 {
	return h.Start + int64(h.HeaderSize) + int64(h.ContentSize)
}

// ParseHeader reads a two-part container header starting at the reader's
// current position.
func ParseHeader(r *stream.Reader, path string) (*Header, error) {
	start := r.Pos()

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, ioErr(path, start, err)
	}
	if magic != 1 {
		return nil, malformedHeader(path, start, fmt.Sprintf("magic = %d, want 1", magic))
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return nil, ioErr(path, r.Pos(), err)
	}
	if version >= 3 {
		return nil, malformedHeader(path, start, fmt.Sprintf("version %d >= 3", version))
	}
	reserved1, err := r.ReadU32LE()
	if err != nil {
		return nil, ioErr(path, r.Pos(), err)
	}
	if reserved1 != 0 {
		return nil, malformedHeader(path, start, "reserved word after version is non-zero")
	}
	headerSize, err := r.ReadU32LE()
	if err != nil {
		return nil, ioErr(path, r.Pos(), err)
	}
	if headerSize == 0 {
		headerSize = 256
	}
	if headerSize < 32 {
		return nil, malformedHeader(path, start, fmt.Sprintf("header_size %d < 32", headerSize))
	}
	contentSize, err := r.ReadU32LE()
	if err != nil {
		return nil, ioErr(path, r.Pos(), err)
	}

	// Part 1 is padded to header_size bytes from the container start;
	// advance past that padding to reach Part 2.
	if err := r.Seek(start + int64(headerSize)); err != nil {
		return nil, ioErr(path, r.Pos(), err)
	}
	byteZero := r.Pos()

	reserved2, err := r.ReadU32LE()
	if err != nil {
		return nil, ioErr(path, r.Pos(), err)
	}
	if reserved2 != 0 {
		return nil, malformedHeader(path, start, "reserved word before child_count is non-zero")
	}
	childCount, err := r.ReadU32LE()
	if err != nil {
		return nil, ioErr(path, r.Pos(), err)
	}
	format, err := r.ReadU32LE()
	if err != nil {
		return nil, ioErr(path, r.Pos(), err)
	}
	alignment, err := r.ReadU32LE()
	if err != nil {
		return nil, ioErr(path, r.Pos(), err)
	}
	if alignment == 0 {
		return nil, malformedHeader(path, start, "alignment is 0")
	}
	reserved3, err := r.ReadU32LE()
	if err != nil {
		return nil, ioErr(path, r.Pos(), err)
	}
	if reserved3 != 0 {
		return nil, malformedHeader(path, start, "reserved word after alignment is non-zero")
	}

	// On-disk order is off[0..N) followed by size[0..N) (§3.2, resolved per
	// the Part-2 layout open question).
	offs := make([]uint32, childCount)
	for i := range offs {
		v, err := r.ReadU32LE()
		if err != nil {
			return nil, ioErr(path, r.Pos(), err)
		}
		offs[i] = v
	}
	sizes := make([]uint32, childCount)
	for i := range sizes {
		v, err := r.ReadU32LE()
		if err != nil {
			return nil, ioErr(path, r.Pos(), err)
		}
		sizes[i] = v
	}

	if err := r.AlignRead(alignment); err != nil {
		return nil, ioErr(path, r.Pos(), err)
	}

	children := make([]Child, childCount)
	for i := range children {
		children[i] = Child{
			Offset: byteZero + int64(offs[i]),
			Size:   int64(sizes[i]),
		}
	}

	return &Header{
		Start:       start,
		Version:     version,
		HeaderSize:  headerSize,
		ContentSize: contentSize,
		Format:      format,
		Alignment:   alignment,
		Children:    children,
		byteZero:    byteZero,
	}, nil
}

// HeaderPlaceholders records the absolute byte positions of fields that must
// be patched once a container's children have been written.
type HeaderPlaceholders struct {
	ContentSizePos int64
	ChildCountPos  int64
	ChildTablePos  int64 // start of the off[]/size[] table
	ByteZero       int64
}

// EmitHeaderParams configures EmitHeader.
type EmitHeaderParams struct {
	Version    uint32
	HeaderSize uint32
	Format     uint32
	Alignment  uint32
	ChildCount uint32
}

// EmitHeader writes a container header with zeroed placeholders for
// content_size, child_count (already known here, but the table entries are
// still placeholders) and the offset/size table, returning their absolute
// positions so the caller can patch them after children are written.
func EmitHeader(w *stream.Writer, p EmitHeaderParams) (*HeaderPlaceholders, error) {
	start := w.Pos()

	if err := w.WriteU32LE(1); err != nil {
		return nil, err
	}
	if err := w.WriteU32LE(p.Version); err != nil {
		return nil, err
	}
	if err := w.WriteU32LE(0); err != nil {
		return nil, err
	}
	if err := w.WriteU32LE(p.HeaderSize); err != nil {
		return nil, err
	}
	contentSizePos := w.Pos()
	if err := w.WriteU32LE(0); err != nil {
		return nil, err
	}

	if err := w.WriteU8N(0x00, int(int64(p.HeaderSize)-(w.Pos()-start))); err != nil {
		return nil, err
	}
	byteZero := w.Pos()

	if err := w.WriteU32LE(0); err != nil {
		return nil, err
	}
	childCountPos := w.Pos()
	if err := w.WriteU32LE(p.ChildCount); err != nil {
		return nil, err
	}
	if err := w.WriteU32LE(p.Format); err != nil {
		return nil, err
	}
	if err := w.WriteU32LE(p.Alignment); err != nil {
		return nil, err
	}
	if err := w.WriteU32LE(0); err != nil {
		return nil, err
	}

	childTablePos := w.Pos()
	if err := w.WriteU8N(0x00, int(p.ChildCount)*8); err != nil {
		return nil, err
	}

	if err := w.AlignWrite(p.Alignment); err != nil {
		return nil, err
	}

	return &HeaderPlaceholders{
		ContentSizePos: contentSizePos,
		ChildCountPos:  childCountPos,
		ChildTablePos:  childTablePos,
		ByteZero:       byteZero,
	}, nil
}

// PatchHeader writes the final content_size and child offset/size table once
// children have been written and their absolute positions are known. end is
// the absolute position immediately after the container's last byte.
func PatchHeader(w *stream.Writer, ph *HeaderPlaceholders, end int64, children []Child) error {
	resume := w.Pos()

	if err := w.Seek(ph.ContentSizePos); err != nil {
		return err
	}
	// header_size + content_size == end - start, and header_size is the gap
	// between start and byteZero by construction, so content_size reduces to
	// end - byteZero.
	contentSize := uint32(end - ph.ByteZero)
	if err := w.WriteU32LE(contentSize); err != nil {
		return err
	}

	if err := w.Seek(ph.ChildTablePos); err != nil {
		return err
	}
	for _, c := range children {
		if err := w.WriteU32LE(uint32(c.Offset - ph.ByteZero)); err != nil {
			return err
		}
	}
	for _, c := range children {
		if err := w.WriteU32LE(uint32(c.Size)); err != nil {
			return err
		}
	}

	return w.Seek(resume)
}
