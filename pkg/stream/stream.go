// Package stream provides the primitive seekable byte-stream operations the
// container codec is built on: little/big-endian word access, non-consuming
// peeks, and alignment padding.
package stream

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Reader is a seekable byte-stream cursor. It never owns the underlying
// stream; callers remain responsible for closing it.
type Reader struct {
	r   io.ReadSeeker
	pos int64
}

// NewReader wraps r, recording the stream's current position as the cursor's
// starting point.
func NewReader(r io.ReadSeeker) (*Reader, error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("stream: get position: %w", err)
	}
	return &Reader{r: r, pos: pos}, nil
}

// Pos returns the cursor's absolute byte position.
func (r *Reader) Pos() int64 {
	return r.pos
}

// Seek moves the cursor to an absolute byte position.
func (r *Reader) Seek(abs int64) error {
	pos, err := r.r.Seek(abs, io.SeekStart)
	if err != nil {
		return fmt.Errorf("stream: seek %d: %w", abs, err)
	}
	r.pos = pos
	return nil
}

// SeekRel moves the cursor by a relative delta.
func (r *Reader) SeekRel(delta int64) error {
	return r.Seek(r.pos + delta)
}

// ReadBytes reads exactly n bytes and advances the cursor.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, fmt.Errorf("stream: read %d bytes at %d: %w", n, r.pos, err)
	}
	r.pos += int64(n)
	return buf, nil
}

// ReadU32LE reads a little-endian u32 and advances the cursor.
func (r *Reader) ReadU32LE() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU32BE reads a big-endian u32 and advances the cursor.
func (r *Reader) ReadU32BE() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// PeekU32LE reads a little-endian u32 without moving the cursor.
func (r *Reader) PeekU32LE() (uint32, error) {
	start := r.pos
	v, err := r.ReadU32LE()
	if err != nil {
		return 0, err
	}
	if seekErr := r.Seek(start); seekErr != nil {
		return 0, seekErr
	}
	return v, nil
}

// PeekU32BE reads a big-endian u32 without moving the cursor.
func (r *Reader) PeekU32BE() (uint32, error) {
	start := r.pos
	v, err := r.ReadU32BE()
	if err != nil {
		return 0, err
	}
	if seekErr := r.Seek(start); seekErr != nil {
		return 0, seekErr
	}
	return v, nil
}

// AlignRead advances the cursor to the next multiple of A (relative to
// stream start). A of 0 is an error.
func (r *Reader) AlignRead(a uint32) error {
	if a == 0 {
		return fmt.Errorf("stream: align(0) is invalid")
	}
	rem := r.pos % int64(a)
	if rem == 0 {
		return nil
	}
	return r.SeekRel(int64(a) - rem)
}

// Writer is a seekable byte-stream cursor for emission.
type Writer struct {
	w   io.WriteSeeker
	pos int64
}

// NewWriter wraps w, recording the stream's current position as the
// cursor's starting point.
func NewWriter(w io.WriteSeeker) (*Writer, error) {
	pos, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("stream: get position: %w", err)
	}
	return &Writer{w: w, pos: pos}, nil
}

// Pos returns the cursor's absolute byte position.
func (w *Writer) Pos() int64 {
	return w.pos
}

// Seek moves the cursor to an absolute byte position, for patching
// previously-written placeholders.
func (w *Writer) Seek(abs int64) error {
	pos, err := w.w.Seek(abs, io.SeekStart)
	if err != nil {
		return fmt.Errorf("stream: seek %d: %w", abs, err)
	}
	w.pos = pos
	return nil
}

// WriteBytes writes p and advances the cursor.
func (w *Writer) WriteBytes(p []byte) error {
	n, err := w.w.Write(p)
	if err != nil {
		return fmt.Errorf("stream: write %d bytes at %d: %w", len(p), w.pos, err)
	}
	w.pos += int64(n)
	return nil
}

// WriteU32LE writes a little-endian u32 and advances the cursor.
func (w *Writer) WriteU32LE(v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return w.WriteBytes(b[:])
}

// WriteU8N writes count copies of byte b.
func (w *Writer) WriteU8N(b byte, count int) error {
	if count <= 0 {
		return nil
	}
	buf := make([]byte, count)
	for i := range buf {
		buf[i] = b
	}
	return w.WriteBytes(buf)
}

// AlignWrite pads with 0x00 up to the next multiple of A (relative to
// stream start). A of 0 is an error.
func (w *Writer) AlignWrite(a uint32) error {
	if a == 0 {
		return fmt.Errorf("stream: align(0) is invalid")
	}
	rem := w.pos % int64(a)
	if rem == 0 {
		return nil
	}
	return w.WriteU8N(0x00, int(int64(a)-rem))
}
