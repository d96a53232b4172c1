package stream

import (
	"bytes"
	"io"
	"testing"
)

// seekableBuffer adapts a growable byte slice into an io.ReadWriteSeeker for
// tests.
type seekableBuffer struct {
	buf []byte
	pos int64
}

func (s *seekableBuffer) Read(p []byte) (int, error) {
	if s.pos >= int64(len(s.buf)) {
		return 0, io.EOF
	}
	n := copy(p, s.buf[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *seekableBuffer) Write(p []byte) (int, error) {
	end := s.pos + int64(len(p))
	if end > int64(len(s.buf)) {
		grown := make([]byte, end)
		copy(grown, s.buf)
		s.buf = grown
	}
	n := copy(s.buf[s.pos:end], p)
	s.pos += int64(n)
	return n, nil
}

func (s *seekableBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.pos + offset
	case io.SeekEnd:
		abs = int64(len(s.buf)) + offset
	}
	s.pos = abs
	return abs, nil
}

func TestReaderPeekLeavesCursor(t *testing.T) {
	src := &seekableBuffer{buf: []byte{0x01, 0x00, 0x00, 0x00, 0xAA, 0xBB, 0xCC, 0xDD}}
	r, err := NewReader(src)
	if err != nil {
		t.Fatal(err)
	}
	peeked, err := r.PeekU32LE()
	if err != nil {
		t.Fatal(err)
	}
	if peeked != 1 {
		t.Fatalf("peek = %d, want 1", peeked)
	}
	if r.Pos() != 0 {
		t.Fatalf("pos after peek = %d, want 0", r.Pos())
	}
	v, err := r.ReadU32LE()
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Fatalf("read = %d, want 1", v)
	}
	if r.Pos() != 4 {
		t.Fatalf("pos after read = %d, want 4", r.Pos())
	}
}

func TestAlignReadWrite(t *testing.T) {
	t.Run("align to boundary", func(t *testing.T) {
		src := &seekableBuffer{buf: make([]byte, 20)}
		r, err := NewReader(src)
		if err != nil {
			t.Fatal(err)
		}
		if err := r.SeekRel(3); err != nil {
			t.Fatal(err)
		}
		if err := r.AlignRead(16); err != nil {
			t.Fatal(err)
		}
		if r.Pos() != 16 {
			t.Fatalf("pos = %d, want 16", r.Pos())
		}
	})

	t.Run("align zero is error", func(t *testing.T) {
		src := &seekableBuffer{buf: make([]byte, 4)}
		r, _ := NewReader(src)
		if err := r.AlignRead(0); err == nil {
			t.Fatal("expected error for align(0)")
		}
	})

	t.Run("write pads with zero bytes", func(t *testing.T) {
		dst := &seekableBuffer{}
		w, err := NewWriter(dst)
		if err != nil {
			t.Fatal(err)
		}
		if err := w.WriteBytes([]byte{0xFF, 0xFF, 0xFF}); err != nil {
			t.Fatal(err)
		}
		if err := w.AlignWrite(16); err != nil {
			t.Fatal(err)
		}
		if w.Pos() != 16 {
			t.Fatalf("pos = %d, want 16", w.Pos())
		}
		for i, b := range dst.buf[3:16] {
			if b != 0x00 {
				t.Fatalf("pad byte %d = %x, want 0x00", i, b)
			}
		}
	})
}

func TestWriterSeekAndPatch(t *testing.T) {
	dst := &seekableBuffer{}
	w, err := NewWriter(dst)
	if err != nil {
		t.Fatal(err)
	}
	placeholder := w.Pos()
	if err := w.WriteU32LE(0); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteBytes([]byte{0x11, 0x22, 0x33, 0x44}); err != nil {
		t.Fatal(err)
	}
	end := w.Pos()

	if err := w.Seek(placeholder); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteU32LE(0xDEADBEEF); err != nil {
		t.Fatal(err)
	}
	if err := w.Seek(end); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(dst.buf[:4], []byte{0xEF, 0xBE, 0xAD, 0xDE}) {
		t.Fatalf("patched bytes = %x", dst.buf[:4])
	}
}
