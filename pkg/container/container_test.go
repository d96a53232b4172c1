package container

import (
	"bytes"
	"io"
	"testing"

	"github.com/goopsie/catpack/pkg/stream"
)

// seekableBuffer adapts a growable byte slice into an io.ReadWriteSeeker for
// tests, mirroring pkg/stream's test helper.
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

func newWriter(t *testing.T) (*stream.Writer, *seekableBuffer) {
	t.Helper()
	buf := &seekableBuffer{}
	w, err := stream.NewWriter(buf)
	if err != nil {
		t.Fatal(err)
	}
	return w, buf
}

// readerOver snapshots buf's current contents into a fresh read-only
// stream.Reader, avoiding cursor-cache aliasing between a live Writer and
// Reader sharing one seekableBuffer.
func readerOver(t *testing.T, buf *seekableBuffer) *stream.Reader {
	t.Helper()
	r, err := stream.NewReader(bytes.NewReader(buf.buf))
	if err != nil {
		t.Fatal(err)
	}
	return r
}
