package container

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goopsie/catpack/pkg/manifest"
	"github.com/goopsie/catpack/pkg/stream"
)

func buildFormat0Archive(t *testing.T, raw0, raw1 []byte) []byte {
	t.Helper()
	w, buf := newWriter(t)
	ph, err := EmitHeader(w, EmitHeaderParams{Version: 1, HeaderSize: 256, Format: 0, Alignment: 16, ChildCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	start0 := w.Pos()
	if err := w.WriteBytes(raw0); err != nil {
		t.Fatal(err)
	}
	if err := w.AlignWrite(16); err != nil {
		t.Fatal(err)
	}
	start1 := w.Pos()
	if err := w.WriteBytes(raw1); err != nil {
		t.Fatal(err)
	}
	if err := w.AlignWrite(16); err != nil {
		t.Fatal(err)
	}
	end := w.Pos()
	children := []Child{
		{Offset: start0, Size: int64(len(raw0))},
		{Offset: start1, Size: int64(len(raw1))},
	}
	if err := PatchHeader(w, ph, end, children); err != nil {
		t.Fatal(err)
	}
	return buf.buf
}

func TestUnpackFormat0OpaqueChildren(t *testing.T) {
	raw0 := append([]byte("a001"), []byte("FOOPAYLOAD")...)
	raw1 := append([]byte("tmd0"), []byte("BARPAYLOAD")...)
	archive := buildFormat0Archive(t, raw0, raw1)

	outDir := t.TempDir()
	r, err := stream.NewReader(bytes.NewReader(archive))
	if err != nil {
		t.Fatal(err)
	}
	root, err := NewUnpacker(r, "test.cat", outDir).Unpack()
	if err != nil {
		t.Fatal(err)
	}
	if root.Type != manifest.TypeContainer || root.Format != 0 || len(root.Children) != 2 {
		t.Fatalf("root = %+v", root)
	}
	if root.Children[0].Type != manifest.TypeFile || filepath.Ext(root.Children[0].File) != ".a001" {
		t.Fatalf("child 0 = %+v", root.Children[0])
	}
	if root.Children[1].Type != manifest.TypeFile || filepath.Ext(root.Children[1].File) != ".tmd0" {
		t.Fatalf("child 1 = %+v", root.Children[1])
	}

	got0, err := os.ReadFile(filepath.Join(outDir, root.Children[0].File))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got0, raw0) {
		t.Fatalf("child 0 content = %q, want %q", got0, raw0)
	}
	got1, err := os.ReadFile(filepath.Join(outDir, root.Children[1].File))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got1, raw1) {
		t.Fatalf("child 1 content = %q, want %q", got1, raw1)
	}
}

func TestUnpackThenPackRoundTrip(t *testing.T) {
	raw0 := append([]byte("a001"), []byte("FOOPAYLOAD")...)
	raw1 := append([]byte("tmd0"), []byte("BARPAYLOAD")...)
	archive := buildFormat0Archive(t, raw0, raw1)

	outDir := t.TempDir()
	r, err := stream.NewReader(bytes.NewReader(archive))
	if err != nil {
		t.Fatal(err)
	}
	root, err := NewUnpacker(r, "test.cat", outDir).Unpack()
	if err != nil {
		t.Fatal(err)
	}

	metaPath := filepath.Join(outDir, "metadata.json")
	if err := manifest.Save(metaPath, root); err != nil {
		t.Fatal(err)
	}
	loaded, err := manifest.Load(metaPath)
	if err != nil {
		t.Fatal(err)
	}

	repacked := &seekableBuffer{}
	w, err := stream.NewWriter(repacked)
	if err != nil {
		t.Fatal(err)
	}
	if err := NewPacker(w, "out.cat", outDir).Pack(loaded); err != nil {
		t.Fatal(err)
	}

	verifyDir := t.TempDir()
	r2, err := stream.NewReader(bytes.NewReader(repacked.buf))
	if err != nil {
		t.Fatal(err)
	}
	reUnpacked, err := NewUnpacker(r2, "out.cat", verifyDir).Unpack()
	if err != nil {
		t.Fatal(err)
	}
	if reUnpacked.Format != 0 || len(reUnpacked.Children) != 2 {
		t.Fatalf("reUnpacked = %+v", reUnpacked)
	}
	got0, err := os.ReadFile(filepath.Join(verifyDir, reUnpacked.Children[0].File))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got0, raw0) {
		t.Fatalf("round-tripped child 0 = %q, want %q", got0, raw0)
	}
}

func TestUnpackNameListFormat1(t *testing.T) {
	w, buf := newWriter(t)
	ph, err := EmitHeader(w, EmitHeaderParams{Version: 1, HeaderSize: 256, Format: 1, Alignment: 16, ChildCount: 3})
	if err != nil {
		t.Fatal(err)
	}
	tableStart := w.Pos()
	table := buildNameTable([]string{"anim_a", "anim_b"})
	if err := w.WriteBytes(table); err != nil {
		t.Fatal(err)
	}
	if err := w.AlignWrite(16); err != nil {
		t.Fatal(err)
	}
	p0 := append([]byte("tmo1"), []byte("AAAA")...)
	p1 := append([]byte("tmo1"), []byte("BBBB")...)
	start0 := w.Pos()
	if err := w.WriteBytes(p0); err != nil {
		t.Fatal(err)
	}
	if err := w.AlignWrite(16); err != nil {
		t.Fatal(err)
	}
	start1 := w.Pos()
	if err := w.WriteBytes(p1); err != nil {
		t.Fatal(err)
	}
	if err := w.AlignWrite(16); err != nil {
		t.Fatal(err)
	}
	end := w.Pos()
	children := []Child{
		{Offset: tableStart, Size: int64(len(table))},
		{Offset: start0, Size: int64(len(p0))},
		{Offset: start1, Size: int64(len(p1))},
	}
	if err := PatchHeader(w, ph, end, children); err != nil {
		t.Fatal(err)
	}

	outDir := t.TempDir()
	r, err := stream.NewReader(bytes.NewReader(buf.buf))
	if err != nil {
		t.Fatal(err)
	}
	files, err := NewUnpacker(r, "test.cat", outDir).Unpack()
	if err != nil {
		t.Fatal(err)
	}
	if files.Type != manifest.TypeFiles || len(files.Files) != 2 {
		t.Fatalf("files = %+v", files)
	}
	if files.Files[0] != "anim_a.tmo1" || files.Files[1] != "anim_b.tmo1" {
		t.Fatalf("names = %v", files.Files)
	}
}

func TestUnpackNameListFormat1PackRoundTrip(t *testing.T) {
	w, buf := newWriter(t)
	ph, err := EmitHeader(w, EmitHeaderParams{Version: 1, HeaderSize: 256, Format: 1, Alignment: 16, ChildCount: 3})
	if err != nil {
		t.Fatal(err)
	}
	tableStart := w.Pos()
	table := buildNameTable([]string{"anim_a", "anim_b"})
	if err := w.WriteBytes(table); err != nil {
		t.Fatal(err)
	}
	if err := w.AlignWrite(16); err != nil {
		t.Fatal(err)
	}
	p0 := append([]byte("tmo1"), []byte("AAAA")...)
	p1 := append([]byte("tmo1"), []byte("BBBB")...)
	start0 := w.Pos()
	if err := w.WriteBytes(p0); err != nil {
		t.Fatal(err)
	}
	if err := w.AlignWrite(16); err != nil {
		t.Fatal(err)
	}
	start1 := w.Pos()
	if err := w.WriteBytes(p1); err != nil {
		t.Fatal(err)
	}
	if err := w.AlignWrite(16); err != nil {
		t.Fatal(err)
	}
	end := w.Pos()
	children := []Child{
		{Offset: tableStart, Size: int64(len(table))},
		{Offset: start0, Size: int64(len(p0))},
		{Offset: start1, Size: int64(len(p1))},
	}
	if err := PatchHeader(w, ph, end, children); err != nil {
		t.Fatal(err)
	}

	outDir := t.TempDir()
	r, err := stream.NewReader(bytes.NewReader(buf.buf))
	if err != nil {
		t.Fatal(err)
	}
	files, err := NewUnpacker(r, "test.cat", outDir).Unpack()
	if err != nil {
		t.Fatal(err)
	}

	repacked := &seekableBuffer{}
	w2, err := stream.NewWriter(repacked)
	if err != nil {
		t.Fatal(err)
	}
	if err := NewPacker(w2, "out.cat", outDir).Pack(files); err != nil {
		t.Fatal(err)
	}

	verifyDir := t.TempDir()
	r2, err := stream.NewReader(bytes.NewReader(repacked.buf))
	if err != nil {
		t.Fatal(err)
	}
	reUnpacked, err := NewUnpacker(r2, "out.cat", verifyDir).Unpack()
	if err != nil {
		t.Fatal(err)
	}
	if reUnpacked.Type != manifest.TypeFiles || len(reUnpacked.Files) != 2 {
		t.Fatalf("reUnpacked = %+v", reUnpacked)
	}
	if reUnpacked.Files[0] != "anim_a.tmo1" || reUnpacked.Files[1] != "anim_b.tmo1" {
		t.Fatalf("names = %v", reUnpacked.Files)
	}
}

// TestUnpackFormat0HeaderSize256AlignmentOf256IsNotForcedRecursion covers the
// "minimal format-0" case: header_size and alignment both happen to be 256,
// but the lone child's leading word is not the container magic, so it must
// still be read as an opaque leaf rather than forced into unpackContainer.
func TestUnpackFormat0HeaderSize256AlignmentOf256IsNotForcedRecursion(t *testing.T) {
	raw := make([]byte, 64)
	raw[0], raw[1], raw[2], raw[3] = 0x12, 0x34, 0x56, 0x78

	w, buf := newWriter(t)
	ph, err := EmitHeader(w, EmitHeaderParams{Version: 1, HeaderSize: 256, Format: 0, Alignment: 256, ChildCount: 1})
	if err != nil {
		t.Fatal(err)
	}
	start := w.Pos()
	if err := w.WriteBytes(raw); err != nil {
		t.Fatal(err)
	}
	if err := w.AlignWrite(256); err != nil {
		t.Fatal(err)
	}
	end := w.Pos()
	children := []Child{{Offset: start, Size: int64(len(raw))}}
	if err := PatchHeader(w, ph, end, children); err != nil {
		t.Fatal(err)
	}

	outDir := t.TempDir()
	r, err := stream.NewReader(bytes.NewReader(buf.buf))
	if err != nil {
		t.Fatal(err)
	}
	root, err := NewUnpacker(r, "test.cat", outDir).Unpack()
	if err != nil {
		t.Fatal(err)
	}
	if root.Type != manifest.TypeContainer || root.Format != 0 || len(root.Children) != 1 {
		t.Fatalf("root = %+v", root)
	}
	if root.Children[0].Type != manifest.TypeFile {
		t.Fatalf("child 0 = %+v, want a bare file leaf", root.Children[0])
	}
	got, err := os.ReadFile(filepath.Join(outDir, root.Children[0].File))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatalf("child 0 content = %x, want %x", got, raw)
	}
}

func TestDispatchFormatRejectsFormat6(t *testing.T) {
	w, buf := newWriter(t)
	ph, err := EmitHeader(w, EmitHeaderParams{Version: 1, HeaderSize: 256, Format: 6, Alignment: 16, ChildCount: 0})
	if err != nil {
		t.Fatal(err)
	}
	if err := PatchHeader(w, ph, w.Pos(), nil); err != nil {
		t.Fatal(err)
	}

	outDir := t.TempDir()
	r, err := stream.NewReader(bytes.NewReader(buf.buf))
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewUnpacker(r, "test.cat", outDir).Unpack()
	if err == nil {
		t.Fatal("expected error for format 6")
	}
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("error is not *Error: %v", err)
	}
	if ce.Kind != KindUnrecognisedVariant {
		t.Fatalf("kind = %v, want KindUnrecognisedVariant", ce.Kind)
	}
}
