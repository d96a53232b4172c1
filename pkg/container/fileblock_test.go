package container

import "testing"

func TestFileBlockEmitParsePatchRoundTrip(t *testing.T) {
	w, buf := newWriter(t)

	fb, err := EmitFileBlock(w, 3)
	if err != nil {
		t.Fatal(err)
	}
	payloads := [][]byte{
		[]byte("DDv first payload"),
		[]byte("DDv second"),
		[]byte("DDv third payload here"),
	}
	var offsets []int64
	for _, p := range payloads {
		offsets = append(offsets, w.Pos())
		if err := w.WriteBytes(p); err != nil {
			t.Fatal(err)
		}
	}
	end := w.Pos()
	if err := PatchFileBlock(w, fb, offsets, end); err != nil {
		t.Fatal(err)
	}

	r := readerOver(t, buf)
	parsed, err := ParseFileBlock(r, "test")
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed.Children) != 3 {
		t.Fatalf("children = %+v", parsed.Children)
	}
	for i, c := range parsed.Children {
		if c.Offset != offsets[i] {
			t.Fatalf("child %d offset = %d, want %d", i, c.Offset, offsets[i])
		}
		if c.Size != int64(len(payloads[i])) {
			t.Fatalf("child %d size = %d, want %d", i, c.Size, len(payloads[i]))
		}
	}
}

func TestParseFileBlockRejectsFirstWordOverFF(t *testing.T) {
	w, buf := newWriter(t)
	if err := w.WriteU32LE(0x100); err != nil {
		t.Fatal(err)
	}
	r := readerOver(t, buf)
	if _, err := ParseFileBlock(r, "test"); err == nil {
		t.Fatal("expected error for first word > 0xFF")
	}
}

func TestParseFileBlockRejectsMismatchedHeaderLength(t *testing.T) {
	w, buf := newWriter(t)
	if err := w.WriteU32LE(99); err != nil { // bogus header_length
		t.Fatal(err)
	}
	if err := w.WriteU32LE(1); err != nil { // child_count = 1
		t.Fatal(err)
	}
	if err := w.WriteU32LE(0); err != nil { // content_length
		t.Fatal(err)
	}
	if err := w.WriteU32LE(0); err != nil { // rel_off[0]
		t.Fatal(err)
	}
	r := readerOver(t, buf)
	if _, err := ParseFileBlock(r, "test"); err == nil {
		t.Fatal("expected error for mismatched header_length")
	}
}
