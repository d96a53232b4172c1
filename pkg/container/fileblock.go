package container

import (
	"github.com/goopsie/catpack/pkg/stream"
)

// FileBlock is the decoded form of the offset-indexed child packing used
// inside format-2 and format-8 payloads (§3.3).
type FileBlock struct {
	Start    int64
	Children []Child
}

// ParseFileBlock reads a file-block at the reader's current position.
func ParseFileBlock(r *stream.Reader, path string) (*FileBlock, error) {
	start := r.Pos()

	firstWord, err := r.PeekU32LE()
	if err != nil {
		return nil, ioErr(path, start, err)
	}
	if firstWord > 0xFF {
		return nil, fileBlockWithoutHeader(path, start)
	}

	headerLength, err := r.ReadU32LE()
	if err != nil {
		return nil, ioErr(path, r.Pos(), err)
	}
	childCount, err := r.ReadU32LE()
	if err != nil {
		return nil, ioErr(path, r.Pos(), err)
	}
	if headerLength != (childCount+3)*4 {
		return nil, malformedHeader(path, start, "file-block header_length does not match child_count")
	}
	contentLength, err := r.ReadU32LE()
	if err != nil {
		return nil, ioErr(path, r.Pos(), err)
	}

	relOffs := make([]uint32, childCount)
	for i := range relOffs {
		v, err := r.ReadU32LE()
		if err != nil {
			return nil, ioErr(path, r.Pos(), err)
		}
		relOffs[i] = v
	}

	children := make([]Child, childCount)
	blockEnd := start + int64(contentLength)
	for i := range children {
		abs := start + int64(headerLength) + int64(relOffs[i])
		children[i].Offset = abs
	}
	for i := range children {
		if i+1 < len(children) {
			children[i].Size = children[i+1].Offset - children[i].Offset
		} else {
			children[i].Size = blockEnd - children[i].Offset
		}
	}

	return &FileBlock{Start: start, Children: children}, nil
}

// FileBlockPlaceholders records positions to patch once payloads are written.
type FileBlockPlaceholders struct {
	Start             int64
	ContentLengthPos  int64
	RelOffsTablePos   int64
	HeaderLength      int64
}

// EmitFileBlock writes a file-block header for childCount children with
// placeholders for content_length and rel_off[].
func EmitFileBlock(w *stream.Writer, childCount int) (*FileBlockPlaceholders, error) {
	start := w.Pos()
	headerLength := int64(childCount+3) * 4

	if err := w.WriteU32LE(uint32(headerLength)); err != nil {
		return nil, err
	}
	if err := w.WriteU32LE(uint32(childCount)); err != nil {
		return nil, err
	}
	contentLengthPos := w.Pos()
	if err := w.WriteU32LE(0); err != nil {
		return nil, err
	}
	relOffsTablePos := w.Pos()
	if err := w.WriteU8N(0x00, childCount*4); err != nil {
		return nil, err
	}

	return &FileBlockPlaceholders{
		Start:            start,
		ContentLengthPos: contentLengthPos,
		RelOffsTablePos:  relOffsTablePos,
		HeaderLength:     headerLength,
	}, nil
}

// PatchFileBlock patches content_length and rel_off[] once all payloads have
// been written; payloadOffsets holds each payload's absolute start position
// in emission order, and end is the absolute position immediately after the
// last payload.
func PatchFileBlock(w *stream.Writer, fb *FileBlockPlaceholders, payloadOffsets []int64, end int64) error {
	resume := w.Pos()

	if err := w.Seek(fb.ContentLengthPos); err != nil {
		return err
	}
	contentLength := uint32(end - fb.Start)
	if err := w.WriteU32LE(contentLength); err != nil {
		return err
	}

	if err := w.Seek(fb.RelOffsTablePos); err != nil {
		return err
	}
	for _, off := range payloadOffsets {
		rel := off - fb.Start - fb.HeaderLength
		if err := w.WriteU32LE(uint32(rel)); err != nil {
			return err
		}
	}

	return w.Seek(resume)
}
