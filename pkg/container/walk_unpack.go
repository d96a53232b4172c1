package container

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/goopsie/catpack/pkg/manifest"
	"github.com/goopsie/catpack/pkg/stream"
	"github.com/goopsie/catpack/pkg/texture"
)

// Unpacker walks a single archive depth-first, writing extracted payloads
// under OutDir and returning the manifest tree describing it.
type Unpacker struct {
	r      *stream.Reader
	path   string // archive-relative path, for error reporting
	outDir string
}

// NewUnpacker creates an Unpacker reading from r and writing extracted
// files under outDir.
func NewUnpacker(r *stream.Reader, path, outDir string) *Unpacker {
	return &Unpacker{r: r, path: path, outDir: outDir}
}

// Unpack walks the archive from the reader's current position and returns
// its manifest tree.
func (u *Unpacker) Unpack() (*manifest.Node, error) {
	first, err := u.r.PeekU32LE()
	if err != nil {
		return nil, ioErr(u.path, u.r.Pos(), err)
	}
	if first != 1 {
		return u.unpackGXT()
	}
	return u.unpackContainer()
}

// unpackGXT handles the bare-file-block path used when the input does not
// open with the container sentinel: a single file-block of DDS payloads,
// each saved under a synthetic (empty) name.
func (u *Unpacker) unpackGXT() (*manifest.Node, error) {
	fb, err := ParseFileBlock(u.r, u.path)
	if err != nil {
		return nil, err
	}
	var textures []manifest.Texture
	for _, child := range fb.Children {
		tex, err := u.decodeTextureAt(child.Offset, child.Size, "")
		if err != nil {
			return nil, err
		}
		textures = append(textures, *tex)
	}
	return manifest.NewTextures(textures), nil
}

// unpackContainer parses a header at the reader's current position and
// dispatches on its format.
func (u *Unpacker) unpackContainer() (*manifest.Node, error) {
	h, err := ParseHeader(u.r, u.path)
	if err != nil {
		return nil, err
	}
	end := h.End()

	node, err := u.dispatchFormat(h)
	if err != nil {
		return nil, err
	}

	if err := u.r.Seek(end); err != nil {
		return nil, ioErr(u.path, end, err)
	}
	return node, nil
}

func (u *Unpacker) dispatchFormat(h *Header) (*manifest.Node, error) {
	switch h.Format {
	case 0:
		return u.unpackFormat0(h)
	case 1, 3, 4, 7:
		return u.unpackNameList(h)
	case 2:
		return u.unpackTextureAtlas(h)
	case 5:
		return u.unpackOpaqueList(h)
	case 6:
		return nil, unrecognisedVariant(u.path, h.Start, h.Format)
	case 8:
		return u.unpackFormat8(h)
	default:
		return u.unpackOpaqueList(h)
	}
}

// unpackFormat0 disambiguates between nested-container and opaque-leaf
// children by peeking each child's leading word: a container header always
// opens with magic 1, regardless of this container's own (header_size,
// alignment) — neither field forces or forbids recursion on its own.
func (u *Unpacker) unpackFormat0(h *Header) (*manifest.Node, error) {
	children := make([]*manifest.Node, len(h.Children))
	for i, c := range h.Children {
		if err := u.r.Seek(c.Offset); err != nil {
			return nil, ioErr(u.path, c.Offset, err)
		}

		first, err := u.r.PeekU32LE()
		if err != nil {
			return nil, ioErr(u.path, c.Offset, err)
		}
		if first == 1 {
			child, err := u.unpackContainer()
			if err != nil {
				return nil, err
			}
			children[i] = child
			continue
		}

		child, err := u.extractOpaqueLeaf(c.Offset, c.Size)
		if err != nil {
			return nil, err
		}
		children[i] = child
	}
	return manifest.NewContainer(h.Version, h.Format, h.HeaderSize, h.Alignment, children), nil
}

// unpackNameList handles formats 1/3/4/7: a string table followed by N
// opaque payloads.
func (u *Unpacker) unpackNameList(h *Header) (*manifest.Node, error) {
	if len(h.Children) < 1 {
		return nil, malformedHeader(u.path, h.Start, "name-list container has no children")
	}
	names, err := u.readNameTable(h.Children[0])
	if err != nil {
		return nil, err
	}
	payloads := h.Children[1:]
	filenames := make([]string, 0, len(payloads))
	for i, c := range payloads {
		raw, err := u.readRaw(c.Offset, c.Size)
		if err != nil {
			return nil, err
		}
		name := fmt.Sprintf("payload-%d", i)
		if i < len(names) {
			name = names[i]
		}
		ext := extensionFor(raw)
		if magicOf(raw) == MagicGNF {
			return nil, unsupportedPayload(u.path, c.Offset, "GNF")
		}
		filename := name + ext
		if err := u.writeFile(filename, raw); err != nil {
			return nil, err
		}
		filenames = append(filenames, filename)
	}
	return manifest.NewFiles(filenames), nil
}

// unpackOpaqueList handles format 5 and unrecognised formats: children are
// extracted verbatim with generated names.
func (u *Unpacker) unpackOpaqueList(h *Header) (*manifest.Node, error) {
	filenames := make([]string, 0, len(h.Children))
	for i, c := range h.Children {
		raw, err := u.readRaw(c.Offset, c.Size)
		if err != nil {
			return nil, err
		}
		filename := fmt.Sprintf("child-%d%s", i, extensionFor(raw))
		if err := u.writeFile(filename, raw); err != nil {
			return nil, err
		}
		filenames = append(filenames, filename)
	}
	return manifest.NewFiles(filenames), nil
}

// unpackFormat8 extracts exactly two opaque children to hex-named files,
// following the "safer for repack" opaque reading (§9 open question).
func (u *Unpacker) unpackFormat8(h *Header) (*manifest.Node, error) {
	filenames := make([]string, 0, len(h.Children))
	for _, c := range h.Children {
		child, err := u.extractOpaqueLeaf(c.Offset, c.Size)
		if err != nil {
			return nil, err
		}
		filenames = append(filenames, child.File)
	}
	return manifest.NewFiles(filenames), nil
}

// unpackTextureAtlas handles format 2: every child is a sub-container
// holding a name table and a file-block of DDS payloads.
func (u *Unpacker) unpackTextureAtlas(h *Header) (*manifest.Node, error) {
	var textures []manifest.Texture
	for _, c := range h.Children {
		if err := u.r.Seek(c.Offset); err != nil {
			return nil, ioErr(u.path, c.Offset, err)
		}
		sub, err := ParseHeader(u.r, u.path)
		if err != nil {
			return nil, err
		}
		if sub.Format != 0 || len(sub.Children) != 2 {
			return nil, malformedHeader(u.path, sub.Start, "texture atlas sub-container must be format 0 with 2 children")
		}
		nameRaw, err := u.readRaw(sub.Children[0].Offset, sub.Children[0].Size)
		if err != nil {
			return nil, err
		}
		names := parseNameTable(nameRaw)

		if err := u.r.Seek(sub.Children[1].Offset); err != nil {
			return nil, ioErr(u.path, sub.Children[1].Offset, err)
		}
		fb, err := ParseFileBlock(u.r, u.path)
		if err != nil {
			return nil, err
		}
		for i, child := range fb.Children {
			name := fmt.Sprintf("tex%d", i)
			if i < len(names) {
				name = names[i]
			}
			tex, err := u.decodeTextureAt(child.Offset, child.Size, name)
			if err != nil {
				return nil, err
			}
			textures = append(textures, *tex)
		}
	}
	return manifest.NewTextures(textures), nil
}

func (u *Unpacker) decodeTextureAt(offset, size int64, name string) (*manifest.Texture, error) {
	raw, err := u.readRaw(offset, size)
	if err != nil {
		return nil, err
	}
	if magicOf(raw) == MagicGNF {
		return nil, unsupportedPayload(u.path, offset, "GNF")
	}
	decoded, err := texture.DecodeDDS(raw)
	if err != nil {
		return nil, newErr(KindUnsupportedPayload, u.path, offset, err.Error(), err)
	}
	rgba := &image.RGBA{
		Pix:    decoded.RGBA,
		Stride: int(decoded.Width) * 4,
		Rect:   image.Rect(0, 0, int(decoded.Width), int(decoded.Height)),
	}
	filename := fmt.Sprintf("%s (%dx%d).png", name, decoded.Width, decoded.Height)
	if name == "" {
		filename = fmt.Sprintf("%x.png", offset)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, ioErr(u.path, offset, err)
	}
	if err := u.writeFile(filename, buf.Bytes()); err != nil {
		return nil, err
	}
	return &manifest.Texture{Name: name, Format: decoded.Format, Filename: filename}, nil
}

func (u *Unpacker) extractOpaqueLeaf(offset, size int64) (*manifest.Node, error) {
	raw, err := u.readRaw(offset, size)
	if err != nil {
		return nil, err
	}
	if magicOf(raw) == MagicGNF {
		return nil, unsupportedPayload(u.path, offset, "GNF")
	}
	filename := hexName(offset, extensionFor(raw))
	if err := u.writeFile(filename, raw); err != nil {
		return nil, err
	}
	return manifest.NewFile(filename), nil
}

func (u *Unpacker) readNameTable(c Child) ([]string, error) {
	raw, err := u.readRaw(c.Offset, c.Size)
	if err != nil {
		return nil, err
	}
	return parseNameTable(raw), nil
}

func (u *Unpacker) readRaw(offset, size int64) ([]byte, error) {
	if err := u.r.Seek(offset); err != nil {
		return nil, ioErr(u.path, offset, err)
	}
	raw, err := u.r.ReadBytes(int(size))
	if err != nil {
		return nil, ioErr(u.path, offset, err)
	}
	return raw, nil
}

func (u *Unpacker) writeFile(name string, data []byte) error {
	full := filepath.Join(u.outDir, name)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return ioErr(u.path, 0, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return ioErr(u.path, 0, err)
	}
	return nil
}
