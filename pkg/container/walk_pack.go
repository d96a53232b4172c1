package container

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/goopsie/catpack/pkg/manifest"
	"github.com/goopsie/catpack/pkg/stream"
	"github.com/goopsie/catpack/pkg/texture"
)

// Packer mirrors Unpacker: it walks a manifest tree and re-emits the
// byte-faithful archive it describes, reading extracted payloads from root.
//
// Only a format-0 Container ever carries nested children of its own; every
// other format collapses to a bare Files or Textures node on unpack, which
// loses that sub-container's original version/header_size/alignment. Pack
// re-wraps those nodes using the same fixed convention the pack state
// machine uses for format-2 atlases: version 1, header_size 256, alignment
// 256, and (for Files) format 1 — the most common name-list variant.
type Packer struct {
	w    *stream.Writer
	path string // archive-relative path, for error reporting
	root string // directory extracted payloads live under
}

// NewPacker creates a Packer writing to w, resolving manifest filenames
// against root.
func NewPacker(w *stream.Writer, path, root string) *Packer {
	return &Packer{w: w, path: path, root: root}
}

// Pack writes the archive described by node at the writer's current
// position.
func (p *Packer) Pack(node *manifest.Node) error {
	switch node.Type {
	case manifest.TypeContainer:
		_, err := p.packContainer(node)
		return err
	case manifest.TypeFiles:
		_, err := p.packNameListContainer(node)
		return err
	case manifest.TypeTextures:
		return p.packGXT(node)
	default:
		return fmt.Errorf("container: cannot pack root node of type %q", node.Type)
	}
}

// packGXT re-emits the bare file-block path: a single file-block of
// re-encoded DDS payloads, no container header.
func (p *Packer) packGXT(node *manifest.Node) error {
	fb, err := EmitFileBlock(p.w, len(node.Textures))
	if err != nil {
		return ioErr(p.path, p.w.Pos(), err)
	}
	offsets := make([]int64, 0, len(node.Textures))
	for _, tex := range node.Textures {
		ddsBytes, err := p.reencodeTexture(tex)
		if err != nil {
			return err
		}
		offsets = append(offsets, p.w.Pos())
		if err := p.w.WriteBytes(ddsBytes); err != nil {
			return ioErr(p.path, p.w.Pos(), err)
		}
	}
	return PatchFileBlock(p.w, fb, offsets, p.w.Pos())
}

// packContainer writes a format-0 container's header and children, each
// dispatched by the child's own manifest type. It returns the (offset, size)
// record the caller places into its own parent's child table.
func (p *Packer) packContainer(node *manifest.Node) (Child, error) {
	start := p.w.Pos()
	ph, err := EmitHeader(p.w, EmitHeaderParams{
		Version: node.Version, HeaderSize: node.HeaderSize,
		Format: 0, Alignment: node.Alignment, ChildCount: uint32(len(node.Children)),
	})
	if err != nil {
		return Child{}, ioErr(p.path, start, err)
	}

	var children []Child
	for _, child := range node.Children {
		c, err := p.packChild(child)
		if err != nil {
			return Child{}, err
		}
		children = append(children, c)
		if err := p.w.AlignWrite(node.Alignment); err != nil {
			return Child{}, ioErr(p.path, p.w.Pos(), err)
		}
	}

	end := p.w.Pos()
	if err := PatchHeader(p.w, ph, end, children); err != nil {
		return Child{}, ioErr(p.path, end, err)
	}
	return Child{Offset: start, Size: end - start}, nil
}

// packChild dispatches a single format-0 child by its own manifest type.
func (p *Packer) packChild(child *manifest.Node) (Child, error) {
	switch child.Type {
	case manifest.TypeContainer:
		return p.packContainer(child)
	case manifest.TypeFile:
		start := p.w.Pos()
		raw, err := p.readPayload(child.File)
		if err != nil {
			return Child{}, err
		}
		if err := p.w.WriteBytes(raw); err != nil {
			return Child{}, ioErr(p.path, start, err)
		}
		return Child{Offset: start, Size: int64(len(raw))}, nil
	case manifest.TypeFiles:
		return p.packNameListContainer(child)
	case manifest.TypeTextures:
		return p.packTextureAtlas(child)
	default:
		return Child{}, fmt.Errorf("container: format-0 child has unknown type %q", child.Type)
	}
}

// packNameListContainer emits a self-contained format-1 sub-container
// holding the name table plus each payload, re-deriving the bare table
// names from the on-disk filenames (which carry the magic-table extension).
func (p *Packer) packNameListContainer(files *manifest.Node) (Child, error) {
	start := p.w.Pos()
	ph, err := EmitHeader(p.w, EmitHeaderParams{
		Version: 1, HeaderSize: 256, Format: 1, Alignment: 256,
		ChildCount: uint32(1 + len(files.Files)),
	})
	if err != nil {
		return Child{}, ioErr(p.path, start, err)
	}

	names := make([]string, len(files.Files))
	payloads := make([][]byte, len(files.Files))
	for i, filename := range files.Files {
		raw, err := p.readPayload(filename)
		if err != nil {
			return Child{}, err
		}
		ext := extensionFor(raw)
		names[i] = strings.TrimSuffix(filename, ext)
		payloads[i] = raw
	}

	var children []Child
	tableStart := p.w.Pos()
	table := buildNameTable(names)
	if err := p.w.WriteBytes(table); err != nil {
		return Child{}, ioErr(p.path, tableStart, err)
	}
	children = append(children, Child{Offset: tableStart, Size: int64(len(table))})
	if err := p.w.AlignWrite(256); err != nil {
		return Child{}, ioErr(p.path, p.w.Pos(), err)
	}

	for _, raw := range payloads {
		pStart := p.w.Pos()
		if err := p.w.WriteBytes(raw); err != nil {
			return Child{}, ioErr(p.path, pStart, err)
		}
		children = append(children, Child{Offset: pStart, Size: int64(len(raw))})
		if err := p.w.AlignWrite(256); err != nil {
			return Child{}, ioErr(p.path, p.w.Pos(), err)
		}
	}

	end := p.w.Pos()
	if err := PatchHeader(p.w, ph, end, children); err != nil {
		return Child{}, ioErr(p.path, end, err)
	}
	return Child{Offset: start, Size: end - start}, nil
}

// packTextureAtlas emits one format-2 sub-container: a 256-byte name table
// followed by a file-block of re-encoded DDS payloads, per the pack state
// machine's fixed convention (version=1, format=0, header_size=256,
// alignment=256) for the sub-container itself, wrapped in an outer format-2
// container holding exactly this one atlas.
func (p *Packer) packTextureAtlas(atlas *manifest.Node) (Child, error) {
	outerStart := p.w.Pos()
	outerPH, err := EmitHeader(p.w, EmitHeaderParams{
		Version: 1, HeaderSize: 256, Format: 2, Alignment: 256, ChildCount: 1,
	})
	if err != nil {
		return Child{}, ioErr(p.path, outerStart, err)
	}

	subStart := p.w.Pos()
	ph, err := EmitHeader(p.w, EmitHeaderParams{
		Version: 1, HeaderSize: 256, Format: 0, Alignment: 256, ChildCount: 2,
	})
	if err != nil {
		return Child{}, ioErr(p.path, subStart, err)
	}

	names := make([]string, len(atlas.Textures))
	for i, tex := range atlas.Textures {
		names[i] = tex.Name
	}
	tableStart := p.w.Pos()
	table := buildNameTable(names)
	if len(table) > 256 {
		return Child{}, fmt.Errorf("container: texture atlas name table exceeds 256 bytes")
	}
	if err := p.w.WriteBytes(table); err != nil {
		return Child{}, ioErr(p.path, tableStart, err)
	}
	if err := p.w.WriteU8N(0x00, 256-len(table)); err != nil {
		return Child{}, ioErr(p.path, p.w.Pos(), err)
	}

	fbStart := p.w.Pos()
	fb, err := EmitFileBlock(p.w, len(atlas.Textures))
	if err != nil {
		return Child{}, ioErr(p.path, fbStart, err)
	}
	offsets := make([]int64, 0, len(atlas.Textures))
	for _, tex := range atlas.Textures {
		ddsBytes, err := p.reencodeTexture(tex)
		if err != nil {
			return Child{}, err
		}
		offsets = append(offsets, p.w.Pos())
		if err := p.w.WriteBytes(ddsBytes); err != nil {
			return Child{}, ioErr(p.path, p.w.Pos(), err)
		}
	}
	fbEnd := p.w.Pos()
	if err := PatchFileBlock(p.w, fb, offsets, fbEnd); err != nil {
		return Child{}, ioErr(p.path, fbEnd, err)
	}

	if err := p.w.AlignWrite(256); err != nil {
		return Child{}, ioErr(p.path, p.w.Pos(), err)
	}
	subEnd := p.w.Pos()
	subChildren := []Child{
		{Offset: tableStart, Size: 256},
		{Offset: fbStart, Size: fbEnd - fbStart},
	}
	if err := PatchHeader(p.w, ph, subEnd, subChildren); err != nil {
		return Child{}, ioErr(p.path, subEnd, err)
	}

	if err := p.w.AlignWrite(256); err != nil {
		return Child{}, ioErr(p.path, p.w.Pos(), err)
	}
	outerEnd := p.w.Pos()
	outerChildren := []Child{{Offset: subStart, Size: subEnd - subStart}}
	if err := PatchHeader(p.w, outerPH, outerEnd, outerChildren); err != nil {
		return Child{}, ioErr(p.path, outerEnd, err)
	}
	return Child{Offset: outerStart, Size: outerEnd - outerStart}, nil
}

func (p *Packer) reencodeTexture(tex manifest.Texture) ([]byte, error) {
	full := filepath.Join(p.root, tex.Filename)
	f, err := os.Open(full)
	if err != nil {
		return nil, ioErr(p.path, 0, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, ioErr(p.path, 0, err)
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	ddsBytes, err := texture.EncodeDDS(uint32(bounds.Dx()), uint32(bounds.Dy()), rgba.Pix, tex.Format)
	if err != nil {
		return nil, fmt.Errorf("container: re-encode %s: %w", tex.Filename, err)
	}
	return ddsBytes, nil
}

func (p *Packer) readPayload(filename string) ([]byte, error) {
	full := filepath.Join(p.root, filename)
	raw, err := os.ReadFile(full)
	if err != nil {
		return nil, ioErr(p.path, 0, err)
	}
	return raw, nil
}
