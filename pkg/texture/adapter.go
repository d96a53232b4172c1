// Package texture adapts between on-disk DDS pixel formats and the stable
// manifest-level texture descriptor the tree walker records, decoding DDS
// payloads into PNG-ready RGBA surfaces and re-encoding them on repack.
package texture

import (
	"encoding/binary"
	"fmt"
)

// Compression enumerates the legacy D3D FourCC compression schemes a DDS
// payload may declare.
type Compression int

const (
	DXT1 Compression = iota
	DXT3
	DXT5
	A8R8G8B8
)

func (c Compression) String() string {
	switch c {
	case DXT1:
		return "DXT1"
	case DXT3:
		return "DXT3"
	case DXT5:
		return "DXT5"
	case A8R8G8B8:
		return "A8R8G8B8"
	default:
		return "Unknown"
	}
}

// PixelFormat enumerates the decoded surface's image format.
type PixelFormat int

const (
	Bgra8Unorm PixelFormat = iota
	BC1RgbaUnorm
	BC1RgbaUnormSrgb
	BC3RgbaUnorm
	BC3RgbaUnormSrgb
	BC7RgbaUnorm
)

func (p PixelFormat) String() string {
	switch p {
	case Bgra8Unorm:
		return "Bgra8Unorm"
	case BC1RgbaUnorm:
		return "BC1RgbaUnorm"
	case BC1RgbaUnormSrgb:
		return "BC1RgbaUnormSrgb"
	case BC3RgbaUnorm:
		return "BC3RgbaUnorm"
	case BC3RgbaUnormSrgb:
		return "BC3RgbaUnormSrgb"
	case BC7RgbaUnorm:
		return "BC7RgbaUnorm"
	default:
		return "Unknown"
	}
}

// Format is the stable manifest descriptor for a decoded texture: either a
// legacy D3D atlas (compression + pixel format) or a DXGI atlas (pixel
// format only).
type Format struct {
	D3D  *D3DDescriptor `json:"d3d,omitempty"`
	Dxgi *DxgiDescriptor `json:"dxgi,omitempty"`
}

// D3DDescriptor describes a legacy D3D-format atlas.
type D3DDescriptor struct {
	Compression Compression `json:"compression"`
	PixelFormat PixelFormat `json:"pixel_format"`
}

// DxgiDescriptor describes a DXGI-format atlas.
type DxgiDescriptor struct {
	PixelFormat PixelFormat `json:"pixel_format"`
}

// MarshalJSON renders Compression as its name.
func (c Compression) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", c.String())), nil
}

// MarshalJSON renders PixelFormat as its name.
func (p PixelFormat) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", p.String())), nil
}

// UnmarshalJSON parses Compression from its name.
func (c *Compression) UnmarshalJSON(data []byte) error {
	var name string
	if err := jsonUnquote(data, &name); err != nil {
		return err
	}
	switch name {
	case "DXT1":
		*c = DXT1
	case "DXT3":
		*c = DXT3
	case "DXT5":
		*c = DXT5
	case "A8R8G8B8":
		*c = A8R8G8B8
	default:
		return fmt.Errorf("texture: unknown compression %q", name)
	}
	return nil
}

// UnmarshalJSON parses PixelFormat from its name.
func (p *PixelFormat) UnmarshalJSON(data []byte) error {
	var name string
	if err := jsonUnquote(data, &name); err != nil {
		return err
	}
	switch name {
	case "Bgra8Unorm":
		*p = Bgra8Unorm
	case "BC1RgbaUnorm":
		*p = BC1RgbaUnorm
	case "BC1RgbaUnormSrgb":
		*p = BC1RgbaUnormSrgb
	case "BC3RgbaUnorm":
		*p = BC3RgbaUnorm
	case "BC3RgbaUnormSrgb":
		*p = BC3RgbaUnormSrgb
	case "BC7RgbaUnorm":
		*p = BC7RgbaUnorm
	default:
		return fmt.Errorf("texture: unknown pixel format %q", name)
	}
	return nil
}

func jsonUnquote(data []byte, out *string) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("texture: expected JSON string, got %s", data)
	}
	*out = string(data[1 : len(data)-1])
	return nil
}

// DDS header constants, grounded on the legacy DDS_HEADER layout plus the
// DX10 extension used for DXGI-family atlases.
const (
	ddsMagic       = 0x20534444 // "DDS "
	ddsHeaderSize  = 124
	ddsPFSize      = 32
	ddsFlagsCommon = 0x1 | 0x2 | 0x4 | 0x1000 // CAPS | HEIGHT | WIDTH | PIXELFORMAT
	ddsFlagsLinear = 0x80000
	ddsCapsTexture = 0x1000

	fourccDXT1 = 0x31545844
	fourccDXT3 = 0x33545844
	fourccDXT5 = 0x35545844
	fourccDX10 = 0x30315844

	dxgiFormatBC1UnormSrgb = 72
	dxgiFormatBC3UnormSrgb = 78
	dxgiFormatBC7Unorm     = 98
)

// Decoded holds a DDS payload's raw RGBA8 surface plus its descriptor.
type Decoded struct {
	Width  uint32
	Height uint32
	RGBA   []byte
	Format Format
}

// DecodeDDS parses a DDS byte stream, decompressing its block-compressed
// surface (or passing A8R8G8B8 through) into row-major RGBA8.
func DecodeDDS(data []byte) (*Decoded, error) {
	if len(data) < 4+ddsHeaderSize {
		return nil, fmt.Errorf("texture: dds payload too small")
	}
	if binary.LittleEndian.Uint32(data[0:4]) != ddsMagic {
		return nil, fmt.Errorf("texture: bad DDS magic")
	}
	h := data[4 : 4+ddsHeaderSize]
	height := binary.LittleEndian.Uint32(h[8:12])
	width := binary.LittleEndian.Uint32(h[12:16])
	pf := h[72:104]
	pfFlags := binary.LittleEndian.Uint32(pf[4:8])
	fourcc := binary.LittleEndian.Uint32(pf[8:12])

	body := data[4+ddsHeaderSize:]

	if pfFlags&0x4 == 0 { // not DDPF_FOURCC: treat as uncompressed A8R8G8B8
		rgba := make([]byte, width*height*4)
		copy(rgba, body)
		return &Decoded{
			Width: width, Height: height, RGBA: rgba,
			Format: Format{D3D: &D3DDescriptor{Compression: A8R8G8B8, PixelFormat: Bgra8Unorm}},
		}, nil
	}

	switch fourcc {
	case fourccDXT1:
		return &Decoded{
			Width: width, Height: height, RGBA: DecodeBC1(body, width, height),
			Format: Format{D3D: &D3DDescriptor{Compression: DXT1, PixelFormat: BC1RgbaUnorm}},
		}, nil
	case fourccDXT3:
		return nil, fmt.Errorf("texture: DXT3 decode not supported, only re-encode target")
	case fourccDXT5:
		return &Decoded{
			Width: width, Height: height, RGBA: DecodeBC3(body, width, height),
			Format: Format{D3D: &D3DDescriptor{Compression: DXT5, PixelFormat: BC3RgbaUnorm}},
		}, nil
	case fourccDX10:
		if len(body) < 20 {
			return nil, fmt.Errorf("texture: truncated DX10 header")
		}
		dxgiFormat := binary.LittleEndian.Uint32(body[0:4])
		payload := body[20:]
		switch dxgiFormat {
		case dxgiFormatBC1UnormSrgb:
			return &Decoded{
				Width: width, Height: height, RGBA: DecodeBC1(payload, width, height),
				Format: Format{Dxgi: &DxgiDescriptor{PixelFormat: BC1RgbaUnormSrgb}},
			}, nil
		case dxgiFormatBC3UnormSrgb:
			return &Decoded{
				Width: width, Height: height, RGBA: DecodeBC3(payload, width, height),
				Format: Format{Dxgi: &DxgiDescriptor{PixelFormat: BC3RgbaUnormSrgb}},
			}, nil
		case dxgiFormatBC7Unorm:
			return &Decoded{
				Width: width, Height: height, RGBA: DecodeBC7Mode6(payload, width, height),
				Format: Format{Dxgi: &DxgiDescriptor{PixelFormat: BC7RgbaUnorm}},
			}, nil
		default:
			return nil, fmt.Errorf("texture: unsupported DXGI format %d", dxgiFormat)
		}
	default:
		return nil, fmt.Errorf("texture: unsupported FourCC 0x%08x", fourcc)
	}
}

// EncodeDDS re-encodes an RGBA8 surface as a DDS payload matching format.
// format.D3D.Compression == DXT3 is rewritten to DXT5 verbatim: the block
// codec this adapter carries, like the original texture encoder, has no
// DXT3 path.
func EncodeDDS(width, height uint32, rgba []byte, format Format) ([]byte, error) {
	if format.D3D != nil {
		compression := format.D3D.Compression
		if compression == DXT3 {
			compression = DXT5
		}
		var body []byte
		var fourcc uint32
		switch compression {
		case DXT1:
			body = EncodeBC1(rgba, width, height)
			fourcc = fourccDXT1
		case DXT5:
			body = EncodeBC3(rgba, width, height)
			fourcc = fourccDXT5
		case A8R8G8B8:
			body = make([]byte, width*height*4)
			copy(body, rgba)
			return buildDDS(width, height, body, 0, true), nil
		default:
			return nil, fmt.Errorf("texture: unsupported D3D compression %v", compression)
		}
		return buildDDSFourCC(width, height, body, fourcc), nil
	}
	if format.Dxgi != nil {
		var body []byte
		var dxgiFormat uint32
		switch format.Dxgi.PixelFormat {
		case BC1RgbaUnormSrgb:
			body = EncodeBC1(rgba, width, height)
			dxgiFormat = dxgiFormatBC1UnormSrgb
		case BC3RgbaUnormSrgb:
			body = EncodeBC3(rgba, width, height)
			dxgiFormat = dxgiFormatBC3UnormSrgb
		case BC7RgbaUnorm:
			body = EncodeBC7Mode6(rgba, width, height)
			dxgiFormat = dxgiFormatBC7Unorm
		default:
			return nil, fmt.Errorf("texture: unsupported DXGI pixel format %v", format.Dxgi.PixelFormat)
		}
		return buildDX10DDS(width, height, body, dxgiFormat), nil
	}
	return nil, fmt.Errorf("texture: format has neither D3D nor Dxgi descriptor")
}

func buildDDSFourCC(width, height uint32, body []byte, fourcc uint32) []byte {
	header := make([]byte, 4+ddsHeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], ddsMagic)
	binary.LittleEndian.PutUint32(header[4:8], ddsHeaderSize)
	binary.LittleEndian.PutUint32(header[8:12], ddsFlagsCommon|ddsFlagsLinear)
	binary.LittleEndian.PutUint32(header[12:16], height)
	binary.LittleEndian.PutUint32(header[16:20], width)
	binary.LittleEndian.PutUint32(header[20:24], uint32(len(body)))
	pf := header[4+72 : 4+104]
	binary.LittleEndian.PutUint32(pf[0:4], ddsPFSize)
	binary.LittleEndian.PutUint32(pf[4:8], 0x4)
	binary.LittleEndian.PutUint32(pf[8:12], fourcc)
	binary.LittleEndian.PutUint32(header[4+108:4+112], ddsCapsTexture)
	return append(header, body...)
}

func buildDDS(width, height uint32, body []byte, pitch uint32, uncompressed bool) []byte {
	header := make([]byte, 4+ddsHeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], ddsMagic)
	binary.LittleEndian.PutUint32(header[4:8], ddsHeaderSize)
	flags := ddsFlagsCommon | 0x8 // PITCH
	binary.LittleEndian.PutUint32(header[8:12], uint32(flags))
	binary.LittleEndian.PutUint32(header[12:16], height)
	binary.LittleEndian.PutUint32(header[16:20], width)
	binary.LittleEndian.PutUint32(header[20:24], width*4)
	pf := header[4+72 : 4+104]
	binary.LittleEndian.PutUint32(pf[0:4], ddsPFSize)
	binary.LittleEndian.PutUint32(pf[4:8], 0x40) // DDPF_RGB
	binary.LittleEndian.PutUint32(pf[16:20], 32)
	binary.LittleEndian.PutUint32(pf[20:24], 0x00FF0000)
	binary.LittleEndian.PutUint32(pf[24:28], 0x0000FF00)
	binary.LittleEndian.PutUint32(pf[28:32], 0x000000FF)
	binary.LittleEndian.PutUint32(header[4+108:4+112], ddsCapsTexture)
	return append(header, body...)
}

// buildDX10DDS writes a DDS header plus the 20-byte DX10 extension, the
// layout the teacher's createDDSHeader constructs by hand for metadata-
// driven raw BC payloads.
func buildDX10DDS(width, height uint32, body []byte, dxgiFormat uint32) []byte {
	header := make([]byte, 4+ddsHeaderSize+20)
	binary.LittleEndian.PutUint32(header[0:4], ddsMagic)
	binary.LittleEndian.PutUint32(header[4:8], ddsHeaderSize)
	binary.LittleEndian.PutUint32(header[8:12], ddsFlagsCommon|ddsFlagsLinear)
	binary.LittleEndian.PutUint32(header[12:16], height)
	binary.LittleEndian.PutUint32(header[16:20], width)
	binary.LittleEndian.PutUint32(header[20:24], uint32(len(body)))
	pf := header[4+72 : 4+104]
	binary.LittleEndian.PutUint32(pf[0:4], ddsPFSize)
	binary.LittleEndian.PutUint32(pf[4:8], 0x4)
	binary.LittleEndian.PutUint32(pf[8:12], fourccDX10)
	binary.LittleEndian.PutUint32(header[4+108:4+112], ddsCapsTexture)

	ext := header[4+ddsHeaderSize : 4+ddsHeaderSize+20]
	binary.LittleEndian.PutUint32(ext[0:4], dxgiFormat)
	binary.LittleEndian.PutUint32(ext[4:8], 3) // D3D10_RESOURCE_DIMENSION_TEXTURE2D
	binary.LittleEndian.PutUint32(ext[12:16], 1) // arraySize

	return append(header, body...)
}
