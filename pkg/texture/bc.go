package texture

// Block-compression transcode for the pixel formats the manifest descriptor
// names: BC1 (DXT1), BC3 (DXT5), and a minimal single-partition (mode 6) BC7
// path for the DXGI texture family. This is the pure-Go equivalent of the
// CGo-to-libsquish shim: same block shapes, no cgo dependency.

func blockDim(n uint32) uint32 {
	return (n + 3) / 4
}

// rgb565 unpacks a 16-bit 5:6:5 color to 8-bit components.
func rgb565(c uint16) (r, g, b uint8) {
	r = uint8(uint32((c>>11)&0x1F) * 255 / 31)
	g = uint8(uint32((c>>5)&0x3F) * 255 / 63)
	b = uint8(uint32(c&0x1F) * 255 / 31)
	return
}

func pack565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

// DecodeBC1 decodes BC1 (DXT1)-compressed data into row-major RGBA8 pixels.
// Width and height need not be multiples of 4; partial edge blocks are
// cropped to the true image bounds.
func DecodeBC1(data []byte, width, height uint32) []byte {
	out := make([]byte, width*height*4)
	blocksW, blocksH := blockDim(width), blockDim(height)
	pos := 0
	for by := uint32(0); by < blocksH; by++ {
		for bx := uint32(0); bx < blocksW; bx++ {
			if pos+8 > len(data) {
				return out
			}
			block := data[pos : pos+8]
			pos += 8
			decodeBC1Block(block, out, width, height, bx*4, by*4)
		}
	}
	return out
}

func decodeBC1Block(block []byte, out []byte, width, height, ox, oy uint32) {
	c0 := uint16(block[0]) | uint16(block[1])<<8
	c1 := uint16(block[2]) | uint16(block[3])<<8
	r0, g0, b0 := rgb565(c0)
	r1, g1, b1 := rgb565(c1)

	var colors [4][4]uint8 // [index][r,g,b,a]
	colors[0] = [4]uint8{r0, g0, b0, 255}
	colors[1] = [4]uint8{r1, g1, b1, 255}
	if c0 > c1 {
		colors[2] = [4]uint8{uint8((2*int(r0) + int(r1)) / 3), uint8((2*int(g0) + int(g1)) / 3), uint8((2*int(b0) + int(b1)) / 3), 255}
		colors[3] = [4]uint8{uint8((int(r0) + 2*int(r1)) / 3), uint8((int(g0) + 2*int(g1)) / 3), uint8((int(b0) + 2*int(b1)) / 3), 255}
	} else {
		colors[2] = [4]uint8{uint8((int(r0) + int(r1)) / 2), uint8((int(g0) + int(g1)) / 2), uint8((int(b0) + int(b1)) / 2), 255}
		colors[3] = [4]uint8{0, 0, 0, 0}
	}

	indices := uint32(block[4]) | uint32(block[5])<<8 | uint32(block[6])<<16 | uint32(block[7])<<24
	for py := uint32(0); py < 4; py++ {
		for px := uint32(0); px < 4; px++ {
			x, y := ox+px, oy+py
			if x >= width || y >= height {
				continue
			}
			idx := (indices >> ((py*4 + px) * 2)) & 0x3
			c := colors[idx]
			o := (y*width + x) * 4
			copy(out[o:o+4], c[:])
		}
	}
}

// EncodeBC1 compresses row-major RGBA8 pixels into BC1 (DXT1) blocks,
// choosing endpoints from the per-channel minimum and maximum of each block.
func EncodeBC1(rgba []byte, width, height uint32) []byte {
	blocksW, blocksH := blockDim(width), blockDim(height)
	out := make([]byte, blocksW*blocksH*8)
	pos := 0
	for by := uint32(0); by < blocksH; by++ {
		for bx := uint32(0); bx < blocksW; bx++ {
			encodeBC1Block(rgba, width, height, bx*4, by*4, out[pos:pos+8])
			pos += 8
		}
	}
	return out
}

func blockPixel(rgba []byte, width, height, x, y uint32) [4]uint8 {
	if x >= width || y >= height {
		return [4]uint8{0, 0, 0, 0}
	}
	o := (y*width + x) * 4
	return [4]uint8{rgba[o], rgba[o+1], rgba[o+2], rgba[o+3]}
}

func encodeBC1Block(rgba []byte, width, height, ox, oy uint32, dst []byte) {
	var minC, maxC [4]uint8 = [4]uint8{255, 255, 255, 255}, [4]uint8{0, 0, 0, 0}
	var pixels [16][4]uint8
	for py := uint32(0); py < 4; py++ {
		for px := uint32(0); px < 4; px++ {
			p := blockPixel(rgba, width, height, ox+px, oy+py)
			pixels[py*4+px] = p
			for c := 0; c < 3; c++ {
				if p[c] < minC[c] {
					minC[c] = p[c]
				}
				if p[c] > maxC[c] {
					maxC[c] = p[c]
				}
			}
		}
	}

	c0 := pack565(maxC[0], maxC[1], maxC[2])
	c1 := pack565(minC[0], minC[1], minC[2])
	if c0 == c1 {
		if c0 > 0 {
			c1--
		} else {
			c0++
		}
	}
	if c0 < c1 {
		c0, c1 = c1, c0
	}
	dst[0] = byte(c0)
	dst[1] = byte(c0 >> 8)
	dst[2] = byte(c1)
	dst[3] = byte(c1 >> 8)

	r0, g0, b0 := rgb565(c0)
	r1, g1, b1 := rgb565(c1)
	palette := [4][3]int{
		{int(r0), int(g0), int(b0)},
		{int(r1), int(g1), int(b1)},
		{(2*int(r0) + int(r1)) / 3, (2*int(g0) + int(g1)) / 3, (2*int(b0) + int(b1)) / 3},
		{(int(r0) + 2*int(r1)) / 3, (int(g0) + 2*int(g1)) / 3, (int(b0) + 2*int(b1)) / 3},
	}

	var indices uint32
	for i, p := range pixels {
		best, bestDist := 0, 1<<30
		for ci, c := range palette {
			dr := int(p[0]) - c[0]
			dg := int(p[1]) - c[1]
			db := int(p[2]) - c[2]
			dist := dr*dr + dg*dg + db*db
			if dist < bestDist {
				bestDist = dist
				best = ci
			}
		}
		indices |= uint32(best) << (uint(i) * 2)
	}
	dst[4] = byte(indices)
	dst[5] = byte(indices >> 8)
	dst[6] = byte(indices >> 16)
	dst[7] = byte(indices >> 24)
}

// DecodeBC3 decodes BC3 (DXT5)-compressed data into row-major RGBA8 pixels.
func DecodeBC3(data []byte, width, height uint32) []byte {
	out := make([]byte, width*height*4)
	blocksW, blocksH := blockDim(width), blockDim(height)
	pos := 0
	for by := uint32(0); by < blocksH; by++ {
		for bx := uint32(0); bx < blocksW; bx++ {
			if pos+16 > len(data) {
				return out
			}
			block := data[pos : pos+16]
			pos += 16
			decodeBC3Block(block, out, width, height, bx*4, by*4)
		}
	}
	return out
}

func bc3AlphaPalette(a0, a1 byte) [8]uint8 {
	var p [8]uint8
	p[0], p[1] = a0, a1
	if a0 > a1 {
		for i := 1; i <= 6; i++ {
			p[1+i] = uint8((int(7-i)*int(a0) + int(i)*int(a1)) / 7)
		}
	} else {
		for i := 1; i <= 4; i++ {
			p[1+i] = uint8((int(5-i)*int(a0) + int(i)*int(a1)) / 5)
		}
		p[6], p[7] = 0, 255
	}
	return p
}

func decodeBC3Block(block []byte, out []byte, width, height, ox, oy uint32) {
	a0, a1 := block[0], block[1]
	alphaPalette := bc3AlphaPalette(a0, a1)
	alphaBits := uint64(block[2]) | uint64(block[3])<<8 | uint64(block[4])<<16 |
		uint64(block[5])<<24 | uint64(block[6])<<32 | uint64(block[7])<<40

	colorBlock := block[8:16]
	c0 := uint16(colorBlock[0]) | uint16(colorBlock[1])<<8
	c1 := uint16(colorBlock[2]) | uint16(colorBlock[3])<<8
	r0, g0, b0 := rgb565(c0)
	r1, g1, b1 := rgb565(c1)
	palette := [4][3]int{
		{int(r0), int(g0), int(b0)},
		{int(r1), int(g1), int(b1)},
		{(2*int(r0) + int(r1)) / 3, (2*int(g0) + int(g1)) / 3, (2*int(b0) + int(b1)) / 3},
		{(int(r0) + 2*int(r1)) / 3, (int(g0) + 2*int(g1)) / 3, (int(b0) + 2*int(b1)) / 3},
	}
	indices := uint32(colorBlock[4]) | uint32(colorBlock[5])<<8 | uint32(colorBlock[6])<<16 | uint32(colorBlock[7])<<24

	for py := uint32(0); py < 4; py++ {
		for px := uint32(0); px < 4; px++ {
			x, y := ox+px, oy+py
			if x >= width || y >= height {
				continue
			}
			n := py*4 + px
			cidx := (indices >> (n * 2)) & 0x3
			aidx := (alphaBits >> (uint64(n) * 3)) & 0x7
			o := (y*width + x) * 4
			out[o] = uint8(palette[cidx][0])
			out[o+1] = uint8(palette[cidx][1])
			out[o+2] = uint8(palette[cidx][2])
			out[o+3] = alphaPalette[aidx]
		}
	}
}

// EncodeBC3 compresses row-major RGBA8 pixels into BC3 (DXT5) blocks.
func EncodeBC3(rgba []byte, width, height uint32) []byte {
	blocksW, blocksH := blockDim(width), blockDim(height)
	out := make([]byte, blocksW*blocksH*16)
	pos := 0
	for by := uint32(0); by < blocksH; by++ {
		for bx := uint32(0); bx < blocksW; bx++ {
			encodeBC3Block(rgba, width, height, bx*4, by*4, out[pos:pos+16])
			pos += 16
		}
	}
	return out
}

func encodeBC3Block(rgba []byte, width, height, ox, oy uint32, dst []byte) {
	var pixels [16][4]uint8
	minA, maxA := uint8(255), uint8(0)
	for py := uint32(0); py < 4; py++ {
		for px := uint32(0); px < 4; px++ {
			p := blockPixel(rgba, width, height, ox+px, oy+py)
			pixels[py*4+px] = p
			if p[3] < minA {
				minA = p[3]
			}
			if p[3] > maxA {
				maxA = p[3]
			}
		}
	}
	a0, a1 := maxA, minA
	dst[0], dst[1] = a0, a1
	palette := bc3AlphaPalette(a0, a1)

	var alphaBits uint64
	for i, p := range pixels {
		best, bestDist := 0, 1<<30
		for ai, a := range palette {
			d := int(p[3]) - int(a)
			if d < 0 {
				d = -d
			}
			if d < bestDist {
				bestDist = d
				best = ai
			}
		}
		alphaBits |= uint64(best) << (uint(i) * 3)
	}
	for i := 0; i < 6; i++ {
		dst[2+i] = byte(alphaBits >> (uint(i) * 8))
	}

	var tmp [8]byte
	encodeBC1Block(padTo4x4(pixels), 4, 4, 0, 0, tmp[:])
	copy(dst[8:16], tmp[:])
}

// padTo4x4 flattens a fixed 4x4 pixel block into a dense row-major RGBA
// buffer so encodeBC1Block's generic indexing can run over it directly.
func padTo4x4(pixels [16][4]uint8) []byte {
	buf := make([]byte, 16*4)
	for i, p := range pixels {
		copy(buf[i*4:i*4+4], p[:])
	}
	return buf
}

// bc7Weights4 are the BC7 16-level (4-bit index) interpolation weights, out
// of 64, per the block-compression spec.
var bc7Weights4 = [16]int{0, 4, 9, 13, 17, 21, 26, 30, 34, 38, 43, 47, 51, 55, 60, 64}

type bitReader struct {
	data []byte
	pos  int
}

func (r *bitReader) read(n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		byteIdx := r.pos / 8
		bitIdx := uint(r.pos % 8)
		if byteIdx < len(r.data) && r.data[byteIdx]&(1<<bitIdx) != 0 {
			v |= 1 << uint(i)
		}
		r.pos++
	}
	return v
}

type bitWriter struct {
	data []byte
}

func newBitWriter(nbytes int) *bitWriter {
	return &bitWriter{data: make([]byte, nbytes)}
}

func (w *bitWriter) write(v uint32, n int, pos int) {
	for i := 0; i < n; i++ {
		if v&(1<<uint(i)) != 0 {
			byteIdx := pos / 8
			bitIdx := uint(pos % 8)
			w.data[byteIdx] |= 1 << bitIdx
		}
		pos++
	}
}

// DecodeBC7Mode6 decodes a single-partition BC7 mode-6 image, the only mode
// EncodeBC7Mode6 produces. The mode bits are not checked: a block of any
// other mode is decoded as if it were mode 6.
func DecodeBC7Mode6(data []byte, width, height uint32) []byte {
	out := make([]byte, width*height*4)
	blocksW, blocksH := blockDim(width), blockDim(height)
	pos := 0
	for by := uint32(0); by < blocksH; by++ {
		for bx := uint32(0); bx < blocksW; bx++ {
			if pos+16 > len(data) {
				return out
			}
			decodeBC7Mode6Block(data[pos:pos+16], out, width, height, bx*4, by*4)
			pos += 16
		}
	}
	return out
}

func decodeBC7Mode6Block(block []byte, out []byte, width, height, ox, oy uint32) {
	br := &bitReader{data: block}
	br.read(7) // mode header: six 0 bits then a 1

	var e [2][4]int // [endpoint][R,G,B,A]
	for c := 0; c < 4; c++ {
		e[0][c] = int(br.read(7))
		e[1][c] = int(br.read(7))
	}
	p0 := br.read(1)
	p1 := br.read(1)
	for c := 0; c < 4; c++ {
		e[0][c] = e[0][c]<<1 | int(p0)
		e[1][c] = e[1][c]<<1 | int(p1)
	}

	for py := uint32(0); py < 4; py++ {
		for px := uint32(0); px < 4; px++ {
			n := py*4 + px
			bits := 4
			if n == 0 {
				bits = 3
			}
			idx := int(br.read(bits))
			w := bc7Weights4[idx]
			x, y := ox+px, oy+py
			if x >= width || y >= height {
				continue
			}
			o := (y*width + x) * 4
			for c := 0; c < 4; c++ {
				out[int(o)+c] = uint8(((64-w)*e[0][c] + w*e[1][c] + 32) / 64)
			}
		}
	}
}

// EncodeBC7Mode6 compresses row-major RGBA8 pixels into single-partition
// BC7 mode-6 blocks.
func EncodeBC7Mode6(rgba []byte, width, height uint32) []byte {
	blocksW, blocksH := blockDim(width), blockDim(height)
	out := make([]byte, blocksW*blocksH*16)
	pos := 0
	for by := uint32(0); by < blocksH; by++ {
		for bx := uint32(0); bx < blocksW; bx++ {
			encodeBC7Mode6Block(rgba, width, height, bx*4, by*4, out[pos:pos+16])
			pos += 16
		}
	}
	return out
}

func encodeBC7Mode6Block(rgba []byte, width, height, ox, oy uint32, dst []byte) {
	var pixels [16][4]uint8
	var minC, maxC [4]int = [4]int{255, 255, 255, 255}, [4]int{0, 0, 0, 0}
	for py := uint32(0); py < 4; py++ {
		for px := uint32(0); px < 4; px++ {
			p := blockPixel(rgba, width, height, ox+px, oy+py)
			pixels[py*4+px] = p
			for c := 0; c < 4; c++ {
				v := int(p[c])
				if v < minC[c] {
					minC[c] = v
				}
				if v > maxC[c] {
					maxC[c] = v
				}
			}
		}
	}

	bw := newBitWriter(16)
	pos := 0
	bw.write(1<<6, 7, pos) // mode 6 header
	pos += 7

	e0, e1 := maxC, minC
	for c := 0; c < 4; c++ {
		bw.write(uint32(e0[c]>>1), 7, pos)
		pos += 7
		bw.write(uint32(e1[c]>>1), 7, pos)
		pos += 7
	}
	bw.write(uint32(e0[0]&1), 1, pos)
	pos++
	bw.write(uint32(e1[0]&1), 1, pos)
	pos++

	// Reconstruct the quantized endpoints exactly as the decoder will, so
	// per-pixel index selection matches what gets decoded back.
	q0 := [4]int{(e0[0] >> 1 << 1) | (e0[0] & 1), (e0[1] >> 1 << 1) | (e0[0] & 1), (e0[2] >> 1 << 1) | (e0[0] & 1), (e0[3] >> 1 << 1) | (e0[0] & 1)}
	q1 := [4]int{(e1[0] >> 1 << 1) | (e1[0] & 1), (e1[1] >> 1 << 1) | (e1[0] & 1), (e1[2] >> 1 << 1) | (e1[0] & 1), (e1[3] >> 1 << 1) | (e1[0] & 1)}

	for i, p := range pixels {
		bits := 4
		if i == 0 {
			bits = 3
		}
		maxIdx := 1 << uint(bits)
		best, bestDist := 0, 1<<30
		for idx := 0; idx < maxIdx && idx < 16; idx++ {
			w := bc7Weights4[idx]
			dist := 0
			for c := 0; c < 4; c++ {
				rv := (64-w)*q0[c] + w*q1[c] + 32
				rv /= 64
				d := int(p[c]) - rv
				dist += d * d
			}
			if dist < bestDist {
				bestDist = dist
				best = idx
			}
		}
		bw.write(uint32(best), bits, pos)
		pos += bits
	}

	copy(dst, bw.data)
}
