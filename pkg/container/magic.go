package container

// Magic identifies the four leading bytes of an opaque payload, read
// big-endian so the constants read left-to-right as ASCII.
type Magic uint32

const (
	MagicContainer Magic = 0x01000000
	MagicModel     Magic = 0x746D6430 // "tmd0"
	MagicAnim      Magic = 0x746D6F31 // "tmo1"
	MagicOpaque    Magic = 0x61303031 // "a001"
	MagicDDS       Magic = 0x44447620 // "DDv "
	MagicGNF       Magic = 0x474E4620 // "GNF "
)

// magicExt maps a recognised magic to its on-disk extension. This is a
// constant lookup table, not process-wide state.
var magicExt = map[Magic]string{
	MagicModel:  ".tmd0",
	MagicAnim:   ".tmo1",
	MagicOpaque: ".a001",
	MagicDDS:    ".dds",
}

// extensionFor returns the extension the magic table assigns to raw, or
// ".bin" when raw's leading word is unrecognised. The GNF magic is handled
// separately by the caller since it is rejected, not extended.
func extensionFor(raw []byte) string {
	if len(raw) < 4 {
		return ".bin"
	}
	m := Magic(uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3]))
	if ext, ok := magicExt[m]; ok {
		return ext
	}
	return ".bin"
}

func magicOf(raw []byte) Magic {
	if len(raw) < 4 {
		return 0
	}
	return Magic(uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3]))
}
