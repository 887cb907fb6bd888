package mbi

import "strconv"

// FramebufferType is the variant payload of a framebuffer tag. The set
// is closed by the wire format: indexed color, direct RGB, or EGA
// text. Implementations carry the payload fields of their variant.
type FramebufferType interface {
	typeCode() uint8
	appendPayload(dst []byte) []byte
}

// FramebufferColor is one palette entry of an indexed-color
// framebuffer.
type FramebufferColor struct {
	Red   uint8
	Green uint8
	Blue  uint8
}

// FramebufferField describes where one color channel lives within a
// pixel: the bit position of its least significant bit and its width
// in bits.
type FramebufferField struct {
	Position uint8
	Size     uint8
}

// FramebufferIndexed is the indexed-color variant: pixels are indices
// into the palette.
type FramebufferIndexed struct {
	Palette []FramebufferColor
}

// FramebufferRGB is the direct-color variant: pixels carry their own
// red, green and blue channel values at the described positions.
type FramebufferRGB struct {
	Red   FramebufferField
	Green FramebufferField
	Blue  FramebufferField
}

// FramebufferText is the EGA text variant. Width and height count
// characters rather than pixels, pitch is bytes per text line, and bpp
// is 16: one character cell is a u16.
type FramebufferText struct{}

func (FramebufferIndexed) typeCode() uint8 { return 0 }
func (FramebufferRGB) typeCode() uint8     { return 1 }
func (FramebufferText) typeCode() uint8    { return 2 }

// framebufferPrefixSize is the fixed part of the framebuffer tag body:
// address, pitch, width, height, bpp, type and the reserved u16. The
// Multiboot2 text declares the reserved field as u8; GRUB writes a
// u16, and GRUB wins.
const framebufferPrefixSize = 24

// FramebufferTag describes the framebuffer the loader set up. The
// address is physical and the loader keeps the 64-bit field below
// 4 GiB when it can, for payloads unaware of PAE or amd64.
type FramebufferTag struct {
	address uint64
	pitch   uint32
	width   uint32
	height  uint32
	bpp     uint8
	typeNo  uint8
	variant []byte
}

// ParseFramebufferTag validates the fixed prefix of a framebuffer tag.
// The variant payload is decoded later, by BufferType.
func ParseFramebufferTag(t Tag) (*FramebufferTag, error) {
	if t.Type() != TagTypeFramebuffer {
		return nil, structural(0, "not a framebuffer tag: "+t.Type().String())
	}
	if len(t.Body()) < framebufferPrefixSize {
		return nil, structural(TagHeaderSize, "framebuffer tag too short for its fixed fields")
	}
	c := t.bodyCursor()
	address, _ := c.ReadUint64()
	pitch, _ := c.ReadUint32()
	width, _ := c.ReadUint32()
	height, _ := c.ReadUint32()
	bpp, _ := c.ReadUint8()
	typeNo, _ := c.ReadUint8()
	_ = c.Skip(2) // reserved
	return &FramebufferTag{
		address: address,
		pitch:   pitch,
		width:   width,
		height:  height,
		bpp:     bpp,
		typeNo:  typeNo,
		variant: t.Body()[framebufferPrefixSize:],
	}, nil
}

// Address returns the physical address of the framebuffer.
func (t *FramebufferTag) Address() uint64 { return t.address }

// Pitch returns the pitch in bytes.
func (t *FramebufferTag) Pitch() uint32 { return t.pitch }

// Width returns the framebuffer width in pixels (characters for the
// text variant).
func (t *FramebufferTag) Width() uint32 { return t.width }

// Height returns the framebuffer height in pixels (characters for the
// text variant).
func (t *FramebufferTag) Height() uint32 { return t.height }

// BPP returns the number of bits per pixel.
func (t *FramebufferTag) BPP() uint8 { return t.bpp }

// BufferType decodes the variant payload. A discriminant this package
// does not know yields an *UnknownVariantError carrying the code; the
// rest of the tag stays usable.
func (t *FramebufferTag) BufferType() (FramebufferType, error) {
	c := newCursorAt(t.variant, TagHeaderSize+framebufferPrefixSize)
	switch t.typeNo {
	case 0:
		numColors, err := c.ReadUint32()
		if err != nil {
			return nil, structural(c.Offset(), "indexed framebuffer payload too short for its palette size")
		}
		if uint64(numColors)*3 > uint64(c.Remaining()) {
			return nil, structural(c.Offset(), "palette of "+strconv.FormatUint(uint64(numColors), 10)+
				" colors overruns the tag")
		}
		palette := make([]FramebufferColor, numColors)
		for i := range palette {
			w, _ := c.ReadBytes(3)
			palette[i] = FramebufferColor{Red: w[0], Green: w[1], Blue: w[2]}
		}
		return FramebufferIndexed{Palette: palette}, nil
	case 1:
		w, err := c.ReadBytes(6)
		if err != nil {
			return nil, structural(c.Offset(), "rgb framebuffer payload too short for its field layout")
		}
		return FramebufferRGB{
			Red:   FramebufferField{Position: w[0], Size: w[1]},
			Green: FramebufferField{Position: w[2], Size: w[3]},
			Blue:  FramebufferField{Position: w[4], Size: w[5]},
		}, nil
	case 2:
		return FramebufferText{}, nil
	default:
		return nil, &UnknownVariantError{Union: "framebuffer type", Code: t.typeNo}
	}
}

func (f FramebufferIndexed) appendPayload(dst []byte) []byte {
	dst = appendUint32(dst, uint32(len(f.Palette)))
	for _, c := range f.Palette {
		dst = append(dst, c.Red, c.Green, c.Blue)
	}
	return dst
}

func (f FramebufferRGB) appendPayload(dst []byte) []byte {
	return append(dst,
		f.Red.Position, f.Red.Size,
		f.Green.Position, f.Green.Size,
		f.Blue.Position, f.Blue.Size,
	)
}

func (FramebufferText) appendPayload(dst []byte) []byte { return dst }
