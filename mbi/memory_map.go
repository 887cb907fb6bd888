package mbi

import "strconv"

// BasicMemoryInfoTag reports the amount of lower and upper memory in
// kibibytes. Lower memory starts at address 0, upper memory at 1 MiB;
// the upper value is at most the address of the first upper memory
// hole minus 1 MiB.
type BasicMemoryInfoTag struct {
	lower uint32
	upper uint32
}

// ParseBasicMemoryInfoTag validates and decodes a basic memory info tag.
func ParseBasicMemoryInfoTag(t Tag) (*BasicMemoryInfoTag, error) {
	if t.Type() != TagTypeBasicMemoryInfo {
		return nil, structural(0, "not a basic memory info tag: "+t.Type().String())
	}
	c := t.bodyCursor()
	lower, err := c.ReadUint32()
	if err != nil {
		return nil, structural(c.Offset(), "basic memory info tag too short")
	}
	upper, err := c.ReadUint32()
	if err != nil {
		return nil, structural(c.Offset(), "basic memory info tag too short")
	}
	return &BasicMemoryInfoTag{lower: lower, upper: upper}, nil
}

// MemoryLower returns the amount of lower memory in KiB.
func (t *BasicMemoryInfoTag) MemoryLower() uint32 { return t.lower }

// MemoryUpper returns the amount of upper memory in KiB.
func (t *BasicMemoryInfoTag) MemoryUpper() uint32 { return t.upper }

// MemoryAreaType classifies a memory map area. The type is open:
// values outside the named set pass through decoding untouched so a
// map written by a newer loader survives a re-encode.
type MemoryAreaType uint32

// Memory area types defined by the Multiboot2 specification.
const (
	// MemoryAreaAvailable marks memory available to the OS.
	MemoryAreaAvailable MemoryAreaType = 1

	// MemoryAreaReserved marks memory in use or reserved by the system.
	MemoryAreaReserved MemoryAreaType = 2

	// MemoryAreaACPIAvailable marks memory holding ACPI information.
	MemoryAreaACPIAvailable MemoryAreaType = 3

	// MemoryAreaReservedHibernate marks memory that must be preserved
	// across hibernation.
	MemoryAreaReservedHibernate MemoryAreaType = 4

	// MemoryAreaDefective marks memory occupied by defective RAM.
	MemoryAreaDefective MemoryAreaType = 5
)

// String implements fmt.Stringer
func (t MemoryAreaType) String() string {
	switch t {
	case MemoryAreaAvailable:
		return "available"
	case MemoryAreaReserved:
		return "reserved"
	case MemoryAreaACPIAvailable:
		return "acpi"
	case MemoryAreaReservedHibernate:
		return "preserved on hibernation"
	case MemoryAreaDefective:
		return "defective"
	default:
		return "unknown(" + strconv.FormatUint(uint64(t), 10) + ")"
	}
}

// MemoryArea is one entry of the memory map: a physical address range
// and its classification.
type MemoryArea struct {
	BaseAddr uint64
	Length   uint64
	Type     MemoryAreaType
	Reserved uint32 // written as zero by loaders; carried verbatim
}

// EndAddress returns the physical address one past the area.
func (a MemoryArea) EndAddress() uint64 { return a.BaseAddr + a.Length }

// memoryAreaSize is the nominal encoded size of a MemoryArea. The wire
// stride may be larger; it never may be smaller.
const memoryAreaSize = 24

// MemoryMapTag is the memory map provided by the BIOS via the loader.
// It indicates which physical address ranges the OS may use and which
// it must leave alone, upper memory holes included. Areas may overlap
// and need not cover all memory.
type MemoryMapTag struct {
	tag     Tag
	stride  uint32
	version uint32
	count   int
}

// ParseMemoryMapTag validates the framing of a memory map tag: the
// entry size must cover a whole area and divide the entry region
// evenly. Entries beyond a parsed map are addressed by stride, so the
// checks here are what make every later Area call safe.
func ParseMemoryMapTag(t Tag) (*MemoryMapTag, error) {
	stride, version, count, err := parseArrayHeader(t, TagTypeMemoryMap, memoryAreaSize, "memory map entry")
	if err != nil {
		return nil, err
	}
	return &MemoryMapTag{tag: t, stride: stride, version: version, count: count}, nil
}

// parseArrayHeader decodes the two u32 header fields shared by the
// array-shaped tags (stride, format version) and derives the element
// count. A stride below the nominal element size would make element
// windows overlap; a remainder after dividing would leave trailing
// bytes no element accounts for. Both are framing damage.
func parseArrayHeader(t Tag, want TagType, nominal uint32, what string) (stride, version uint32, count int, err error) {
	if t.Type() != want {
		return 0, 0, 0, structural(0, "not a "+want.String()+" tag: "+t.Type().String())
	}
	c := t.bodyCursor()
	stride, serr := c.ReadUint32()
	if serr != nil {
		return 0, 0, 0, structural(c.Offset(), want.String()+" tag too short for its array header")
	}
	version, serr = c.ReadUint32()
	if serr != nil {
		return 0, 0, 0, structural(c.Offset(), want.String()+" tag too short for its array header")
	}
	if stride < nominal {
		return 0, 0, 0, structural(TagHeaderSize, what+" size "+strconv.FormatUint(uint64(stride), 10)+
			" below "+strconv.Itoa(int(nominal)))
	}
	area := int64(c.Remaining())
	if area%int64(stride) != 0 {
		return 0, 0, 0, structural(c.Offset(), what+" area "+strconv.FormatInt(area, 10)+
			" not a multiple of "+what+" size "+strconv.FormatUint(uint64(stride), 10))
	}
	return stride, version, int(area / int64(stride)), nil
}

// EntrySize returns the stride between entries. It may exceed the
// nominal entry size when the producer appended fields this package
// does not know about.
func (t *MemoryMapTag) EntrySize() uint32 { return t.stride }

// EntryVersion returns the entry format version, currently 0.
func (t *MemoryMapTag) EntryVersion() uint32 { return t.version }

// AreaCount returns the number of areas in the map.
func (t *MemoryMapTag) AreaCount() int { return t.count }

// Area decodes the i-th area. It panics when i is out of range, like
// indexing a slice.
func (t *MemoryMapTag) Area(i int) MemoryArea {
	return decodeMemoryArea(t.areaWindow(i))
}

// Areas decodes every area in the map.
func (t *MemoryMapTag) Areas() []MemoryArea {
	out := make([]MemoryArea, t.count)
	for i := range out {
		out[i] = t.Area(i)
	}
	return out
}

// AvailableAreas decodes the areas marked available to the OS.
func (t *MemoryMapTag) AvailableAreas() []MemoryArea {
	var out []MemoryArea
	for i := 0; i < t.count; i++ {
		if a := t.Area(i); a.Type == MemoryAreaAvailable {
			out = append(out, a)
		}
	}
	return out
}

// Mutable returns a write handle over the same entries. See
// MutableMemoryMap for the aliasing rules.
func (t *MemoryMapTag) Mutable() *MutableMemoryMap {
	return &MutableMemoryMap{t: t}
}

// areaWindow returns the first memoryAreaSize bytes of the i-th
// element window. Bytes between the nominal size and the stride belong
// to fields defined after this package was written and are skipped.
func (t *MemoryMapTag) areaWindow(i int) []byte {
	if i < 0 || i >= t.count {
		panic("mbi: memory area index " + strconv.Itoa(i) + " out of range")
	}
	off := 8 + i*int(t.stride)
	return t.tag.Body()[off : off+memoryAreaSize]
}

func decodeMemoryArea(w []byte) MemoryArea {
	return MemoryArea{
		BaseAddr: byteOrder.Uint64(w[0:]),
		Length:   byteOrder.Uint64(w[8:]),
		Type:     MemoryAreaType(byteOrder.Uint32(w[16:])),
		Reserved: byteOrder.Uint32(w[20:]),
	}
}

func encodeMemoryArea(w []byte, a MemoryArea) {
	byteOrder.PutUint64(w[0:], a.BaseAddr)
	byteOrder.PutUint64(w[8:], a.Length)
	byteOrder.PutUint32(w[16:], uint32(a.Type))
	byteOrder.PutUint32(w[20:], a.Reserved)
}

// MutableMemoryMap writes areas back into the region the map was
// loaded from, for in-place correction of what the loader reported.
// Writes go through to the caller's memory immediately. Hold at most
// one mutable handle per map and do not decode areas through other
// views while mutating; nothing here synchronizes access.
type MutableMemoryMap struct {
	t *MemoryMapTag
}

// SetArea overwrites the i-th area. It panics when i is out of range,
// like indexing a slice. Stride bytes beyond the nominal entry size
// are left untouched.
func (m *MutableMemoryMap) SetArea(i int, a MemoryArea) {
	encodeMemoryArea(m.t.areaWindow(i), a)
}
