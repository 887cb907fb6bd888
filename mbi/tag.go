// Package mbi decodes and encodes Multiboot2 boot information.
//
// A boot information region is a fixed header followed by a stream of
// 8-byte-aligned, type-tagged records ("tags") ending in a terminator
// tag. This package defines three "families" of functionality:
//   - Load() validates a region and returns a zero-copy BootInformation
//     view; its iterator and typed accessors decode individual tags.
//   - ParseXxxTag() turns a generic Tag into a typed view with
//     field accessors.
//   - AppendXxx() appends an encoded tag to a []byte, and Assemble()
//     joins encoded tags into a complete region.
//
// Decoding never copies tag payloads and never reads outside the
// region handed to Load. All multi-byte fields are little-endian.
package mbi

import "strconv"

// TagType identifies the kind of a boot information tag.
type TagType uint32

// Tag types defined by the Multiboot2 specification.
const (
	TagTypeEnd            TagType = iota // terminator
	TagTypeCommandLine                   // kernel command line
	TagTypeBootLoaderName                // boot loader name
	TagTypeModule                        // boot module
	TagTypeBasicMemoryInfo               // basic memory bounds
	TagTypeBootDevice                    // BIOS boot device
	TagTypeMemoryMap                     // memory map
	TagTypeVBE                           // VBE info
	TagTypeFramebuffer                   // framebuffer info
	TagTypeElfSections                   // ELF section headers
	TagTypeAPM                           // APM table
	TagTypeEFI32                         // EFI 32-bit system table pointer
	TagTypeEFI64                         // EFI 64-bit system table pointer
	TagTypeSmbios                        // SMBIOS tables
	TagTypeACPIv1                        // ACPI v1 RSDP
	TagTypeACPIv2                        // ACPI v2 RSDP
	TagTypeNetwork                       // DHCP ack
	TagTypeEFIMemoryMap                  // EFI memory map
	TagTypeEFIBS                         // EFI boot services not terminated
	TagTypeEFI32IH                       // EFI 32-bit image handle pointer
	TagTypeEFI64IH                       // EFI 64-bit image handle pointer
	TagTypeLoadBaseAddr                  // image load base physical address
)

// String implements fmt.Stringer
func (t TagType) String() string {
	switch t {
	case TagTypeEnd:
		return "end"
	case TagTypeCommandLine:
		return "command line"
	case TagTypeBootLoaderName:
		return "boot loader name"
	case TagTypeModule:
		return "module"
	case TagTypeBasicMemoryInfo:
		return "basic memory info"
	case TagTypeBootDevice:
		return "boot device"
	case TagTypeMemoryMap:
		return "memory map"
	case TagTypeVBE:
		return "vbe"
	case TagTypeFramebuffer:
		return "framebuffer"
	case TagTypeElfSections:
		return "elf sections"
	case TagTypeAPM:
		return "apm"
	case TagTypeEFI32:
		return "efi32"
	case TagTypeEFI64:
		return "efi64"
	case TagTypeSmbios:
		return "smbios"
	case TagTypeACPIv1:
		return "acpi v1"
	case TagTypeACPIv2:
		return "acpi v2"
	case TagTypeNetwork:
		return "network"
	case TagTypeEFIMemoryMap:
		return "efi memory map"
	case TagTypeEFIBS:
		return "efi boot services"
	case TagTypeEFI32IH:
		return "efi32 image handle"
	case TagTypeEFI64IH:
		return "efi64 image handle"
	case TagTypeLoadBaseAddr:
		return "load base address"
	default:
		return "unknown(" + strconv.FormatUint(uint64(t), 10) + ")"
	}
}

const (
	// TagHeaderSize is the size of the tag header: a u32 type code and
	// a u32 total size. The size counts header plus body and excludes
	// inter-tag padding.
	TagHeaderSize = 8

	// TagAlign is the alignment of every tag within the region.
	TagAlign = 8

	// InfoHeaderSize is the size of the fixed region header: a u32
	// total size and a u32 reserved word.
	InfoHeaderSize = 8
)

// alignUp rounds n up to the next multiple of TagAlign.
func alignUp(n int) int {
	return (n + TagAlign - 1) &^ (TagAlign - 1)
}

// Tag is a borrowed view of a single encoded tag: the 8-byte header
// plus the body the header's size field declares. Tags are produced by
// TagIter, which guarantees the view lies inside the loaded region.
type Tag struct {
	typ  TagType
	data []byte // header + body; len(data) equals the declared size
}

// Type returns the tag's type code. Unknown codes are preserved.
func (t Tag) Type() TagType { return t.typ }

// Size returns the declared tag size: header plus body, excluding
// inter-tag padding.
func (t Tag) Size() uint32 { return uint32(len(t.data)) }

// Body returns the tag payload after the header, without copying.
func (t Tag) Body() []byte { return t.data[TagHeaderSize:] }

// Raw returns the full encoded tag including its header, without
// copying and without trailing padding. The result is a valid input
// for Assemble, which is how unrecognized tags survive a re-encode.
func (t Tag) Raw() []byte { return t.data }

// body cursor positioned after the tag header, reporting offsets
// relative to the tag start.
func (t Tag) bodyCursor() *Cursor { return newCursorAt(t.data[TagHeaderSize:], TagHeaderSize) }

// TagIter walks the tag stream of a loaded region. The zero value is
// not usable; obtain one from (*BootInformation).Tags.
//
// By default damage to the stream (a size field pointing outside the
// region, a truncated final tag) silently ends iteration, which is how
// boot consumers treat regions written by unknown future loaders. Turn
// on strict mode to surface the damage through Err instead.
type TagIter struct {
	region []byte
	pos    int // offset of the next tag within region
	strict bool
	sawEnd bool
	done   bool
	err    error
}

// SetStrict controls whether structural damage ends iteration silently
// (the default) or is recorded and exposed through Err.
func (it *TagIter) SetStrict(strict bool) { it.strict = strict }

// Err returns the structural error that ended a strict iteration, or
// nil. It never returns anything in lenient mode.
func (it *TagIter) Err() error { return it.err }

// Next returns the next tag in the stream. It returns false when the
// terminator is reached, the region is exhausted, or the stream is
// damaged (see SetStrict). The terminator itself is not yielded.
func (it *TagIter) Next() (Tag, bool) {
	if it.done {
		return Tag{}, false
	}
	rem := len(it.region) - it.pos
	if rem < TagHeaderSize {
		it.stop(rem != 0, it.pos, "trailing bytes too short for a tag header")
		return Tag{}, false
	}
	typ := TagType(byteOrder.Uint32(it.region[it.pos:]))
	size := byteOrder.Uint32(it.region[it.pos+4:])
	if size < TagHeaderSize {
		it.stop(true, it.pos+4, "tag size "+strconv.FormatUint(uint64(size), 10)+" below header size")
		return Tag{}, false
	}
	if typ == TagTypeEnd {
		it.sawEnd = true
		it.stop(size != TagHeaderSize, it.pos+4, "end tag size "+strconv.FormatUint(uint64(size), 10)+" instead of 8")
		return Tag{}, false
	}
	if uint64(it.pos)+uint64(size) > uint64(len(it.region)) {
		it.stop(true, it.pos, typ.String()+" tag overruns the region")
		return Tag{}, false
	}
	tag := Tag{typ: typ, data: it.region[it.pos : it.pos+int(size) : it.pos+int(size)]}
	it.pos += alignUp(int(size))
	return tag, true
}

// stop ends iteration; when the stop is abnormal and the iterator is
// strict, it records a structural error.
func (it *TagIter) stop(abnormal bool, off int, detail string) {
	it.done = true
	if abnormal && it.strict {
		it.err = structural(off, detail)
	}
}
