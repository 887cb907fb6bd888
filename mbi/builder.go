package mbi

import "strconv"

// The AppendXxx functions encode one tag each: header plus body, no
// trailing padding. Their outputs are what Assemble joins into a
// complete region; alignment between tags is Assemble's business, not
// theirs. Like append, they may return a larger slice backed by new
// memory, so always keep the result.

// ensure 'sz' extra bytes in 'b' btw len(b) and cap(b)
func ensure(b []byte, sz int) ([]byte, int) {
	l := len(b)
	c := cap(b)
	if c-l < sz {
		o := make([]byte, (2*c)+sz) // exponential growth
		n := copy(o, b)
		return o[:n+sz], n
	}
	return b[:l+sz], l
}

func appendUint32(b []byte, v uint32) []byte {
	o, n := ensure(b, 4)
	byteOrder.PutUint32(o[n:], v)
	return o
}

func appendUint64(b []byte, v uint64) []byte {
	o, n := ensure(b, 8)
	byteOrder.PutUint64(o[n:], v)
	return o
}

func appendZeros(b []byte, sz int) []byte {
	o, n := ensure(b, sz)
	clear(o[n:])
	return o
}

// appendTagHeader appends a tag header with the given type and total
// size.
func appendTagHeader(b []byte, typ TagType, size uint32) []byte {
	o, n := ensure(b, TagHeaderSize)
	byteOrder.PutUint32(o[n:], uint32(typ))
	byteOrder.PutUint32(o[n+4:], size)
	return o
}

// appendCString appends the string bytes and the NUL terminator.
func appendCString(b []byte, s string) []byte {
	b = append(b, s...)
	return append(b, 0)
}

// stringTagSize is the encoded size of a string tag: header, string
// bytes, NUL.
func stringTagSize(s string) uint32 {
	return TagHeaderSize + uint32(len(s)) + 1
}

// AppendCommandLine appends a kernel command line tag.
func AppendCommandLine(b []byte, cmdline string) []byte {
	b = appendTagHeader(b, TagTypeCommandLine, stringTagSize(cmdline))
	return appendCString(b, cmdline)
}

// AppendBootLoaderName appends a boot loader name tag.
func AppendBootLoaderName(b []byte, name string) []byte {
	b = appendTagHeader(b, TagTypeBootLoaderName, stringTagSize(name))
	return appendCString(b, name)
}

// AppendModule appends a module tag for the given physical address
// range and module command line.
func AppendModule(b []byte, start, end uint32, cmdline string) []byte {
	b = appendTagHeader(b, TagTypeModule, 8+stringTagSize(cmdline))
	b = appendUint32(b, start)
	b = appendUint32(b, end)
	return appendCString(b, cmdline)
}

// AppendBasicMemoryInfo appends a basic memory info tag. Both values
// are in KiB.
func AppendBasicMemoryInfo(b []byte, lower, upper uint32) []byte {
	b = appendTagHeader(b, TagTypeBasicMemoryInfo, TagHeaderSize+8)
	b = appendUint32(b, lower)
	return appendUint32(b, upper)
}

// AppendMemoryMap appends a memory map tag with the nominal entry size
// and entry format version 0.
func AppendMemoryMap(b []byte, areas []MemoryArea) []byte {
	size := TagHeaderSize + 8 + uint32(len(areas))*memoryAreaSize
	b = appendTagHeader(b, TagTypeMemoryMap, size)
	b = appendUint32(b, memoryAreaSize)
	b = appendUint32(b, 0)
	for _, a := range areas {
		o, n := ensure(b, memoryAreaSize)
		encodeMemoryArea(o[n:], a)
		b = o
	}
	return b
}

// AppendEFIMemoryMap appends an EFI memory map tag with the nominal
// descriptor size and descriptor format version 1.
func AppendEFIMemoryMap(b []byte, descs []EFIMemoryDescriptor) []byte {
	return AppendEFIMemoryMapStride(b, efiDescriptorSize, descs)
}

// AppendEFIMemoryMapStride appends an EFI memory map tag with an
// explicit descriptor size, zero-padding each descriptor up to it, the
// way firmware with a grown descriptor layout does. It panics when
// descSize cannot hold a descriptor.
func AppendEFIMemoryMapStride(b []byte, descSize uint32, descs []EFIMemoryDescriptor) []byte {
	if descSize < efiDescriptorSize {
		panic("mbi: efi descriptor size " + strconv.FormatUint(uint64(descSize), 10) + " below nominal")
	}
	size := TagHeaderSize + 8 + uint32(len(descs))*descSize
	b = appendTagHeader(b, TagTypeEFIMemoryMap, size)
	b = appendUint32(b, descSize)
	b = appendUint32(b, 1)
	for _, d := range descs {
		o, n := ensure(b, int(descSize))
		clear(o[n:])
		encodeEFIDescriptor(o[n:], d)
		b = o
	}
	return b
}

// AppendEFIBootServicesNotExited appends the header-only tag telling
// the OS that EFI boot services are still running.
func AppendEFIBootServicesNotExited(b []byte) []byte {
	return appendTagHeader(b, TagTypeEFIBS, TagHeaderSize)
}

// AppendElfSections appends an ELF sections tag around a raw section
// header table. It panics when the declared geometry does not fit the
// table or the string table index lands outside it, since the result
// could never be decoded again.
func AppendElfSections(b []byte, count, entrySize, shndx uint32, table []byte) []byte {
	if uint64(count)*uint64(entrySize) > uint64(len(table)) {
		panic("mbi: section table shorter than its declared geometry")
	}
	if shndx >= count {
		panic("mbi: string table index " + strconv.FormatUint(uint64(shndx), 10) + " outside the section table")
	}
	b = appendTagHeader(b, TagTypeElfSections, TagHeaderSize+12+uint32(len(table)))
	b = appendUint32(b, count)
	b = appendUint32(b, entrySize)
	b = appendUint32(b, shndx)
	return append(b, table...)
}

// AppendFramebuffer appends a framebuffer tag with the given fixed
// fields and variant payload.
func AppendFramebuffer(b []byte, addr uint64, pitch, width, height uint32, bpp uint8, typ FramebufferType) []byte {
	payload := typ.appendPayload(nil)
	b = appendTagHeader(b, TagTypeFramebuffer, TagHeaderSize+framebufferPrefixSize+uint32(len(payload)))
	b = appendUint64(b, addr)
	b = appendUint32(b, pitch)
	b = appendUint32(b, width)
	b = appendUint32(b, height)
	b = append(b, bpp, typ.typeCode(), 0, 0) // type byte, then the reserved u16
	return append(b, payload...)
}

// AppendSmbios appends an SMBIOS tag wrapping raw table bytes.
func AppendSmbios(b []byte, major, minor uint8, tables []byte) []byte {
	b = appendTagHeader(b, TagTypeSmbios, TagHeaderSize+smbiosFixedSize+uint32(len(tables)))
	b = append(b, major, minor)
	b = appendZeros(b, 6)
	return append(b, tables...)
}

// Assemble joins encoded tags into a complete boot information region:
// fixed header, each tag padded out to 8 bytes, end tag. Inputs are
// the outputs of the AppendXxx functions or Tag.Raw views, one tag
// per argument. The end tag is appended here, so passing one in is an
// error, as is any buffer whose size field disagrees with its length.
func Assemble(tags ...[]byte) ([]byte, error) {
	total := InfoHeaderSize
	for i, tag := range tags {
		if len(tag) < TagHeaderSize {
			return nil, structural(total, "tag "+strconv.Itoa(i)+" shorter than a tag header")
		}
		if TagType(byteOrder.Uint32(tag)) == TagTypeEnd {
			return nil, structural(total, "tag "+strconv.Itoa(i)+" is an end tag, which Assemble adds itself")
		}
		size := byteOrder.Uint32(tag[4:])
		if uint64(size) != uint64(len(tag)) {
			return nil, structural(total, "tag "+strconv.Itoa(i)+" declares size "+
				strconv.FormatUint(uint64(size), 10)+" but is "+strconv.Itoa(len(tag))+" bytes long")
		}
		total += alignUp(len(tag))
	}
	total += TagHeaderSize // end tag

	b := make([]byte, 0, total)
	b = appendUint32(b, uint32(total))
	b = appendUint32(b, 0) // reserved
	for _, tag := range tags {
		b = append(b, tag...)
		if pad := alignUp(len(tag)) - len(tag); pad > 0 {
			b = appendZeros(b, pad)
		}
	}
	b = appendTagHeader(b, TagTypeEnd, TagHeaderSize)
	return b, nil
}

// InfoBuilder accumulates tags and assembles them into a boot
// information region. It is a convenience layer over the AppendXxx
// functions and Assemble; tags appear in the region in the order the
// methods were called.
type InfoBuilder struct {
	tags [][]byte
}

// NewInfoBuilder returns an empty builder.
func NewInfoBuilder() *InfoBuilder { return &InfoBuilder{} }

// AddRaw adds an already-encoded tag, e.g. the Raw bytes of a tag of a
// type this package does not decode.
func (b *InfoBuilder) AddRaw(tag []byte) { b.tags = append(b.tags, tag) }

// CommandLine adds a kernel command line tag.
func (b *InfoBuilder) CommandLine(cmdline string) {
	b.AddRaw(AppendCommandLine(nil, cmdline))
}

// BootLoaderName adds a boot loader name tag.
func (b *InfoBuilder) BootLoaderName(name string) {
	b.AddRaw(AppendBootLoaderName(nil, name))
}

// Module adds a module tag.
func (b *InfoBuilder) Module(start, end uint32, cmdline string) {
	b.AddRaw(AppendModule(nil, start, end, cmdline))
}

// BasicMemoryInfo adds a basic memory info tag.
func (b *InfoBuilder) BasicMemoryInfo(lower, upper uint32) {
	b.AddRaw(AppendBasicMemoryInfo(nil, lower, upper))
}

// MemoryMap adds a memory map tag.
func (b *InfoBuilder) MemoryMap(areas []MemoryArea) {
	b.AddRaw(AppendMemoryMap(nil, areas))
}

// EFIMemoryMap adds an EFI memory map tag with the nominal descriptor
// size.
func (b *InfoBuilder) EFIMemoryMap(descs []EFIMemoryDescriptor) {
	b.AddRaw(AppendEFIMemoryMap(nil, descs))
}

// EFIBootServicesNotExited adds the presence-only tag telling the OS
// that EFI boot services are still running.
func (b *InfoBuilder) EFIBootServicesNotExited() {
	b.AddRaw(AppendEFIBootServicesNotExited(nil))
}

// ElfSections adds an ELF sections tag around a raw header table.
func (b *InfoBuilder) ElfSections(count, entrySize, shndx uint32, table []byte) {
	b.AddRaw(AppendElfSections(nil, count, entrySize, shndx, table))
}

// Framebuffer adds a framebuffer tag.
func (b *InfoBuilder) Framebuffer(addr uint64, pitch, width, height uint32, bpp uint8, typ FramebufferType) {
	b.AddRaw(AppendFramebuffer(nil, addr, pitch, width, height, bpp, typ))
}

// Smbios adds an SMBIOS tag.
func (b *InfoBuilder) Smbios(major, minor uint8, tables []byte) {
	b.AddRaw(AppendSmbios(nil, major, minor, tables))
}

// Build assembles the accumulated tags into a complete region. The
// builder remains usable afterwards.
func (b *InfoBuilder) Build() ([]byte, error) {
	return Assemble(b.tags...)
}
