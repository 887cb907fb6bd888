package mbi

import "strconv"

// EFIMemoryType classifies an EFI memory descriptor, mirroring the
// UEFI memory type table. The type is open: values outside the named
// set pass through decoding untouched.
type EFIMemoryType uint32

// EFI memory types defined by the UEFI specification.
const (
	EFIReservedMemoryType EFIMemoryType = iota
	EFILoaderCode
	EFILoaderData
	EFIBootServicesCode
	EFIBootServicesData
	EFIRuntimeServicesCode
	EFIRuntimeServicesData
	EFIConventionalMemory
	EFIUnusableMemory
	EFIACPIReclaimMemory
	EFIACPIMemoryNVS
	EFIMemoryMappedIO
	EFIMemoryMappedIOPortSpace
	EFIPalCode
	EFIPersistentMemory
)

// String implements fmt.Stringer
func (t EFIMemoryType) String() string {
	switch t {
	case EFIReservedMemoryType:
		return "reserved"
	case EFILoaderCode:
		return "loader code"
	case EFILoaderData:
		return "loader data"
	case EFIBootServicesCode:
		return "boot services code"
	case EFIBootServicesData:
		return "boot services data"
	case EFIRuntimeServicesCode:
		return "runtime services code"
	case EFIRuntimeServicesData:
		return "runtime services data"
	case EFIConventionalMemory:
		return "conventional"
	case EFIUnusableMemory:
		return "unusable"
	case EFIACPIReclaimMemory:
		return "acpi reclaim"
	case EFIACPIMemoryNVS:
		return "acpi nvs"
	case EFIMemoryMappedIO:
		return "mmio"
	case EFIMemoryMappedIOPortSpace:
		return "mmio port space"
	case EFIPalCode:
		return "pal code"
	case EFIPersistentMemory:
		return "persistent"
	default:
		return "unknown(" + strconv.FormatUint(uint64(t), 10) + ")"
	}
}

const (
	// efiDescriptorSize is the nominal encoded size of an
	// EFIMemoryDescriptor. Firmware frequently uses a larger stride.
	efiDescriptorSize = 40

	// efiPageSize is the EFI page unit used by PageCount.
	efiPageSize = 4096
)

// EFIMemoryDescriptor is one entry of the EFI memory map, as handed
// over by the firmware.
type EFIMemoryDescriptor struct {
	Type      EFIMemoryType
	Padding   uint32 // alignment filler after the type; carried verbatim
	PhysAddr  uint64
	VirtAddr  uint64
	PageCount uint64
	Attribute uint64
}

// Size returns the descriptor's range length in bytes.
func (d EFIMemoryDescriptor) Size() uint64 { return d.PageCount * efiPageSize }

// EFIMemoryMapTag is the memory map as offered by the EFI firmware,
// passed along by loaders that booted through EFI. Descriptors are
// addressed by the descriptor size the firmware reported, which on
// real machines routinely exceeds the nominal descriptor layout.
type EFIMemoryMapTag struct {
	tag     Tag
	stride  uint32
	version uint32
	count   int
}

// ParseEFIMemoryMapTag validates the framing of an EFI memory map tag.
// The reported descriptor size must cover a whole descriptor and
// divide the descriptor region evenly; indexing relies on both.
func ParseEFIMemoryMapTag(t Tag) (*EFIMemoryMapTag, error) {
	stride, version, count, err := parseArrayHeader(t, TagTypeEFIMemoryMap, efiDescriptorSize, "efi descriptor")
	if err != nil {
		return nil, err
	}
	return &EFIMemoryMapTag{tag: t, stride: stride, version: version, count: count}, nil
}

// DescriptorSize returns the stride between descriptors as reported by
// the firmware.
func (t *EFIMemoryMapTag) DescriptorSize() uint32 { return t.stride }

// DescriptorVersion returns the descriptor format version, currently 1.
func (t *EFIMemoryMapTag) DescriptorVersion() uint32 { return t.version }

// DescriptorCount returns the number of descriptors in the map.
func (t *EFIMemoryMapTag) DescriptorCount() int { return t.count }

// Descriptor decodes the i-th descriptor. It panics when i is out of
// range, like indexing a slice.
func (t *EFIMemoryMapTag) Descriptor(i int) EFIMemoryDescriptor {
	return decodeEFIDescriptor(t.descriptorWindow(i))
}

// Descriptors decodes every descriptor in the map.
func (t *EFIMemoryMapTag) Descriptors() []EFIMemoryDescriptor {
	out := make([]EFIMemoryDescriptor, t.count)
	for i := range out {
		out[i] = t.Descriptor(i)
	}
	return out
}

// Mutable returns a write handle over the same descriptors. See
// MutableEFIMemoryMap for the aliasing rules.
func (t *EFIMemoryMapTag) Mutable() *MutableEFIMemoryMap {
	return &MutableEFIMemoryMap{t: t}
}

// descriptorWindow returns the first efiDescriptorSize bytes of the
// i-th element window. Bytes between the nominal size and the stride
// are firmware-private and skipped.
func (t *EFIMemoryMapTag) descriptorWindow(i int) []byte {
	if i < 0 || i >= t.count {
		panic("mbi: efi descriptor index " + strconv.Itoa(i) + " out of range")
	}
	off := 8 + i*int(t.stride)
	return t.tag.Body()[off : off+efiDescriptorSize]
}

func decodeEFIDescriptor(w []byte) EFIMemoryDescriptor {
	return EFIMemoryDescriptor{
		Type:      EFIMemoryType(byteOrder.Uint32(w[0:])),
		Padding:   byteOrder.Uint32(w[4:]),
		PhysAddr:  byteOrder.Uint64(w[8:]),
		VirtAddr:  byteOrder.Uint64(w[16:]),
		PageCount: byteOrder.Uint64(w[24:]),
		Attribute: byteOrder.Uint64(w[32:]),
	}
}

func encodeEFIDescriptor(w []byte, d EFIMemoryDescriptor) {
	byteOrder.PutUint32(w[0:], uint32(d.Type))
	byteOrder.PutUint32(w[4:], d.Padding)
	byteOrder.PutUint64(w[8:], d.PhysAddr)
	byteOrder.PutUint64(w[16:], d.VirtAddr)
	byteOrder.PutUint64(w[24:], d.PageCount)
	byteOrder.PutUint64(w[32:], d.Attribute)
}

// MutableEFIMemoryMap writes descriptors back into the region the map
// was loaded from. Writes go through to the caller's memory
// immediately. Hold at most one mutable handle per map and do not
// decode descriptors through other views while mutating; nothing here
// synchronizes access.
type MutableEFIMemoryMap struct {
	t *EFIMemoryMapTag
}

// SetDescriptor overwrites the i-th descriptor. It panics when i is
// out of range, like indexing a slice. Stride bytes beyond the nominal
// descriptor are left untouched.
func (m *MutableEFIMemoryMap) SetDescriptor(i int, d EFIMemoryDescriptor) {
	encodeEFIDescriptor(m.t.descriptorWindow(i), d)
}
