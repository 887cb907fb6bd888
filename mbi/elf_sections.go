package mbi

import (
	"bytes"
	"strconv"
)

// ElfSectionType classifies an ELF section header.
type ElfSectionType uint32

// Section types from the ELF specification. Values in the environment-
// and processor-specific ranges collapse to the two range markers;
// anything else decodes as unused, which also makes the section
// iterator skip it.
const (
	ElfSectionUnused             ElfSectionType = 0
	ElfSectionProgram            ElfSectionType = 1
	ElfSectionSymbolTable        ElfSectionType = 2
	ElfSectionStringTable        ElfSectionType = 3
	ElfSectionRelaRelocation     ElfSectionType = 4
	ElfSectionSymbolHashTable    ElfSectionType = 5
	ElfSectionDynamicTable       ElfSectionType = 6
	ElfSectionNote               ElfSectionType = 7
	ElfSectionUninitialized      ElfSectionType = 8
	ElfSectionRelRelocation      ElfSectionType = 9
	ElfSectionReserved           ElfSectionType = 10
	ElfSectionDynamicSymbolTable ElfSectionType = 11

	ElfSectionEnvironmentSpecific ElfSectionType = 0x60000000
	ElfSectionProcessorSpecific   ElfSectionType = 0x70000000
)

// String implements fmt.Stringer
func (t ElfSectionType) String() string {
	switch t {
	case ElfSectionUnused:
		return "unused"
	case ElfSectionProgram:
		return "program"
	case ElfSectionSymbolTable:
		return "symbol table"
	case ElfSectionStringTable:
		return "string table"
	case ElfSectionRelaRelocation:
		return "rela relocation"
	case ElfSectionSymbolHashTable:
		return "symbol hash table"
	case ElfSectionDynamicTable:
		return "dynamic table"
	case ElfSectionNote:
		return "note"
	case ElfSectionUninitialized:
		return "uninitialized"
	case ElfSectionRelRelocation:
		return "rel relocation"
	case ElfSectionReserved:
		return "reserved"
	case ElfSectionDynamicSymbolTable:
		return "dynamic symbol table"
	case ElfSectionEnvironmentSpecific:
		return "environment specific"
	case ElfSectionProcessorSpecific:
		return "processor specific"
	default:
		return "unknown(" + strconv.FormatUint(uint64(t), 10) + ")"
	}
}

// sectionType maps a raw header type to the closed classification.
func sectionType(raw uint32) ElfSectionType {
	switch {
	case raw <= uint32(ElfSectionDynamicSymbolTable):
		return ElfSectionType(raw)
	case raw >= 0x60000000 && raw <= 0x6FFFFFFF:
		return ElfSectionEnvironmentSpecific
	case raw >= 0x70000000 && raw <= 0x7FFFFFFF:
		return ElfSectionProcessorSpecific
	default:
		return ElfSectionUnused
	}
}

// ElfSectionFlags is the bit set from a section header's flags field.
// Bits outside the named set are preserved.
type ElfSectionFlags uint64

// Section flags from the ELF specification.
const (
	// ElfSectionWritable marks a section writable during execution.
	ElfSectionWritable ElfSectionFlags = 0x1

	// ElfSectionAllocated marks a section that occupies memory during
	// execution.
	ElfSectionAllocated ElfSectionFlags = 0x2

	// ElfSectionExecutable marks a section containing machine code.
	ElfSectionExecutable ElfSectionFlags = 0x4
)

// Section header entry sizes for the two ELF classes. A header table
// may pad its entries, so the entry size picks the layout as a lower
// bound rather than by exact match.
const (
	elfSection32Size = 40
	elfSection64Size = 64
)

// ElfSectionsTag carries the section header table of the loaded ELF
// kernel. The tag holds raw headers only; section contents, the string
// table included, live at the physical addresses the headers point to,
// outside this region.
type ElfSectionsTag struct {
	tag       Tag
	count     uint32
	entrySize uint32
	shndx     uint32
}

// ParseElfSectionsTag validates the framing of an ELF sections tag.
// GRUB writes the three header fields as u32 each, diverging from the
// u16 quartet in the Multiboot2 text; this follows GRUB. The declared
// section count must fit the body at the declared entry size, the
// entry size must hold at least a 32-bit section header, and the
// string table index must stay inside the table.
func ParseElfSectionsTag(t Tag) (*ElfSectionsTag, error) {
	if t.Type() != TagTypeElfSections {
		return nil, structural(0, "not an elf sections tag: "+t.Type().String())
	}
	c := t.bodyCursor()
	count, err := c.ReadUint32()
	if err != nil {
		return nil, structural(c.Offset(), "elf sections tag too short for its table header")
	}
	entrySize, err := c.ReadUint32()
	if err != nil {
		return nil, structural(c.Offset(), "elf sections tag too short for its table header")
	}
	shndx, err := c.ReadUint32()
	if err != nil {
		return nil, structural(c.Offset(), "elf sections tag too short for its table header")
	}
	if entrySize < elfSection32Size {
		return nil, structural(TagHeaderSize+4, "section entry size "+strconv.FormatUint(uint64(entrySize), 10)+
			" below "+strconv.Itoa(elfSection32Size))
	}
	if uint64(count)*uint64(entrySize) > uint64(c.Remaining()) {
		return nil, structural(TagHeaderSize, "section table overruns the tag body")
	}
	// An empty table admits no index at all, so count == 0 fails too.
	if shndx >= count {
		return nil, structural(TagHeaderSize+8, "string table index "+strconv.FormatUint(uint64(shndx), 10)+
			" outside the "+strconv.FormatUint(uint64(count), 10)+"-entry section table")
	}
	return &ElfSectionsTag{tag: t, count: count, entrySize: entrySize, shndx: shndx}, nil
}

// SectionCount returns the number of header table entries, unused
// entries included.
func (t *ElfSectionsTag) SectionCount() int { return int(t.count) }

// EntrySize returns the size of one header table entry. 40 means
// 32-bit headers and 64 means 64-bit headers; larger values mean
// padded entries of the class the size still admits.
func (t *ElfSectionsTag) EntrySize() uint32 { return t.entrySize }

// StringTableIndex returns the table index of the section naming the
// others, as reported by the loader.
func (t *ElfSectionsTag) StringTableIndex() uint32 { return t.shndx }

// HeaderTable returns the raw section header table without copying.
func (t *ElfSectionsTag) HeaderTable() []byte {
	return t.tag.Body()[12 : 12+int(t.count)*int(t.entrySize)]
}

// Section decodes the i-th header table entry, unused entries
// included. It panics when i is out of range, like indexing a slice.
func (t *ElfSectionsTag) Section(i int) ElfSection {
	if i < 0 || i >= int(t.count) {
		panic("mbi: elf section index " + strconv.Itoa(i) + " out of range")
	}
	off := 12 + i*int(t.entrySize)
	nominal := elfSection32Size
	is64 := t.entrySize >= elfSection64Size
	if is64 {
		nominal = elfSection64Size
	}
	return ElfSection{w: t.tag.Body()[off : off+nominal], is64: is64}
}

// StringTableHeader resolves the header of the section that names the
// others: the entry the tag's own string table index points at, which
// parsing guarantees is in range. Its address and size say where to
// read name bytes from; pass those bytes to ElfSection.Name.
func (t *ElfSectionsTag) StringTableHeader() ElfSection {
	return t.Section(int(t.shndx))
}

// Sections iterates over the used entries of the header table,
// skipping unused ones the way kernels expect.
func (t *ElfSectionsTag) Sections() *ElfSectionIter {
	return &ElfSectionIter{t: t}
}

// ElfSectionIter yields the sections of an ElfSectionsTag, skipping
// entries of type unused (which includes entries whose type this
// package does not know).
type ElfSectionIter struct {
	t *ElfSectionsTag
	i int
}

// Next returns the next used section, or false when the table is
// exhausted.
func (it *ElfSectionIter) Next() (ElfSection, bool) {
	for it.i < int(it.t.count) {
		s := it.t.Section(it.i)
		it.i++
		if s.Type() != ElfSectionUnused {
			return s, true
		}
	}
	return ElfSection{}, false
}

// ElfSection is a decoded view of one section header. The 32- and
// 64-bit header layouts share field names but not offsets or widths;
// the accessors hide the difference, widening to u64.
type ElfSection struct {
	w    []byte
	is64 bool
}

// NameIndex returns the byte offset of the section's name within the
// string table.
func (s ElfSection) NameIndex() uint32 { return byteOrder.Uint32(s.w[0:]) }

// TypeRaw returns the header's type field unmapped.
func (s ElfSection) TypeRaw() uint32 { return byteOrder.Uint32(s.w[4:]) }

// Type returns the section classification. Unknown raw values decode
// as unused; TypeRaw has the original.
func (s ElfSection) Type() ElfSectionType { return sectionType(s.TypeRaw()) }

// Flags returns the section's flag bits.
func (s ElfSection) Flags() ElfSectionFlags {
	if s.is64 {
		return ElfSectionFlags(byteOrder.Uint64(s.w[8:]))
	}
	return ElfSectionFlags(byteOrder.Uint32(s.w[8:]))
}

// IsAllocated reports whether the section occupies memory during
// execution.
func (s ElfSection) IsAllocated() bool { return s.Flags()&ElfSectionAllocated != 0 }

// StartAddress returns the physical start address of the section.
func (s ElfSection) StartAddress() uint64 {
	if s.is64 {
		return byteOrder.Uint64(s.w[16:])
	}
	return uint64(byteOrder.Uint32(s.w[12:]))
}

// EndAddress returns the physical address one past the section.
func (s ElfSection) EndAddress() uint64 { return s.StartAddress() + s.SectionSize() }

// SectionSize returns the section's size in bytes.
func (s ElfSection) SectionSize() uint64 {
	if s.is64 {
		return byteOrder.Uint64(s.w[32:])
	}
	return uint64(byteOrder.Uint32(s.w[20:]))
}

// AddrAlign returns the section's address alignment constraint. The
// start address must be congruent to 0 modulo this value; 0 and 1 mean
// no constraint.
func (s ElfSection) AddrAlign() uint64 {
	if s.is64 {
		return byteOrder.Uint64(s.w[48:])
	}
	return uint64(byteOrder.Uint32(s.w[32:]))
}

// Name resolves the section's name within the given string table
// bytes. The table is the memory the StringTableHeader entry points
// at; reading it is the caller's business since it lies outside the
// boot information region. Returns ErrShortBytes when the index or the
// terminator falls outside the table and ErrInvalidUTF8 when the name
// bytes do not form valid UTF-8.
func (s ElfSection) Name(strtab []byte) (string, error) {
	idx := int64(s.NameIndex())
	if idx > int64(len(strtab)) {
		return "", ErrShortBytes
	}
	rest := strtab[idx:]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return "", ErrShortBytes
	}
	name := rest[:end]
	if !isUTF8Valid(name) {
		return "", ErrInvalidUTF8
	}
	return string(name), nil
}
