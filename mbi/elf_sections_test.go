package mbi_test

import (
	"errors"
	"testing"

	"github.com/YtvwlD/multiboot2/mbi"
)

// sec64 appends one 64-bit section header. File offset, link, info and
// entry size stay zero; the decoder never looks at them.
func sec64(b []byte, name, typ uint32, flags, addr, size, align uint64) []byte {
	b = le32(b, name, typ)
	b = le64(b, flags, addr, 0, size)
	b = le32(b, 0, 0)
	b = le64(b, align, 0)
	return b
}

// sec32 appends one 32-bit section header.
func sec32(b []byte, name, typ, flags, addr, size, align uint32) []byte {
	return le32(b, name, typ, flags, addr, 0, size, 0, 0, align, 0)
}

// The usual self-referential string table: index 0 is the empty name,
// the table's own name sits at offset 7.
var testStrtab = []byte("\x00.text\x00.shstrtab\x00")

// TestElfSections64 builds a three-entry 64-bit header table: the null
// entry, .text, and the string table naming them both. The tag's
// string table index points at entry 2, whose own name resolves
// through the very table it describes.
func TestElfSections64(t *testing.T) {
	var table []byte
	table = sec64(table, 0, 0, 0, 0, 0, 0) // null entry
	table = sec64(table, 1, uint32(mbi.ElfSectionProgram), 0x6, 0x100000, 0x2000, 16)
	table = sec64(table, 7, uint32(mbi.ElfSectionStringTable), 0, 0x110000, uint64(len(testStrtab)), 1)

	region, err := mbi.Assemble(mbi.AppendElfSections(nil, 3, 64, 2, table))
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	bi, err := mbi.Load(region)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	tag, err := bi.ElfSectionsTag()
	if err != nil || tag == nil {
		t.Fatalf("ElfSectionsTag: tag %v err %v", tag, err)
	}

	if tag.SectionCount() != 3 || tag.EntrySize() != 64 || tag.StringTableIndex() != 2 {
		t.Fatalf("table header: count=%d entrySize=%d shndx=%d",
			tag.SectionCount(), tag.EntrySize(), tag.StringTableIndex())
	}

	text := tag.Section(1)
	if text.Type() != mbi.ElfSectionProgram {
		t.Fatalf("Section(1).Type: got %v", text.Type())
	}
	if text.Flags() != mbi.ElfSectionAllocated|mbi.ElfSectionExecutable {
		t.Fatalf("Section(1).Flags: got %#x", text.Flags())
	}
	if !text.IsAllocated() {
		t.Fatal("Section(1).IsAllocated: got false")
	}
	if text.StartAddress() != 0x100000 || text.SectionSize() != 0x2000 {
		t.Fatalf("Section(1) range: start %#x size %#x", text.StartAddress(), text.SectionSize())
	}
	if text.EndAddress() != 0x102000 {
		t.Fatalf("Section(1).EndAddress: got %#x", text.EndAddress())
	}
	if text.AddrAlign() != 16 {
		t.Fatalf("Section(1).AddrAlign: got %d", text.AddrAlign())
	}
	if got, err := text.Name(testStrtab); err != nil || got != ".text" {
		t.Fatalf("Section(1).Name: got (%q, %v)", got, err)
	}

	strtabHdr := tag.StringTableHeader()
	if strtabHdr.Type() != mbi.ElfSectionStringTable {
		t.Fatalf("StringTableHeader.Type: got %v", strtabHdr.Type())
	}
	if strtabHdr.StartAddress() != 0x110000 || strtabHdr.SectionSize() != uint64(len(testStrtab)) {
		t.Fatalf("StringTableHeader range: start %#x size %d",
			strtabHdr.StartAddress(), strtabHdr.SectionSize())
	}
	if got, err := strtabHdr.Name(testStrtab); err != nil || got != ".shstrtab" {
		t.Fatalf("StringTableHeader.Name: got (%q, %v)", got, err)
	}

	// The iterator skips the null entry.
	var kinds []mbi.ElfSectionType
	it := tag.Sections()
	for {
		s, ok := it.Next()
		if !ok {
			break
		}
		kinds = append(kinds, s.Type())
	}
	if len(kinds) != 2 || kinds[0] != mbi.ElfSectionProgram || kinds[1] != mbi.ElfSectionStringTable {
		t.Fatalf("iterated kinds: got %v", kinds)
	}
}

// TestElfSections32 checks the 32-bit header layout, selected by the
// 40-byte entry size.
func TestElfSections32(t *testing.T) {
	var table []byte
	table = sec32(table, 0, 0, 0, 0, 0, 0)
	table = sec32(table, 1, uint32(mbi.ElfSectionUninitialized),
		uint32(mbi.ElfSectionWritable|mbi.ElfSectionAllocated), 0xc0000000, 0x4000, 4096)

	region, err := mbi.Assemble(mbi.AppendElfSections(nil, 2, 40, 0, table))
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	bi, err := mbi.Load(region)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	tag, err := bi.ElfSectionsTag()
	if err != nil || tag == nil {
		t.Fatalf("ElfSectionsTag: tag %v err %v", tag, err)
	}

	bss := tag.Section(1)
	if bss.Type() != mbi.ElfSectionUninitialized {
		t.Fatalf("Type: got %v", bss.Type())
	}
	if bss.Flags() != mbi.ElfSectionWritable|mbi.ElfSectionAllocated {
		t.Fatalf("Flags: got %#x", bss.Flags())
	}
	if bss.StartAddress() != 0xc0000000 || bss.SectionSize() != 0x4000 {
		t.Fatalf("range: start %#x size %#x", bss.StartAddress(), bss.SectionSize())
	}
	if bss.AddrAlign() != 4096 {
		t.Fatalf("AddrAlign: got %d", bss.AddrAlign())
	}
}

// TestElfSectionsPaddedEntries checks entry sizes between the two
// nominal layouts: 48-byte entries hold padded 32-bit headers, and the
// stride still locates every entry.
func TestElfSectionsPaddedEntries(t *testing.T) {
	var table []byte
	table = sec32(table, 0, uint32(mbi.ElfSectionProgram), 0, 0x8000, 0x100, 4)
	table = le64(table, 0xdead) // entry padding
	table = sec32(table, 0, uint32(mbi.ElfSectionNote), 0, 0x9000, 0x40, 4)
	table = le64(table, 0xbeef)

	region, err := mbi.Assemble(mbi.AppendElfSections(nil, 2, 48, 0, table))
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	bi, err := mbi.Load(region)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	tag, err := bi.ElfSectionsTag()
	if err != nil || tag == nil {
		t.Fatalf("ElfSectionsTag: tag %v err %v", tag, err)
	}
	second := tag.Section(1)
	if second.Type() != mbi.ElfSectionNote || second.StartAddress() != 0x9000 {
		t.Fatalf("Section(1): type %v start %#x", second.Type(), second.StartAddress())
	}
}

// TestElfSectionsFraming exercises the three framing rules: the entry
// size must hold at least a 32-bit header, the declared count must fit
// the body, and the string table index must land inside the table,
// which an empty table makes impossible.
func TestElfSectionsFraming(t *testing.T) {
	var serr *mbi.StructuralError
	load := func(t *testing.T, area []byte) *mbi.BootInformation {
		t.Helper()
		bi, err := mbi.Load(rawRegion(t, area))
		if err != nil {
			t.Fatalf("Load error: %v", err)
		}
		return bi
	}

	// Entry size 16 is below the smallest header layout.
	area := le32(nil, uint32(mbi.TagTypeElfSections), 8+12+16, 1, 16, 0)
	area = append(area, make([]byte, 16)...)
	area = append(area, make([]byte, 4)...) // tag padding
	area = le32(area, 0, 8)
	if _, err := load(t, area).ElfSectionsTag(); !errors.As(err, &serr) {
		t.Fatalf("runt entry size: got %v, want StructuralError", err)
	}

	// Three 40-byte entries declared, body holds one.
	area = le32(nil, uint32(mbi.TagTypeElfSections), 8+12+40, 3, 40, 0)
	area = append(area, make([]byte, 40)...)
	area = append(area, make([]byte, 4)...)
	area = le32(area, 0, 8)
	if _, err := load(t, area).ElfSectionsTag(); !errors.As(err, &serr) {
		t.Fatalf("overdeclared count: got %v, want StructuralError", err)
	}

	// String table index 2 in a two-entry table.
	table := sec32(nil, 0, 0, 0, 0, 0, 0)
	table = sec32(table, 0, 0, 0, 0, 0, 0)
	area = le32(nil, uint32(mbi.TagTypeElfSections), uint32(8+12+len(table)), 2, 40, 2)
	area = append(area, table...)
	area = append(area, make([]byte, 4)...)
	area = le32(area, 0, 8)
	if _, err := load(t, area).ElfSectionsTag(); !errors.As(err, &serr) {
		t.Fatalf("out-of-table shndx: got %v, want StructuralError", err)
	}

	// An empty table admits no index, whatever its value. Accepting
	// these would leave StringTableHeader nothing to resolve.
	for _, shndx := range []uint32{7, 0} {
		area = le32(nil, uint32(mbi.TagTypeElfSections), 8+12, 0, 40, shndx)
		area = append(area, make([]byte, 4)...)
		area = le32(area, 0, 8)
		if _, err := load(t, area).ElfSectionsTag(); !errors.As(err, &serr) {
			t.Fatalf("empty table, shndx %d: got %v, want StructuralError", shndx, err)
		}
	}
}

// TestElfSectionTypeMapping checks the open ranges: environment- and
// processor-specific types collapse to their range markers, anything
// else unknown decodes as unused while TypeRaw keeps the wire value.
func TestElfSectionTypeMapping(t *testing.T) {
	var table []byte
	table = sec64(table, 0, 0x60000005, 0, 0, 0, 0)
	table = sec64(table, 0, 0x7abcdef0, 0, 0, 0, 0)
	table = sec64(table, 0, 0x12345, 0, 0, 0, 0)

	region, err := mbi.Assemble(mbi.AppendElfSections(nil, 3, 64, 0, table))
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	bi, err := mbi.Load(region)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	tag, err := bi.ElfSectionsTag()
	if err != nil || tag == nil {
		t.Fatalf("ElfSectionsTag: tag %v err %v", tag, err)
	}

	if got := tag.Section(0).Type(); got != mbi.ElfSectionEnvironmentSpecific {
		t.Fatalf("Section(0).Type: got %v", got)
	}
	if got := tag.Section(1).Type(); got != mbi.ElfSectionProcessorSpecific {
		t.Fatalf("Section(1).Type: got %v", got)
	}
	if got := tag.Section(2).Type(); got != mbi.ElfSectionUnused {
		t.Fatalf("Section(2).Type: got %v", got)
	}
	if got := tag.Section(2).TypeRaw(); got != 0x12345 {
		t.Fatalf("Section(2).TypeRaw: got %#x", got)
	}

	// The iterator treats the unknown type as unused and yields only
	// the two range-mapped sections.
	n := 0
	it := tag.Sections()
	for {
		if _, ok := it.Next(); !ok {
			break
		}
		n++
	}
	if n != 2 {
		t.Fatalf("iterated sections: got %d want 2", n)
	}
}

// TestElfSectionNameErrors checks name resolution against a short or
// damaged string table.
func TestElfSectionNameErrors(t *testing.T) {
	var table []byte
	table = sec64(table, 100, uint32(mbi.ElfSectionProgram), 0, 0, 0, 0) // name offset beyond the table
	table = sec64(table, 1, uint32(mbi.ElfSectionProgram), 0, 0, 0, 0)

	region, err := mbi.Assemble(mbi.AppendElfSections(nil, 2, 64, 0, table))
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	bi, err := mbi.Load(region)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	tag, err := bi.ElfSectionsTag()
	if err != nil || tag == nil {
		t.Fatalf("ElfSectionsTag: tag %v err %v", tag, err)
	}

	if _, err := tag.Section(0).Name(testStrtab); !errors.Is(err, mbi.ErrShortBytes) {
		t.Fatalf("out-of-range index: got %v, want ErrShortBytes", err)
	}
	if _, err := tag.Section(1).Name([]byte("\x00unterminated")); !errors.Is(err, mbi.ErrShortBytes) {
		t.Fatalf("missing terminator: got %v, want ErrShortBytes", err)
	}
	if _, err := tag.Section(1).Name([]byte("\x00\xff\xfe\x00")); !errors.Is(err, mbi.ErrInvalidUTF8) {
		t.Fatalf("bad encoding: got %v, want ErrInvalidUTF8", err)
	}
}

// TestAppendElfSectionsPanics checks that the encoder refuses a table
// shorter than the declared geometry.
func TestAppendElfSectionsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("short table did not panic")
		}
	}()
	_ = mbi.AppendElfSections(nil, 2, 64, 0, make([]byte, 64))
}

// TestAppendElfSectionsIndexPanics checks that the encoder refuses a
// string table index outside the table, the empty-table case included.
func TestAppendElfSectionsIndexPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("out-of-table index did not panic")
		}
	}()
	_ = mbi.AppendElfSections(nil, 0, 40, 7, nil)
}
