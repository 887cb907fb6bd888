package mbi_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/YtvwlD/multiboot2/mbi"
)

// TestSmbiosRoundTrip encodes an SMBIOS tag around opaque table bytes
// and reads the revision and tables back.
func TestSmbiosRoundTrip(t *testing.T) {
	tables := []byte{0x00, 0x18, 0x20, 0x00, 0x01, 0x02, 0x00, 0x00, 0x03}
	region, err := mbi.Assemble(mbi.AppendSmbios(nil, 3, 4, tables))
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	bi, err := mbi.Load(region)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	tag, err := bi.SmbiosTag()
	if err != nil || tag == nil {
		t.Fatalf("SmbiosTag: tag %v err %v", tag, err)
	}

	if tag.Major() != 3 || tag.Minor() != 4 {
		t.Fatalf("revision: got %d.%d want 3.4", tag.Major(), tag.Minor())
	}
	if !bytes.Equal(tag.Tables(), tables) {
		t.Fatalf("Tables: got % x want % x", tag.Tables(), tables)
	}
}

// TestSmbiosEmptyTables checks the edge of a tag carrying revision
// bytes but no tables.
func TestSmbiosEmptyTables(t *testing.T) {
	region, err := mbi.Assemble(mbi.AppendSmbios(nil, 2, 8, nil))
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	bi, err := mbi.Load(region)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	tag, err := bi.SmbiosTag()
	if err != nil || tag == nil {
		t.Fatalf("SmbiosTag: tag %v err %v", tag, err)
	}
	if tag.Major() != 2 || tag.Minor() != 8 {
		t.Fatalf("revision: got %d.%d want 2.8", tag.Major(), tag.Minor())
	}
	if len(tag.Tables()) != 0 {
		t.Fatalf("Tables: got %d bytes, want none", len(tag.Tables()))
	}
}

// TestSmbiosTooShort checks that a body below the fixed fields is
// rejected.
func TestSmbiosTooShort(t *testing.T) {
	area := le32(nil, uint32(mbi.TagTypeSmbios), 8+4)
	area = append(area, 3, 0, 0, 0)
	area = append(area, make([]byte, 4)...) // tag padding
	area = le32(area, 0, 8)
	bi, err := mbi.Load(rawRegion(t, area))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	var serr *mbi.StructuralError
	if _, err := bi.SmbiosTag(); !errors.As(err, &serr) {
		t.Fatalf("SmbiosTag: got %v, want StructuralError", err)
	}
}
