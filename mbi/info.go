package mbi

import "strconv"

// BootInformation is a zero-copy view of a Multiboot2 boot information
// region. It borrows the slice handed to Load; the caller keeps
// ownership and must keep the memory alive for as long as the view or
// anything decoded from it is in use.
type BootInformation struct {
	region []byte
}

// Load validates the fixed header of a boot information region and
// returns a view over it. The region must be exactly as long as the
// header's total size field declares; every offset computed later
// depends on that, so a mismatch is rejected here rather than
// tolerated. The header's reserved word is deliberately not checked.
func Load(region []byte) (*BootInformation, error) {
	if len(region) < InfoHeaderSize {
		return nil, structural(0, "region too short for the fixed header")
	}
	total := byteOrder.Uint32(region)
	if uint64(total) != uint64(len(region)) {
		return nil, structural(0, "total size "+strconv.FormatUint(uint64(total), 10)+
			" does not match region length "+strconv.Itoa(len(region)))
	}
	if total%TagAlign != 0 {
		return nil, structural(0, "total size "+strconv.FormatUint(uint64(total), 10)+" not 8-byte aligned")
	}
	return &BootInformation{region: region}, nil
}

// TotalSize returns the region size declared by the fixed header,
// which Load guarantees equals the region length.
func (bi *BootInformation) TotalSize() uint32 { return byteOrder.Uint32(bi.region) }

// Bytes returns the underlying region without copying.
func (bi *BootInformation) Bytes() []byte { return bi.region }

// Tags returns an iterator over the tag stream. Each call returns a
// fresh iterator positioned at the first tag.
func (bi *BootInformation) Tags() *TagIter {
	return &TagIter{region: bi.region, pos: InfoHeaderSize}
}

// Validate walks the entire tag stream strictly and verifies that it
// ends in a well-placed terminator: present, correctly sized, and the
// last thing inside the declared total size. Unknown tag types are
// fine; framing damage is not.
func (bi *BootInformation) Validate() error {
	it := bi.Tags()
	it.SetStrict(true)
	for {
		if _, ok := it.Next(); !ok {
			break
		}
	}
	if err := it.Err(); err != nil {
		return err
	}
	if !it.sawEnd {
		return structural(len(bi.region), "missing end tag")
	}
	// The iterator stops on the terminator without advancing past it.
	if end := it.pos + TagHeaderSize; end != len(bi.region) {
		return structural(end, strconv.Itoa(len(bi.region)-end)+" bytes after the end tag")
	}
	return nil
}

// findTag returns the first tag of the given type. The walk is
// lenient: damage past the wanted tag does not hide it.
func (bi *BootInformation) findTag(typ TagType) (Tag, bool) {
	it := bi.Tags()
	for {
		tag, ok := it.Next()
		if !ok {
			return Tag{}, false
		}
		if tag.Type() == typ {
			return tag, true
		}
	}
}

// BootLoaderNameTag returns the boot loader name tag, or (nil, nil)
// when the region does not carry one.
func (bi *BootInformation) BootLoaderNameTag() (*BootLoaderNameTag, error) {
	tag, ok := bi.findTag(TagTypeBootLoaderName)
	if !ok {
		return nil, nil
	}
	return ParseBootLoaderNameTag(tag)
}

// CommandLineTag returns the kernel command line tag, or (nil, nil)
// when the region does not carry one.
func (bi *BootInformation) CommandLineTag() (*CommandLineTag, error) {
	tag, ok := bi.findTag(TagTypeCommandLine)
	if !ok {
		return nil, nil
	}
	return ParseCommandLineTag(tag)
}

// BasicMemoryInfoTag returns the basic memory bounds tag, or
// (nil, nil) when the region does not carry one.
func (bi *BootInformation) BasicMemoryInfoTag() (*BasicMemoryInfoTag, error) {
	tag, ok := bi.findTag(TagTypeBasicMemoryInfo)
	if !ok {
		return nil, nil
	}
	return ParseBasicMemoryInfoTag(tag)
}

// MemoryMapTag returns the memory map tag, or (nil, nil) when the
// region does not carry one.
func (bi *BootInformation) MemoryMapTag() (*MemoryMapTag, error) {
	tag, ok := bi.findTag(TagTypeMemoryMap)
	if !ok {
		return nil, nil
	}
	return ParseMemoryMapTag(tag)
}

// EFIMemoryMapTag returns the EFI memory map tag, or (nil, nil) when
// the region does not carry one.
func (bi *BootInformation) EFIMemoryMapTag() (*EFIMemoryMapTag, error) {
	tag, ok := bi.findTag(TagTypeEFIMemoryMap)
	if !ok {
		return nil, nil
	}
	return ParseEFIMemoryMapTag(tag)
}

// EFIBootServicesNotExited reports whether the loader left EFI boot
// services running. The tag is presence-only; it has no body.
func (bi *BootInformation) EFIBootServicesNotExited() bool {
	_, ok := bi.findTag(TagTypeEFIBS)
	return ok
}

// ElfSectionsTag returns the ELF section header tag, or (nil, nil)
// when the region does not carry one.
func (bi *BootInformation) ElfSectionsTag() (*ElfSectionsTag, error) {
	tag, ok := bi.findTag(TagTypeElfSections)
	if !ok {
		return nil, nil
	}
	return ParseElfSectionsTag(tag)
}

// FramebufferTag returns the framebuffer tag, or (nil, nil) when the
// region does not carry one.
func (bi *BootInformation) FramebufferTag() (*FramebufferTag, error) {
	tag, ok := bi.findTag(TagTypeFramebuffer)
	if !ok {
		return nil, nil
	}
	return ParseFramebufferTag(tag)
}

// SmbiosTag returns the first SMBIOS tag, or (nil, nil) when the
// region does not carry one.
func (bi *BootInformation) SmbiosTag() (*SmbiosTag, error) {
	tag, ok := bi.findTag(TagTypeSmbios)
	if !ok {
		return nil, nil
	}
	return ParseSmbiosTag(tag)
}

// ModuleTags returns an iterator over all module tags. A loader passes
// one tag per boot module, so unlike the other accessors this one does
// not stop at the first match.
func (bi *BootInformation) ModuleTags() *ModuleIter {
	return &ModuleIter{tags: bi.Tags()}
}
