package mbi

// ModuleTag describes one boot module: a file the loader placed in
// memory for the kernel, such as an initramfs, plus the command line
// that was configured for it.
type ModuleTag struct {
	tag   Tag
	start uint32
	end   uint32
}

// ParseModuleTag validates the structure of a module tag.
func ParseModuleTag(t Tag) (*ModuleTag, error) {
	if t.Type() != TagTypeModule {
		return nil, structural(0, "not a module tag: "+t.Type().String())
	}
	c := t.bodyCursor()
	start, err := c.ReadUint32()
	if err != nil {
		return nil, structural(c.Offset(), "module tag too short for its address range")
	}
	end, err := c.ReadUint32()
	if err != nil {
		return nil, structural(c.Offset(), "module tag too short for its address range")
	}
	if c.Remaining() < 1 {
		return nil, structural(c.Offset(), "module tag has no room for its NUL terminator")
	}
	return &ModuleTag{tag: t, start: start, end: end}, nil
}

// StartAddress returns the physical start address of the module.
func (t *ModuleTag) StartAddress() uint32 { return t.start }

// EndAddress returns the physical address one past the module.
func (t *ModuleTag) EndAddress() uint32 { return t.end }

// ModuleSize returns the module length in bytes: the end address minus
// the start address, exactly as the loader reported them.
func (t *ModuleTag) ModuleSize() uint32 { return t.end - t.start }

// Cmdline returns the command line configured for the module. It
// returns ErrInvalidUTF8 when the bytes do not form valid UTF-8.
func (t *ModuleTag) Cmdline() (string, error) {
	return cText(t.tag.Body()[8:])
}

// ModuleIter iterates over every module tag in a region. Module tags
// that fail to parse are skipped so one damaged module cannot hide its
// siblings; the first such failure stays available through Err.
type ModuleIter struct {
	tags *TagIter
	err  error
}

// Next returns the next module tag, or false when there are no more.
func (it *ModuleIter) Next() (*ModuleTag, bool) {
	for {
		tag, ok := it.tags.Next()
		if !ok {
			return nil, false
		}
		if tag.Type() != TagTypeModule {
			continue
		}
		m, err := ParseModuleTag(tag)
		if err != nil {
			if it.err == nil {
				it.err = err
			}
			continue
		}
		return m, true
	}
}

// Err returns the first parse failure the iteration skipped, or nil.
func (it *ModuleIter) Err() error { return it.err }
