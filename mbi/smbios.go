package mbi

// SmbiosTag carries a copy of the SMBIOS tables along with the
// SMBIOS entry point revision they conform to.
type SmbiosTag struct {
	tag   Tag
	major uint8
	minor uint8
}

// smbiosFixedSize covers the revision bytes and the six reserved bytes
// before the tables.
const smbiosFixedSize = 8

// ParseSmbiosTag validates the structure of an SMBIOS tag.
func ParseSmbiosTag(t Tag) (*SmbiosTag, error) {
	if t.Type() != TagTypeSmbios {
		return nil, structural(0, "not an smbios tag: "+t.Type().String())
	}
	if len(t.Body()) < smbiosFixedSize {
		return nil, structural(TagHeaderSize, "smbios tag too short for its fixed fields")
	}
	body := t.Body()
	return &SmbiosTag{tag: t, major: body[0], minor: body[1]}, nil
}

// Major returns the SMBIOS major revision.
func (t *SmbiosTag) Major() uint8 { return t.major }

// Minor returns the SMBIOS minor revision.
func (t *SmbiosTag) Minor() uint8 { return t.minor }

// Tables returns the raw SMBIOS table bytes without copying.
func (t *SmbiosTag) Tables() []byte {
	return t.tag.Body()[smbiosFixedSize:]
}
