package mbi

// String tags carry a single NUL-terminated UTF-8 string as their
// whole body. The final byte is taken to be the terminator and is not
// inspected, matching what boot loaders actually emit.

// cText decodes the string body of a tag: everything except the
// trailing NUL, validated as UTF-8. The string is copied out of the
// region so it stays valid independently of the caller's buffer.
func cText(body []byte) (string, error) {
	s := body[:len(body)-1]
	if !isUTF8Valid(s) {
		return "", ErrInvalidUTF8
	}
	return string(s), nil
}

// checkStringBody rejects a string tag too small to hold its NUL.
func checkStringBody(t Tag) error {
	if len(t.Body()) < 1 {
		return structural(TagHeaderSize, t.Type().String()+" tag has no room for its NUL terminator")
	}
	return nil
}

// BootLoaderNameTag is the name the boot loader reports for itself,
// e.g. "GRUB 2.02~beta3-5".
type BootLoaderNameTag struct {
	tag Tag
}

// ParseBootLoaderNameTag validates the structure of a boot loader name
// tag. The string content is validated later, by Name.
func ParseBootLoaderNameTag(t Tag) (*BootLoaderNameTag, error) {
	if t.Type() != TagTypeBootLoaderName {
		return nil, structural(0, "not a boot loader name tag: "+t.Type().String())
	}
	if err := checkStringBody(t); err != nil {
		return nil, err
	}
	return &BootLoaderNameTag{tag: t}, nil
}

// Name returns the boot loader name. It returns ErrInvalidUTF8 when
// the loader wrote bytes that do not form valid UTF-8.
func (t *BootLoaderNameTag) Name() (string, error) {
	return cText(t.tag.Body())
}

// CommandLineTag is the command line passed to the kernel.
type CommandLineTag struct {
	tag Tag
}

// ParseCommandLineTag validates the structure of a command line tag.
// The string content is validated later, by CommandLine.
func ParseCommandLineTag(t Tag) (*CommandLineTag, error) {
	if t.Type() != TagTypeCommandLine {
		return nil, structural(0, "not a command line tag: "+t.Type().String())
	}
	if err := checkStringBody(t); err != nil {
		return nil, err
	}
	return &CommandLineTag{tag: t}, nil
}

// CommandLine returns the kernel command line. It returns
// ErrInvalidUTF8 when the bytes do not form valid UTF-8.
func (t *CommandLineTag) CommandLine() (string, error) {
	return cText(t.tag.Body())
}
