package mbi

import (
	"errors"
	"strconv"
)

var (
	// ErrShortBytes is returned when the slice being decoded is too
	// short to contain the requested field.
	ErrShortBytes error = errShort{}

	// ErrInvalidUTF8 is returned when a string tag contains invalid UTF-8.
	// The tag itself remains structurally sound; only the text accessor
	// fails.
	ErrInvalidUTF8 error = errInvalidUTF8{}
)

// Error is the interface satisfied by all of the errors that originate
// from this package.
type Error interface {
	error

	// Recoverable reports whether iteration or decoding may sensibly
	// continue past this error. Structural damage is not recoverable;
	// content problems confined to a single accessor are.
	Recoverable() bool
}

// Recoverable reports whether decoding may continue past the error.
// Errors from outside this package are treated as not recoverable.
func Recoverable(e error) bool {
	var me Error
	if errors.As(e, &me) {
		return me.Recoverable()
	}
	return false
}

type errShort struct{}

func (e errShort) Error() string     { return "multiboot2: too few bytes left to read field" }
func (e errShort) Recoverable() bool { return false }

type errInvalidUTF8 struct{}

func (e errInvalidUTF8) Error() string     { return "multiboot2: invalid UTF-8 in string tag" }
func (e errInvalidUTF8) Recoverable() bool { return true }

// StructuralError reports damage to the framing of the boot
// information: sizes that contradict the enclosing region, strides
// that do not divide the element area, missing terminators.
type StructuralError struct {
	Offset int    // byte offset within the structure being decoded
	Detail string
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	return "multiboot2: " + e.Detail + " at offset " + strconv.Itoa(e.Offset)
}

// Recoverable is always 'false' for StructuralErrors.
func (e *StructuralError) Recoverable() bool { return false }

// UnknownVariantError is returned when a tagged union carries a
// discriminant this package does not know. The enclosing tag remains
// valid; only the variant payload is uninterpretable.
type UnknownVariantError struct {
	Union string // which union, e.g. "framebuffer type"
	Code  uint8
}

// Error implements the error interface.
func (e *UnknownVariantError) Error() string {
	return "multiboot2: unknown " + e.Union + " " + strconv.Itoa(int(e.Code))
}

// Recoverable is always 'true' for UnknownVariantErrors.
func (e *UnknownVariantError) Recoverable() bool { return true }

func structural(off int, detail string) *StructuralError {
	return &StructuralError{Offset: off, Detail: detail}
}
