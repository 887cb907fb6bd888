package mbi

import "encoding/binary"

// Multiboot2 structures are little-endian regardless of host order;
// the format only exists on x86.
var byteOrder = binary.LittleEndian

// Cursor provides a minimal slice-based field reader. It consumes
// little-endian fields from the front of an in-memory buffer and
// never reads past it: every method either returns the requested
// field or ErrShortBytes, leaving the cursor unmoved on failure.
type Cursor struct {
	buf  []byte
	base int // offset of buf[0] within the enclosing structure
}

// NewCursor constructs a Cursor over the provided buffer.
func NewCursor(b []byte) *Cursor { return &Cursor{buf: b} }

// newCursorAt constructs a Cursor whose Offset reports positions
// relative to an enclosing structure that starts base bytes earlier.
func newCursorAt(b []byte, base int) *Cursor { return &Cursor{buf: b, base: base} }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) }

// Offset returns the position of the next read within the enclosing
// structure. Useful for error reporting.
func (c *Cursor) Offset() int { return c.base }

// ReadUint8 reads a single byte.
func (c *Cursor) ReadUint8() (uint8, error) {
	if len(c.buf) < 1 {
		return 0, ErrShortBytes
	}
	v := c.buf[0]
	c.advance(1)
	return v, nil
}

// ReadUint16 reads a little-endian uint16.
func (c *Cursor) ReadUint16() (uint16, error) {
	if len(c.buf) < 2 {
		return 0, ErrShortBytes
	}
	v := byteOrder.Uint16(c.buf)
	c.advance(2)
	return v, nil
}

// ReadUint32 reads a little-endian uint32.
func (c *Cursor) ReadUint32() (uint32, error) {
	if len(c.buf) < 4 {
		return 0, ErrShortBytes
	}
	v := byteOrder.Uint32(c.buf)
	c.advance(4)
	return v, nil
}

// ReadUint64 reads a little-endian uint64.
func (c *Cursor) ReadUint64() (uint64, error) {
	if len(c.buf) < 8 {
		return 0, ErrShortBytes
	}
	v := byteOrder.Uint64(c.buf)
	c.advance(8)
	return v, nil
}

// ReadBytes returns the next n bytes without copying them. The
// returned slice aliases the underlying buffer.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 || len(c.buf) < n {
		return nil, ErrShortBytes
	}
	v := c.buf[:n:n]
	c.advance(n)
	return v, nil
}

// Skip discards the next n bytes.
func (c *Cursor) Skip(n int) error {
	if n < 0 || len(c.buf) < n {
		return ErrShortBytes
	}
	c.advance(n)
	return nil
}

func (c *Cursor) advance(n int) {
	c.buf = c.buf[n:]
	c.base += n
}
