package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrMalformed is the sentinel for structural violations: truncated input,
// reads past a buffer bound, or fields inconsistent with declared lengths.
var ErrMalformed = errors.New("malformed input")

// MalformedError reports a structural violation at a specific byte position.
type MalformedError struct {
	Offset int64
	Msg    string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Msg, e.Offset)
}

func (e *MalformedError) Unwrap() error { return ErrMalformed }

// Malformed builds a MalformedError at the given offset.
func Malformed(offset int64, format string, args ...interface{}) error {
	return &MalformedError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// Buffer is a bounds-checked forward cursor over a byte slice. Reads advance
// the position; a read past the end fails with a MalformedError carrying the
// position at which the read was attempted. The base offset lets errors
// report positions relative to the enclosing stream rather than the slice.
type Buffer struct {
	data []byte
	pos  int
	base int64
}

// NewBuffer creates a cursor over data. base is the stream offset of data[0],
// used only for error reporting.
func NewBuffer(data []byte, base int64) *Buffer {
	return &Buffer{data: data, base: base}
}

// Pos returns the current position within the slice.
func (b *Buffer) Pos() int { return b.pos }

// Remaining returns the number of unread bytes.
func (b *Buffer) Remaining() int { return len(b.data) - b.pos }

func (b *Buffer) need(n int) error {
	if b.pos+n > len(b.data) {
		return Malformed(b.base+int64(b.pos), "need %d bytes, %d remain", n, len(b.data)-b.pos)
	}
	return nil
}

// Skip advances the cursor by n bytes.
func (b *Buffer) Skip(n int) error {
	if err := b.need(n); err != nil {
		return err
	}
	b.pos += n
	return nil
}

// Uint8 reads a single byte.
func (b *Buffer) Uint8() (uint8, error) {
	if err := b.need(1); err != nil {
		return 0, err
	}
	v := b.data[b.pos]
	b.pos++
	return v, nil
}

// Uint16 reads a little-endian uint16.
func (b *Buffer) Uint16() (uint16, error) {
	if err := b.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(b.data[b.pos:])
	b.pos += 2
	return v, nil
}

// Uint32 reads a little-endian uint32.
func (b *Buffer) Uint32() (uint32, error) {
	if err := b.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(b.data[b.pos:])
	b.pos += 4
	return v, nil
}

// Uint64 reads a little-endian uint64.
func (b *Buffer) Uint64() (uint64, error) {
	if err := b.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(b.data[b.pos:])
	b.pos += 8
	return v, nil
}

// CStr reads a fixed-width, zero-padded string field of n bytes. The value
// must be valid UTF-8; trailing NUL padding is stripped.
func (b *Buffer) CStr(n int) (string, error) {
	if err := b.need(n); err != nil {
		return "", err
	}
	raw := b.data[b.pos : b.pos+n]
	s := strings.TrimRight(string(raw), "\x00")
	if !utf8.ValidString(s) {
		return "", Malformed(b.base+int64(b.pos), "invalid UTF-8 in fixed string %q", raw)
	}
	b.pos += n
	return s, nil
}

// PutCStr writes s into a fixed-width field of n bytes at buf[pos:],
// zero-padding the remainder. s must fit with at least one byte to spare so
// the field remains NUL-terminated on the wire.
func PutCStr(buf []byte, pos, n int, s string) error {
	if len(s) >= n {
		return fmt.Errorf("string %q does not fit fixed field of %d bytes", s, n)
	}
	field := buf[pos : pos+n]
	copy(field, s)
	for i := len(s); i < n; i++ {
		field[i] = 0
	}
	return nil
}
