package record

import (
	"fmt"
	"io"

	"github.com/openticks/dbz/pkg/codec"
)

// LengthMismatchError reports a record whose declared length disagrees with
// the fixed size registered for its type. The stream cannot be resynchronized
// past it, so it is fatal for the remainder of the stream.
type LengthMismatchError struct {
	Offset   int64
	RType    RType
	Declared int
	Expected int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("record at offset %d declares %d bytes but %s records are %d bytes",
		e.Offset, e.Declared, e.RType, e.Expected)
}

// Reader is a lazy, forward-only iterator over the records of a DBZ body.
// The yielded Record borrows the reader's buffer and is valid until the next
// call to Next; use Clone to retain one longer.
//
// A Reader is single-consumer: the cursor is shared state.
type Reader struct {
	src    io.Reader
	buf    []byte
	rec    Record
	err    error
	done   bool
	offset int64
	count  uint64
}

// NewReader starts iterating records from src, which must be positioned at
// the first record byte of an already-decompressed body.
func NewReader(src io.Reader) *Reader {
	return &Reader{src: src, buf: make([]byte, Mbp10Len)}
}

// Next advances to the next record. It returns false when the stream is
// exhausted or a structural error ends it; Err distinguishes the two.
func (r *Reader) Next() bool {
	if r.done {
		return false
	}

	start := r.offset
	if _, err := io.ReadFull(r.src, r.buf[:HeaderLen]); err != nil {
		r.done = true
		if err == io.EOF {
			return false
		}
		if err == io.ErrUnexpectedEOF {
			r.err = codec.Malformed(start, "truncated record header")
		} else {
			r.err = fmt.Errorf("failed to read record header at offset %d: %w", start, err)
		}
		return false
	}

	declared := int(r.buf[0]) * 4
	rtype := RType(r.buf[1])
	if declared < HeaderLen {
		r.done = true
		r.err = codec.Malformed(start, "record declares %d bytes, less than the %d-byte header", declared, HeaderLen)
		return false
	}
	if expected, ok := sizes[rtype]; ok && expected != declared {
		r.done = true
		r.err = &LengthMismatchError{Offset: start, RType: rtype, Declared: declared, Expected: expected}
		return false
	}

	if declared > len(r.buf) {
		grown := make([]byte, declared)
		copy(grown, r.buf[:HeaderLen])
		r.buf = grown
	}
	if _, err := io.ReadFull(r.src, r.buf[HeaderLen:declared]); err != nil {
		r.done = true
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			r.err = codec.Malformed(start, "record truncated mid-body")
		} else {
			r.err = fmt.Errorf("failed to read record body at offset %d: %w", start, err)
		}
		return false
	}

	r.rec = Record{data: r.buf[:declared], offset: start}
	r.offset = start + int64(declared)
	r.count++
	return true
}

// Record returns the record yielded by the last successful Next.
func (r *Reader) Record() Record { return r.rec }

// Err returns the error that ended the stream, or nil after a clean
// exhaustion at end of input.
func (r *Reader) Err() error { return r.err }

// Offset is the byte offset just past the last yielded record.
func (r *Reader) Offset() int64 { return r.offset }

// Count is the number of records yielded so far.
func (r *Reader) Count() uint64 { return r.count }

// Close releases the underlying source when it is closeable, dropping any
// buffered decompression state even if iteration stopped early.
func (r *Reader) Close() error {
	r.done = true
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
