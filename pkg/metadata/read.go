package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/openticks/dbz/pkg/codec"
)

// ErrUnsupportedVersion indicates the stream does not begin with a
// recognized DBZ marker, or declares a version newer than this codec.
// Nothing is partially read when it is returned.
var ErrUnsupportedVersion = errors.New("unsupported DBZ version")

const (
	// The metadata lives in a zstd skippable frame so that standard zstd
	// tooling skips it. Any magic in [magicRangeStart, magicRangeEnd) is a
	// skippable frame.
	magicRangeStart = 0x184D2A50
	magicRangeEnd   = 0x184D2A60

	preludeLen     = 8
	versionCstrLen = 4
	datasetCstrLen = 16
	symbolCstrLen  = 22
	reservedLen    = 39
	fixedLen       = 96

	// Caps the header allocation when reading untrusted input. Real headers
	// are a few kilobytes even with thousands of mappings.
	maxFrameLen = 1 << 24
)

// Read parses the metadata header from the start of a byte stream and leaves
// r positioned exactly at the first record byte. Recoverable inconsistencies
// in the symbol-mapping table are returned as warnings.
func Read(r io.Reader) (*Metadata, []Warning, error) {
	prelude := make([]byte, preludeLen)
	if _, err := io.ReadFull(r, prelude); err != nil {
		return nil, nil, codec.Malformed(0, "truncated metadata prelude (%v)", err)
	}
	magic := binary.LittleEndian.Uint32(prelude[0:4])
	if magic < magicRangeStart || magic >= magicRangeEnd {
		return nil, nil, fmt.Errorf("no skippable-frame magic (got %#x): %w", magic, ErrUnsupportedVersion)
	}
	frameLen := binary.LittleEndian.Uint32(prelude[4:8])
	if frameLen < fixedLen {
		return nil, nil, codec.Malformed(4, "frame length %d shorter than fixed metadata size %d", frameLen, fixedLen)
	}
	if frameLen > maxFrameLen {
		return nil, nil, codec.Malformed(4, "frame length %d exceeds maximum %d", frameLen, maxFrameLen)
	}

	frame := make([]byte, frameLen)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, nil, codec.Malformed(preludeLen, "truncated metadata frame (%v)", err)
	}
	return decode(frame)
}

func decode(frame []byte) (*Metadata, []Warning, error) {
	if !bytes.Equal(frame[0:3], []byte("DBZ")) {
		return nil, nil, fmt.Errorf("missing DBZ version marker: %w", ErrUnsupportedVersion)
	}
	// The fourth byte is a binary version number, not an ASCII digit.
	version := frame[3]
	if version == 0 || version > Version {
		return nil, nil, fmt.Errorf("version %d not readable by this codec: %w", version, ErrUnsupportedVersion)
	}

	b := codec.NewBuffer(frame, preludeLen)
	if err := b.Skip(versionCstrLen); err != nil {
		return nil, nil, err
	}

	m := &Metadata{Version: version}
	var err error
	if m.Dataset, err = b.CStr(datasetCstrLen); err != nil {
		return nil, nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	schemaPos := b.Pos()
	rawSchema, err := b.Uint16()
	if err != nil {
		return nil, nil, err
	}
	m.Schema = Schema(rawSchema)
	if !m.Schema.Valid() {
		return nil, nil, codec.Malformed(preludeLen+int64(schemaPos), "unrecognized schema identifier %d", rawSchema)
	}

	if m.Start, err = b.Uint64(); err != nil {
		return nil, nil, err
	}
	if m.End, err = b.Uint64(); err != nil {
		return nil, nil, err
	}
	if m.Limit, err = b.Uint64(); err != nil {
		return nil, nil, err
	}
	if m.RecordCount, err = b.Uint64(); err != nil {
		return nil, nil, err
	}

	enumPos := b.Pos()
	rawCompression, err := b.Uint8()
	if err != nil {
		return nil, nil, err
	}
	if rawCompression > uint8(CompressionZstd) {
		return nil, nil, codec.Malformed(preludeLen+int64(enumPos), "unknown compression mode %d", rawCompression)
	}
	m.Compression = Compression(rawCompression)

	if m.STypeIn, err = readSType(b); err != nil {
		return nil, nil, fmt.Errorf("failed to read stype_in: %w", err)
	}
	if m.STypeOut, err = readSType(b); err != nil {
		return nil, nil, fmt.Errorf("failed to read stype_out: %w", err)
	}

	if err = b.Skip(reservedLen); err != nil {
		return nil, nil, err
	}

	sdPos := b.Pos()
	sdLen, err := b.Uint32()
	if err != nil {
		return nil, nil, err
	}
	if sdLen != 0 {
		return nil, nil, codec.Malformed(preludeLen+int64(sdPos), "embedded schema definitions are not supported (length %d)", sdLen)
	}

	if m.Symbols, err = readSymbolList(b); err != nil {
		return nil, nil, fmt.Errorf("failed to parse symbols: %w", err)
	}
	if m.Partial, err = readSymbolList(b); err != nil {
		return nil, nil, fmt.Errorf("failed to parse partial symbols: %w", err)
	}
	if m.NotFound, err = readSymbolList(b); err != nil {
		return nil, nil, fmt.Errorf("failed to parse not-found symbols: %w", err)
	}
	if m.Mappings, err = readMappings(b); err != nil {
		return nil, nil, fmt.Errorf("failed to parse symbol mappings: %w", err)
	}

	if b.Remaining() != 0 {
		return nil, nil, codec.Malformed(preludeLen+int64(b.Pos()), "%d trailing bytes after declared header content", b.Remaining())
	}

	return m, checkMappings(m.Mappings), nil
}

func readSType(b *codec.Buffer) (SType, error) {
	pos := b.Pos()
	raw, err := b.Uint8()
	if err != nil {
		return 0, err
	}
	s := SType(raw)
	switch s {
	case STypeProductID, STypeNative, STypeSmart:
		return s, nil
	default:
		return 0, codec.Malformed(preludeLen+int64(pos), "unknown symbology type %d", raw)
	}
}

func readSymbolList(b *codec.Buffer) ([]string, error) {
	count, err := b.Uint32()
	if err != nil {
		return nil, err
	}
	if int(count)*symbolCstrLen > b.Remaining() {
		return nil, codec.Malformed(preludeLen+int64(b.Pos()), "symbol count %d exceeds remaining header", count)
	}
	symbols := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		s, err := b.CStr(symbolCstrLen)
		if err != nil {
			return nil, fmt.Errorf("symbol %d: %w", i, err)
		}
		symbols = append(symbols, s)
	}
	return symbols, nil
}

func readMappings(b *codec.Buffer) ([]SymbolMapping, error) {
	count, err := b.Uint32()
	if err != nil {
		return nil, err
	}
	mappings := make([]SymbolMapping, 0, count)
	for i := uint32(0); i < count; i++ {
		m, err := readMapping(b)
		if err != nil {
			return nil, fmt.Errorf("mapping %d: %w", i, err)
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

func readMapping(b *codec.Buffer) (SymbolMapping, error) {
	const intervalEncodedLen = 4 + 4 + symbolCstrLen

	native, err := b.CStr(symbolCstrLen)
	if err != nil {
		return SymbolMapping{}, err
	}
	ivCount, err := b.Uint32()
	if err != nil {
		return SymbolMapping{}, err
	}
	if int(ivCount)*intervalEncodedLen > b.Remaining() {
		return SymbolMapping{}, codec.Malformed(preludeLen+int64(b.Pos()),
			"interval count %d exceeds remaining header", ivCount)
	}
	intervals := make([]MappingInterval, 0, ivCount)
	for i := uint32(0); i < ivCount; i++ {
		iv, err := readInterval(b)
		if err != nil {
			return SymbolMapping{}, fmt.Errorf("interval %d: %w", i, err)
		}
		intervals = append(intervals, iv)
	}
	return SymbolMapping{Native: native, Intervals: intervals}, nil
}

func readInterval(b *codec.Buffer) (MappingInterval, error) {
	var iv MappingInterval

	pos := b.Pos()
	rawStart, err := b.Uint32()
	if err != nil {
		return iv, err
	}
	if iv.StartDate, err = codec.DateFromRaw(rawStart); err != nil {
		return iv, codec.Malformed(preludeLen+int64(pos), "bad start date: %v", err)
	}

	pos = b.Pos()
	rawEnd, err := b.Uint32()
	if err != nil {
		return iv, err
	}
	if iv.EndDate, err = codec.DateFromRaw(rawEnd); err != nil {
		return iv, codec.Malformed(preludeLen+int64(pos), "bad end date: %v", err)
	}

	if iv.Symbol, err = b.CStr(symbolCstrLen); err != nil {
		return iv, err
	}
	return iv, nil
}

// checkMappings flags intervals that are out of order or overlap within one
// native identifier. These do not fail the parse: resolution still works on
// a first-matching-interval basis.
func checkMappings(mappings []SymbolMapping) []Warning {
	var warnings []Warning
	for _, m := range mappings {
		for i := 1; i < len(m.Intervals); i++ {
			prev, cur := m.Intervals[i-1], m.Intervals[i]
			if cur.StartDate.Before(prev.StartDate) {
				warnings = append(warnings, Warning{
					Native:  m.Native,
					Message: fmt.Sprintf("interval %d starts before interval %d", i, i-1),
				})
			} else if cur.StartDate.Before(prev.EndDate) {
				warnings = append(warnings, Warning{
					Native:  m.Native,
					Message: fmt.Sprintf("interval %d overlaps interval %d", i, i-1),
				})
			}
		}
	}
	return warnings
}
