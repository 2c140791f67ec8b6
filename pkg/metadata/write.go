package metadata

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/openticks/dbz/pkg/codec"
)

// Byte offsets of the updatable fields, relative to the start of the file
// (prelude + version marker + dataset + schema).
const (
	startFieldOffset   = preludeLen + versionCstrLen + datasetCstrLen + 2
	updatableFieldsLen = 8 * 4
)

// Encode writes the full metadata header, prelude included, leaving w
// positioned at the first record byte.
func (m *Metadata) Encode(w io.Writer) error {
	version := m.Version
	if version == 0 {
		version = Version
	}
	if version > Version {
		return fmt.Errorf("cannot encode version %d headers", version)
	}
	if !m.Schema.Valid() {
		return fmt.Errorf("cannot encode unrecognized schema %d", uint16(m.Schema))
	}

	fixed := make([]byte, fixedLen)
	copy(fixed[0:3], "DBZ")
	fixed[3] = version
	if err := codec.PutCStr(fixed, versionCstrLen, datasetCstrLen, m.Dataset); err != nil {
		return fmt.Errorf("dataset: %w", err)
	}
	binary.LittleEndian.PutUint16(fixed[20:], uint16(m.Schema))
	binary.LittleEndian.PutUint64(fixed[22:], m.Start)
	binary.LittleEndian.PutUint64(fixed[30:], m.End)
	binary.LittleEndian.PutUint64(fixed[38:], m.Limit)
	binary.LittleEndian.PutUint64(fixed[46:], m.RecordCount)
	fixed[54] = uint8(m.Compression)
	fixed[55] = uint8(m.STypeIn)
	fixed[56] = uint8(m.STypeOut)
	// fixed[57:96] is reserved and stays zero.

	frame := fixed
	frame = binary.LittleEndian.AppendUint32(frame, 0) // no schema definition
	var err error
	if frame, err = appendSymbolList(frame, m.Symbols); err != nil {
		return fmt.Errorf("symbols: %w", err)
	}
	if frame, err = appendSymbolList(frame, m.Partial); err != nil {
		return fmt.Errorf("partial symbols: %w", err)
	}
	if frame, err = appendSymbolList(frame, m.NotFound); err != nil {
		return fmt.Errorf("not-found symbols: %w", err)
	}
	if frame, err = appendMappings(frame, m.Mappings); err != nil {
		return err
	}

	prelude := make([]byte, preludeLen)
	binary.LittleEndian.PutUint32(prelude[0:], magicRangeStart)
	binary.LittleEndian.PutUint32(prelude[4:], uint32(len(frame)))
	if _, err := w.Write(prelude); err != nil {
		return fmt.Errorf("failed to write metadata prelude: %w", err)
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write metadata frame: %w", err)
	}
	return nil
}

// UpdateEncoded rewrites the mutable header fields of an already-written DBZ
// stream in place: the time bounds, limit, and record count. The seek
// position is restored afterwards.
func UpdateEncoded(ws io.WriteSeeker, start, end, limit, recordCount uint64) error {
	pos, err := ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	if _, err := ws.Seek(startFieldOffset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to header fields: %w", err)
	}
	buf := make([]byte, updatableFieldsLen)
	binary.LittleEndian.PutUint64(buf[0:], start)
	binary.LittleEndian.PutUint64(buf[8:], end)
	binary.LittleEndian.PutUint64(buf[16:], limit)
	binary.LittleEndian.PutUint64(buf[24:], recordCount)
	if _, err := ws.Write(buf); err != nil {
		return fmt.Errorf("failed to update header fields: %w", err)
	}
	if _, err := ws.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("failed to restore position: %w", err)
	}
	return nil
}

func appendSymbolList(frame []byte, symbols []string) ([]byte, error) {
	frame = binary.LittleEndian.AppendUint32(frame, uint32(len(symbols)))
	for _, s := range symbols {
		field := make([]byte, symbolCstrLen)
		if err := codec.PutCStr(field, 0, symbolCstrLen, s); err != nil {
			return nil, err
		}
		frame = append(frame, field...)
	}
	return frame, nil
}

func appendMappings(frame []byte, mappings []SymbolMapping) ([]byte, error) {
	frame = binary.LittleEndian.AppendUint32(frame, uint32(len(mappings)))
	for _, m := range mappings {
		field := make([]byte, symbolCstrLen)
		if err := codec.PutCStr(field, 0, symbolCstrLen, m.Native); err != nil {
			return nil, fmt.Errorf("mapping %q: %w", m.Native, err)
		}
		frame = append(frame, field...)
		frame = binary.LittleEndian.AppendUint32(frame, uint32(len(m.Intervals)))
		for _, iv := range m.Intervals {
			frame = binary.LittleEndian.AppendUint32(frame, codec.RawFromDate(iv.StartDate))
			frame = binary.LittleEndian.AppendUint32(frame, codec.RawFromDate(iv.EndDate))
			if err := codec.PutCStr(field, 0, symbolCstrLen, iv.Symbol); err != nil {
				return nil, fmt.Errorf("mapping %q: %w", m.Native, err)
			}
			frame = append(frame, field...)
		}
	}
	return frame, nil
}
