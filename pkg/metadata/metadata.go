// Package metadata parses and encodes the DBZ metadata header: the zstd
// skippable frame that precedes the record body and carries the dataset,
// schema, time bounds, record count, and symbol-mapping table.
package metadata

import (
	"fmt"
	"time"
)

// Version is the newest DBZ header version this package reads and writes.
const Version = 1

// RecordCountUnknown marks a stream whose record count was not known at
// write time; the decoder reads until end of stream.
const RecordCountUnknown = ^uint64(0)

// Schema identifies the record kind stored in a DBZ stream.
type Schema uint16

const (
	SchemaMbo Schema = iota
	SchemaMbp1
	SchemaMbp10
	SchemaTbbo
	SchemaTrades
	SchemaOhlcv1S
	SchemaOhlcv1M
	SchemaOhlcv1H
	SchemaOhlcv1D
	SchemaDefinition
	SchemaStatistics
	SchemaStatus
)

var schemaNames = map[Schema]string{
	SchemaMbo:        "mbo",
	SchemaMbp1:       "mbp-1",
	SchemaMbp10:      "mbp-10",
	SchemaTbbo:       "tbbo",
	SchemaTrades:     "trades",
	SchemaOhlcv1S:    "ohlcv-1s",
	SchemaOhlcv1M:    "ohlcv-1m",
	SchemaOhlcv1H:    "ohlcv-1h",
	SchemaOhlcv1D:    "ohlcv-1d",
	SchemaDefinition: "definition",
	SchemaStatistics: "statistics",
	SchemaStatus:     "status",
}

func (s Schema) String() string {
	if name, ok := schemaNames[s]; ok {
		return name
	}
	return fmt.Sprintf("schema(%d)", uint16(s))
}

// Valid reports whether s is a schema identifier this codec knows.
func (s Schema) Valid() bool {
	_, ok := schemaNames[s]
	return ok
}

// ParseSchema resolves a schema name like "trades" or "mbp-1".
func ParseSchema(name string) (Schema, error) {
	for s, n := range schemaNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown schema %q", name)
}

// Compression is the record-body compression mode declared in the header.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionZstd Compression = 1
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// SType is a symbology type: how instruments are identified on one side of
// the symbol mapping.
type SType uint8

const (
	STypeProductID SType = 1
	STypeNative    SType = 2
	STypeSmart     SType = 3
)

func (s SType) String() string {
	switch s {
	case STypeProductID:
		return "product_id"
	case STypeNative:
		return "native"
	case STypeSmart:
		return "smart"
	default:
		return fmt.Sprintf("stype(%d)", uint8(s))
	}
}

// Metadata is the parsed DBZ header. It is immutable after decode and safe
// to share by reference across concurrent encoders.
type Metadata struct {
	Version     uint8
	Dataset     string
	Schema      Schema
	Start       uint64
	End         uint64
	Limit       uint64
	RecordCount uint64
	Compression Compression
	STypeIn     SType
	STypeOut    SType
	Symbols     []string
	Partial     []string
	NotFound    []string
	Mappings    []SymbolMapping
}

// SymbolMapping holds the dated symbol intervals for one native identifier.
type SymbolMapping struct {
	Native    string
	Intervals []MappingInterval
}

// MappingInterval maps a native identifier to a symbol over [StartDate,
// EndDate). Dates are UTC calendar days.
type MappingInterval struct {
	StartDate time.Time
	EndDate   time.Time
	Symbol    string
}

// Warning is a recoverable header inconsistency, surfaced to the caller
// without failing the parse. Downstream symbol resolution proceeds on a
// best-effort, first-matching-interval basis.
type Warning struct {
	Native  string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("symbol mapping %q: %s", w.Native, w.Message)
}
