// Package textenc renders decoded DBZ records as CSV rows or
// newline-delimited JSON objects. Both encoders are streaming writers: they
// consume and emit record by record and never hold the decoded sequence in
// memory.
//
// Rendering rules are shared by both formats: prices are exact decimal
// strings (never floating point), timestamps are raw nanoseconds unless
// pretty times are requested, and instrument ids are replaced by resolved
// symbols when pretty symbols are requested. CSV always renders timestamps
// as ISO-8601 UTC.
package textenc

import (
	"fmt"

	"github.com/openticks/dbz/pkg/metadata"
	"github.com/openticks/dbz/pkg/record"
)

// Options controls field rendering.
type Options struct {
	// PrettySymbols replaces the numeric instrument id with the symbol
	// resolved from the header's mapping table. Unmapped instruments render
	// as an empty field.
	PrettySymbols bool
	// PrettyTimes renders JSON timestamps as ISO-8601 UTC instead of raw
	// nanoseconds. CSV timestamps are always ISO-8601.
	PrettyTimes bool
	// HeaderRow emits a leading column-name row. CSV only.
	HeaderRow bool
}

// UnsupportedSchemaError indicates a record-type tag or stream schema the
// text encoders have no column or field mapping for. It fails the encode
// call it occurs in; the decode side is unaffected.
type UnsupportedSchemaError struct {
	Schema metadata.Schema
	RType  record.RType
	schema bool
}

func unsupportedSchema(s metadata.Schema) *UnsupportedSchemaError {
	return &UnsupportedSchemaError{Schema: s, schema: true}
}

func unsupportedRType(rt record.RType) *UnsupportedSchemaError {
	return &UnsupportedSchemaError{RType: rt}
}

func (e *UnsupportedSchemaError) Error() string {
	if e.schema {
		return fmt.Sprintf("no text encoding for schema %s", e.Schema)
	}
	return fmt.Sprintf("no text encoding for record type %s", e.RType)
}

// Encoder is a streaming record sink shared by the CSV and JSON encoders.
type Encoder interface {
	// EncodeRecord renders one record.
	EncodeRecord(rec record.Record) error
	// Close flushes buffered output. It does not close the sink.
	Close() error
}

// renderAction renders an action or side byte as a single-character string;
// the zero byte renders empty.
func renderAction(b byte) string {
	if b == 0 {
		return ""
	}
	return string(rune(b))
}
