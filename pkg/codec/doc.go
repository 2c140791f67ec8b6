// Package codec provides the byte-level primitives shared by the DBZ
// decoder and encoders.
//
// All multi-byte integers in the DBZ format are little-endian at fixed
// offsets. The package offers two styles of access:
//
//   - Buffer, a bounds-checked forward cursor used by the metadata parser,
//     where field offsets are implied by read order.
//   - Plain binary.LittleEndian access for record views, where the caller
//     has already validated the record span.
//
// Every failed read reports the byte position at which it occurred and
// unwraps to ErrMalformed.
//
// # Prices
//
// Prices are 64-bit signed integers scaled by 1e-9 (one unit is one
// billionth of the currency). PriceString and PriceFromString convert
// between the scaled integer and its exact decimal text form without ever
// passing through floating point, so round-tripping is lossless across the
// full representable range.
//
// # Timestamps and dates
//
// Event timestamps are nanoseconds since the UNIX epoch stored as uint64.
// Mapping-interval dates are packed decimal yyyymmdd values in a uint32.
package codec
