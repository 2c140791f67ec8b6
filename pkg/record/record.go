// Package record decodes and encodes the fixed-layout records that make up
// a DBZ body. Records are zero-copy views into the decode buffer: a view is
// valid until the next call to Reader.Next, and Clone produces an owned copy
// for retention beyond that.
package record

import (
	"encoding/binary"
	"fmt"

	"github.com/openticks/dbz/pkg/metadata"
)

// HeaderLen is the size of the common prefix carried by every record:
// length (u8, units of 4 bytes), rtype (u8), publisher id (u16),
// instrument id (u32), event timestamp (u64 nanoseconds).
const HeaderLen = 16

// RType discriminates a record's fixed byte layout.
type RType uint8

const (
	RTypeTrade  RType = 0x00
	RTypeMbp1   RType = 0x01
	RTypeMbp10  RType = 0x0A
	RTypeOhlcv  RType = 0x11
	RTypeStatus RType = 0x12
	RTypeMbo    RType = 0xA0
)

func (rt RType) String() string {
	switch rt {
	case RTypeTrade:
		return "trade"
	case RTypeMbp1:
		return "mbp-1"
	case RTypeMbp10:
		return "mbp-10"
	case RTypeOhlcv:
		return "ohlcv"
	case RTypeStatus:
		return "status"
	case RTypeMbo:
		return "mbo"
	default:
		return fmt.Sprintf("rtype(%#x)", uint8(rt))
	}
}

// bidAskLen is the encoded size of one book level.
const bidAskLen = 32

// Fixed record sizes per rtype, including the common header.
const (
	TradeLen  = HeaderLen + 32
	Mbp1Len   = TradeLen + bidAskLen
	Mbp10Len  = TradeLen + 10*bidAskLen
	OhlcvLen  = HeaderLen + 40
	StatusLen = HeaderLen + 32
	MboLen    = HeaderLen + 40
)

var sizes = map[RType]int{
	RTypeTrade:  TradeLen,
	RTypeMbp1:   Mbp1Len,
	RTypeMbp10:  Mbp10Len,
	RTypeOhlcv:  OhlcvLen,
	RTypeStatus: StatusLen,
	RTypeMbo:    MboLen,
}

// SizeFor returns the registered fixed size for a record type, if known.
func SizeFor(rt RType) (int, bool) {
	n, ok := sizes[rt]
	return n, ok
}

// RTypeForSchema returns the record type produced by a stream of the given
// schema. Definition and statistics schemas have no implemented layout.
func RTypeForSchema(s metadata.Schema) (RType, bool) {
	switch s {
	case metadata.SchemaMbo:
		return RTypeMbo, true
	case metadata.SchemaMbp1, metadata.SchemaTbbo:
		return RTypeMbp1, true
	case metadata.SchemaMbp10:
		return RTypeMbp10, true
	case metadata.SchemaTrades:
		return RTypeTrade, true
	case metadata.SchemaOhlcv1S, metadata.SchemaOhlcv1M, metadata.SchemaOhlcv1H, metadata.SchemaOhlcv1D:
		return RTypeOhlcv, true
	case metadata.SchemaStatus:
		return RTypeStatus, true
	default:
		return 0, false
	}
}

// Record is a bounded view over one record span. The view borrows the
// reader's buffer; it owns no bytes of its own.
type Record struct {
	data   []byte
	offset int64
}

// View wraps an already-validated record span starting at the given body
// offset. The span's declared length must equal len(data).
func View(data []byte, offset int64) Record {
	return Record{data: data, offset: offset}
}

// Bytes exposes the raw record span, header included.
func (r Record) Bytes() []byte { return r.data }

// Offset is the record's byte offset within the decompressed body.
func (r Record) Offset() int64 { return r.offset }

// SizeBytes is the record's full length in bytes.
func (r Record) SizeBytes() int { return len(r.data) }

// RType returns the record-type tag.
func (r Record) RType() RType { return RType(r.data[1]) }

// Known reports whether this codec implements the record's layout. Unknown
// record types still expose the common prefix and raw bytes.
func (r Record) Known() bool {
	_, ok := sizes[r.RType()]
	return ok
}

// PublisherID identifies the publisher that produced the record.
func (r Record) PublisherID() uint16 { return binary.LittleEndian.Uint16(r.data[2:]) }

// InstrumentID is the numeric instrument (product) identifier.
func (r Record) InstrumentID() uint32 { return binary.LittleEndian.Uint32(r.data[4:]) }

// TsEvent is the event timestamp in nanoseconds since the UNIX epoch.
func (r Record) TsEvent() uint64 { return binary.LittleEndian.Uint64(r.data[8:]) }

// Clone returns an owned copy whose lifetime is independent of the decode
// buffer.
func (r Record) Clone() Record {
	return Record{data: append([]byte(nil), r.data...), offset: r.offset}
}

func (r Record) u16(off int) uint16 { return binary.LittleEndian.Uint16(r.data[off:]) }
func (r Record) u32(off int) uint32 { return binary.LittleEndian.Uint32(r.data[off:]) }
func (r Record) u64(off int) uint64 { return binary.LittleEndian.Uint64(r.data[off:]) }
func (r Record) i32(off int) int32  { return int32(binary.LittleEndian.Uint32(r.data[off:])) }
func (r Record) i64(off int) int64  { return int64(binary.LittleEndian.Uint64(r.data[off:])) }

// BidAsk is one order-book level.
type BidAsk struct {
	BidPx int64
	AskPx int64
	BidSz uint32
	AskSz uint32
	BidCt uint32
	AskCt uint32
}

func (r Record) bidAsk(off int) BidAsk {
	return BidAsk{
		BidPx: r.i64(off),
		AskPx: r.i64(off + 8),
		BidSz: r.u32(off + 16),
		AskSz: r.u32(off + 20),
		BidCt: r.u32(off + 24),
		AskCt: r.u32(off + 28),
	}
}

// Trade is a view over a trade record.
type Trade struct{ Record }

// AsTrade reinterprets the record as a trade if its tag matches.
func (r Record) AsTrade() (Trade, bool) {
	if r.RType() != RTypeTrade {
		return Trade{}, false
	}
	return Trade{r}, true
}

func (t Trade) Price() int64     { return t.i64(16) }
func (t Trade) Size() uint32     { return t.u32(24) }
func (t Trade) Action() byte     { return t.data[28] }
func (t Trade) Side() byte       { return t.data[29] }
func (t Trade) Flags() int8      { return int8(t.data[30]) }
func (t Trade) Depth() uint8     { return t.data[31] }
func (t Trade) TsRecv() uint64   { return t.u64(32) }
func (t Trade) TsInDelta() int32 { return t.i32(40) }
func (t Trade) Sequence() uint32 { return t.u32(44) }

// Mbp1 is a view over a top-of-book (or tbbo) record: the trade layout plus
// one book level.
type Mbp1 struct{ Trade }

// AsMbp1 reinterprets the record as an mbp-1 if its tag matches.
func (r Record) AsMbp1() (Mbp1, bool) {
	if r.RType() != RTypeMbp1 {
		return Mbp1{}, false
	}
	return Mbp1{Trade{r}}, true
}

// Level returns the single book level.
func (m Mbp1) Level() BidAsk { return m.bidAsk(TradeLen) }

// Mbp10 is a view over a ten-level depth record.
type Mbp10 struct{ Trade }

// AsMbp10 reinterprets the record as an mbp-10 if its tag matches.
func (r Record) AsMbp10() (Mbp10, bool) {
	if r.RType() != RTypeMbp10 {
		return Mbp10{}, false
	}
	return Mbp10{Trade{r}}, true
}

// Level returns book level i, 0 through 9.
func (m Mbp10) Level(i int) BidAsk { return m.bidAsk(TradeLen + i*bidAskLen) }

// Mbo is a view over an order-book delta record.
type Mbo struct{ Record }

// AsMbo reinterprets the record as an mbo if its tag matches.
func (r Record) AsMbo() (Mbo, bool) {
	if r.RType() != RTypeMbo {
		return Mbo{}, false
	}
	return Mbo{r}, true
}

func (m Mbo) OrderID() uint64  { return m.u64(16) }
func (m Mbo) Price() int64     { return m.i64(24) }
func (m Mbo) Size() uint32     { return m.u32(32) }
func (m Mbo) Flags() int8      { return int8(m.data[36]) }
func (m Mbo) ChannelID() uint8 { return m.data[37] }
func (m Mbo) Action() byte     { return m.data[38] }
func (m Mbo) Side() byte       { return m.data[39] }
func (m Mbo) TsRecv() uint64   { return m.u64(40) }
func (m Mbo) TsInDelta() int32 { return m.i32(48) }
func (m Mbo) Sequence() uint32 { return m.u32(52) }

// Ohlcv is a view over an aggregate bar record.
type Ohlcv struct{ Record }

// AsOhlcv reinterprets the record as a bar if its tag matches.
func (r Record) AsOhlcv() (Ohlcv, bool) {
	if r.RType() != RTypeOhlcv {
		return Ohlcv{}, false
	}
	return Ohlcv{r}, true
}

func (o Ohlcv) Open() int64    { return o.i64(16) }
func (o Ohlcv) High() int64    { return o.i64(24) }
func (o Ohlcv) Low() int64     { return o.i64(32) }
func (o Ohlcv) Close() int64   { return o.i64(40) }
func (o Ohlcv) Volume() uint64 { return o.u64(48) }

// statusGroupLen is the fixed width of the status group field.
const statusGroupLen = 21

// Status is a view over a trading-status record.
type Status struct{ Record }

// AsStatus reinterprets the record as a status if its tag matches.
func (r Record) AsStatus() (Status, bool) {
	if r.RType() != RTypeStatus {
		return Status{}, false
	}
	return Status{r}, true
}

func (s Status) TsRecv() uint64 { return s.u64(16) }

// Group is the status group label, NUL padding stripped.
func (s Status) Group() string {
	raw := s.data[24 : 24+statusGroupLen]
	for i, b := range raw {
		if b == 0 {
			return string(raw[:i])
		}
	}
	return string(raw)
}

func (s Status) TradingStatus() uint8 { return s.data[45] }
func (s Status) HaltReason() uint8    { return s.data[46] }
func (s Status) TradingEvent() uint8  { return s.data[47] }
