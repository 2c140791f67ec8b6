package record

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Writer serializes records to a body stream in iteration order.
type Writer struct {
	w io.Writer
	n uint64
}

// NewWriter wraps a body sink.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write appends one record. The record's declared length must match its
// span; records produced by this package always do.
func (w *Writer) Write(rec Record) error {
	data := rec.Bytes()
	if len(data) < HeaderLen || int(data[0])*4 != len(data) {
		return fmt.Errorf("record %d: declared length %d does not match span of %d bytes",
			w.n, int(data[0])*4, len(data))
	}
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("failed to write record %d: %w", w.n, err)
	}
	w.n++
	return nil
}

// Count is the number of records written.
func (w *Writer) Count() uint64 { return w.n }

// HeaderFields is the common prefix of every constructed record.
type HeaderFields struct {
	PublisherID  uint16
	InstrumentID uint32
	TsEvent      uint64
}

func newRecordBuf(rt RType, size int, hd HeaderFields) []byte {
	data := make([]byte, size)
	data[0] = uint8(size / 4)
	data[1] = uint8(rt)
	binary.LittleEndian.PutUint16(data[2:], hd.PublisherID)
	binary.LittleEndian.PutUint32(data[4:], hd.InstrumentID)
	binary.LittleEndian.PutUint64(data[8:], hd.TsEvent)
	return data
}

func putBidAsk(data []byte, off int, ba BidAsk) {
	binary.LittleEndian.PutUint64(data[off:], uint64(ba.BidPx))
	binary.LittleEndian.PutUint64(data[off+8:], uint64(ba.AskPx))
	binary.LittleEndian.PutUint32(data[off+16:], ba.BidSz)
	binary.LittleEndian.PutUint32(data[off+20:], ba.AskSz)
	binary.LittleEndian.PutUint32(data[off+24:], ba.BidCt)
	binary.LittleEndian.PutUint32(data[off+28:], ba.AskCt)
}

// TradeParams carries the fields of a trade record.
type TradeParams struct {
	HeaderFields
	Price     int64
	Size      uint32
	Action    byte
	Side      byte
	Flags     int8
	Depth     uint8
	TsRecv    uint64
	TsInDelta int32
	Sequence  uint32
}

func putTradeBody(data []byte, p TradeParams) {
	binary.LittleEndian.PutUint64(data[16:], uint64(p.Price))
	binary.LittleEndian.PutUint32(data[24:], p.Size)
	data[28] = p.Action
	data[29] = p.Side
	data[30] = uint8(p.Flags)
	data[31] = p.Depth
	binary.LittleEndian.PutUint64(data[32:], p.TsRecv)
	binary.LittleEndian.PutUint32(data[40:], uint32(p.TsInDelta))
	binary.LittleEndian.PutUint32(data[44:], p.Sequence)
}

// NewTrade builds an owned trade record.
func NewTrade(p TradeParams) Trade {
	data := newRecordBuf(RTypeTrade, TradeLen, p.HeaderFields)
	putTradeBody(data, p)
	return Trade{Record{data: data}}
}

// Mbp1Params carries the fields of an mbp-1 (or tbbo) record.
type Mbp1Params struct {
	TradeParams
	Level BidAsk
}

// NewMbp1 builds an owned top-of-book record.
func NewMbp1(p Mbp1Params) Mbp1 {
	data := newRecordBuf(RTypeMbp1, Mbp1Len, p.HeaderFields)
	putTradeBody(data, p.TradeParams)
	putBidAsk(data, TradeLen, p.Level)
	return Mbp1{Trade{Record{data: data}}}
}

// Mbp10Params carries the fields of a ten-level depth record.
type Mbp10Params struct {
	TradeParams
	Levels [10]BidAsk
}

// NewMbp10 builds an owned depth record.
func NewMbp10(p Mbp10Params) Mbp10 {
	data := newRecordBuf(RTypeMbp10, Mbp10Len, p.HeaderFields)
	putTradeBody(data, p.TradeParams)
	for i, ba := range p.Levels {
		putBidAsk(data, TradeLen+i*bidAskLen, ba)
	}
	return Mbp10{Trade{Record{data: data}}}
}

// MboParams carries the fields of an order-book delta record.
type MboParams struct {
	HeaderFields
	OrderID   uint64
	Price     int64
	Size      uint32
	Flags     int8
	ChannelID uint8
	Action    byte
	Side      byte
	TsRecv    uint64
	TsInDelta int32
	Sequence  uint32
}

// NewMbo builds an owned order-book delta record.
func NewMbo(p MboParams) Mbo {
	data := newRecordBuf(RTypeMbo, MboLen, p.HeaderFields)
	binary.LittleEndian.PutUint64(data[16:], p.OrderID)
	binary.LittleEndian.PutUint64(data[24:], uint64(p.Price))
	binary.LittleEndian.PutUint32(data[32:], p.Size)
	data[36] = uint8(p.Flags)
	data[37] = p.ChannelID
	data[38] = p.Action
	data[39] = p.Side
	binary.LittleEndian.PutUint64(data[40:], p.TsRecv)
	binary.LittleEndian.PutUint32(data[48:], uint32(p.TsInDelta))
	binary.LittleEndian.PutUint32(data[52:], p.Sequence)
	return Mbo{Record{data: data}}
}

// OhlcvParams carries the fields of an aggregate bar record.
type OhlcvParams struct {
	HeaderFields
	Open   int64
	High   int64
	Low    int64
	Close  int64
	Volume uint64
}

// NewOhlcv builds an owned bar record.
func NewOhlcv(p OhlcvParams) Ohlcv {
	data := newRecordBuf(RTypeOhlcv, OhlcvLen, p.HeaderFields)
	binary.LittleEndian.PutUint64(data[16:], uint64(p.Open))
	binary.LittleEndian.PutUint64(data[24:], uint64(p.High))
	binary.LittleEndian.PutUint64(data[32:], uint64(p.Low))
	binary.LittleEndian.PutUint64(data[40:], uint64(p.Close))
	binary.LittleEndian.PutUint64(data[48:], p.Volume)
	return Ohlcv{Record{data: data}}
}

// StatusParams carries the fields of a trading-status record.
type StatusParams struct {
	HeaderFields
	TsRecv        uint64
	Group         string
	TradingStatus uint8
	HaltReason    uint8
	TradingEvent  uint8
}

// NewStatus builds an owned status record. Group is truncated to its fixed
// field width if necessary.
func NewStatus(p StatusParams) Status {
	data := newRecordBuf(RTypeStatus, StatusLen, p.HeaderFields)
	binary.LittleEndian.PutUint64(data[16:], p.TsRecv)
	copy(data[24:24+statusGroupLen], p.Group)
	data[45] = p.TradingStatus
	data[46] = p.HaltReason
	data[47] = p.TradingEvent
	return Status{Record{data: data}}
}
