package textenc

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/openticks/dbz/pkg/codec"
	"github.com/openticks/dbz/pkg/metadata"
	"github.com/openticks/dbz/pkg/record"
	"github.com/openticks/dbz/pkg/symbology"
)

// Column layouts per record type. Book levels append their own suffixed
// columns after the trade columns.
var (
	tradeColumns = []string{
		"ts_event", "ts_recv", "publisher_id", "instrument_id",
		"action", "side", "depth", "flags", "price", "size",
		"ts_in_delta", "sequence",
	}
	mboColumns = []string{
		"ts_event", "ts_recv", "publisher_id", "instrument_id",
		"order_id", "action", "side", "channel_id", "flags", "price", "size",
		"ts_in_delta", "sequence",
	}
	ohlcvColumns = []string{
		"ts_event", "publisher_id", "instrument_id",
		"open", "high", "low", "close", "volume",
	}
	statusColumns = []string{
		"ts_event", "ts_recv", "publisher_id", "instrument_id",
		"group", "trading_status", "halt_reason", "trading_event",
	}
	levelColumns = []string{"bid_px", "ask_px", "bid_sz", "ask_sz", "bid_ct", "ask_ct"}
)

func columnsFor(rt record.RType) ([]string, bool) {
	switch rt {
	case record.RTypeTrade:
		return tradeColumns, true
	case record.RTypeMbp1:
		return bookColumns(1), true
	case record.RTypeMbp10:
		return bookColumns(10), true
	case record.RTypeMbo:
		return mboColumns, true
	case record.RTypeOhlcv:
		return ohlcvColumns, true
	case record.RTypeStatus:
		return statusColumns, true
	default:
		return nil, false
	}
}

func bookColumns(levels int) []string {
	cols := append([]string(nil), tradeColumns...)
	for i := 0; i < levels; i++ {
		for _, c := range levelColumns {
			cols = append(cols, c+"_0"+strconv.Itoa(i))
		}
	}
	return cols
}

// CSVEncoder writes one CSV row per record. A stream carries a single
// schema, so the column set is fixed at construction and records of any
// other type are rejected.
type CSVEncoder struct {
	w       *csv.Writer
	rtype   record.RType
	columns []string
	res     *symbology.Resolver
	opts    Options
	started bool
	row     []string
}

// NewCSVEncoder builds a row encoder for the given stream schema. The
// resolver may be nil when pretty symbols are off.
func NewCSVEncoder(w io.Writer, schema metadata.Schema, res *symbology.Resolver, opts Options) (*CSVEncoder, error) {
	rt, ok := record.RTypeForSchema(schema)
	if !ok {
		return nil, unsupportedSchema(schema)
	}
	cols, _ := columnsFor(rt)
	if opts.PrettySymbols {
		cols = append([]string(nil), cols...)
		for i, c := range cols {
			if c == "instrument_id" {
				cols[i] = "symbol"
			}
		}
	}
	return &CSVEncoder{
		w:       csv.NewWriter(w),
		rtype:   rt,
		columns: cols,
		res:     res,
		opts:    opts,
		row:     make([]string, 0, len(cols)),
	}, nil
}

// EncodeRecord renders one record as a row. The first row is preceded by
// the header row when requested.
func (e *CSVEncoder) EncodeRecord(rec record.Record) error {
	if rec.RType() != e.rtype {
		return unsupportedRType(rec.RType())
	}
	if !e.started {
		e.started = true
		if e.opts.HeaderRow {
			if err := e.w.Write(e.columns); err != nil {
				return err
			}
		}
	}
	e.row = e.row[:0]
	switch e.rtype {
	case record.RTypeTrade:
		t, _ := rec.AsTrade()
		e.tradeFields(t)
	case record.RTypeMbp1:
		m, _ := rec.AsMbp1()
		e.tradeFields(m.Trade)
		e.levelFields(m.Level())
	case record.RTypeMbp10:
		m, _ := rec.AsMbp10()
		e.tradeFields(m.Trade)
		for i := 0; i < 10; i++ {
			e.levelFields(m.Level(i))
		}
	case record.RTypeMbo:
		m, _ := rec.AsMbo()
		e.mboFields(m)
	case record.RTypeOhlcv:
		o, _ := rec.AsOhlcv()
		e.ohlcvFields(o)
	case record.RTypeStatus:
		s, _ := rec.AsStatus()
		e.statusFields(s)
	}
	return e.w.Write(e.row)
}

// Close flushes buffered rows to the sink.
func (e *CSVEncoder) Close() error {
	e.w.Flush()
	return e.w.Error()
}

func (e *CSVEncoder) instrumentField(rec record.Record) string {
	if e.opts.PrettySymbols {
		sym, _ := e.res.Resolve(rec.InstrumentID(), rec.TsEvent())
		return sym
	}
	return strconv.FormatUint(uint64(rec.InstrumentID()), 10)
}

func (e *CSVEncoder) push(fields ...string) {
	e.row = append(e.row, fields...)
}

func (e *CSVEncoder) tradeFields(t record.Trade) {
	e.push(
		codec.TimestampString(t.TsEvent()),
		codec.TimestampString(t.TsRecv()),
		strconv.FormatUint(uint64(t.PublisherID()), 10),
		e.instrumentField(t.Record),
		renderAction(t.Action()),
		renderAction(t.Side()),
		strconv.FormatUint(uint64(t.Depth()), 10),
		strconv.FormatInt(int64(t.Flags()), 10),
		codec.PriceString(t.Price()),
		strconv.FormatUint(uint64(t.Size()), 10),
		strconv.FormatInt(int64(t.TsInDelta()), 10),
		strconv.FormatUint(uint64(t.Sequence()), 10),
	)
}

func (e *CSVEncoder) levelFields(l record.BidAsk) {
	e.push(
		codec.PriceString(l.BidPx),
		codec.PriceString(l.AskPx),
		strconv.FormatUint(uint64(l.BidSz), 10),
		strconv.FormatUint(uint64(l.AskSz), 10),
		strconv.FormatUint(uint64(l.BidCt), 10),
		strconv.FormatUint(uint64(l.AskCt), 10),
	)
}

func (e *CSVEncoder) mboFields(m record.Mbo) {
	e.push(
		codec.TimestampString(m.TsEvent()),
		codec.TimestampString(m.TsRecv()),
		strconv.FormatUint(uint64(m.PublisherID()), 10),
		e.instrumentField(m.Record),
		strconv.FormatUint(m.OrderID(), 10),
		renderAction(m.Action()),
		renderAction(m.Side()),
		strconv.FormatUint(uint64(m.ChannelID()), 10),
		strconv.FormatInt(int64(m.Flags()), 10),
		codec.PriceString(m.Price()),
		strconv.FormatUint(uint64(m.Size()), 10),
		strconv.FormatInt(int64(m.TsInDelta()), 10),
		strconv.FormatUint(uint64(m.Sequence()), 10),
	)
}

func (e *CSVEncoder) ohlcvFields(o record.Ohlcv) {
	e.push(
		codec.TimestampString(o.TsEvent()),
		strconv.FormatUint(uint64(o.PublisherID()), 10),
		e.instrumentField(o.Record),
		codec.PriceString(o.Open()),
		codec.PriceString(o.High()),
		codec.PriceString(o.Low()),
		codec.PriceString(o.Close()),
		strconv.FormatUint(o.Volume(), 10),
	)
}

func (e *CSVEncoder) statusFields(s record.Status) {
	e.push(
		codec.TimestampString(s.TsEvent()),
		codec.TimestampString(s.TsRecv()),
		strconv.FormatUint(uint64(s.PublisherID()), 10),
		e.instrumentField(s.Record),
		s.Group(),
		strconv.FormatUint(uint64(s.TradingStatus()), 10),
		strconv.FormatUint(uint64(s.HaltReason()), 10),
		strconv.FormatUint(uint64(s.TradingEvent()), 10),
	)
}
