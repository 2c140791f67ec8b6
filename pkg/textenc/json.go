package textenc

import (
	"encoding/json"
	"io"

	"github.com/openticks/dbz/pkg/codec"
	"github.com/openticks/dbz/pkg/metadata"
	"github.com/openticks/dbz/pkg/record"
	"github.com/openticks/dbz/pkg/symbology"
)

// JSONEncoder writes one JSON object per record, newline delimited. Field
// order follows the wire layout so diffs against other toolchains line up.
type JSONEncoder struct {
	enc   *json.Encoder
	rtype record.RType
	res   *symbology.Resolver
	opts  Options
}

// NewJSONEncoder builds an object encoder for the given stream schema. The
// resolver may be nil when pretty symbols are off.
func NewJSONEncoder(w io.Writer, schema metadata.Schema, res *symbology.Resolver, opts Options) (*JSONEncoder, error) {
	rt, ok := record.RTypeForSchema(schema)
	if !ok {
		return nil, unsupportedSchema(schema)
	}
	return &JSONEncoder{enc: json.NewEncoder(w), rtype: rt, res: res, opts: opts}, nil
}

// jsonIdentity carries the identity fields shared by every object. Exactly
// one of InstrumentID and Symbol is set, depending on the pretty-symbols
// option.
type jsonIdentity struct {
	PublisherID  uint16  `json:"publisher_id"`
	InstrumentID *uint32 `json:"instrument_id,omitempty"`
	Symbol       *string `json:"symbol,omitempty"`
}

type jsonLevel struct {
	BidPx string `json:"bid_px"`
	AskPx string `json:"ask_px"`
	BidSz uint32 `json:"bid_sz"`
	AskSz uint32 `json:"ask_sz"`
	BidCt uint32 `json:"bid_ct"`
	AskCt uint32 `json:"ask_ct"`
}

type jsonTrade struct {
	TsEvent any `json:"ts_event"`
	TsRecv  any `json:"ts_recv"`
	jsonIdentity
	Action    string      `json:"action"`
	Side      string      `json:"side"`
	Depth     uint8       `json:"depth"`
	Flags     int8        `json:"flags"`
	Price     string      `json:"price"`
	Size      uint32      `json:"size"`
	TsInDelta int32       `json:"ts_in_delta"`
	Sequence  uint32      `json:"sequence"`
	Levels    []jsonLevel `json:"booklevel,omitempty"`
}

type jsonMbo struct {
	TsEvent any `json:"ts_event"`
	TsRecv  any `json:"ts_recv"`
	jsonIdentity
	OrderID   uint64 `json:"order_id"`
	Action    string `json:"action"`
	Side      string `json:"side"`
	ChannelID uint8  `json:"channel_id"`
	Flags     int8   `json:"flags"`
	Price     string `json:"price"`
	Size      uint32 `json:"size"`
	TsInDelta int32  `json:"ts_in_delta"`
	Sequence  uint32 `json:"sequence"`
}

type jsonOhlcv struct {
	TsEvent any `json:"ts_event"`
	jsonIdentity
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume uint64 `json:"volume"`
}

type jsonStatus struct {
	TsEvent any `json:"ts_event"`
	TsRecv  any `json:"ts_recv"`
	jsonIdentity
	Group         string `json:"group"`
	TradingStatus uint8  `json:"trading_status"`
	HaltReason    uint8  `json:"halt_reason"`
	TradingEvent  uint8  `json:"trading_event"`
}

// EncodeRecord renders one record as a JSON object followed by a newline.
func (e *JSONEncoder) EncodeRecord(rec record.Record) error {
	if rec.RType() != e.rtype {
		return unsupportedRType(rec.RType())
	}
	switch e.rtype {
	case record.RTypeTrade:
		t, _ := rec.AsTrade()
		return e.enc.Encode(e.tradeObject(t, nil))
	case record.RTypeMbp1:
		m, _ := rec.AsMbp1()
		return e.enc.Encode(e.tradeObject(m.Trade, []jsonLevel{levelObject(m.Level())}))
	case record.RTypeMbp10:
		m, _ := rec.AsMbp10()
		levels := make([]jsonLevel, 10)
		for i := range levels {
			levels[i] = levelObject(m.Level(i))
		}
		return e.enc.Encode(e.tradeObject(m.Trade, levels))
	case record.RTypeMbo:
		m, _ := rec.AsMbo()
		return e.enc.Encode(jsonMbo{
			TsEvent:      e.timeField(m.TsEvent()),
			TsRecv:       e.timeField(m.TsRecv()),
			jsonIdentity: e.identity(m.Record),
			OrderID:      m.OrderID(),
			Action:       renderAction(m.Action()),
			Side:         renderAction(m.Side()),
			ChannelID:    m.ChannelID(),
			Flags:        m.Flags(),
			Price:        codec.PriceString(m.Price()),
			Size:         m.Size(),
			TsInDelta:    m.TsInDelta(),
			Sequence:     m.Sequence(),
		})
	case record.RTypeOhlcv:
		o, _ := rec.AsOhlcv()
		return e.enc.Encode(jsonOhlcv{
			TsEvent:      e.timeField(o.TsEvent()),
			jsonIdentity: e.identity(o.Record),
			Open:         codec.PriceString(o.Open()),
			High:         codec.PriceString(o.High()),
			Low:          codec.PriceString(o.Low()),
			Close:        codec.PriceString(o.Close()),
			Volume:       o.Volume(),
		})
	case record.RTypeStatus:
		s, _ := rec.AsStatus()
		return e.enc.Encode(jsonStatus{
			TsEvent:       e.timeField(s.TsEvent()),
			TsRecv:        e.timeField(s.TsRecv()),
			jsonIdentity:  e.identity(s.Record),
			Group:         s.Group(),
			TradingStatus: s.TradingStatus(),
			HaltReason:    s.HaltReason(),
			TradingEvent:  s.TradingEvent(),
		})
	}
	return unsupportedRType(e.rtype)
}

// Close is a no-op: every object is flushed as it is encoded.
func (e *JSONEncoder) Close() error { return nil }

func (e *JSONEncoder) tradeObject(t record.Trade, levels []jsonLevel) jsonTrade {
	return jsonTrade{
		TsEvent:      e.timeField(t.TsEvent()),
		TsRecv:       e.timeField(t.TsRecv()),
		jsonIdentity: e.identity(t.Record),
		Action:       renderAction(t.Action()),
		Side:         renderAction(t.Side()),
		Depth:        t.Depth(),
		Flags:        t.Flags(),
		Price:        codec.PriceString(t.Price()),
		Size:         t.Size(),
		TsInDelta:    t.TsInDelta(),
		Sequence:     t.Sequence(),
		Levels:       levels,
	}
}

func levelObject(l record.BidAsk) jsonLevel {
	return jsonLevel{
		BidPx: codec.PriceString(l.BidPx),
		AskPx: codec.PriceString(l.AskPx),
		BidSz: l.BidSz,
		AskSz: l.AskSz,
		BidCt: l.BidCt,
		AskCt: l.AskCt,
	}
}

func (e *JSONEncoder) identity(rec record.Record) jsonIdentity {
	id := jsonIdentity{PublisherID: rec.PublisherID()}
	if e.opts.PrettySymbols {
		sym, _ := e.res.Resolve(rec.InstrumentID(), rec.TsEvent())
		id.Symbol = &sym
	} else {
		n := rec.InstrumentID()
		id.InstrumentID = &n
	}
	return id
}

func (e *JSONEncoder) timeField(ns uint64) any {
	if e.opts.PrettyTimes {
		return codec.TimestampString(ns)
	}
	return ns
}
