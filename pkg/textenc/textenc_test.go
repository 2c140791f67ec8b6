package textenc

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openticks/dbz/pkg/metadata"
	"github.com/openticks/dbz/pkg/record"
	"github.com/openticks/dbz/pkg/symbology"
)

var (
	testTsEvent = uint64(time.Date(2023, time.January, 15, 10, 30, 0, 5, time.UTC).UnixNano())
	testTsRecv  = testTsEvent + uint64(time.Second)
)

func testTrade() record.Record {
	return record.NewTrade(record.TradeParams{
		HeaderFields: record.HeaderFields{PublisherID: 1, InstrumentID: 32, TsEvent: testTsEvent},
		Price:        1_234_500_000_000, // 1234.5
		Size:         100,
		Action:       'T',
		Side:         'B',
		Flags:        8,
		TsRecv:       testTsRecv,
		TsInDelta:    500,
		Sequence:     7,
	}).Record
}

func testResolver() *symbology.Resolver {
	return symbology.NewResolver([]metadata.SymbolMapping{
		{
			Native: "32",
			Intervals: []metadata.MappingInterval{
				{
					StartDate: time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
					EndDate:   time.Date(2023, time.February, 1, 0, 0, 0, 0, time.UTC),
					Symbol:    "AAPL",
				},
			},
		},
	})
}

func TestCSVEncoder_TradeRow(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewCSVEncoder(&buf, metadata.SchemaTrades, nil, Options{})
	require.NoError(t, err)

	require.NoError(t, enc.EncodeRecord(testTrade()))
	require.NoError(t, enc.Close())

	want := "2023-01-15T10:30:00.000000005Z,2023-01-15T10:30:01.000000005Z,1,32,T,B,0,8,1234.5,100,500,7\n"
	assert.Equal(t, want, buf.String())
}

func TestCSVEncoder_HeaderRowAndPrettySymbols(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewCSVEncoder(&buf, metadata.SchemaTrades, testResolver(), Options{PrettySymbols: true, HeaderRow: true})
	require.NoError(t, err)

	require.NoError(t, enc.EncodeRecord(testTrade()))
	require.NoError(t, enc.Close())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ts_event,ts_recv,publisher_id,symbol,action,side,depth,flags,price,size,ts_in_delta,sequence", lines[0])
	assert.Contains(t, lines[1], ",AAPL,")
	assert.NotContains(t, lines[1], ",32,")
}

func TestCSVEncoder_HeaderRowOnlyBeforeFirstRecord(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewCSVEncoder(&buf, metadata.SchemaTrades, nil, Options{HeaderRow: true})
	require.NoError(t, err)

	require.NoError(t, enc.EncodeRecord(testTrade()))
	require.NoError(t, enc.EncodeRecord(testTrade()))
	require.NoError(t, enc.Close())

	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))
	assert.Equal(t, 1, strings.Count(buf.String(), "ts_event,"))
}

func TestCSVEncoder_Mbp10ColumnCount(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewCSVEncoder(&buf, metadata.SchemaMbp10, nil, Options{HeaderRow: true})
	require.NoError(t, err)

	rec := record.NewMbp10(record.Mbp10Params{
		TradeParams: record.TradeParams{
			HeaderFields: record.HeaderFields{InstrumentID: 5, TsEvent: testTsEvent},
		},
	})
	require.NoError(t, enc.EncodeRecord(rec.Record))
	require.NoError(t, enc.Close())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	wantCols := len(tradeColumns) + 10*len(levelColumns)
	assert.Len(t, strings.Split(lines[0], ","), wantCols)
	assert.Len(t, strings.Split(lines[1], ","), wantCols)
	assert.Contains(t, lines[0], "bid_px_00")
	assert.Contains(t, lines[0], "ask_ct_09")
}

func TestCSVEncoder_OhlcvExactPrices(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewCSVEncoder(&buf, metadata.SchemaOhlcv1D, nil, Options{})
	require.NoError(t, err)

	rec := record.NewOhlcv(record.OhlcvParams{
		HeaderFields: record.HeaderFields{PublisherID: 2, InstrumentID: 9, TsEvent: testTsEvent},
		Open:         100_000_000_001, // 100.000000001: would not survive a float round trip
		High:         101_500_000_000,
		Low:          99_000_000_000,
		Close:        100_250_000_000,
		Volume:       123456,
	})
	require.NoError(t, enc.EncodeRecord(rec.Record))
	require.NoError(t, enc.Close())

	want := "2023-01-15T10:30:00.000000005Z,2,9,100.000000001,101.5,99,100.25,123456\n"
	assert.Equal(t, want, buf.String())
}

func TestCSVEncoder_RejectsForeignRType(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewCSVEncoder(&buf, metadata.SchemaTrades, nil, Options{})
	require.NoError(t, err)

	err = enc.EncodeRecord(record.NewOhlcv(record.OhlcvParams{}).Record)
	var use *UnsupportedSchemaError
	require.True(t, errors.As(err, &use))
	assert.Equal(t, record.RTypeOhlcv, use.RType)
}

func TestNewCSVEncoder_UnmappedSchema(t *testing.T) {
	_, err := NewCSVEncoder(&bytes.Buffer{}, metadata.SchemaDefinition, nil, Options{})
	var use *UnsupportedSchemaError
	require.True(t, errors.As(err, &use))
	assert.Equal(t, metadata.SchemaDefinition, use.Schema)
}

func TestJSONEncoder_TradeObject(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewJSONEncoder(&buf, metadata.SchemaTrades, nil, Options{})
	require.NoError(t, err)

	require.NoError(t, enc.EncodeRecord(testTrade()))
	require.NoError(t, enc.Close())

	want := fmt.Sprintf(`{"ts_event":%d,"ts_recv":%d,"publisher_id":1,"instrument_id":32,`+
		`"action":"T","side":"B","depth":0,"flags":8,"price":"1234.5","size":100,"ts_in_delta":500,"sequence":7}`+"\n",
		testTsEvent, testTsRecv)
	assert.Equal(t, want, buf.String())
}

func TestJSONEncoder_PrettyOptions(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewJSONEncoder(&buf, metadata.SchemaTrades, testResolver(), Options{PrettySymbols: true, PrettyTimes: true})
	require.NoError(t, err)

	require.NoError(t, enc.EncodeRecord(testTrade()))

	out := buf.String()
	assert.Contains(t, out, `"ts_event":"2023-01-15T10:30:00.000000005Z"`)
	assert.Contains(t, out, `"symbol":"AAPL"`)
	assert.NotContains(t, out, "instrument_id")
}

func TestJSONEncoder_Mbp1BookLevel(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewJSONEncoder(&buf, metadata.SchemaMbp1, nil, Options{})
	require.NoError(t, err)

	rec := record.NewMbp1(record.Mbp1Params{
		TradeParams: record.TradeParams{
			HeaderFields: record.HeaderFields{InstrumentID: 5, TsEvent: testTsEvent},
		},
		Level: record.BidAsk{
			BidPx: 1_234_000_000_000,
			AskPx: 1_234_750_000_000,
			BidSz: 10, AskSz: 20, BidCt: 1, AskCt: 2,
		},
	})
	require.NoError(t, enc.EncodeRecord(rec.Record))

	wantLevels := `"booklevel":[{"bid_px":"1234","ask_px":"1234.75","bid_sz":10,"ask_sz":20,"bid_ct":1,"ask_ct":2}]`
	assert.Contains(t, buf.String(), wantLevels)
}

func TestJSONEncoder_MboObject(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewJSONEncoder(&buf, metadata.SchemaMbo, nil, Options{})
	require.NoError(t, err)

	rec := record.NewMbo(record.MboParams{
		HeaderFields: record.HeaderFields{PublisherID: 1, InstrumentID: 6, TsEvent: testTsEvent},
		OrderID:      998877,
		Price:        5_500_000_000,
		Size:         3,
		Action:       'A',
		Side:         'S',
		TsRecv:       testTsRecv,
		Sequence:     42,
	})
	require.NoError(t, enc.EncodeRecord(rec.Record))

	out := buf.String()
	assert.Contains(t, out, `"order_id":998877`)
	assert.Contains(t, out, `"price":"5.5"`)
	assert.Contains(t, out, `"action":"A"`)
	assert.True(t, strings.HasSuffix(out, "}\n"))
}

func TestJSONEncoder_UnmappedInstrumentRendersEmptySymbol(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewJSONEncoder(&buf, metadata.SchemaTrades, testResolver(), Options{PrettySymbols: true})
	require.NoError(t, err)

	rec := record.NewTrade(record.TradeParams{
		HeaderFields: record.HeaderFields{InstrumentID: 404, TsEvent: testTsEvent},
	})
	require.NoError(t, enc.EncodeRecord(rec.Record))
	assert.Contains(t, buf.String(), `"symbol":""`)
}
