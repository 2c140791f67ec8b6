package dbz

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openticks/dbz/pkg/metadata"
	"github.com/openticks/dbz/pkg/record"
	"github.com/openticks/dbz/pkg/textenc"
)

func testMeta(c metadata.Compression) *metadata.Metadata {
	return &metadata.Metadata{
		Dataset:     "XNAS.ITCH",
		Schema:      metadata.SchemaTrades,
		Start:       1,
		End:         100,
		RecordCount: metadata.RecordCountUnknown,
		Compression: c,
		STypeIn:     metadata.STypeNative,
		STypeOut:    metadata.STypeProductID,
		Symbols:     []string{"AAPL"},
		Mappings: []metadata.SymbolMapping{
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
		},
	}
}

func testTrades(n int) []record.Record {
	recs := make([]record.Record, n)
	base := uint64(time.Date(2023, time.January, 10, 0, 0, 0, 0, time.UTC).UnixNano())
	for i := range recs {
		recs[i] = record.NewTrade(record.TradeParams{
			HeaderFields: record.HeaderFields{
				PublisherID:  1,
				InstrumentID: 32,
				TsEvent:      base + uint64(i)*1000,
			},
			Price:    1_000_000_000 + int64(i)*250_000_000,
			Size:     uint32(10 + i),
			Action:   'T',
			Side:     'B',
			Sequence: uint32(i + 1),
		}).Record
	}
	return recs
}

func encodeStream(t *testing.T, c metadata.Compression, recs []record.Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, testMeta(c))
	require.NoError(t, err)
	for _, rec := range recs {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestRoundTrip_Uncompressed(t *testing.T) {
	recs := testTrades(3)
	stream := encodeStream(t, metadata.CompressionNone, recs)

	r, err := NewReader(bytes.NewReader(stream))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, "XNAS.ITCH", r.Metadata().Dataset)
	assert.Equal(t, metadata.SchemaTrades, r.Metadata().Schema)
	assert.Empty(t, r.Warnings())

	var got []record.Record
	for r.Records().Next() {
		got = append(got, r.Records().Record().Clone())
	}
	require.NoError(t, r.Records().Err())
	require.Len(t, got, len(recs))
	for i, rec := range got {
		assert.Equal(t, recs[i].Bytes(), rec.Bytes())
	}
}

// The text output of a stream must not depend on how its body was
// compressed.
func TestConvert_CompressionInvisibleInOutput(t *testing.T) {
	recs := testTrades(5)
	plain := encodeStream(t, metadata.CompressionNone, recs)
	compressed := encodeStream(t, metadata.CompressionZstd, recs)
	require.NotEqual(t, plain, compressed)

	for _, enc := range []Encoding{EncodingCSV, EncodingJSON} {
		opts := textenc.Options{PrettySymbols: true, HeaderRow: true}

		var fromPlain bytes.Buffer
		n, err := Convert(&fromPlain, bytes.NewReader(plain), enc, opts)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), n)

		var fromCompressed bytes.Buffer
		n, err = Convert(&fromCompressed, bytes.NewReader(compressed), enc, opts)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), n)

		assert.Equal(t, fromPlain.String(), fromCompressed.String(), "encoding %s", enc)
	}
}

func TestWriter_BackfillsCountOnSeekableSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.dbz")
	f, err := os.Create(path)
	require.NoError(t, err)

	meta := testMeta(metadata.CompressionZstd)
	meta.Start, meta.End = 0, 0
	w, err := NewWriter(f, meta)
	require.NoError(t, err)
	recs := testTrades(4)
	for _, rec := range recs {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	r, err := OpenFile(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, uint64(4), r.Metadata().RecordCount)
	assert.Equal(t, recs[0].TsEvent(), r.Metadata().Start)
	assert.Equal(t, recs[3].TsEvent()+1, r.Metadata().End)
}

func TestWriter_KeepsExplicitBoundsOnSeekableSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.dbz")
	f, err := os.Create(path)
	require.NoError(t, err)

	// Explicit nonzero bounds survive Close even though they disagree with
	// the records; only the count is backfilled.
	meta := testMeta(metadata.CompressionNone)
	meta.Start, meta.End = 1, 100
	w, err := NewWriter(f, meta)
	require.NoError(t, err)
	for _, rec := range testTrades(2) {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	r, err := OpenFile(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, uint64(1), r.Metadata().Start)
	assert.Equal(t, uint64(100), r.Metadata().End)
	assert.Equal(t, uint64(2), r.Metadata().RecordCount)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.dbz")
	recs := testTrades(3)
	require.NoError(t, WriteFile(path, testMeta(metadata.CompressionZstd), recs))

	r, err := OpenFile(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, uint64(3), r.Metadata().RecordCount)

	var n int
	for r.Records().Next() {
		n++
	}
	require.NoError(t, r.Records().Err())
	assert.Equal(t, 3, n)
}

func TestWriter_CountStaysUnknownOnPipeSink(t *testing.T) {
	stream := encodeStream(t, metadata.CompressionNone, testTrades(2))

	r, err := NewReader(bytes.NewReader(stream))
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, metadata.RecordCountUnknown, r.Metadata().RecordCount)

	var n int
	for r.Records().Next() {
		n++
	}
	require.NoError(t, r.Records().Err())
	assert.Equal(t, 2, n)
}

func TestWriter_RejectsForeignRecordType(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, testMeta(metadata.CompressionNone))
	require.NoError(t, err)

	err = w.Write(record.NewOhlcv(record.OhlcvParams{}).Record)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ohlcv")
}

func TestOpenFile_MissingFile(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "nope.dbz"))
	require.Error(t, err)
}

func TestParseEncoding(t *testing.T) {
	e, err := ParseEncoding("csv")
	require.NoError(t, err)
	assert.Equal(t, EncodingCSV, e)
	e, err = ParseEncoding("json")
	require.NoError(t, err)
	assert.Equal(t, EncodingJSON, e)
	_, err = ParseEncoding("parquet")
	assert.Error(t, err)
}
