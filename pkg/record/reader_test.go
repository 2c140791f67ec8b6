package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openticks/dbz/pkg/codec"
)

func body(t *testing.T, recs ...Record) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, rec := range recs {
		require.NoError(t, w.Write(rec))
	}
	return &buf
}

func TestReader_TwoTradesThenExhausted(t *testing.T) {
	r := NewReader(body(t, sampleTrade(1).Record, sampleTrade(2).Record))

	require.True(t, r.Next())
	tr, ok := r.Record().AsTrade()
	require.True(t, ok)
	assert.Equal(t, uint32(1), tr.Sequence())
	assert.Equal(t, int64(0), r.Record().Offset())

	require.True(t, r.Next())
	tr, ok = r.Record().AsTrade()
	require.True(t, ok)
	assert.Equal(t, uint32(2), tr.Sequence())
	assert.Equal(t, int64(TradeLen), r.Record().Offset())

	// Third pull: exhausted cleanly, no error, and it stays that way.
	assert.False(t, r.Next())
	assert.NoError(t, r.Err())
	assert.False(t, r.Next())
	assert.Equal(t, uint64(2), r.Count())
}

func TestReader_MixedSizes(t *testing.T) {
	recs := []Record{
		sampleTrade(1).Record,
		NewOhlcv(OhlcvParams{HeaderFields: HeaderFields{InstrumentID: 7}}).Record,
		NewMbp10(Mbp10Params{}).Record,
		sampleTrade(2).Record,
	}
	r := NewReader(body(t, recs...))

	var got []RType
	var offsets []int64
	for r.Next() {
		got = append(got, r.Record().RType())
		offsets = append(offsets, r.Record().Offset())
	}
	require.NoError(t, r.Err())
	assert.Equal(t, []RType{RTypeTrade, RTypeOhlcv, RTypeMbp10, RTypeTrade}, got)
	assert.Equal(t, []int64{0, TradeLen, TradeLen + OhlcvLen, TradeLen + OhlcvLen + Mbp10Len}, offsets)
}

func TestReader_LengthMismatchIsFatalWithOffset(t *testing.T) {
	buf := body(t, sampleTrade(1).Record)
	// A trade header declaring 48+16 bytes: tag says trade, length says not.
	bad := make([]byte, HeaderLen)
	bad[0] = (TradeLen + 16) / 4
	bad[1] = uint8(RTypeTrade)
	buf.Write(bad)
	buf.Write(make([]byte, TradeLen+16-HeaderLen))
	// A well-formed record after the corruption must never be yielded.
	w := NewWriter(buf)
	require.NoError(t, w.Write(sampleTrade(3).Record))

	r := NewReader(buf)
	require.True(t, r.Next())
	assert.False(t, r.Next())

	var lme *LengthMismatchError
	require.True(t, errors.As(r.Err(), &lme), "got %v", r.Err())
	assert.Equal(t, int64(TradeLen), lme.Offset)
	assert.Equal(t, RTypeTrade, lme.RType)
	assert.Equal(t, TradeLen+16, lme.Declared)
	assert.Equal(t, TradeLen, lme.Expected)

	assert.False(t, r.Next(), "stream must stay failed")
	assert.Equal(t, uint64(1), r.Count())
}

func TestReader_UnknownTagYieldsOpaqueRecord(t *testing.T) {
	// A well-formed record with a tag this codec does not implement.
	unknown := make([]byte, 24)
	unknown[0] = 24 / 4
	unknown[1] = 0x77
	binary.LittleEndian.PutUint16(unknown[2:], 9)
	binary.LittleEndian.PutUint32(unknown[4:], 1234)
	binary.LittleEndian.PutUint64(unknown[8:], 42)

	buf := body(t, sampleTrade(1).Record)
	buf.Write(unknown)
	w := NewWriter(buf)
	require.NoError(t, w.Write(sampleTrade(2).Record))

	r := NewReader(buf)
	require.True(t, r.Next())

	require.True(t, r.Next())
	rec := r.Record()
	assert.False(t, rec.Known())
	assert.Equal(t, RType(0x77), rec.RType())
	assert.Equal(t, uint16(9), rec.PublisherID())
	assert.Equal(t, uint32(1234), rec.InstrumentID())
	assert.Equal(t, uint64(42), rec.TsEvent())
	assert.Equal(t, unknown, rec.Bytes())

	// Iteration continues past the opaque record.
	require.True(t, r.Next())
	tr, ok := r.Record().AsTrade()
	require.True(t, ok)
	assert.Equal(t, uint32(2), tr.Sequence())
	assert.False(t, r.Next())
	require.NoError(t, r.Err())
}

func TestReader_TruncatedHeader(t *testing.T) {
	buf := body(t, sampleTrade(1).Record)
	buf.Write([]byte{0x0C, 0x00, 0x01}) // 3 bytes of a next header

	r := NewReader(buf)
	require.True(t, r.Next())
	assert.False(t, r.Next())
	assert.ErrorIs(t, r.Err(), codec.ErrMalformed)

	var me *codec.MalformedError
	require.True(t, errors.As(r.Err(), &me))
	assert.Equal(t, int64(TradeLen), me.Offset)
}

func TestReader_TruncatedBody(t *testing.T) {
	full := body(t, sampleTrade(1).Record).Bytes()
	r := NewReader(bytes.NewReader(full[:TradeLen-8]))

	assert.False(t, r.Next())
	assert.ErrorIs(t, r.Err(), codec.ErrMalformed)
}

func TestReader_DeclaredLengthBelowHeader(t *testing.T) {
	r := NewReader(bytes.NewReader(make([]byte, HeaderLen))) // length byte 0

	assert.False(t, r.Next())
	assert.ErrorIs(t, r.Err(), codec.ErrMalformed)
}

func TestReader_EmptyBody(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	assert.False(t, r.Next())
	assert.NoError(t, r.Err())
	assert.Equal(t, uint64(0), r.Count())
}

type closeTracker struct {
	*bytes.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestReader_ClosePropagatesAndStopsIteration(t *testing.T) {
	src := &closeTracker{Reader: bytes.NewReader(body(t, sampleTrade(1).Record, sampleTrade(2).Record).Bytes())}
	r := NewReader(src)

	require.True(t, r.Next())
	require.NoError(t, r.Close())
	assert.True(t, src.closed)
	assert.False(t, r.Next())
	assert.NoError(t, r.Err())
}
