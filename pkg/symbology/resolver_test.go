package symbology

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openticks/dbz/pkg/metadata"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ns(t time.Time) uint64 { return uint64(t.UnixNano()) }

func TestResolver_DisjointIntervalsWithGap(t *testing.T) {
	// [jan 1, feb 1) -> AAPL, [mar 1, apr 1) -> AAPL2, gap in between.
	res := NewResolver([]metadata.SymbolMapping{
		{
			Native: "32",
			Intervals: []metadata.MappingInterval{
				{StartDate: date(2023, time.January, 1), EndDate: date(2023, time.February, 1), Symbol: "AAPL"},
				{StartDate: date(2023, time.March, 1), EndDate: date(2023, time.April, 1), Symbol: "AAPL2"},
			},
		},
	})

	testCases := []struct {
		name   string
		ts     time.Time
		want   string
		mapped bool
	}{
		{name: "first day of first interval", ts: date(2023, time.January, 1), want: "AAPL", mapped: true},
		{name: "mid first interval", ts: date(2023, time.January, 15).Add(14 * time.Hour), want: "AAPL", mapped: true},
		{name: "last day of first interval", ts: date(2023, time.January, 31).Add(23 * time.Hour), want: "AAPL", mapped: true},
		{name: "end date is exclusive", ts: date(2023, time.February, 1), mapped: false},
		{name: "inside the gap", ts: date(2023, time.February, 14), mapped: false},
		{name: "first day of second interval", ts: date(2023, time.March, 1), want: "AAPL2", mapped: true},
		{name: "last day of second interval", ts: date(2023, time.March, 31), want: "AAPL2", mapped: true},
		{name: "after all intervals", ts: date(2023, time.April, 1), mapped: false},
		{name: "before all intervals", ts: date(2022, time.December, 31), mapped: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := res.Resolve(32, ns(tc.ts))
			assert.Equal(t, tc.mapped, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolver_UnknownInstrumentIsUnmappedNotError(t *testing.T) {
	res := NewResolver(nil)
	got, ok := res.Resolve(99, ns(date(2023, time.June, 1)))
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestResolver_NonNumericNative(t *testing.T) {
	res := NewResolver([]metadata.SymbolMapping{
		{
			Native: "ES.FUT",
			Intervals: []metadata.MappingInterval{
				{StartDate: date(2023, time.January, 1), EndDate: date(2023, time.April, 1), Symbol: "ESH3"},
			},
		},
	})

	got, ok := res.ResolveNative("ES.FUT", ns(date(2023, time.February, 1)))
	require.True(t, ok)
	assert.Equal(t, "ESH3", got)

	// No id index exists for a non-numeric native.
	_, ok = res.Resolve(0, ns(date(2023, time.February, 1)))
	assert.False(t, ok)
}

func TestResolver_OverlapFirstIntervalWins(t *testing.T) {
	res := NewResolver([]metadata.SymbolMapping{
		{
			Native: "7",
			Intervals: []metadata.MappingInterval{
				{StartDate: date(2023, time.January, 1), EndDate: date(2023, time.March, 1), Symbol: "FIRST"},
				{StartDate: date(2023, time.February, 1), EndDate: date(2023, time.April, 1), Symbol: "SECOND"},
			},
		},
	})

	got, ok := res.Resolve(7, ns(date(2023, time.February, 15)))
	require.True(t, ok)
	assert.Equal(t, "FIRST", got)

	got, ok = res.Resolve(7, ns(date(2023, time.March, 15)))
	require.True(t, ok)
	assert.Equal(t, "SECOND", got)
}

func TestResolver_ContainedIntervalFirstWins(t *testing.T) {
	// The second interval sits entirely inside the first, so end dates are
	// not monotonic in start order. The first interval still covers dates
	// past the contained one's end.
	res := NewResolver([]metadata.SymbolMapping{
		{
			Native: "9",
			Intervals: []metadata.MappingInterval{
				{StartDate: date(2023, time.January, 1), EndDate: date(2023, time.December, 1), Symbol: "LONG"},
				{StartDate: date(2023, time.February, 1), EndDate: date(2023, time.March, 1), Symbol: "SHORT"},
			},
		},
	})

	got, ok := res.Resolve(9, ns(date(2023, time.June, 1)))
	require.True(t, ok)
	assert.Equal(t, "LONG", got)

	// Inside both intervals the first one wins.
	got, ok = res.Resolve(9, ns(date(2023, time.February, 15)))
	require.True(t, ok)
	assert.Equal(t, "LONG", got)

	_, ok = res.Resolve(9, ns(date(2023, time.December, 1)))
	assert.False(t, ok)
}

func TestResolver_UndefTimestamp(t *testing.T) {
	res := NewResolver([]metadata.SymbolMapping{
		{
			Native: "5",
			Intervals: []metadata.MappingInterval{
				{StartDate: date(2023, time.January, 1), EndDate: date(2023, time.February, 1), Symbol: "X"},
			},
		},
	})
	_, ok := res.Resolve(5, ^uint64(0))
	assert.False(t, ok)
}

func TestResolver_ConcurrentReaders(t *testing.T) {
	res := NewResolver([]metadata.SymbolMapping{
		{
			Native: "11",
			Intervals: []metadata.MappingInterval{
				{StartDate: date(2023, time.January, 1), EndDate: date(2023, time.July, 1), Symbol: "NQH3"},
			},
		},
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				got, ok := res.Resolve(11, ns(date(2023, time.March, 1)))
				if !ok || got != "NQH3" {
					t.Errorf("concurrent resolve returned %q, %v", got, ok)
					return
				}
			}
		}()
	}
	wg.Wait()
}
