// Package symbology resolves instrument identifiers to ticker symbols using
// the dated mapping intervals carried in a DBZ header.
package symbology

import (
	"sort"
	"strconv"
	"time"

	"github.com/openticks/dbz/pkg/codec"
	"github.com/openticks/dbz/pkg/metadata"
)

// interval holds one mapping span with day-resolution bounds in epoch
// nanoseconds. The end bound is exclusive. maxEndNs is the running maximum
// end bound over the start-sorted slice up to and including this entry;
// unlike endNs it is monotonic, which is what lets lookup binary-search even
// when one interval fully contains a later-starting one.
type interval struct {
	startNs  int64
	endNs    int64
	maxEndNs int64
	symbol   string
}

// Resolver answers instrument-id-plus-timestamp lookups against an
// immutable mapping table. It is built once from a parsed header and is safe
// for concurrent readers.
type Resolver struct {
	byID     map[uint32][]interval
	byNative map[string][]interval
}

// NewResolver indexes the header's symbol mappings. Natives that parse as
// unsigned integers are additionally indexed by instrument id, which is how
// product-id symbology streams carry them. Intervals are sorted by start
// date; when intervals overlap, the earlier one wins.
func NewResolver(mappings []metadata.SymbolMapping) *Resolver {
	r := &Resolver{
		byID:     make(map[uint32][]interval, len(mappings)),
		byNative: make(map[string][]interval, len(mappings)),
	}
	for _, m := range mappings {
		ivs := make([]interval, 0, len(m.Intervals))
		for _, iv := range m.Intervals {
			ivs = append(ivs, interval{
				startNs: iv.StartDate.UnixNano(),
				endNs:   iv.EndDate.UnixNano(),
				symbol:  iv.Symbol,
			})
		}
		sort.SliceStable(ivs, func(i, j int) bool { return ivs[i].startNs < ivs[j].startNs })
		for i := range ivs {
			ivs[i].maxEndNs = ivs[i].endNs
			if i > 0 && ivs[i-1].maxEndNs > ivs[i].maxEndNs {
				ivs[i].maxEndNs = ivs[i-1].maxEndNs
			}
		}
		r.byNative[m.Native] = ivs
		if id, err := strconv.ParseUint(m.Native, 10, 32); err == nil {
			r.byID[uint32(id)] = ivs
		}
	}
	return r
}

// Resolve maps an instrument id and event timestamp to the symbol valid on
// that UTC date. The false return is the unmapped sentinel, not an error:
// synthetic and continuous instruments legitimately have no mapping.
func (r *Resolver) Resolve(instrumentID uint32, tsEventNs uint64) (string, bool) {
	return lookup(r.byID[instrumentID], tsEventNs)
}

// ResolveNative is Resolve for streams whose mappings key on a non-numeric
// native symbol.
func (r *Resolver) ResolveNative(native string, tsEventNs uint64) (string, bool) {
	return lookup(r.byNative[native], tsEventNs)
}

// Size returns the number of distinct natives in the table.
func (r *Resolver) Size() int { return len(r.byNative) }

func lookup(ivs []interval, tsEventNs uint64) (string, bool) {
	// Timestamps past int64 range (including the undef sentinel) map to no
	// calendar date.
	if len(ivs) == 0 || int64(tsEventNs) < 0 {
		return "", false
	}
	// Compare at day resolution: a mapping covers [start date, end date).
	day := codec.TimestampUTC(tsEventNs).Truncate(24 * time.Hour).UnixNano()
	// First position whose prefix contains an end bound past the event's
	// date. Every earlier interval ends on or before the date, so the jump
	// in the running maximum comes from this interval's own end bound, and
	// with starts sorted ascending no later interval can start earlier. That
	// makes this the first matching interval when its start covers the date.
	i := sort.Search(len(ivs), func(i int) bool { return ivs[i].maxEndNs > day })
	if i == len(ivs) || ivs[i].startNs > day {
		return "", false
	}
	return ivs[i].symbol, true
}
