package codec

import (
	"fmt"
	"time"
)

// isoTimestampLayout keeps nanosecond precision fixed-width so encoder
// output is byte-stable across runs.
const isoTimestampLayout = "2006-01-02T15:04:05.000000000Z"

// TimestampUTC converts nanoseconds since the UNIX epoch to a UTC time.
func TimestampUTC(ns uint64) time.Time {
	return time.Unix(0, int64(ns)).UTC()
}

// TimestampString renders an event timestamp as fixed-width ISO-8601 UTC.
func TimestampString(ns uint64) string {
	return TimestampUTC(ns).Format(isoTimestampLayout)
}

// DateFromRaw unpacks a decimal yyyymmdd value into a UTC calendar date.
func DateFromRaw(raw uint32) (time.Time, error) {
	year := int(raw / 10_000)
	month := int(raw % 10_000 / 100)
	day := int(raw % 100)
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("invalid month %d in packed date %d", month, raw)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range days; a normalized result means the
	// input was not a real calendar date.
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, fmt.Errorf("packed date %d is not a valid calendar date", raw)
	}
	return t, nil
}

// RawFromDate packs a calendar date into its decimal yyyymmdd form.
func RawFromDate(t time.Time) uint32 {
	return uint32(t.Year()*10_000 + int(t.Month())*100 + t.Day())
}
