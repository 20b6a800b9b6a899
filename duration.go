package queryscope

import (
	"regexp"
	"strconv"
)

// DefaultRangeMs is the lookback window assumed when a query carries no
// usable duration: five minutes, in milliseconds.
const DefaultRangeMs = 300000

// durationUnits maps duration suffixes to milliseconds, largest first.
// The year is a flat 365 days; durations are not calendar-aware.
var durationUnits = []struct {
	suffix string
	ms     int64
}{
	{"y", 31536000000},
	{"w", 604800000},
	{"d", 86400000},
	{"h", 3600000},
	{"m", 60000},
	{"s", 1000},
	{"ms", 1},
}

// durationToken matches one <integer><unit> pair. "ms" must be tried before
// "m" and "s" or it would never match.
var durationToken = regexp.MustCompile(`(\d+)(ms|s|m|h|d|w|y)`)

// ParseDuration converts a compound duration literal such as "5m" or
// "1h30m" into milliseconds. Every <integer><unit> pair found anywhere in
// the text contributes to the sum; characters that match nothing are
// ignored rather than rejected, which keeps half-typed editor input usable.
// If no pair is found at all the default of five minutes is returned —
// a zero duration is never a valid result.
func ParseDuration(text string) int64 {
	var total int64
	for _, m := range durationToken.FindAllStringSubmatch(text, -1) {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		total += n * unitMillis(m[2])
	}
	if total <= 0 {
		return DefaultRangeMs
	}
	return total
}

func unitMillis(suffix string) int64 {
	for _, u := range durationUnits {
		if u.suffix == suffix {
			return u.ms
		}
	}
	return 0
}

// HumanDuration renders a millisecond count using the largest unit that
// divides it evenly, e.g. 300000 -> "5m" and 5400000 -> "90m". Units larger
// than days are not used for display.
func HumanDuration(ms int64) string {
	if ms <= 0 {
		return "0s"
	}
	for _, u := range durationUnits {
		if u.suffix == "y" || u.suffix == "w" {
			continue
		}
		if ms%u.ms == 0 {
			return strconv.FormatInt(ms/u.ms, 10) + u.suffix
		}
	}
	return strconv.FormatInt(ms, 10) + "ms"
}
