// Package timeutil provides time helpers for the Istanbul timezone (UTC+3)
// where all pitches and players are located.
package timeutil

import (
	"strconv"
	"strings"
	"time"
)

// IstanbulTZ is the Europe/Istanbul timezone. Turkey has stayed on UTC+3
// without DST since 2016.
var IstanbulTZ = time.FixedZone("Europe/Istanbul", 3*60*60)

// Clock returns the current time. Production code uses SystemClock,
// tests pass a fixed clock.
type Clock func() time.Time

// SystemClock returns the current time in Istanbul.
func SystemClock() time.Time {
	return time.Now().In(IstanbulTZ)
}

// Fixed returns a Clock that always reports t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}

// Common layouts.
const (
	FormatDate        = "2006-01-02"
	FormatTime        = "15:04"
	FormatTurkishDate = "02.01.2006"
)

// birthDateLayouts are tried in order. The directory stores ISO timestamps,
// older app versions sent plain dates or the Turkish DD.MM.YYYY form.
var birthDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	FormatDate,
	FormatTurkishDate,
	"2006/01/02",
}

// ParseBirthYear extracts the year from a birth date string. A bare four
// digit year is accepted as well. Returns false if nothing matches.
func ParseBirthYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Year(), true
		}
	}

	if len(s) == 4 {
		if year, err := strconv.Atoi(s); err == nil && year > 0 {
			return year, true
		}
	}
	return 0, false
}

// ParseTimeRange parses an "HH:MM-HH:MM" slot such as "19:00-21:00".
// The end may be earlier than the start for slots crossing midnight.
func ParseTimeRange(s string) (start, end time.Duration, ok bool) {
	from, to, found := strings.Cut(strings.ReplaceAll(s, " ", ""), "-")
	if !found {
		return 0, 0, false
	}
	a, errA := time.Parse(FormatTime, from)
	b, errB := time.Parse(FormatTime, to)
	if errA != nil || errB != nil || a.Equal(b) {
		return 0, 0, false
	}
	sinceMidnight := func(t time.Time) time.Duration {
		return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
	}
	return sinceMidnight(a), sinceMidnight(b), true
}
