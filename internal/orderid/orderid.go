// Package orderid derives weekly order identifiers.
//
// An identifier has the form WWYY: the zero padded ISO-8601 week number of
// the date followed by the last two digits of the date's calendar year.
// Every order line placed in the same calendar week shares one identifier.
package orderid

import (
	"fmt"
	"regexp"
	"time"
)

const week = 7 * 24 * time.Hour

var pattern = regexp.MustCompile(`^(0[1-9]|[1-4][0-9]|5[0-3])[0-9]{2}$`)

// ForDate returns the identifier of the order that was current offsetWeeks
// weeks before t. The computation happens in UTC.
func ForDate(t time.Time, offsetWeeks int) string {
	adjusted := t.UTC().Add(-time.Duration(offsetWeeks) * week)
	_, isoWeek := adjusted.ISOWeek()
	return fmt.Sprintf("%02d%02d", isoWeek, adjusted.Year()%100)
}

// Current returns the identifier of the order that is open at t
func Current(t time.Time) string {
	return ForDate(t, 0)
}

// Previous returns the identifier of last week's order relative to t
func Previous(t time.Time) string {
	return ForDate(t, 1)
}

// Valid reports whether id is a well formed WWYY identifier
func Valid(id string) bool {
	return pattern.MatchString(id)
}
