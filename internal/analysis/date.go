package analysis

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

const (
	longYearLayout  = "1/2/2006"
	shortYearLayout = "1/2/06"
)

// ParseDate interprets a month/day/year token as a calendar date.
//
// A four-character year segment is read as a full year; anything else is
// read as a two-digit year using the time package's pivot (69-99 map to the
// 1900s, 00-68 to the 2000s). Impossible dates such as 2/30/24 are rejected.
func ParseDate(raw string) (civil.Date, bool) {
	layout := shortYearLayout
	if year := raw[strings.LastIndexByte(raw, '/')+1:]; len(year) == 4 {
		layout = longYearLayout
	}

	t, err := time.Parse(layout, raw)
	if err != nil {
		return civil.Date{}, false
	}
	return civil.DateOf(t), true
}
