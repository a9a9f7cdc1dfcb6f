package extract

import (
	"regexp"
	"strconv"
	"time"
)

var monthDayRe = regexp.MustCompile(`(\d{1,2})[-/](\d{1,2})`)

// MonthDay parses the first month-day pair ("12-05", "3/7") found in raw.
// The values are not range checked.
func MonthDay(raw string) (month, day int, ok bool) {
	m := monthDayRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, 0, false
	}
	month, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	day, err = strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	return month, day, true
}

// IsRecent reports whether raw contains a month-day pair equal to now's
// calendar date. The year is ignored. Text without a pair is never recent.
func IsRecent(raw string, now time.Time) bool {
	month, day, ok := MonthDay(raw)
	return ok && month == int(now.Month()) && day == now.Day()
}
