package timeparse

import "time"

func isLeapYear(year int) bool {
	if year%4 == 0 {
		if year%100 == 0 {
			return year%400 == 0
		}
		return true
	}
	return false
}

// maxDays returns the day count of each month for the given year.
func maxDays(year int) [12]int {
	feb := 28
	if isLeapYear(year) {
		feb = 29
	}
	return [12]int{31, feb, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
}

// monthDelta returns the elapsed seconds between now and the same clock time
// the given number of whole months later. Landing past the end of a shorter
// month clamps to its last valid day, so Jan 31 + 1 month is the last day of
// February rather than an overflowed date.
func monthDelta(now time.Time, months int) float64 {
	skipYears := months / 12
	year := now.Year() + skipYears
	months -= skipYears * 12
	month := int(now.Month())
	day := now.Day()

	if month+months > 12 {
		month = (month + months) - 12
		year++
	} else {
		month += months
	}

	if limit := maxDays(year)[month-1]; day > limit {
		day = limit
	}
	then := time.Date(year, time.Month(month), day,
		now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), now.Location())
	return then.Sub(now).Seconds()
}

func yearDelta(now time.Time, years int) float64 {
	return monthDelta(now, years*12)
}
