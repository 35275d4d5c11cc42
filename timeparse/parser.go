package timeparse

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNoDuration means the input failed to resolve to any meaningful duration.
	ErrNoDuration = errors.New("input does not resolve to a duration")
	// ErrBelowMinDuration means the input resolved below the configured minimum.
	ErrBelowMinDuration = errors.New("duration below the configured minimum")
	// ErrAboveMaxDuration means the input resolved above the configured maximum.
	ErrAboveMaxDuration = errors.New("duration above the configured maximum")
)

var tokenPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s?([a-z]+)?`)

// Period is a unit of time a duration token can carry.
type Period int

const (
	Seconds Period = iota
	Minutes
	Hours
	Days
	Weeks
	Months
	Years
)

var periodNames = [...]string{"seconds", "minutes", "hours", "days", "weeks", "months", "years"}

var fixedSeconds = map[Period]float64{
	Seconds: 1,
	Minutes: 60,
	Hours:   60 * 60,
	Days:    60 * 60 * 24,
	Weeks:   60 * 60 * 24 * 7,
}

func (p Period) String() string { return periodNames[p] }

// FindPeriod matches a unit suffix by prefix against the unit names in
// order, so "m" is minutes and "mo" is months. The second return is false
// when nothing matches.
func FindPeriod(suffix string) (Period, bool) {
	suffix = strings.ToLower(suffix)
	if suffix == "" {
		return 0, false
	}
	for i, name := range periodNames {
		if strings.HasPrefix(name, suffix) {
			return Period(i), true
		}
	}
	return 0, false
}

// TimeRep is one parsed duration token: an amount of some period.
type TimeRep struct {
	Amount float64
	Period Period
}

// Seconds resolves the token against an anchor instant. Calendar periods
// need the anchor because month lengths vary. A fractional amount of a
// calendar period combines the floor value's exact delta with one further
// unit scaled linearly by the remainder.
func (r TimeRep) Seconds(now time.Time) float64 {
	if mult, ok := fixedSeconds[r.Period]; ok {
		return mult * r.Amount
	}

	fn := monthDelta
	if r.Period == Years {
		fn = yearDelta
	}
	whole := int(math.Floor(r.Amount))
	frac := r.Amount - math.Floor(r.Amount)
	delta := fn(now, whole)
	if frac > 0 {
		anchor := now.Add(time.Duration(delta * float64(time.Second)))
		delta += fn(anchor, 1) * frac
	}
	return delta
}

// ParseReps scans the input for `<number>[ ]<unit>` tokens in any order and
// spacing. A token with an unknown or missing suffix takes the default
// period, or is discarded when hasDefault is false.
func ParseReps(input string, def Period, hasDefault bool) []TimeRep {
	var reps []TimeRep
	for _, match := range tokenPattern.FindAllStringSubmatch(input, -1) {
		amount, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		period, ok := FindPeriod(match[2])
		if !ok {
			if !hasDefault {
				continue
			}
			period = def
		}
		reps = append(reps, TimeRep{Amount: amount, Period: period})
	}
	return reps
}

// FoldReps folds tokens left-to-right into a single duration anchored at
// now. Each token is evaluated against now plus the sum of the prior
// tokens, so calendar arithmetic respects month boundaries. The running
// total is checked against max after every token; max <= 0 disables the
// check.
func FoldReps(reps []TimeRep, now time.Time, max time.Duration) (time.Duration, error) {
	var total time.Duration
	for _, rep := range reps {
		total += time.Duration(rep.Seconds(now.Add(total)) * float64(time.Second))
		if max > 0 && total > max {
			return 0, ErrAboveMaxDuration
		}
	}
	return total, nil
}
