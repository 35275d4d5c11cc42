package timeparse

import "time"

// Converter resolves human-entered duration strings ("1d 2h30m") with
// optional minimum, maximum and default-period settings.
type Converter struct {
	minReps    []TimeRep
	maxReps    []TimeRep
	def        Period
	hasDefault bool
}

func NewConverter() *Converter {
	return &Converter{}
}

// Min sets the smallest accepted duration, in the same grammar FromString
// accepts.
func (c *Converter) Min(input string) *Converter {
	c.minReps = ParseReps(input, 0, false)
	return c
}

// Max sets the largest accepted duration.
func (c *Converter) Max(input string) *Converter {
	c.maxReps = ParseReps(input, 0, false)
	return c
}

// DefaultPeriod sets the period applied to bare numbers. Without one, bare
// numbers are ignored.
func (c *Converter) DefaultPeriod(name string) *Converter {
	if period, ok := FindPeriod(name); ok {
		c.def = period
		c.hasDefault = true
	}
	return c
}

// FromString resolves input anchored at now. Errors are ErrNoDuration,
// ErrBelowMinDuration and ErrAboveMaxDuration.
func (c *Converter) FromString(input string, now time.Time) (time.Duration, error) {
	var max time.Duration
	if len(c.maxReps) > 0 {
		var err error
		max, err = FoldReps(c.maxReps, now, 0)
		if err != nil {
			return 0, err
		}
	}

	reps := ParseReps(input, c.def, c.hasDefault)
	total, err := FoldReps(reps, now, max)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, ErrNoDuration
	}
	if len(c.minReps) > 0 {
		min, err := FoldReps(c.minReps, now, 0)
		if err != nil {
			return 0, err
		}
		if total < min {
			return 0, ErrBelowMinDuration
		}
	}
	return total, nil
}
