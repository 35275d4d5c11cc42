package timeparse

import (
	"fmt"
	"strings"
	"time"
)

var formatUnits = []struct {
	seconds int64
	name    string
}{
	{60 * 60 * 24, "d"},
	{60 * 60, "h"},
	{60, "m"},
	{1, "s"},
}

// DeltaToString renders a duration as "1d 2h 30m". Sub-second and negative
// durations render as "0s".
func DeltaToString(d time.Duration) string {
	remaining := int64(d.Seconds())
	if remaining < 0 {
		return "0s"
	}

	var parts []string
	for _, unit := range formatUnits {
		if remaining >= unit.seconds {
			parts = append(parts, fmt.Sprintf("%d%s", remaining/unit.seconds, unit.name))
			remaining %= unit.seconds
		}
	}
	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, " ")
}
