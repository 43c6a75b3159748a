package routing

import (
	"fmt"
	"time"
)

// FormatDuration renders d the way the Directions API labels durations,
// e.g. "45 mins", "9 hours 5 mins", "1 day 2 hours".
func FormatDuration(d time.Duration) string {
	mins := int((d + 30*time.Second) / time.Minute)
	if mins < 1 {
		mins = 1
	}

	days := mins / (24 * 60)
	hours := (mins % (24 * 60)) / 60
	mins %= 60

	switch {
	case days > 0:
		return joinUnits(days, "day", hours, "hour")
	case hours > 0:
		return joinUnits(hours, "hour", mins, "min")
	default:
		return plural(mins, "min")
	}
}

// FormatDistance renders meters as "850 m" or "12.4 km".
func FormatDistance(meters int) string {
	if meters < 1000 {
		return fmt.Sprintf("%d m", meters)
	}
	return fmt.Sprintf("%.1f km", float64(meters)/1000)
}

func joinUnits(major int, majorUnit string, minor int, minorUnit string) string {
	if minor == 0 {
		return plural(major, majorUnit)
	}
	return plural(major, majorUnit) + " " + plural(minor, minorUnit)
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
