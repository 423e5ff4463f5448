package core

import (
	"strconv"
	"time"
)

// IsExpired reports whether a session with the given expiry must be treated
// as dead at now. The buffer is subtracted so that no request is sent with a
// token about to lapse mid-flight. A missing expiry is expired.
func IsExpired(now time.Time, expiry *time.Time, buffer time.Duration) bool {
	if expiry == nil || expiry.IsZero() {
		return true
	}
	return !now.Before(expiry.Add(-buffer))
}

// TimeUntilExpiry is the raw time left before the expiry instant, never
// negative. A missing expiry has no time left.
func TimeUntilExpiry(now time.Time, expiry *time.Time) time.Duration {
	if expiry == nil || expiry.IsZero() {
		return 0
	}
	if d := expiry.Sub(now); d > 0 {
		return d
	}
	return 0
}

// DeadlineIn is how long until IsExpired first returns true for the same
// expiry and buffer.
func DeadlineIn(now time.Time, expiry *time.Time, buffer time.Duration) time.Duration {
	if expiry == nil || expiry.IsZero() {
		return 0
	}
	t := expiry.Add(-buffer)
	return TimeUntilExpiry(now, &t)
}

// ComputeExpiry returns now plus the session duration in hours.
func ComputeExpiry(now time.Time, durationHours int) time.Time {
	return now.Add(time.Duration(durationHours) * time.Hour)
}

// FormatRemaining renders a duration as "2 hours 5 minutes", "1 hour 1 minute"
// or "45 minutes". Anything at or below zero is "Expired".
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "Expired"
	}

	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)

	if hours > 0 {
		return plural(hours, "hour") + " " + plural(minutes, "minute")
	}
	return plural(minutes, "minute")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
