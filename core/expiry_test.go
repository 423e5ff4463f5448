package core

import (
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := fixedNow.Add(d)
	return &t
}

// Requirement: a session is expired once now >= expiry - buffer; missing expiry fails closed.
func TestIsExpired(t *testing.T) {
	tests := []struct {
		name   string
		expiry *time.Time
		buffer time.Duration
		want   bool
	}{
		{name: "missing expiry is expired", expiry: nil, buffer: DefaultExpiryBuffer, want: true},
		{name: "zero expiry is expired", expiry: &time.Time{}, buffer: 0, want: true},
		{name: "far future is valid", expiry: at(24 * time.Hour), buffer: DefaultExpiryBuffer, want: false},
		{name: "inside buffer window is expired", expiry: at(4 * time.Minute), buffer: 5 * time.Minute, want: true},
		{name: "exactly at buffer edge is expired", expiry: at(5 * time.Minute), buffer: 5 * time.Minute, want: true},
		{name: "just outside buffer is valid", expiry: at(5*time.Minute + time.Second), buffer: 5 * time.Minute, want: false},
		{name: "past expiry without buffer", expiry: at(-time.Second), buffer: 0, want: true},
		{name: "exact instant without buffer", expiry: at(0), buffer: 0, want: true},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			if got := IsExpired(fixedNow, test.expiry, test.buffer); got != test.want {
				t.Errorf("IsExpired() = %v, want %v", got, test.want)
			}
		})
	}
}

// Requirement: IsExpired flips from false to true exactly once as time advances.
func TestIsExpired_Monotonic(t *testing.T) {
	expiry := at(10 * time.Minute)
	buffer := 5 * time.Minute

	flips := 0
	prev := IsExpired(fixedNow, expiry, buffer)
	for step := time.Duration(0); step <= 20*time.Minute; step += 10 * time.Second {
		cur := IsExpired(fixedNow.Add(step), expiry, buffer)
		if prev && !cur {
			t.Fatalf("IsExpired flipped back to false at +%v", step)
		}
		if !prev && cur {
			flips++
			if step != 5*time.Minute {
				t.Errorf("flip happened at +%v, want +5m", step)
			}
		}
		prev = cur
	}
	if flips != 1 {
		t.Errorf("flips = %d, want 1", flips)
	}
}

func TestTimeUntilExpiry(t *testing.T) {
	if got := TimeUntilExpiry(fixedNow, nil); got != 0 {
		t.Errorf("nil expiry = %v, want 0", got)
	}
	if got := TimeUntilExpiry(fixedNow, at(-time.Hour)); got != 0 {
		t.Errorf("past expiry = %v, want 0", got)
	}
	if got := TimeUntilExpiry(fixedNow, at(90*time.Second)); got != 90*time.Second {
		t.Errorf("future expiry = %v, want 90s", got)
	}
}

func TestDeadlineIn(t *testing.T) {
	if got := DeadlineIn(fixedNow, at(time.Hour), 5*time.Minute); got != 55*time.Minute {
		t.Errorf("DeadlineIn = %v, want 55m", got)
	}
	if got := DeadlineIn(fixedNow, at(2*time.Minute), 5*time.Minute); got != 0 {
		t.Errorf("DeadlineIn inside buffer = %v, want 0", got)
	}
	if got := DeadlineIn(fixedNow, nil, 0); got != 0 {
		t.Errorf("DeadlineIn nil = %v, want 0", got)
	}
}

// Requirement: community (24h) and system (8h) expiries differ by exactly 16 hours.
func TestComputeExpiry_DurationAsymmetry(t *testing.T) {
	community := ComputeExpiry(fixedNow, CommunitySessionConfig().DurationHours)
	system := ComputeExpiry(fixedNow, SystemSessionConfig().DurationHours)

	if diff := community.Sub(system); diff != 16*time.Hour {
		t.Errorf("community - system = %v, want 16h", diff)
	}
	if !community.Equal(fixedNow.Add(24 * time.Hour)) {
		t.Errorf("community expiry = %v", community)
	}
}

// Requirement: singular at exactly one unit, plural otherwise; "Expired" at or below zero.
func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 0, want: "Expired"},
		{in: -time.Minute, want: "Expired"},
		{in: 30 * time.Second, want: "0 minutes"},
		{in: 90 * time.Second, want: "1 minute"},
		{in: 2 * time.Minute, want: "2 minutes"},
		{in: 59*time.Minute + 59*time.Second, want: "59 minutes"},
		{in: time.Hour, want: "1 hour 0 minutes"},
		{in: time.Hour + time.Minute, want: "1 hour 1 minute"},
		{in: 2*time.Hour + 5*time.Minute, want: "2 hours 5 minutes"},
		{in: 24 * time.Hour, want: "24 hours 0 minutes"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.want, func(t *testing.T) {
			if got := FormatRemaining(test.in); got != test.want {
				t.Errorf("FormatRemaining(%v) = %q, want %q", test.in, got, test.want)
			}
		})
	}
}
