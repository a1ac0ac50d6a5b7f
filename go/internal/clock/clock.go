package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
	AfterFunc(d time.Duration, f func()) clockwork.Timer
}

// Real returns the wall clock.
func Real() Clock {
	return clockwork.NewRealClock()
}

// UnixMilli returns t as epoch milliseconds, the unit carried in TimerState.
func UnixMilli(t time.Time) int64 {
	return t.UnixMilli()
}

// ElapsedWhileActive returns whole seconds between startMs and now.
// A start in the future (clock skew between peers) yields 0 rather than a negative count.
func ElapsedWhileActive(now time.Time, startMs int64) int {
	diff := now.UnixMilli() - startMs
	if diff <= 0 {
		return 0
	}
	return int(diff / 1000)
}

// Backdate returns the start timestamp that makes elapsed seconds equal secondsElapsed at now.
func Backdate(now time.Time, secondsElapsed int) int64 {
	return now.UnixMilli() - int64(secondsElapsed)*1000
}

// Remaining returns seconds left in a slot of durationMinutes after secondsElapsed.
func Remaining(durationMinutes, secondsElapsed int) int {
	left := durationMinutes*60 - secondsElapsed
	if left < 0 {
		return 0
	}
	return left
}

// ProgressFraction returns remaining/duration clamped to [0,1]. A zero duration yields 0.
func ProgressFraction(durationMinutes, secondsElapsed int) float64 {
	total := durationMinutes * 60
	if total <= 0 {
		return 0
	}
	f := float64(Remaining(durationMinutes, secondsElapsed)) / float64(total)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// FormatCountdown renders seconds as MM:SS using the absolute value.
func FormatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = -seconds
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// FormatTimeOfDay renders minutes since midnight as a 12-hour clock, e.g. "9:05 AM".
// Values past midnight wrap around.
func FormatTimeOfDay(minutes int) string {
	h := (minutes / 60) % 24
	m := minutes % 60
	ampm := "AM"
	if h >= 12 {
		ampm = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, m, ampm)
}

// ParseTimeOfDay converts "HH:MM" into minutes since midnight.
func ParseTimeOfDay(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// MinutesOrZero is ParseTimeOfDay for display paths, where an empty or malformed time counts as midnight.
func MinutesOrZero(s string) int {
	m, err := ParseTimeOfDay(s)
	if err != nil {
		return 0
	}
	return m
}
