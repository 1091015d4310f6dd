package clock

import "time"

// Clock supplies the current instant. Day boundaries are always computed in
// UTC regardless of the process timezone, because quota day keys are shared
// across instances.
type Clock interface {
	Now() time.Time
}

// System is the production clock.
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a settable clock for tests.
type Fixed struct {
	T time.Time
}

func (f *Fixed) Now() time.Time {
	return f.T
}

// Advance moves the fixed clock forward.
func (f *Fixed) Advance(d time.Duration) {
	f.T = f.T.Add(d)
}

// StartOfDay returns midnight UTC of the day containing t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns midnight UTC of the following day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24 * time.Hour)
}

// DayString formats t as the UTC calendar date used in counter keys.
func DayString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
