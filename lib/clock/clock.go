package clock

import "time"

const stampLayout = "2006-01-02T15:04:05Z"

// Clock allows injecting time into services so tests are deterministic.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem returns a clock backed by time.Now in UTC.
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

type fixedClock struct {
	now time.Time
}

// NewFixed returns a clock that always reports the same instant.
func NewFixed(t time.Time) Clock {
	return fixedClock{now: t.UTC()}
}

func (f fixedClock) Now() time.Time {
	return f.now
}

// Stamp renders the current time for API response envelopes.
func Stamp() string {
	return time.Now().UTC().Format(stampLayout)
}
