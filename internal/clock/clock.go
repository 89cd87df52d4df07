package clock

import "time"

// Clock abstracts time so services and pricing resolution are testable
// against a fixed instant.
type Clock interface {
	Now() time.Time
}

// System returns a clock backed by time.Now in UTC.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed returns a clock pinned to t, for tests.
func Fixed(t time.Time) Clock {
	return fixedClock{now: t.UTC()}
}

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time {
	return f.now
}
