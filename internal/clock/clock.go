package clock

import "time"

// Clock abstracts wall time so rate windows and timestamps can be driven in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// New returns the process wall clock in UTC.
func New() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
