package drive

import "time"

// Clock abstracts time retrieval so timestamp behavior is deterministic in
// tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }
