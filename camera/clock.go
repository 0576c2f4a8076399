package camera

import "time"

// Clock abstracts the monotonic wait used by the capture poll loop and
// the scanner's pacing delay, so tests can advance time without real
// hardware delays.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }
