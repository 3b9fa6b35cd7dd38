// Package clock abstracts time so question deadlines can be driven deterministically in tests.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a pending callback armed through a Clock.
type Timer = clockwork.Timer

// Clock is the part of clockwork.Clock the coordinator needs. clockwork's real and fake
// clocks both satisfy it.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real returns the wall clock.
func Real() Clock { return clockwork.NewRealClock() }
