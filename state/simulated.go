package state

import (
	"time"

	"github.com/TEENet-io/teleport-bridge/database"
)

// SimulatedClock is a settable clock for tests.
type SimulatedClock struct {
	T time.Time
}

func (c *SimulatedClock) Now() time.Time { return c.T }

func (c *SimulatedClock) Advance(d time.Duration) { c.T = c.T.Add(d) }

// NewSimulatedHost returns a host over a memory database with a settable clock.
func NewSimulatedHost() (*Host, *SimulatedClock) {
	clock := &SimulatedClock{T: time.Unix(1700000000, 0)}
	return NewHost(database.NewMemoryDB(), &Config{Clock: clock.Now}), clock
}
