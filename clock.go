package rstmgo

import "sync/atomic"

// GlobalClock is the process-wide monotone version source every
// transaction snapshots at begin and every committing writer advances.
// It generalizes the teacher's VersionClock (a bare atomic uint64 with
// load/increment) to the runtime's exported vocabulary.
type GlobalClock struct {
	v atomic.Uint64
}

// Snapshot returns the clock's current value, establishing a
// transaction's start timestamp.
func (c *GlobalClock) Snapshot() uint64 {
	return c.v.Load()
}

// Advance atomically increments the clock and returns the new value,
// establishing a committing writer's end timestamp.
func (c *GlobalClock) Advance() uint64 {
	return c.v.Add(1)
}
