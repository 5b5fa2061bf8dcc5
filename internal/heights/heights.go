// Package heights supplies the market's notion of current height.
//
// All timing in the market (registration stamps, resolution windows) is
// expressed in heights rather than wall-clock time, mirroring the block
// ordering of the settlement layer. The server derives height from a
// genesis instant and a fixed block interval; tests drive it manually.
package heights

import (
	"sync/atomic"
	"time"
)

// Source reports the current height.
type Source interface {
	Current() uint64
}

// Interval derives height from elapsed wall-clock time since genesis.
type Interval struct {
	genesis time.Time
	step    time.Duration
	now     func() time.Time
}

// NewInterval creates a height source ticking once per step from genesis.
func NewInterval(genesis time.Time, step time.Duration) *Interval {
	return &Interval{genesis: genesis, step: step, now: time.Now}
}

// Current returns the number of whole steps elapsed since genesis.
// Before genesis the height is 0.
func (i *Interval) Current() uint64 {
	elapsed := i.now().Sub(i.genesis)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / i.step)
}

// Manual is a hand-advanced height source for tests and the operation log
// replay path.
type Manual struct {
	h atomic.Uint64
}

// NewManual creates a manual source starting at the given height.
func NewManual(start uint64) *Manual {
	m := &Manual{}
	m.h.Store(start)
	return m
}

// Current returns the stored height.
func (m *Manual) Current() uint64 {
	return m.h.Load()
}

// Advance moves the height forward by n and returns the new height.
func (m *Manual) Advance(n uint64) uint64 {
	return m.h.Add(n)
}

// Set pins the height to h.
func (m *Manual) Set(h uint64) {
	m.h.Store(h)
}
