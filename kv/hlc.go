package kv

import (
	"sync/atomic"
	"time"
)

const hlcLogicalBits = 16
const hlcLogicalMask uint64 = (1 << hlcLogicalBits) - 1

// HLC issues commit timestamps for the embedded cluster.
//
// Layout:
//
//	high 48 bits: wall clock milliseconds since Unix epoch
//	low 16 bits : logical counter for commits within the same millisecond
//
// Timestamps restored from a snapshot are fed back through Observe so
// commits after a restart never sort below the loaded rows.
type HLC struct {
	last atomic.Uint64
	now  func() time.Time
}

func NewHLC() *HLC {
	return &HLC{now: time.Now}
}

func wallMillis(t time.Time) uint64 {
	ms := t.UnixMilli()
	if ms < 0 {
		return 0
	}
	return uint64(ms)
}

// Next returns a timestamp greater than every value issued or observed.
func (h *HLC) Next() uint64 {
	for {
		prev := h.last.Load()
		next := wallMillis(h.now()) << hlcLogicalBits
		if next <= prev {
			// wall clock stalled or went backwards; the logical part carries
			// into the wall part on overflow.
			next = prev + 1
		}
		if h.last.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// Current returns the last issued or observed value without advancing it.
func (h *HLC) Current() uint64 {
	return h.last.Load()
}

// Observe bumps the clock if a higher timestamp is seen.
func (h *HLC) Observe(ts uint64) {
	for {
		prev := h.last.Load()
		if ts <= prev {
			return
		}
		if h.last.CompareAndSwap(prev, ts) {
			return
		}
	}
}

// WallTime returns the wall clock component of ts.
func WallTime(ts uint64) time.Time {
	return time.UnixMilli(int64(ts >> hlcLogicalBits)) //nolint:gosec
}
