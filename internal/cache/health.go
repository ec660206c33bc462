package cache

import (
	"sync/atomic"
	"time"
)

// State is the health of the cache backend as seen by a Client.
type State int32

const (
	StateAvailable State = iota
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateAvailable:
		return "available"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Health tracks whether a Client trusts its backend. Fields are updated independently
// with atomics; concurrent callers may observe a transition slightly early or late,
// which only costs an extra bypassed or failed cache call.
type Health struct {
	state         atomic.Int32
	degradedSince atomic.Int64
	lastLoggedAt  atomic.Int64
}

// NewHealth returns a health tracker in the available state.
func NewHealth() *Health {
	return &Health{}
}

// State returns the current state.
func (h *Health) State() State {
	return State(h.state.Load())
}

// DegradedSince returns when the backend was last marked degraded, or the zero time.
func (h *Health) DegradedSince() time.Time {
	return unixNano(h.degradedSince.Load())
}

// LastLoggedAt returns when a backend failure was last logged, or the zero time.
func (h *Health) LastLoggedAt() time.Time {
	return unixNano(h.lastLoggedAt.Load())
}

// Degrade moves the tracker to degraded. It reports true only for the caller that
// performed the transition.
func (h *Health) Degrade(now time.Time) bool {
	if h.State() == StateDegraded {
		return false
	}
	// stamped before the flip so Recover never sees degraded with a zero timestamp
	h.degradedSince.Store(now.UnixNano())
	return h.state.CompareAndSwap(int32(StateAvailable), int32(StateDegraded))
}

// Recover flips back to available once cooldown has elapsed since degrading. The
// backend is not probed; the next real operation re-degrades if it is still down.
func (h *Health) Recover(now time.Time, cooldown time.Duration) bool {
	if h.State() != StateDegraded {
		return false
	}
	if now.Sub(h.DegradedSince()) < cooldown {
		return false
	}
	return h.state.CompareAndSwap(int32(StateDegraded), int32(StateAvailable))
}

// ShouldLog reports whether a failure may be logged, allowing one log per window.
func (h *Health) ShouldLog(now time.Time, window time.Duration) bool {
	last := h.lastLoggedAt.Load()
	if last != 0 && now.Sub(time.Unix(0, last)) < window {
		return false
	}
	return h.lastLoggedAt.CompareAndSwap(last, now.UnixNano())
}

func unixNano(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v)
}
