package stats

import (
	"sync"
)

// Delta represents an incremental counter change. Fields are signed.
type Delta struct {
	Total    int
	Approved int
	Rejected int
	Modified int
	Timeout  int
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Total    int
	Approved int
	Rejected int
	Modified int
	Timeout  int
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// ApprovalRate is approved / total, 0 when nothing was requested.
func (s Snapshot) ApprovalRate() float64 { return rate(s.Approved, s.Total) }

// ModificationRate is modified / total.
func (s Snapshot) ModificationRate() float64 { return rate(s.Modified, s.Total) }

// TimeoutRate is timeout / total.
func (s Snapshot) TimeoutRate() float64 { return rate(s.Timeout, s.Total) }

// Counters is safe for concurrent use.
type Counters struct {
	mu       sync.Mutex
	value    Snapshot
	onChange func(Snapshot)
}

// Update applies d. The onChange callback, if any, runs outside the lock
// with a copy of the updated counters.
func (c *Counters) Update(d Delta) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.value.Total += d.Total
	c.value.Approved += d.Approved
	c.value.Rejected += d.Rejected
	c.value.Modified += d.Modified
	c.value.Timeout += d.Timeout
	snapshot := c.value
	cb := c.onChange
	c.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

func (c *Counters) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Reset zeroes every counter.
func (c *Counters) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.value = Snapshot{}
	cb := c.onChange
	c.mu.Unlock()
	if cb != nil {
		cb(Snapshot{})
	}
}

// OnChange registers the single change callback; nil disables it.
func (c *Counters) OnChange(cb func(Snapshot)) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.onChange = cb
	c.mu.Unlock()
}
