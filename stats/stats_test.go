package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	var c Counters
	var last Snapshot
	c.OnChange(func(s Snapshot) { last = s })

	c.Update(Delta{Total: 1})
	c.Update(Delta{Total: 1})
	c.Update(Delta{Total: 1})
	c.Update(Delta{Total: 1})
	c.Update(Delta{Approved: 1})
	c.Update(Delta{Modified: 1})
	c.Update(Delta{Timeout: 1, Rejected: 1})

	s := c.Snapshot()
	assert.Equal(t, s, last)
	assert.Equal(t, 4, s.Total)
	assert.InDelta(t, 0.25, s.ApprovalRate(), 1e-9)
	assert.InDelta(t, 0.25, s.ModificationRate(), 1e-9)
	assert.InDelta(t, 0.25, s.TimeoutRate(), 1e-9)

	c.Reset()
	assert.Equal(t, Snapshot{}, c.Snapshot())
	assert.Equal(t, Snapshot{}, last)
	assert.Zero(t, c.Snapshot().ApprovalRate())
}

func TestCounters_Concurrent(t *testing.T) {
	var c Counters
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Update(Delta{Total: 1, Approved: 1})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, c.Snapshot().Approved)
}

func TestCounters_Nil(t *testing.T) {
	var c *Counters
	c.Update(Delta{Total: 1})
	c.Reset()
	c.OnChange(nil)
	assert.Equal(t, Snapshot{}, c.Snapshot())
}
