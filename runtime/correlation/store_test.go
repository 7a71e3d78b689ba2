package correlation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_Resolve(t *testing.T) {
	table := NewTable[string]()
	slot := table.Open("m1", "worker")
	assert.Same(t, slot, table.Open("m1", "other"))
	assert.Equal(t, 1, table.Len())

	assert.False(t, table.ResolveFrom("m1", "intruder", "bad"))
	assert.True(t, table.ResolveFrom("m1", "worker", "ok"))
	assert.False(t, table.Resolve("m1", "late"))
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, "ok", <-slot.Done())
}

func TestTable_Discard(t *testing.T) {
	table := NewTable[int]()
	table.Open("a", "")
	assert.True(t, table.Discard("a"))
	assert.False(t, table.Discard("a"))
	assert.False(t, table.Resolve("a", 1))
	assert.Nil(t, table.Peek("a"))

	slot := table.Open("b", "")
	table.Open("c", "")
	assert.ElementsMatch(t, []string{"b", "c"}, table.IDs())
	table.Reset()
	assert.Equal(t, 0, table.Len())
	v, ok := <-slot.Done()
	assert.False(t, ok)
	assert.Zero(t, v)
}

func TestTable_SingleFire(t *testing.T) {
	table := NewTable[int]()
	slot := table.Open("x", "")

	var wg sync.WaitGroup
	results := make(chan bool, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			results <- table.Resolve("x", v)
		}(i)
	}
	wg.Wait()
	close(results)

	winners := 0
	for ok := range results {
		if ok {
			winners++
		}
	}
	require.Equal(t, 1, winners)
	select {
	case <-slot.Done():
	default:
		t.Fatal("expected resolved value")
	}
}

func TestTable_TakeThenDeliver(t *testing.T) {
	table := NewTable[string]()
	slot := table.Open("r1", "")
	taken := table.Take("r1")
	require.NotNil(t, taken)
	assert.False(t, table.Resolve("r1", "loser"))
	taken.Deliver("winner")
	assert.Equal(t, "winner", <-slot.Done())
}

func TestTable_TakeFrom(t *testing.T) {
	table := NewTable[string]()
	slot := table.Open("r1", "worker")
	assert.Nil(t, table.TakeFrom("r1", "intruder"))
	assert.Nil(t, table.TakeFrom("r2", "worker"))
	taken := table.TakeFrom("r1", "worker")
	require.NotNil(t, taken)
	assert.Equal(t, 0, table.Len())
	assert.False(t, table.ResolveFrom("r1", "worker", "loser"))
	taken.Deliver("winner")
	assert.Equal(t, "winner", <-slot.Done())
}
