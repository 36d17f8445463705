package threadsafe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashSet(t *testing.T) {
	set := NewHashSet[string]()

	assert.True(t, set.Add("order-1"))
	assert.False(t, set.Add("order-1"))
	assert.True(t, set.Contains("order-1"))
	assert.Equal(t, 1, set.Len())

	assert.True(t, set.Remove("order-1"))
	assert.False(t, set.Remove("order-1"))
	assert.False(t, set.Contains("order-1"))
}

func TestHashSetConcurrentAdd(t *testing.T) {
	set := NewHashSet[int]()
	added := make(chan bool, 100)

	wg := &sync.WaitGroup{}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added <- set.Add(1)
		}()
	}
	wg.Wait()
	close(added)

	winners := 0
	for ok := range added {
		if ok {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}
