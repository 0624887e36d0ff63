package images

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelCoversEveryElementOnce(t *testing.T) {
	for _, size := range []int{0, 1, 100, MinParallelPixels, MinParallelPixels*3 + 7} {
		hits := make([]int32, size)

		var mu sync.Mutex
		partitions := 0
		Parallel(size, func(start, end int) {
			mu.Lock()
			partitions++
			mu.Unlock()
			for i := start; i < end; i++ {
				hits[i]++
			}
		})

		assert.GreaterOrEqual(t, partitions, 1)
		for i, h := range hits {
			if h != 1 {
				t.Fatalf("size %d: element %d visited %d times", size, i, h)
			}
		}
	}
}

func TestParallelSmallWorkloadRunsOnce(t *testing.T) {
	calls := 0
	Parallel(MinParallelPixels-1, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, MinParallelPixels-1, end)
	})
	assert.Equal(t, 1, calls)
}
