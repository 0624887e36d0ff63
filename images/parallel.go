package images

import (
	"runtime"
	"sync"
)

// MinParallelPixels is the smallest workload split across goroutines.
// Smaller frames are processed on the calling goroutine.
const MinParallelPixels = 64 * 1024

// Parallel splits [0, dataSize) into one contiguous partition per CPU and
// runs fn on every partition concurrently. It returns when all partitions
// are done. Partitions never overlap, so fn may write to disjoint parts of a
// shared buffer without locking.
//
// Arguments:
// - dataSize: The number of elements to process.
// - fn: Function to execute for each partition (receives start and end indices).
//
// @example
//
//	Parallel(pixels, func(start, end int) {
//	    for i := start; i < end; i++ {
//	        // Process pixel i
//	    }
//	})
func Parallel(dataSize int, fn func(partStart, partEnd int)) {
	numGoroutines := runtime.NumCPU()
	if dataSize < MinParallelPixels || numGoroutines < 2 {
		fn(0, dataSize)
		return
	}

	partSize := dataSize / numGoroutines

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		partStart := i * partSize
		partEnd := partStart + partSize
		// Last partition gets any remaining data.
		if i == numGoroutines-1 {
			partEnd = dataSize
		}

		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(partStart, partEnd)
	}
	wg.Wait()
}
