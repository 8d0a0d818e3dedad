package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/klauspost/cpuid/v2"
)

var workers atomic.Int64

func init() {
	workers.Store(int64(DefaultWorkers()))
}

// DefaultWorkers is the physical core count, bounded by GOMAXPROCS.
func DefaultWorkers() int {
	n := runtime.GOMAXPROCS(0)
	if cores := cpuid.CPU.PhysicalCores; cores > 0 && cores < n {
		n = cores
	}
	return n
}

// SetWorkers caps the goroutines For fans out to. Values below one reset the default.
func SetWorkers(n int) {
	if n < 1 {
		n = DefaultWorkers()
	}
	workers.Store(int64(n))
}

func Workers() int {
	return int(workers.Load())
}

func For(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	w := Workers()
	if w > n {
		w = n
	}
	if w <= 1 {
		fn(0, n)
		return
	}
	chunk := (n + w - 1) / w
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}
