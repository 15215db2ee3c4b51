// Package parallel splits index ranges across a persistent worker pool for
// the CPU kernels.
package parallel

import (
	"runtime"
	"sync"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool             // Whether parallel execution is enabled.
	NumWorkers   int              // Number of chunks the range is split into.
	MinChunkSize int              // Minimum indices per chunk.
	Pool         *workerpool.Pool // Pool running the chunks; nil uses a shared pool.
}

// sharedPool lives for the whole process and is never closed.
var sharedPool = sync.OnceValue(func() *workerpool.Pool {
	return workerpool.New(runtime.GOMAXPROCS(0))
})

// DefaultConfig returns defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 16,
	}
}

// Sequential returns a Config that runs everything on the calling goroutine.
func Sequential() Config {
	return Config{}
}

// For executes f(i) for i in [0, n). Chunks run concurrently, so f must only
// write state owned by index i, and f must not call For itself. Small ranges
// run sequentially.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers < 2 || n < 2*max(cfg.MinChunkSize, 1) {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)
	chunks := (n + chunkSize - 1) / chunkSize

	pool := cfg.Pool
	if pool == nil {
		pool = sharedPool()
	}
	pool.ParallelFor(chunks, func(first, last int) {
		for c := first; c < last; c++ {
			end := min((c+1)*chunkSize, n)
			for i := c * chunkSize; i < end; i++ {
				f(i)
			}
		}
	})
}

// For2D executes f(r, c) over a rows×cols index grid.
func For2D(rows, cols int, f func(r, c int), cfg Config) {
	if cols == 0 {
		return
	}
	For(rows*cols, func(k int) {
		f(k/cols, k%cols)
	}, cfg)
}
