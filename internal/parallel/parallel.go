// Package parallel fans independent loop iterations out to goroutines.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Config sizes a parallel loop. Workers below 2 run the loop on the calling
// goroutine. Grain is the smallest number of iterations a worker claims at
// once.
type Config struct {
	Workers int
	Grain   int
}

// DefaultConfig uses one worker per CPU.
func DefaultConfig() Config {
	return Config{Workers: runtime.NumCPU(), Grain: 64}
}

// Sequential runs every loop on the calling goroutine.
func Sequential() Config {
	return Config{Workers: 1, Grain: 1}
}

// WithGrain returns cfg with its grain set to n, at least 1. Kernels whose
// iterations are a whole GEMM use a grain of 1.
func (cfg Config) WithGrain(n int) Config {
	cfg.Grain = max(n, 1)
	return cfg
}

// For calls f(i) once for every i in [0, n) and returns when all calls are
// done. Workers claim chunks of Grain iterations until the range is used up,
// so uneven iterations balance out.
func For(n int, f func(i int), cfg Config) {
	grain := max(cfg.Grain, 1)
	workers := min(cfg.Workers, (n+grain-1)/grain)
	if workers < 2 {
		for i := range n {
			f(i)
		}
		return
	}

	var next atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for {
				start := int(next.Add(int64(grain))) - grain
				if start >= n {
					return
				}
				for i := start; i < min(start+grain, n); i++ {
					f(i)
				}
			}
		}()
	}
	wg.Wait()
}

// ForBatch calls f for every (batch, channel) pair.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	For(batch*channels, func(k int) { f(k/channels, k%channels) }, cfg)
}
