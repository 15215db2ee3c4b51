package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor(t *testing.T) {
	configs := map[string]Config{
		"default":     DefaultConfig(),
		"sequential":  Sequential(),
		"tiny chunks": {Enabled: true, NumWorkers: 4, MinChunkSize: 1},
	}
	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			seen := make([]int32, 1000)
			For(len(seen), func(i int) {
				atomic.AddInt32(&seen[i], 1)
			}, cfg)
			for i, n := range seen {
				assert.Equal(t, int32(1), n, "index %d", i)
			}
		})
	}
}

func TestFor_OwnPool(t *testing.T) {
	pool := workerpool.New(3)
	defer pool.Close()
	cfg := Config{Enabled: true, NumWorkers: 5, MinChunkSize: 7, Pool: pool}

	for _, n := range []int{14, 15, 99, 100, 101} {
		seen := make([]int32, n)
		For(n, func(i int) {
			atomic.AddInt32(&seen[i], 1)
		}, cfg)
		for i, c := range seen {
			require.Equal(t, int32(1), c, "n=%d index %d", n, i)
		}
	}
}

func TestFor_ClosedPoolRunsInline(t *testing.T) {
	pool := workerpool.New(2)
	pool.Close()

	var sum int64
	For(64, func(i int) { sum += int64(i) }, Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1, Pool: pool})
	assert.Equal(t, int64(64*63/2), sum)
}

func TestFor_Empty(t *testing.T) {
	called := false
	For(0, func(int) { called = true }, DefaultConfig())
	assert.False(t, called)
}

func TestFor2D(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 1}

	rows, cols := 4, 7
	hits := make([][]int32, rows)
	for r := range hits {
		hits[r] = make([]int32, cols)
	}

	For2D(rows, cols, func(r, c int) {
		atomic.AddInt32(&hits[r][c], 1)
	}, cfg)

	for r := range hits {
		for c := range hits[r] {
			assert.Equal(t, int32(1), hits[r][c], "cell [%d][%d]", r, c)
		}
	}

	For2D(3, 0, func(int, int) { t.Fatal("no cells expected") }, cfg)
}
