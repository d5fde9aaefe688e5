package workpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_New_defaultsSizeToGOMAXPROCS(t *testing.T) {
	p := New(0)
	assert.Greater(t, p.Size(), 0)
}

func Test_New_honorsExplicitSize(t *testing.T) {
	p := New(3)
	assert.Equal(t, 3, p.Size())
}

func Test_RunEach_invokesEveryIndexExactlyOnce(t *testing.T) {
	p := New(4)
	const n = 50
	var counts [n]int32
	p.RunEach(n, func(i int) {
		atomic.AddInt32(&counts[i], 1)
	})
	for i, c := range counts {
		assert.Equalf(t, int32(1), c, "index %d ran %d times", i, c)
	}
}

func Test_Run_propagatesFirstError(t *testing.T) {
	p := New(4)
	boom := errors.New("boom")
	err := p.Run(context.Background(), 10, func(_ context.Context, i int) error {
		if i == 5 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func Test_Run_neverExceedsConcurrencyBound(t *testing.T) {
	p := New(2)
	var active, maxActive int32
	_ = p.Run(context.Background(), 20, func(_ context.Context, i int) error {
		n := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&maxActive)
			if n <= old || atomic.CompareAndSwapInt32(&maxActive, old, n) {
				break
			}
		}
		atomic.AddInt32(&active, -1)
		return nil
	})
	assert.LessOrEqual(t, maxActive, int32(2))
}
