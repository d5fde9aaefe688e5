package dynamics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func Test_PerfectLimiter_gainIsBoundedAndNeverAmplifies(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 2000).Draw(t, "n")
		wav := make([]float32, n)
		for i := range wav {
			wav[i] = float32(rapid.Float64Range(-4, 4).Draw(t, "sample"))
		}

		lim := NewPerfectLimiter(44100, DefaultLimiterParams())
		gains := lim.ProcessInplace(wav)

		assert.Len(t, gains, n)
		for _, g := range gains {
			assert.GreaterOrEqualf(t, g, float32(0), "gain must never be negative, got %v", g)
			assert.LessOrEqualf(t, g, float32(1), "gain must never exceed 1 (limiter only attenuates), got %v", g)
		}
		for _, v := range wav {
			assert.LessOrEqualf(t, v, float32(1), "output sample must be clamped to [-1,1], got %v", v)
			assert.GreaterOrEqualf(t, v, float32(-1), "output sample must be clamped to [-1,1], got %v", v)
		}
	})
}

func Test_PerfectLimiter_silenceStaysSilent(t *testing.T) {
	wav := make([]float32, 100)
	lim := NewPerfectLimiter(44100, DefaultLimiterParams())
	gains := lim.ProcessInplace(wav)
	for _, v := range wav {
		assert.Equal(t, float32(0), v)
	}
	for _, g := range gains {
		assert.Equal(t, float32(1), g)
	}
}

func Test_slidingMax_tracksWindowMinimum(t *testing.T) {
	s := newSlidingMax(3)
	values := []float64{1, 0.5, 0.9, 0.2, 0.8, 0.8}
	var got []float64
	for _, v := range values {
		got = append(got, s.step(v))
	}
	// window=3: at each step, result is min over the trailing 3 (or fewer) values.
	want := []float64{1, 0.5, 0.5, 0.2, 0.2, 0.2}
	assert.Equal(t, want, got)
}

func Test_boxFilter_convergesToConstantInput(t *testing.T) {
	b := newBoxFilter(8)
	b.reset(0)
	var last float64
	for i := 0; i < 8; i++ {
		last = b.step(1)
	}
	assert.Equal(t, 1.0, last)
}
