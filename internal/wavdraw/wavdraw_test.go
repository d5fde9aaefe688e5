package wavdraw

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Build_zeroWidthAmpRangeYieldsFillRect(t *testing.T) {
	samples := make([]float32, 100)
	info := Build(samples, Options{WidthPx: 50, HeightPx: 20, AmpLo: 0.5, AmpHi: 0.5})
	_, ok := info.(FillRect)
	assert.True(t, ok)
}

func Test_Build_emptySamplesYieldsEmptyLine(t *testing.T) {
	info := Build(nil, Options{WidthPx: 50, HeightPx: 20, AmpLo: -1, AmpHi: 1})
	line, ok := info.(Line)
	assert.True(t, ok)
	assert.Empty(t, line.Ys)
}

func Test_Build_decimatedProducesOnePointPerPixel(t *testing.T) {
	n := 10000
	samples := make([]float32, n)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 0.8
		} else {
			samples[i] = -0.8
		}
	}
	info := Build(samples, Options{WidthPx: 200, HeightPx: 100, AmpLo: -1, AmpHi: 1, LineWidthPx: 1, TopBottomContextPx: 50})
	switch v := info.(type) {
	case TopBottomEnvelope:
		assert.Len(t, v.Top, 200)
		assert.Len(t, v.Bottom, 200)
	case Line:
		assert.Len(t, v.Ys, 200)
	default:
		t.Fatalf("unexpected info type %T", info)
	}
}

func Test_Build_upsampledProducesWidthPxPoints(t *testing.T) {
	n := 20
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(i) / float32(n)
	}
	info := Build(samples, Options{WidthPx: 500, HeightPx: 100, AmpLo: -1, AmpHi: 1})
	line, ok := info.(Line)
	assert.True(t, ok, "upsampled case must yield a Line, got %T", info)
	assert.Len(t, line.Ys, 500)
}

func Test_yOf_isMonotonicDecreasingInAmp(t *testing.T) {
	lo, hi := float32(-1), float32(1)
	assert.Equal(t, float32(0), yOf(hi, lo, hi))
	assert.Equal(t, float32(1), yOf(lo, lo, hi))
	assert.InDelta(t, float64(0.5), float64(yOf(0, lo, hi)), 1e-6)
}

func Test_quantizeRatio_bucketing(t *testing.T) {
	assert.Equal(t, 2.0, quantizeRatio(1.6))
	assert.Equal(t, 0.75, quantizeRatio(0.6))
	assert.InDelta(t, 1.0/3.0, quantizeRatio(0.3), 1e-9)
}

func Test_ConvertAmpRange_fillRectPassesThrough(t *testing.T) {
	out := ConvertAmpRange(FillRect{}, -1, 1, -2, 2, 1, 100)
	_, ok := out.(FillRect)
	assert.True(t, ok)
}

func Test_ConvertAmpRange_lineRemapsYValues(t *testing.T) {
	in := Line{Ys: []float32{0, 0.5, 1}}
	out := ConvertAmpRange(in, -1, 1, -1, 1, 1, 100)
	line := out.(Line)
	for i := range in.Ys {
		assert.InDelta(t, float64(in.Ys[i]), float64(line.Ys[i]), 1e-5, "identity remap must preserve y values")
	}
}
