package stft

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_ReflectPad_preservesCenterAndPadsSymmetrically(t *testing.T) {
	x := []float32{1, 2, 3, 4, 5}
	out := ReflectPad(x, 2)
	assert.Len(t, out, 9)
	assert.Equal(t, []float32{1, 2, 3, 4, 5}, out[2:7])
	assert.Equal(t, float32(3), out[0])
	assert.Equal(t, float32(2), out[1])
}

func Test_ReflectPad_singleSampleRepeatsItself(t *testing.T) {
	out := ReflectPad([]float32{7}, 3)
	for _, v := range out {
		assert.Equal(t, float32(7), v)
	}
}

func Test_NumFrames_matchesStandardFramingFormula(t *testing.T) {
	assert.Equal(t, 0, NumFrames(10, 20, 5))
	assert.Equal(t, 1, NumFrames(20, 20, 5))
	assert.Equal(t, 5, NumFrames(40, 20, 5))
}

func Test_Magnitude_parallelAndSequentialAgree(t *testing.T) {
	n := 4000
	x := make([]float32, n)
	for i := range x {
		x[i] = float32(i%7) - 3
	}
	winLength, nFFT, hop := 256, 256, 128
	window := make([]float32, nFFT)
	for i := range window {
		window[i] = 1
	}

	seq := Magnitude(x, winLength, hop, nFFT, window, 1)
	par := Magnitude(x, winLength, hop, nFFT, window, 4)

	assert.Equal(t, len(seq), len(par))
	for frame := range seq {
		assert.InDeltaSlice(t, t2Floats(seq[frame]), t2Floats(par[frame]), 1e-3)
	}
}

func t2Floats(row []float32) []float64 {
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = float64(v)
	}
	return out
}

func Test_DBFromAmp_floorsNearZeroValues(t *testing.T) {
	spec := [][]float32{{0, 1, 1e-20}}
	DBFromAmp(spec)
	assert.Equal(t, float32(0), spec[0][1])
	assert.Less(t, spec[0][0], float32(-300))
	assert.Equal(t, spec[0][0], spec[0][2])
}
