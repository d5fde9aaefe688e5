package dynamics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func Test_ApplyGuardClipping_allModesKeepSamplesWithinUnitRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 500).Draw(t, "n")
		wav := make([]float32, n)
		for i := range wav {
			wav[i] = float32(rapid.Float64Range(-3, 3).Draw(t, "sample"))
		}
		mode := GuardClipMode(rapid.IntRange(0, 2).Draw(t, "mode"))

		out, result, stats := ApplyGuardClipping([][]float32{wav}, 44100, mode, DefaultLimiterParams())

		assert.Len(t, out, 1)
		assert.Len(t, stats, 1)
		assert.NotNil(t, result)
		for _, v := range out[0] {
			assert.LessOrEqualf(t, v, float32(1), "mode %v must keep samples <= 1, got %v", mode, v)
			assert.GreaterOrEqualf(t, v, float32(-1), "mode %v must keep samples >= -1, got %v", mode, v)
		}
	})
}

func Test_ApplyGuardClipping_clipModeProducesWavBeforeClip(t *testing.T) {
	wav := []float32{0.5, 1.5, -2.0, 0.1}
	out, result, stats := ApplyGuardClipping([][]float32{wav}, 44100, GuardClip, DefaultLimiterParams())

	before, ok := result.(WavBeforeClip)
	assert.True(t, ok)
	assert.Equal(t, wav, before.Wavs[0])
	assert.Equal(t, []float32{0.5, 1, -1, 0.1}, out[0])
	assert.Equal(t, 2, stats[0].ReductionCount)
}

func Test_ApplyGuardClipping_reduceGlobalLevelScalesAllSamplesByOneGain(t *testing.T) {
	wav := []float32{0.5, 2.0, -1.0}
	out, result, _ := ApplyGuardClipping([][]float32{wav}, 44100, GuardReduceGlobalLevel, DefaultLimiterParams())

	gg, ok := result.(GlobalGain)
	assert.True(t, ok)
	assert.InDelta(t, 0.5, gg.Gain, 1e-6)
	for i, v := range out[0] {
		assert.InDelta(t, float64(wav[i])*0.5, float64(v), 1e-6)
	}
}

func Test_ApplyGuardClipping_reduceGlobalLevelNoOpWhenAlreadyInRange(t *testing.T) {
	wav := []float32{0.1, -0.2, 0.9}
	out, result, _ := ApplyGuardClipping([][]float32{wav}, 44100, GuardReduceGlobalLevel, DefaultLimiterParams())
	gg := result.(GlobalGain)
	assert.Equal(t, float32(1), gg.Gain)
	assert.Equal(t, wav, out[0])
}

func Test_ApplyGuardClipping_limitModeProducesGainSequenceBoundedToUnitInterval(t *testing.T) {
	wav := []float32{0.1, 2.0, -1.5, 0.2}
	out, result, _ := ApplyGuardClipping([][]float32{wav}, 44100, GuardLimit, DefaultLimiterParams())

	seq, ok := result.(GainSequence)
	assert.True(t, ok)
	assert.Len(t, seq.Gains[0], len(wav))
	for i, g := range seq.Gains[0] {
		assert.GreaterOrEqual(t, g, float32(0))
		assert.LessOrEqual(t, g, float32(1))
		assert.False(t, math.IsNaN(float64(out[0][i])))
	}
}
