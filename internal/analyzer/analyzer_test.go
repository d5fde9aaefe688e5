package analyzer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sytronik/thesia-go/internal/coord"
	"github.com/sytronik/thesia-go/internal/track"
)

func sineSamples(n int, sr uint32, freq float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / float64(sr)))
	}
	return out
}

func Test_ComputeSpec_linearShapeMatchesDerivedFrameAndFreqCount(t *testing.T) {
	a := NewAnalyzer(0)
	sr := uint32(16000)
	setting := SpecSetting{WinMs: 40, TOverlap: 4, FOverlap: 1, FreqScale: coord.Linear}
	d := setting.Derive(sr)
	samples := sineSamples(sr, sr, 440)

	spec := a.ComputeSpec(samples, sr, setting, 2)

	padLen := len(samples) + 2*(d.WinLength/2)
	expectedFrames := (padLen-d.WinLength)/d.Hop + 1
	assert.Equal(t, expectedFrames, len(spec))
	for _, row := range spec {
		assert.Len(t, row, d.NFFT/2+1)
	}
}

func Test_ComputeSpec_melShapeHasNMelsColumns(t *testing.T) {
	a := NewAnalyzer(32)
	sr := uint32(16000)
	setting := SpecSetting{WinMs: 40, TOverlap: 4, FOverlap: 1, FreqScale: coord.Mel}
	samples := sineSamples(sr, sr, 440)

	spec := a.ComputeSpec(samples, sr, setting, 1)

	assert.NotEmpty(t, spec)
	for _, row := range spec {
		assert.Len(t, row, 32)
	}
}

func Test_ComputeSpec_valuesAreFiniteDB(t *testing.T) {
	a := NewAnalyzer(0)
	sr := uint32(8000)
	setting := DefaultSpecSetting()
	samples := sineSamples(sr/2, sr, 220)

	spec := a.ComputeSpec(samples, sr, setting, 1)
	for _, row := range spec {
		for _, v := range row {
			assert.False(t, math.IsNaN(float64(v)))
			assert.False(t, math.IsInf(float64(v), 1))
		}
	}
}

func Test_ComputeSpecs_fewJobsMatchesDirectComputeSpec(t *testing.T) {
	a := NewAnalyzer(0)
	sr := uint32(8000)
	setting := DefaultSpecSetting()
	samples := [][]float32{sineSamples(4000, sr, 300)}
	srs := []uint32{sr}

	got := a.ComputeSpecs(samples, srs, setting)
	want := a.ComputeSpec(samples[0], sr, setting, 1)

	require := assert.New(t)
	require.Len(got, 1)
	require.Equal(len(want), len(got[0]))
	for i := range want {
		require.InDeltaSlice(t2Floats(want[i]), t2Floats(got[0][i]), 1e-3)
	}
}

func Test_ComputeSpecs_manyJobsAgreeWithSequentialComputation(t *testing.T) {
	a := NewAnalyzer(0)
	sr := uint32(8000)
	setting := DefaultSpecSetting()

	n := 64 // force n >= GOMAXPROCS parallel path
	samples := make([][]float32, n)
	srs := make([]uint32, n)
	for i := range samples {
		samples[i] = sineSamples(2000, sr, 200+float64(i))
		srs[i] = sr
	}

	got := a.ComputeSpecs(samples, srs, setting)
	assert.Len(t, got, n)
	for i := range samples {
		want := a.ComputeSpec(samples[i], sr, setting, 1)
		assert.Equal(t, len(want), len(got[i]))
	}
}

func Test_Prepare_thenComputeSpec_doesNotPanicOnPrewarmedCaches(t *testing.T) {
	a := NewAnalyzer(0)
	sr := uint32(16000)
	setting := SpecSetting{WinMs: 40, TOverlap: 4, FOverlap: 1, FreqScale: coord.Mel}
	d := setting.Derive(sr)

	keys := []track.SrWinNfft{{SR: sr, WinLength: d.WinLength, NFFT: d.NFFT}}
	a.Prepare(keys, coord.Mel)

	samples := sineSamples(sr, sr, 440)
	assert.NotPanics(t, func() {
		a.ComputeSpec(samples, sr, setting, 1)
	})
}

func Test_Retain_prunesUnreferencedCacheEntries(t *testing.T) {
	a := NewAnalyzer(0)
	sr1, sr2 := uint32(16000), uint32(44100)
	setting := SpecSetting{WinMs: 40, TOverlap: 4, FOverlap: 1, FreqScale: coord.Mel}
	d1 := setting.Derive(sr1)
	d2 := setting.Derive(sr2)

	keys := []track.SrWinNfft{
		{SR: sr1, WinLength: d1.WinLength, NFFT: d1.NFFT},
		{SR: sr2, WinLength: d2.WinLength, NFFT: d2.NFFT},
	}
	a.Prepare(keys, coord.Mel)

	a.Retain(keys[:1], coord.Mel)

	assert.NotPanics(t, func() {
		a.ComputeSpec(sineSamples(sr1, sr1, 440), sr1, setting, 1)
	})
}

func Test_projectMel_sumsWeightedMagnitudesPerFilter(t *testing.T) {
	spec := [][]float32{{1, 2, 3, 4}}
	fb := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 1, 0},
	}
	out := projectMel(spec, fb)
	assert.Len(t, out, 1)
	assert.InDeltaSlice(t, []float64{1, 5}, t2Floats(out[0]), 1e-9)
}

func t2Floats(row []float32) []float64 {
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = float64(v)
	}
	return out
}
