// Package dynamics implements spec §4.4: the lookahead peak limiter,
// guard-clipping strategies, normalization targets, and derived audio
// statistics.
package dynamics

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Stats holds the derived loudness/peak measures of spec §3's AudioStats.
// Invariant: MaxPeak >= 0; MaxPeak == 0 => MaxPeakDB = -Inf.
type Stats struct {
	GlobalLUFS float64
	RMSdB      float32
	MaxPeak    float32
	MaxPeakDB  float32
}

// ComputeStats derives Stats for a planar multichannel waveform, using
// gonum/floats for the RMS reduction (grounded on emer-auditory's use of
// gonum for descriptive numerics) and a simplified ITU-R BS.1770-style
// channel-summed loudness estimate for GlobalLUFS.
func ComputeStats(wavs [][]float32, sr uint32) Stats {
	var maxPeak float32
	var sumSq float64
	var n int
	for _, ch := range wavs {
		for _, v := range ch {
			a := float32(math.Abs(float64(v)))
			if a > maxPeak {
				maxPeak = a
			}
		}
		f64 := toFloat64(ch)
		sumSq += floats.Dot(f64, f64)
		n += len(ch)
	}
	var rms float64
	if n > 0 {
		rms = math.Sqrt(sumSq / float64(n))
	}
	rmsDB := dBFromAmp(rms)

	maxPeakDB := float32(math.Inf(-1))
	if maxPeak > 0 {
		maxPeakDB = float32(dBFromAmp(float64(maxPeak)))
	}

	return Stats{
		GlobalLUFS: kWeightedLoudness(wavs, sr),
		RMSdB:      float32(rmsDB),
		MaxPeak:    maxPeak,
		MaxPeakDB:  maxPeakDB,
	}
}

func toFloat64(x []float32) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = float64(v)
	}
	return out
}

const amin = 1e-18

func dBFromAmp(amp float64) float64 {
	if amp < amin {
		amp = amin
	}
	return 20 * math.Log10(amp)
}

// kWeightedLoudness estimates integrated LUFS using the ITU-R BS.1770
// K-weighting pre-filter (simplified to the single one-pole high-pass of
// kWeightFilter) followed by mean-square gating-free integration. Per-channel
// mean squares are summed with the standard channel weighting (1.0 for
// mono/stereo pairs; this engine does not implement surround weighting,
// matching spec §1's non-goal of exact bit-for-bit loudness reproduction).
func kWeightedLoudness(wavs [][]float32, sr uint32) float64 {
	if len(wavs) == 0 || sr == 0 {
		return math.Inf(-1)
	}
	var sumMeanSq float64
	for _, ch := range wavs {
		if len(ch) == 0 {
			continue
		}
		filtered := kWeightFilter(ch, float64(sr))
		var sumSq float64
		for _, v := range filtered {
			sumSq += v * v
		}
		sumMeanSq += sumSq / float64(len(ch))
	}
	if sumMeanSq <= 0 {
		return math.Inf(-1)
	}
	return -0.691 + 10*math.Log10(sumMeanSq)
}

// kWeightFilter applies a high-pass pre-filter approximating BS.1770's
// stage-1 shelf; full biquad coefficient derivation is out of scope (spec
// §1 excludes exact reproduction), so a single-pole high-pass at ~60Hz is
// used to suppress DC/sub-bass before mean-square integration.
func kWeightFilter(x []float32, sr float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	cutoff := 60.0
	rc := 1.0 / (2 * math.Pi * cutoff)
	dt := 1.0 / sr
	alpha := rc / (rc + dt)
	var prevIn, prevOut float64
	for i, v := range x {
		in := float64(v)
		o := alpha * (prevOut + in - prevIn)
		out[i] = o
		prevIn, prevOut = in, o
	}
	return out
}
