package dynamics

import "math"

// GuardClipMode selects the guard-clipping strategy (spec §4.4).
type GuardClipMode int

const (
	GuardClip GuardClipMode = iota
	GuardReduceGlobalLevel
	GuardLimit
)

// GuardClippingResult is the tagged union of spec §3: what had to be done
// to keep samples in [-1, 1]. Exactly one concrete type is produced per
// Apply call.
type GuardClippingResult interface {
	isGuardClippingResult()
}

// WavBeforeClip records the pre-clamp samples for the Clip strategy.
type WavBeforeClip struct{ Wavs [][]float32 }

func (WavBeforeClip) isGuardClippingResult() {}

// GlobalGain records the single scalar gain applied for ReduceGlobalLevel,
// plus the channel/sample shape it was applied across (for overview
// rendering, which only needs the scalar but spec §3 keeps the shape for
// symmetry with GainSequence).
type GlobalGain struct {
	Gain      float32
	NChannels int
	NSamples  int
}

func (GlobalGain) isGuardClippingResult() {}

// GainSequence records the per-sample gain applied by the Limit strategy,
// one row per channel.
type GainSequence struct{ Gains [][]float32 }

func (GainSequence) isGuardClippingResult() {}

// GuardClippingStats holds per-channel guard-clipping statistics (spec §3).
type GuardClippingStats struct {
	MaxReductionGainDB float32
	ReductionCount      int
}

// ApplyGuardClipping applies mode to wavs (already gain-adjusted by
// Normalize), returning the mutated-into-range copy, the tagged result,
// and per-channel stats. wavs is never mutated in place; a fresh copy is
// produced and returned (spec §9).
func ApplyGuardClipping(wavs [][]float32, sr uint32, mode GuardClipMode, limiterParams LimiterParams) ([][]float32, GuardClippingResult, []GuardClippingStats) {
	switch mode {
	case GuardReduceGlobalLevel:
		return applyReduceGlobalLevel(wavs)
	case GuardLimit:
		return applyLimit(wavs, sr, limiterParams)
	default:
		return applyClip(wavs)
	}
}

func applyClip(wavs [][]float32) ([][]float32, GuardClippingResult, []GuardClippingStats) {
	before := make([][]float32, len(wavs))
	out := make([][]float32, len(wavs))
	stats := make([]GuardClippingStats, len(wavs))
	for c, ch := range wavs {
		beforeRow := make([]float32, len(ch))
		copy(beforeRow, ch)
		before[c] = beforeRow

		outRow := make([]float32, len(ch))
		var maxReductionDB float32
		var reductionCount int
		var maxAbs float32
		for i, v := range ch {
			a := float32(math.Abs(float64(v)))
			if a > maxAbs {
				maxAbs = a
			}
			clamped := v
			if clamped > 1 {
				clamped = 1
			} else if clamped < -1 {
				clamped = -1
			}
			if clamped != v {
				reductionCount++
			}
			outRow[i] = clamped
		}
		if maxAbs > 1 {
			maxReductionDB = float32(20 * math.Log10(1/float64(maxAbs)))
		}
		out[c] = outRow
		stats[c] = GuardClippingStats{MaxReductionGainDB: maxReductionDB, ReductionCount: reductionCount}
	}
	return out, WavBeforeClip{Wavs: before}, stats
}

func applyReduceGlobalLevel(wavs [][]float32) ([][]float32, GuardClippingResult, []GuardClippingStats) {
	var maxPeak float32
	total := 0
	for _, ch := range wavs {
		total += len(ch)
		for _, v := range ch {
			a := float32(math.Abs(float64(v)))
			if a > maxPeak {
				maxPeak = a
			}
		}
	}
	gain := float32(1)
	if maxPeak > 1 {
		gain = 1 / maxPeak
	}
	out := make([][]float32, len(wavs))
	stats := make([]GuardClippingStats, len(wavs))
	reductionDB := float32(0)
	if gain < 1 {
		reductionDB = float32(20 * math.Log10(float64(gain)))
	}
	for c, ch := range wavs {
		row := make([]float32, len(ch))
		reductionCount := 0
		for i, v := range ch {
			row[i] = v * gain
			if gain < 1 {
				reductionCount++
			}
		}
		out[c] = row
		stats[c] = GuardClippingStats{MaxReductionGainDB: reductionDB, ReductionCount: reductionCount}
	}
	return out, GlobalGain{Gain: gain, NChannels: len(wavs), NSamples: total / maxLen(len(wavs), 1)}, stats
}

func maxLen(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func applyLimit(wavs [][]float32, sr uint32, params LimiterParams) ([][]float32, GuardClippingResult, []GuardClippingStats) {
	out := make([][]float32, len(wavs))
	gains := make([][]float32, len(wavs))
	stats := make([]GuardClippingStats, len(wavs))
	for c, ch := range wavs {
		row := make([]float32, len(ch))
		copy(row, ch)
		limiter := NewPerfectLimiter(sr, params)
		gainSeq := limiter.ProcessInplace(row)
		out[c] = row
		gains[c] = gainSeq

		var minGain float32 = 1
		reductionCount := 0
		for _, g := range gainSeq {
			if g < minGain {
				minGain = g
			}
			if g < 1 {
				reductionCount++
			}
		}
		maxReductionDB := float32(0)
		if minGain < 1 && minGain > 0 {
			maxReductionDB = float32(20 * math.Log10(float64(minGain)))
		}
		stats[c] = GuardClippingStats{MaxReductionGainDB: maxReductionDB, ReductionCount: reductionCount}
	}
	return out, GainSequence{Gains: gains}, stats
}
