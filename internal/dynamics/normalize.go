package dynamics

import "math"

// NormalizeKind selects the normalization target family (spec §4.4).
type NormalizeKind int

const (
	NormalizeOff NormalizeKind = iota
	NormalizeLUFS
	NormalizeRMS
	NormalizePeak
)

// Normalize is a normalization target: Off, or one of LUFS/RMS/Peak with a
// target value in dB (LUFS target is in LUFS units, same numeric space).
type Normalize struct {
	Kind   NormalizeKind
	Target float64
}

// Gain returns the single scalar gain factor to apply to original.wavs for
// the given stats, per spec §4.4 ("Applying yields a single gain factor
// applied to original.wavs (not cumulative)").
func (n Normalize) Gain(stats Stats) float64 {
	switch n.Kind {
	case NormalizeLUFS:
		if math.IsInf(stats.GlobalLUFS, -1) {
			return 1
		}
		return math.Pow(10, (n.Target-stats.GlobalLUFS)/20)
	case NormalizeRMS:
		return math.Pow(10, (n.Target-float64(stats.RMSdB))/20)
	case NormalizePeak:
		if stats.MaxPeak == 0 {
			return 1
		}
		return math.Pow(10, (n.Target-float64(stats.MaxPeakDB))/20)
	default:
		return 1
	}
}

// Apply multiplies every sample of wavs (a copy of `original`, never
// mutated in place per spec §9's "copy once from original" guidance) by
// the gain and returns the result.
func Apply(wavs [][]float32, gain float64) [][]float32 {
	out := make([][]float32, len(wavs))
	for c, ch := range wavs {
		row := make([]float32, len(ch))
		g := float32(gain)
		for i, v := range ch {
			row[i] = v * g
		}
		out[c] = row
	}
	return out
}
