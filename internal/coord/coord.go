// Package coord implements the coordinate/unit helpers and FreqScale
// abstraction of spec §4.13: hz<->position mapping, the mel scale, and
// id_ch_key parsing (spec §6.3).
package coord

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FreqScale selects how frequency maps to a normalized axis position.
type FreqScale int

const (
	Linear FreqScale = iota
	Mel
)

// Mel-scale constants, taken from original_source/src/mel.rs to resolve
// spec §4.13's formula (MEL_KNEE, MIN_LOG_MEL, MEL_LOGSTEP).
const (
	MelKnee       = 1000.0            // Hz
	MinLogMel     = 15.0               // mel value at MelKnee
	MelLogStep    = 0.06875177742094912 // ln(6.4)/27
	melLinearRate = 200.0 / 3.0        // hz per mel below the knee
)

// MelFromHz converts Hz to the mel scale used throughout this engine.
func MelFromHz(hz float64) float64 {
	if hz < MelKnee {
		return hz / melLinearRate
	}
	return MinLogMel + math.Log(hz/MelKnee)/MelLogStep
}

// MelToHz is the inverse of MelFromHz.
func MelToHz(mel float64) float64 {
	if mel < MinLogMel {
		return melLinearRate * mel
	}
	return MelKnee * math.Exp(MelLogStep*(mel-MinLogMel))
}

// MelDiff2k1k is mel(2000) - mel(1000), used by the frequency axis marker
// generator to pick an octave step ratio above the knee.
func MelDiff2k1k() float64 {
	return MelFromHz(2000) - MelFromHz(1000)
}

// scale applies the scale's forward transform (Hz -> scale unit).
func (s FreqScale) scale(hz float64) float64 {
	if s == Mel {
		return MelFromHz(hz)
	}
	return hz
}

// unscale applies the scale's inverse transform (scale unit -> Hz).
func (s FreqScale) unscale(v float64) float64 {
	if s == Mel {
		return MelToHz(v)
	}
	return v
}

// RelativeFreqToHz maps a normalized position rel in [0,1] (0 = lo, 1 = hi)
// to Hz under this scale.
func (s FreqScale) RelativeFreqToHz(rel float64, lo, hi float64) float64 {
	loS, hiS := s.scale(lo), s.scale(hi)
	return s.unscale(rel*(hiS-loS) + loS)
}

// HzToRelativeFreq is the inverse of RelativeFreqToHz.
func (s FreqScale) HzToRelativeFreq(hz float64, lo, hi float64) float64 {
	loS, hiS := s.scale(lo), s.scale(hi)
	if hiS == loS {
		return 0
	}
	return (s.scale(hz) - loS) / (hiS - loS)
}

// HzRangeToIdx returns the half-open index range [lo, hi) into an n-bin
// axis spanning [0, nyquist] under this scale, per spec §4.13.
func (s FreqScale) HzRangeToIdx(loHz, hiHz float64, nyquist float64, n int) (lo, hi int) {
	clamp := func(i int) int {
		if i < 0 {
			return 0
		}
		if i > n {
			return n
		}
		return i
	}
	full := s.scale(nyquist)
	if full == 0 {
		return 0, 0
	}
	loRatio := s.scale(loHz) / full
	hiRatio := s.scale(hiHz) / full
	lo = clamp(int(math.Floor(loRatio * float64(n))))
	hi = clamp(int(math.Ceil(hiRatio * float64(n))))
	return lo, hi
}

// IDChKey formats the (trackID, channel) pair as spec §6.3's "{id}_{ch}" key.
func IDChKey(id, ch int) string {
	return fmt.Sprintf("%d_%d", id, ch)
}

// ParseIDChKey parses an "{id}_{ch}" key. Parse failure is a hard error to
// the UI per spec §6.3.
func ParseIDChKey(key string) (id, ch int, err error) {
	parts := strings.SplitN(key, "_", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("id_ch_key %q: expected \"id_ch\" format", key)
	}
	id, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("id_ch_key %q: invalid id: %w", key, err)
	}
	ch, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("id_ch_key %q: invalid channel: %w", key, err)
	}
	return id, ch, nil
}

// TimeLabelToSeconds parses "HH:MM:SS[.xxx]" or bare seconds, returning NaN
// on failure (spec §4.10).
func TimeLabelToSeconds(label string) float64 {
	label = strings.TrimSpace(label)
	if label == "" {
		return math.NaN()
	}
	parts := strings.Split(label, ":")
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return math.NaN()
		}
		total = total*60 + v
	}
	return total
}

// FreqLabelToHz parses "1.5k", "1k5", "1500" and returns NaN on failure
// (spec §4.10).
func FreqLabelToHz(label string) float64 {
	label = strings.TrimSpace(strings.ToLower(label))
	if label == "" {
		return math.NaN()
	}
	if !strings.Contains(label, "k") {
		v, err := strconv.ParseFloat(label, 64)
		if err != nil {
			return math.NaN()
		}
		return v
	}
	idx := strings.IndexByte(label, 'k')
	intPart := label[:idx]
	fracPart := label[idx+1:]
	base, err := strconv.ParseFloat(intPart, 64)
	if err != nil {
		return math.NaN()
	}
	if fracPart == "" {
		return base * 1000
	}
	// "1k5" means 1500: the digits after 'k' are tenths-of-a-thousand.
	frac, err := strconv.ParseFloat("0."+fracPart, 64)
	if err != nil {
		return math.NaN()
	}
	return base*1000 + frac*1000
}
