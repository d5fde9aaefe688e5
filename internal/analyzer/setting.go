// Package analyzer implements spec §4.6's Spectrogram Analyzer half: it
// orchestrates the windows/filterbank/FFT caches of internal/windows,
// internal/melfb and internal/stft to turn an Audio channel into a dB
// spectrogram, keyed by SpecSetting.
package analyzer

import (
	"math"

	"github.com/sytronik/thesia-go/internal/coord"
)

// SpecSetting is spec §3's SpecSetting entity.
type SpecSetting struct {
	WinMs     float64
	TOverlap  uint32 // >= 1
	FOverlap  uint32 // >= 1
	FreqScale coord.FreqScale
}

// DefaultSpecSetting matches the engine's documented defaults.
func DefaultSpecSetting() SpecSetting {
	return SpecSetting{WinMs: 40, TOverlap: 4, FOverlap: 1, FreqScale: coord.Linear}
}

// Derived holds the per-sample-rate values computed from a SpecSetting
// (spec §3: "hop = round(sr·win_ms/1000 / t_overlap), win_length =
// hop·t_overlap, n_fft = nextPow2(win_length)·f_overlap").
type Derived struct {
	SR        uint32
	Hop       int
	WinLength int
	NFFT      int
}

// Derive computes hop/win_length/n_fft for sr under setting.
func (s SpecSetting) Derive(sr uint32) Derived {
	hop := int(math.Round(float64(sr) * s.WinMs / 1000 / float64(s.TOverlap)))
	if hop < 1 {
		hop = 1
	}
	winLength := hop * int(s.TOverlap)
	nFFT := nextPow2(winLength) * int(s.FOverlap)
	return Derived{SR: sr, Hop: hop, WinLength: winLength, NFFT: nFFT}
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
