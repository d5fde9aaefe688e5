package analyzer

import (
	"runtime"
	"sync"

	"github.com/sytronik/thesia-go/internal/coord"
	"github.com/sytronik/thesia-go/internal/melfb"
	"github.com/sytronik/thesia-go/internal/stft"
	"github.com/sytronik/thesia-go/internal/track"
	"github.com/sytronik/thesia-go/internal/windows"
)

// Analyzer owns the three keyed caches of spec §4.2 (windows, mel
// filterbanks, FFT plans) and turns raw channel samples into dB spectra
// (spec §4.3 steps 3-7).
type Analyzer struct {
	Windows *windows.Cache
	MelFbs  *melfb.Cache
	Ffts    *stft.PlanCache
}

// NewAnalyzer returns an Analyzer with empty caches. nMels <= 0 selects
// internal/melfb's default bin count.
func NewAnalyzer(nMels int) *Analyzer {
	return &Analyzer{
		Windows: windows.NewCache(),
		MelFbs:  melfb.NewCache(nMels),
		Ffts:    stft.NewPlanCache(),
	}
}

// Prepare inserts any missing cache entries for the given (sr, win_length,
// n_fft) tuples and freq scale, in parallel (spec §4.2/§4.5
// construct_sr_win_nfft_set feeds this).
func (a *Analyzer) Prepare(keys []track.SrWinNfft, freqScale coord.FreqScale) {
	winKeys := make([]windows.Key, len(keys))
	fftSizes := make([]int, len(keys))
	var melKeys []melfb.Key
	for i, k := range keys {
		winKeys[i] = windows.Key{WinLength: k.WinLength, NFFT: k.NFFT}
		fftSizes[i] = k.NFFT
		if freqScale == coord.Mel {
			melKeys = append(melKeys, melfb.Key{SR: k.SR, NFFT: k.NFFT})
		}
	}
	a.Windows.Prepare(winKeys)
	a.Ffts.Prepare(fftSizes)
	if len(melKeys) > 0 {
		a.MelFbs.Prepare(melKeys)
	}
}

// Retain keeps only cache entries referenced by keys (spec §4.2).
func (a *Analyzer) Retain(keys []track.SrWinNfft, freqScale coord.FreqScale) {
	winKeys := make([]windows.Key, len(keys))
	fftSizes := make([]int, len(keys))
	var melKeys []melfb.Key
	for i, k := range keys {
		winKeys[i] = windows.Key{WinLength: k.WinLength, NFFT: k.NFFT}
		fftSizes[i] = k.NFFT
		if freqScale == coord.Mel {
			melKeys = append(melKeys, melfb.Key{SR: k.SR, NFFT: k.NFFT})
		}
	}
	a.Windows.Retain(winKeys)
	a.Ffts.Retain(fftSizes)
	a.MelFbs.Retain(melKeys)
}

// ComputeSpec runs spec §4.3 steps 2-7 on a single channel's samples,
// producing a dB spectrogram of shape [n_frames][n_freqs_or_mels].
// workers bounds frame-level parallelism within this single call.
func (a *Analyzer) ComputeSpec(samples []float32, sr uint32, setting SpecSetting, workers int) [][]float32 {
	d := setting.Derive(sr)
	window := a.Windows.Get(windows.Key{WinLength: d.WinLength, NFFT: d.NFFT})
	spec := stft.Magnitude(samples, d.WinLength, d.Hop, d.NFFT, window, workers)
	if setting.FreqScale == coord.Mel {
		fb := a.MelFbs.Get(melfb.Key{SR: sr, NFFT: d.NFFT})
		spec = projectMel(spec, fb)
	}
	stft.DBFromAmp(spec)
	return spec
}

// ComputeSpecs runs ComputeSpec across several (samples, sr) pairs. Per
// spec §4.3's parallelism rule ("fewer requested specs than worker
// threads ⇒ parallelize inner loops"): when there are at least as many
// jobs as GOMAXPROCS, jobs run in parallel with sequential inner frame
// loops; otherwise each job's frames are parallelized instead.
func (a *Analyzer) ComputeSpecs(samples [][]float32, srs []uint32, setting SpecSetting) [][][]float32 {
	n := len(samples)
	out := make([][][]float32, n)
	procs := runtime.GOMAXPROCS(0)
	if procs < 1 {
		procs = 1
	}

	if n >= procs {
		sem := make(chan struct{}, procs)
		var wg sync.WaitGroup
		for i := range samples {
			i := i
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				out[i] = a.ComputeSpec(samples[i], srs[i], setting, 1)
			}()
		}
		wg.Wait()
		return out
	}

	for i := range samples {
		out[i] = a.ComputeSpec(samples[i], srs[i], setting, procs)
	}
	return out
}

// projectMel applies spec §4.3 step 6: magnitude · MelFb[sr, n_fft].
func projectMel(spec [][]float32, fb [][]float32) [][]float32 {
	nMels := len(fb)
	out := make([][]float32, len(spec))
	for t, row := range spec {
		melRow := make([]float32, nMels)
		for m, filt := range fb {
			var sum float32
			for f, v := range filt {
				if v != 0 {
					sum += v * row[f]
				}
			}
			melRow[m] = sum
		}
		out[t] = melRow
	}
	return out
}
