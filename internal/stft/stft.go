// Package stft implements short-time Fourier transform framing (spec §4.3):
// reflect-padded framing, windowing, real FFT, and magnitude extraction.
package stft

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
)

// PlanCache amortizes repeated FFT setup per n_fft size (spec §4.2's
// FftPlans[n_fft] cache). github.com/mjibson/go-dsp/fft has no explicit
// plan object to precompute (unlike FFTW-style libraries); the cache here
// instead records which sizes are "prepared" so Prepare/Retain have the
// same externally observable semantics as the window and filterbank
// caches, and so a future FFT backend swap has a single seam to change.
type PlanCache struct {
	mu       sync.RWMutex
	prepared map[int]struct{}
}

// NewPlanCache returns an empty FFT plan cache.
func NewPlanCache() *PlanCache {
	return &PlanCache{prepared: make(map[int]struct{})}
}

// Prepare marks the given n_fft sizes as ready to use.
func (p *PlanCache) Prepare(sizes []int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range sizes {
		p.prepared[n] = struct{}{}
	}
}

// Retain keeps only the sizes in keep.
func (p *PlanCache) Retain(keep []int) {
	keepSet := make(map[int]struct{}, len(keep))
	for _, n := range keep {
		keepSet[n] = struct{}{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for n := range p.prepared {
		if _, ok := keepSet[n]; !ok {
			delete(p.prepared, n)
		}
	}
}

// ReflectPad pads x by pad samples on each side using reflection about the
// edge samples (excluding the edge sample itself), matching librosa-style
// "reflect" padding used by the original analyzer. For len(x)==1, every
// reflected sample equals x[0] (spec §9 open question: treat length-1
// uniformly).
func ReflectPad(x []float32, pad int) []float32 {
	n := len(x)
	out := make([]float32, n+2*pad)
	for i := 0; i < pad; i++ {
		out[pad-1-i] = reflectAt(x, i+1)
		out[pad+n+i] = reflectAt(x, n-2-i)
	}
	copy(out[pad:pad+n], x)
	return out
}

func reflectAt(x []float32, i int) float32 {
	n := len(x)
	if n == 1 {
		return x[0]
	}
	period := 2 * (n - 1)
	if period == 0 {
		return x[0]
	}
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return x[i]
}

// NumFrames returns the number of STFT frames produced from a padded
// signal of length nPadded, given winLength and hop.
func NumFrames(nPadded, winLength, hop int) int {
	if nPadded < winLength {
		return 0
	}
	return (nPadded-winLength)/hop + 1
}

// Magnitude computes the magnitude STFT of x (spec §4.3 steps 1-5):
// reflect-pad by winLength/2, frame in steps of hop, apply window
// (pre-normalized, already zero-padded to nFFT by the caller), real FFT,
// and take |.|. The result has shape [nFrames][nFFT/2+1].
//
// workers bounds the number of goroutines used to process frames within
// this single call; pass 1 to force sequential processing (spec §4.3:
// "frames within a track run sequentially while tracks run in parallel"
// when there are more tracks than worker threads).
func Magnitude(x []float32, winLength, hop, nFFT int, window []float32, workers int) [][]float32 {
	padded := ReflectPad(x, winLength/2)
	nFrames := NumFrames(len(padded), winLength, hop)
	nFreqs := nFFT/2 + 1
	out := make([][]float32, nFrames)
	if workers < 1 {
		workers = 1
	}

	padLeft := (nFFT - winLength) / 2

	frame := func(t int) {
		start := t * hop
		buf := make([]float64, nFFT)
		for i := 0; i < winLength && start+i < len(padded); i++ {
			buf[padLeft+i] = float64(padded[start+i]) * float64(window[padLeft+i])
		}
		spec := fft.FFTReal(buf)
		row := make([]float32, nFreqs)
		for k := 0; k < nFreqs; k++ {
			row[k] = float32(cmplx.Abs(spec[k]))
		}
		out[t] = row
	}

	if workers == 1 || nFrames <= 1 {
		for t := 0; t < nFrames; t++ {
			frame(t)
		}
		return out
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for t := 0; t < nFrames; t++ {
		t := t
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			frame(t)
		}()
	}
	wg.Wait()
	return out
}

const amin = 1e-18

// DBFromAmp applies spec §4.3 step 7 in place: 20*log10(max(x, AMIN)).
func DBFromAmp(spec [][]float32) {
	floor := float32(20 * math.Log10(amin))
	for _, row := range spec {
		for i, v := range row {
			if v < amin {
				row[i] = floor
				continue
			}
			row[i] = float32(20 * math.Log10(float64(v)))
		}
	}
}
