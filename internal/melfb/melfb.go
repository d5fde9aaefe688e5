// Package melfb computes and caches mel filterbank matrices keyed by
// (sample rate, n_fft) (spec §4.2).
//
// The triangular filter shapes and the Slaney-style per-row normalization
// (2/(freq[i+2]-freq[i])) follow original_source/src/mel.rs, which resolves
// the ambiguity left by spec.md's high-level description ("scaled such that
// a flat power-spectrogram maps to constant energy per mel-bin").
package melfb

import (
	"sync"

	"github.com/sytronik/thesia-go/internal/coord"
)

// Key identifies a cached filterbank by sample rate and FFT size.
type Key struct {
	SR   uint32
	NFFT int
}

const defaultNMels = 80

// Cache stores mel filterbank matrices (n_mels x n_freqs) keyed by (sr, n_fft).
type Cache struct {
	mu     sync.RWMutex
	nMels  int
	byKey  map[Key][][]float32
}

// NewCache returns an empty filterbank cache producing nMels bins per
// entry. nMels <= 0 selects the engine default of 80 bins.
func NewCache(nMels int) *Cache {
	if nMels <= 0 {
		nMels = defaultNMels
	}
	return &Cache{nMels: nMels, byKey: make(map[Key][][]float32)}
}

// Get returns the cached filterbank for key, building it on miss.
func (c *Cache) Get(key Key) [][]float32 {
	c.mu.RLock()
	fb, ok := c.byKey[key]
	c.mu.RUnlock()
	if ok {
		return fb
	}
	fb = Build(key.SR, key.NFFT, c.nMels)
	c.mu.Lock()
	c.byKey[key] = fb
	c.mu.Unlock()
	return fb
}

// Prepare inserts missing entries in parallel (spec §4.2).
func (c *Cache) Prepare(keys []Key) {
	var wg sync.WaitGroup
	for _, k := range keys {
		k := k
		c.mu.RLock()
		_, ok := c.byKey[k]
		c.mu.RUnlock()
		if ok {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Get(k)
		}()
	}
	wg.Wait()
}

// Retain keeps only entries referenced by keep (spec §4.2).
func (c *Cache) Retain(keep []Key) {
	keepSet := make(map[Key]struct{}, len(keep))
	for _, k := range keep {
		keepSet[k] = struct{}{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.byKey {
		if _, ok := keepSet[k]; !ok {
			delete(c.byKey, k)
		}
	}
}

// Build constructs the (nMels x nFreqs) triangular mel filterbank for the
// given sample rate and FFT size, nFreqs = n_fft/2+1, with fmin=0 and
// fmax=sr/2.
func Build(sr uint32, nFFT, nMels int) [][]float32 {
	nFreqs := nFFT/2 + 1
	fMax := float64(sr) / 2

	fftFreqs := make([]float64, nFreqs)
	for i := range fftFreqs {
		fftFreqs[i] = float64(i) * float64(sr) / float64(nFFT)
	}

	minMel := coord.MelFromHz(0)
	maxMel := coord.MelFromHz(fMax)

	melPts := make([]float64, nMels+2)
	for i := range melPts {
		melPts[i] = minMel + (maxMel-minMel)*float64(i)/float64(nMels+1)
	}
	freqPts := make([]float64, nMels+2)
	for i, m := range melPts {
		freqPts[i] = coord.MelToHz(m)
	}

	fb := make([][]float32, nMels)
	for m := 0; m < nMels; m++ {
		row := make([]float32, nFreqs)
		left, center, right := freqPts[m], freqPts[m+1], freqPts[m+2]
		for f := 0; f < nFreqs; f++ {
			freq := fftFreqs[f]
			var v float64
			if freq >= left && freq <= center && center > left {
				v = (freq - left) / (center - left)
			} else if freq > center && freq <= right && right > center {
				v = (right - freq) / (right - center)
			}
			if v < 0 {
				v = 0
			}
			row[f] = float32(v)
		}
		enorm := float32(2.0 / (freqPts[m+2] - freqPts[m]))
		for f := range row {
			row[f] *= enorm
		}
		fb[m] = row
	}
	return fb
}
