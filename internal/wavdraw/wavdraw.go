// Package wavdraw implements spec §4.8: decimating or upsampling a 1-D
// waveform slice into a WavDrawingInfoInternal suitable for pixel-accurate
// drawing, in relative [0,1] coordinates.
package wavdraw

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Info tags the concrete drawing-info variant (spec §3's tagged union,
// expressed as a Go interface with private marker methods).
type Info interface{ isWavDrawingInfo() }

// FillRect is emitted when the amp range is effectively zero-width.
type FillRect struct{}

func (FillRect) isWavDrawingInfo() {}

// Line is a per-pixel y-value polyline (upsampled case, or the
// low-mean-crossing decimated case).
type Line struct {
	Ys          []float32
	ClipValues  []float32 // optional; nil if show_clipping is false
}

func (Line) isWavDrawingInfo() {}

// TopBottomEnvelope is a pair of per-pixel top/bottom y-value polylines
// (the high-mean-crossing decimated case).
type TopBottomEnvelope struct {
	Top, Bottom []float32
	ClipValues  []float32
}

func (TopBottomEnvelope) isWavDrawingInfo() {}

// Options bundles spec §4.8's per-call parameters.
type Options struct {
	WidthPx            int
	HeightPx           int
	AmpLo, AmpHi       float32
	LineWidthPx        float32
	TopBottomContextPx int
	ShowClipping       bool
}

// clipLevels is the symmetric [-1, 1] band drawn when ShowClipping is set.
func clipLevels(o Options) []float32 {
	if !o.ShowClipping {
		return nil
	}
	return []float32{yOf(1, o.AmpLo, o.AmpHi), yOf(-1, o.AmpLo, o.AmpHi)}
}

// yOf implements spec §4.8's coordinate convention:
// y(amp) = (amp_range.1 - amp) / (amp_range.1 - amp_range.0).
func yOf(amp, lo, hi float32) float32 {
	span := hi - lo
	if span == 0 {
		return 0
	}
	return (hi - amp) / span
}

// Build implements spec §4.8's full algorithm.
func Build(samples []float32, o Options) Info {
	if o.AmpHi-o.AmpLo < 1e-16 {
		return FillRect{}
	}
	if len(samples) == 0 || o.WidthPx <= 0 {
		return Line{}
	}

	pxPerSample := float64(o.WidthPx) / float64(len(samples))
	quantized := quantizeRatio(pxPerSample)

	if quantized > 0.5 {
		return buildUpsampled(samples, o, quantized)
	}
	return buildDecimated(samples, o)
}

// quantizeRatio implements spec §4.8's quantization rule:
// >0.75 -> round to integer; (0.5, 0.75] -> 0.75; else 1/round(1/ratio).
func quantizeRatio(ratio float64) float64 {
	switch {
	case ratio > 0.75:
		return math.Round(ratio)
	case ratio > 0.5:
		return 0.75
	default:
		inv := math.Round(1 / ratio)
		if inv < 1 {
			inv = 1
		}
		return 1 / inv
	}
}

// buildUpsampled FFT-resamples samples to o.WidthPx points. A short tail
// context of up to 500 samples, mirrored past the end of the window, is
// appended before the FFT so its resampled spectrum doesn't wrap the
// window's trailing edge back onto its start; the context's own resampled
// points are then discarded, leaving exactly o.WidthPx output pixels.
func buildUpsampled(samples []float32, o Options, ratio float64) Info {
	const contextSamples = 500
	n := len(samples)
	if n == 0 {
		return Line{}
	}
	ctx := contextSamples
	if ctx > n-1 {
		ctx = n - 1
	}
	if ctx < 0 {
		ctx = 0
	}
	withTail := padTail(samples, ctx)

	padded := make([]float64, len(withTail))
	for i, v := range withTail {
		padded[i] = float64(v)
	}
	spec := fft.FFTReal(padded)

	paddedTargetN := int(math.Round(float64(o.WidthPx) * float64(len(withTail)) / float64(n)))
	if paddedTargetN < o.WidthPx {
		paddedTargetN = o.WidthPx
	}
	resampled := resampleViaFFT(spec, len(withTail), paddedTargetN)

	ys := make([]float32, o.WidthPx)
	for i := 0; i < o.WidthPx && i < len(resampled); i++ {
		ys[i] = yOf(float32(resampled[i]), o.AmpLo, o.AmpHi)
	}
	return Line{Ys: ys, ClipValues: clipLevels(o)}
}

// padTail appends pad samples mirrored off the end of x (x[n-2], x[n-3],
// ...), matching internal/stft.ReflectPad's reflection convention but on
// one side only.
func padTail(x []float32, pad int) []float32 {
	n := len(x)
	out := make([]float32, n+pad)
	copy(out, x)
	for i := 0; i < pad; i++ {
		idx := n - 2 - i
		if idx < 0 {
			idx = 0
		}
		out[n+i] = x[idx]
	}
	return out
}

// resampleViaFFT changes an n-point real spectrum's implied time-domain
// signal to targetN points by zero-padding/truncating the frequency
// buckets then taking the inverse FFT, a standard band-limited resample.
func resampleViaFFT(spec []complex128, n, targetN int) []float64 {
	if targetN <= 0 {
		return nil
	}
	newSpec := make([]complex128, targetN)
	half := n / 2
	copyLen := half
	if copyLen > targetN/2 {
		copyLen = targetN / 2
	}
	for k := 0; k <= copyLen && k < len(spec); k++ {
		newSpec[k] = spec[k]
		if k > 0 && targetN-k < targetN {
			newSpec[(targetN-k)%targetN] = cmplx.Conj(spec[k])
		}
	}
	timeDomain := fft.IFFT(newSpec)
	scale := float64(targetN) / float64(n)
	out := make([]float64, targetN)
	for i, c := range timeDomain {
		out[i] = real(c) * scale
	}
	return out
}

// buildDecimated implements spec §4.8's decimating branch: per-pixel
// top/bottom from a context window, with a mean-crossing heuristic that
// chooses between Line and TopBottomEnvelope.
func buildDecimated(samples []float32, o Options) Info {
	n := len(samples)
	ctx := o.TopBottomContextPx
	if ctx < 1 {
		ctx = 1
	}
	lineThickness := o.LineWidthPx / float32(o.HeightPx)

	tops := make([]float32, o.WidthPx)
	bottoms := make([]float32, o.WidthPx)
	meanCrossCount := 0

	for px := 0; px < o.WidthPx; px++ {
		center := int(float64(px) * float64(n) / float64(o.WidthPx))
		start := center - ctx/2
		end := center + ctx/2
		if start < 0 {
			start = 0
		}
		if end > n {
			end = n
		}
		if start >= end {
			if start < n {
				end = start + 1
			} else {
				start, end = n-1, n
			}
		}

		var top, bottom float32 = -2, 2
		var sum float32
		count := 0
		for i := start; i < end; i++ {
			v := samples[i]
			if v > top {
				top = v
			}
			if v < bottom {
				bottom = v
			}
			sum += v
			count++
		}
		if count == 0 {
			top, bottom = 0, 0
		} else {
			mean := sum / float32(count)
			if (top-bottom) < lineThickness*(o.AmpHi-o.AmpLo)*2 && abs32(mean) < lineThickness {
				meanCrossCount++
			}
		}
		tops[px] = yOf(top, o.AmpLo, o.AmpHi)
		bottoms[px] = yOf(bottom, o.AmpLo, o.AmpHi)
	}

	crossRatio := float64(meanCrossCount) / float64(o.WidthPx)
	if crossRatio > 0.7 {
		return TopBottomEnvelope{Top: tops, Bottom: bottoms, ClipValues: clipLevels(o)}
	}

	ys := make([]float32, o.WidthPx)
	for i := range ys {
		ys[i] = (tops[i] + bottoms[i]) / 2
	}
	return Line{Ys: ys, ClipValues: clipLevels(o)}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// ConvertAmpRange re-expresses a cached Info under a new amp range,
// collapsing segments thinner than line_width/height to a fixed zero-line
// band (spec §4.8).
func ConvertAmpRange(info Info, oldLo, oldHi, newLo, newHi, lineWidthPx float32, heightPx int) Info {
	toAmp := func(y float32) float32 { return oldHi - y*(oldHi-oldLo) }
	remap := func(y float32) float32 { return yOf(toAmp(y), newLo, newHi) }
	thinBand := lineWidthPx / float32(heightPx)

	switch v := info.(type) {
	case FillRect:
		return v
	case Line:
		ys := make([]float32, len(v.Ys))
		for i, y := range v.Ys {
			ys[i] = remap(y)
		}
		return Line{Ys: ys, ClipValues: remapClip(v.ClipValues, remap)}
	case TopBottomEnvelope:
		top := make([]float32, len(v.Top))
		bottom := make([]float32, len(v.Bottom))
		for i := range v.Top {
			t, b := remap(v.Top[i]), remap(v.Bottom[i])
			if b-t < thinBand {
				mid := (t + b) / 2
				t, b = mid-thinBand/2, mid+thinBand/2
			}
			top[i], bottom[i] = t, b
		}
		return TopBottomEnvelope{Top: top, Bottom: bottom, ClipValues: remapClip(v.ClipValues, remap)}
	default:
		return info
	}
}

func remapClip(vals []float32, remap func(float32) float32) []float32 {
	if vals == nil {
		return nil
	}
	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = remap(v)
	}
	return out
}
