// Package spectroimg implements spec §4.6's per-channel image construction
// (component 7 of spec §2): mapping a dB spectrogram, clipped to a
// frequency sub-band, into a 16-bit grayscale SpectrogramImage.
package spectroimg

import "math"

// Image is spec §3's SpectrogramImage: rows = frequency (ascending),
// cols = time. 0 means "outside plotted band"; otherwise a linear map of
// dB onto [1, 65535].
type Image struct {
	Width, Height int // Height = len(FreqIdxRange), Width = n_frames
	Pixels        [][]uint16
}

// Build maps spec[t][f] for f in [loIdx, hiIdx) into a Height x Width
// image (Height = hiIdx-loIdx), linearly mapping [minDB, maxDB] to
// [1, 65535] and quantizing to at most colormapLength distinct non-zero
// levels when 1 < colormapLength < 65535.
//
// Row 0 of the output is frequency bin loIdx (ascending), so frame rows
// are reversed relative to spec's [f] (low-to-high) indexing only if the
// caller's axis convention requires it; this function stores ascending
// frequency top-to-bottom as given, matching internal/coord's Hz range
// convention.
func Build(spec [][]float32, loIdx, hiIdx int, minDB, maxDB float32, colormapLength int) Image {
	nFrames := len(spec)
	height := hiIdx - loIdx
	if height < 0 {
		height = 0
	}
	pixels := make([][]uint16, height)
	span := maxDB - minDB
	levels := uint16(65535)
	if colormapLength > 0 && colormapLength < 65535 {
		levels = uint16(colormapLength)
	}

	for row := 0; row < height; row++ {
		f := loIdx + row
		out := make([]uint16, nFrames)
		for t := 0; t < nFrames; t++ {
			if f < 0 || f >= len(spec[t]) {
				out[t] = 0
				continue
			}
			out[t] = dbToCode(spec[t][f], minDB, span, levels)
		}
		pixels[row] = out
	}
	return Image{Width: nFrames, Height: height, Pixels: pixels}
}

func dbToCode(db, minDB, span float32, levels uint16) uint16 {
	if span <= 0 {
		return 1
	}
	rel := (db - minDB) / span
	if rel < 0 {
		rel = 0
	}
	if rel > 1 {
		rel = 1
	}
	if levels > 1 && levels < 65535 {
		// snap to one of `levels` buckets first, then map the bucket back
		// onto the full [1, 65535] span (spec §4.12: quantize the colormap
		// index count, not the code range).
		bucket := roundHalfEven(float64(rel) * float64(levels-1))
		rel = float32(bucket / float64(levels-1))
	}
	scaled := rel*65534 + 1
	return uint16(roundHalfEven(float64(scaled)))
}

func roundHalfEven(x float64) float64 {
	floor := math.Floor(x)
	diff := x - floor
	switch {
	case diff < 0.5:
		return floor
	case diff > 0.5:
		return floor + 1
	default:
		if math.Mod(floor, 2) == 0 {
			return floor
		}
		return floor + 1
	}
}
