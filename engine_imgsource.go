package thesiago

import (
	"context"
	"image"

	"golang.org/x/image/draw"

	"github.com/sytronik/thesia-go/internal/colorize"
	"github.com/sytronik/thesia-go/internal/imgserver"
	"github.com/sytronik/thesia-go/internal/trackmgr"
	"github.com/sytronik/thesia-go/internal/wavdraw"
)

// specSource adapts the TrackManager/mipmap state into imgserver.ImageSource
// for the spectrogram half of a Draw request.
type specSource struct{ e *Engine }

func trackTotalWidthPx(e *Engine, id int, pxPerSec float64) int {
	tr, err := e.tracks.Get(id)
	if err != nil {
		return 0
	}
	w := int(tr.Audio.LengthSec() * pxPerSec)
	if w < 1 {
		w = 1
	}
	return w
}

func (s *specSource) TotalWidthPx(idCh trackmgr.IDCh, pxPerSec float64) int {
	return trackTotalWidthPx(s.e, idCh.ID, pxPerSec)
}

func (s *specSource) render(idCh trackmgr.IDCh, width, height int) imgserver.RGBA {
	s.e.mu.RLock()
	pyr, havePyramid := s.e.pyramids[idCh]
	s.e.mu.RUnlock()

	var pixels []uint16
	var w, h int
	if havePyramid {
		sliced := pyr.GetSlicedMipmap(width, height)
		pixels, w, h = sliced.Pixels, sliced.Width, sliced.Height
	} else {
		img, ok := s.e.trackMgr.SpecImage(idCh.ID, idCh.Ch)
		if !ok {
			return imgserver.RGBA{}
		}
		pixels, w, h = flattenImage(img), img.Width, img.Height
	}
	resized := resizeGray16(pixels, w, h, width, height)
	return grayToRGBA(resized, width, height)
}

func (s *specSource) DrawEntireImgs(_ context.Context, idChs []trackmgr.IDCh, params imgserver.DrawParams) map[trackmgr.IDCh]imgserver.RGBA {
	out := make(map[trackmgr.IDCh]imgserver.RGBA, len(idChs))
	for _, k := range idChs {
		width := s.TotalWidthPx(k, params.Option.PxPerSec)
		out[k] = s.render(k, width, int(params.Option.Height))
	}
	return out
}

func (s *specSource) DrawPartImgs(_ context.Context, idChs []trackmgr.IDCh, params imgserver.DrawParams, _ bool) map[trackmgr.IDCh]imgserver.RGBA {
	out := make(map[trackmgr.IDCh]imgserver.RGBA, len(idChs))
	for _, k := range idChs {
		out[k] = s.render(k, int(params.Width), int(params.Option.Height))
	}
	return out
}

// wavSource adapts the TrackList's waveform samples into
// imgserver.ImageSource for the waveform half of a Draw request.
type wavSource struct{ e *Engine }

func (s *wavSource) TotalWidthPx(idCh trackmgr.IDCh, pxPerSec float64) int {
	return trackTotalWidthPx(s.e, idCh.ID, pxPerSec)
}

func wavOptions(params imgserver.DrawParams, width, height int) wavdraw.Options {
	return wavdraw.Options{
		WidthPx: width, HeightPx: height,
		AmpLo: params.OptForWav.AmpLo, AmpHi: params.OptForWav.AmpHi,
		LineWidthPx:        params.OptForWav.LineWidthPx,
		TopBottomContextPx: params.OptForWav.ContextPx,
		ShowClipping:       true,
	}
}

func (s *wavSource) DrawEntireImgs(_ context.Context, idChs []trackmgr.IDCh, params imgserver.DrawParams) map[trackmgr.IDCh]imgserver.RGBA {
	out := make(map[trackmgr.IDCh]imgserver.RGBA, len(idChs))
	for _, k := range idChs {
		tr, err := s.e.tracks.Get(k.ID)
		if err != nil || k.Ch < 0 || k.Ch >= tr.Audio.NumChannels() {
			continue
		}
		width := s.TotalWidthPx(k, params.Option.PxPerSec)
		height := int(params.Option.Height)
		info := wavdraw.Build(tr.Audio.Wavs[k.Ch], wavOptions(params, width, height))
		out[k] = rasterizeWav(info, width, height)
	}
	return out
}

func (s *wavSource) DrawPartImgs(_ context.Context, idChs []trackmgr.IDCh, params imgserver.DrawParams, _ bool) map[trackmgr.IDCh]imgserver.RGBA {
	out := make(map[trackmgr.IDCh]imgserver.RGBA, len(idChs))
	for _, k := range idChs {
		tr, err := s.e.tracks.Get(k.ID)
		if err != nil || k.Ch < 0 || k.Ch >= tr.Audio.NumChannels() {
			continue
		}
		samples := tr.Audio.Wavs[k.Ch]
		start := int(params.StartSec * float64(tr.Audio.SR))
		if start < 0 {
			start = 0
		}
		if start > len(samples) {
			start = len(samples)
		}
		width := int(params.Width)
		height := int(params.Option.Height)
		info := wavdraw.Build(samples[start:], wavOptions(params, width, height))
		out[k] = rasterizeWav(info, width, height)
	}
	return out
}

// resizeGray16 resizes a flat row-major uint16 grid to (newW, newH) via
// golang.org/x/image/draw's bilinear scaler, used for the image server's ad
// hoc part-draw sizes (the mipmap pyramid handles the cached, disk-backed
// levels; this covers arbitrary requested widths in between levels).
func resizeGray16(pixels []uint16, w, h, newW, newH int) []uint16 {
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	out := make([]uint16, newW*newH)
	if w == 0 || h == 0 {
		return out
	}
	src := image.NewGray16(image.Rect(0, 0, w, h))
	for i, v := range pixels {
		src.Pix[2*i] = byte(v >> 8)
		src.Pix[2*i+1] = byte(v)
	}
	dst := image.NewGray16(image.Rect(0, 0, newW, newH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	for i := range out {
		out[i] = uint16(dst.Pix[2*i])<<8 | uint16(dst.Pix[2*i+1])
	}
	return out
}

// grayToRGBA colorizes a flat row-major uint16 grayscale grid into an
// interleaved RGBA buffer via the engine's fixed 256-entry colormap.
func grayToRGBA(pixels []uint16, w, h int) imgserver.RGBA {
	out := imgserver.RGBA{Width: w, Height: h, Pix: make([]uint8, w*h*4)}
	for y := 0; y < h; y++ {
		row := pixels[y*w : (y+1)*w]
		rgba := colorize.ToRGBARow(row)
		copy(out.Pix[y*w*4:(y+1)*w*4], rgba)
	}
	return out
}

// rasterizeWav draws a wavdraw.Info onto a width x height RGBA canvas, one
// opaque white pixel column-run per sample column; transparent elsewhere.
func rasterizeWav(info wavdraw.Info, width, height int) imgserver.RGBA {
	out := imgserver.RGBA{Width: width, Height: height, Pix: make([]uint8, width*height*4)}
	switch v := info.(type) {
	case wavdraw.FillRect:
		for x := 0; x < width; x++ {
			setWavPixel(out, x, height/2, width, height)
		}
	case wavdraw.Line:
		for x := 0; x < len(v.Ys) && x < width; x++ {
			setWavPixel(out, x, int(v.Ys[x]*float32(height)), width, height)
		}
	case wavdraw.TopBottomEnvelope:
		for x := 0; x < len(v.Top) && x < width; x++ {
			top := int(v.Top[x] * float32(height))
			bottom := int(v.Bottom[x] * float32(height))
			if bottom < top {
				top, bottom = bottom, top
			}
			for y := top; y <= bottom && y < height; y++ {
				setWavPixel(out, x, y, width, height)
			}
		}
	}
	return out
}

func setWavPixel(img imgserver.RGBA, x, y, w, h int) {
	if x < 0 || x >= w || y < 0 || y >= h {
		return
	}
	i := (y*w + x) * 4
	img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 255, 255, 255, 255
}
