// Package overview implements spec §4.9: a per-track full-waveform
// overview, one row per channel, with optional gain-curve bands when the
// guard-clipping result is a GainSequence.
package overview

import (
	"github.com/sytronik/thesia-go/internal/dynamics"
	"github.com/sytronik/thesia-go/internal/track"
	"github.com/sytronik/thesia-go/internal/wavdraw"
)

const maxChannels = 4

// ChannelLayout is one channel's vertical slot within the overview canvas.
type ChannelLayout struct {
	Ch          int
	Top         int
	Height      int
	GainTop     *int // nil if no gain band reserved above
	GainBottom  *int // nil if no gain band reserved below
	GainHeight  int
}

// Drawing is the per-channel rendering output for a track's overview.
type Drawing struct {
	Layout   ChannelLayout
	Wave     wavdraw.Info
	GainTop  wavdraw.Info // zero value if no gain band
	GainBot  wavdraw.Info
}

// Options bundles spec §4.9's canvas parameters.
type Options struct {
	Width, Height int
	GapH          int
	GainH         int
	LineWidthPx   float32
	TopBottomCtx  int
}

// Layout computes the vertical layout for up to 4 channels, reserving
// gain bands when the track's guard-clip result is a GainSequence with
// any value < 1.
func Layout(nCh int, hasGainBand bool, o Options) []ChannelLayout {
	if nCh > maxChannels {
		nCh = maxChannels
	}
	if nCh < 1 {
		return nil
	}
	totalGap := o.GapH * (nCh - 1)
	gainSpace := 0
	if hasGainBand {
		gainSpace = 2 * o.GainH
	}
	chH := (o.Height - totalGap - gainSpace*nCh) / nCh
	if chH < 1 {
		chH = 1
	}

	out := make([]ChannelLayout, nCh)
	y := 0
	for ch := 0; ch < nCh; ch++ {
		l := ChannelLayout{Ch: ch, Height: chH}
		if hasGainBand {
			top := y
			l.GainTop = &top
			y += o.GainH
		}
		l.Top = y
		y += chH
		if hasGainBand {
			bottom := y
			l.GainBottom = &bottom
			y += o.GainH
		}
		y += o.GapH
		out[ch] = l
	}
	return out
}

// Build renders the full overview for a track (spec §4.9).
func Build(tr *track.Track, o Options) []Drawing {
	nCh := tr.Audio.NumChannels()
	gainSeq, hasGain := tr.Audio.GuardClipResult.(dynamics.GainSequence)
	hasGainBand := false
	if hasGain {
		for _, row := range gainSeq.Gains {
			for _, g := range row {
				if g < 1 {
					hasGainBand = true
					break
				}
			}
			if hasGainBand {
				break
			}
		}
	}

	layouts := Layout(nCh, hasGainBand, o)
	out := make([]Drawing, len(layouts))

	wavBeforeClip, hasClipBefore := tr.Audio.GuardClipResult.(dynamics.WavBeforeClip)

	for i, l := range layouts {
		ampLo, ampHi := float32(-1), float32(1)
		showClipping := false
		if hasClipBefore && l.Ch < len(wavBeforeClip.Wavs) {
			peak := maxAbs(wavBeforeClip.Wavs[l.Ch])
			if peak > 1 {
				ampLo, ampHi, showClipping = -peak, peak, true
			}
		}

		wave := wavdraw.Build(tr.Audio.Wavs[l.Ch], wavdraw.Options{
			WidthPx: o.Width, HeightPx: l.Height,
			AmpLo: ampLo, AmpHi: ampHi,
			LineWidthPx: o.LineWidthPx, TopBottomContextPx: o.TopBottomCtx,
			ShowClipping: showClipping,
		})

		d := Drawing{Layout: l, Wave: wave}
		if hasGainBand && hasGain && l.Ch < len(gainSeq.Gains) {
			gains := gainSeq.Gains[l.Ch]
			gainOpts := wavdraw.Options{
				WidthPx: o.Width, HeightPx: o.GainH,
				AmpLo: 0, AmpHi: 1,
				LineWidthPx: o.LineWidthPx, TopBottomContextPx: o.TopBottomCtx,
				ShowClipping: true,
			}
			d.GainTop = wavdraw.Build(gains, gainOpts)
			d.GainBot = wavdraw.Build(gains, gainOpts)
		}
		out[i] = d
	}
	return out
}

func maxAbs(xs []float32) float32 {
	var m float32
	for _, v := range xs {
		a := v
		if a < 0 {
			a = -a
		}
		if a > m {
			m = a
		}
	}
	return m
}
