// Package track implements spec §4.5: Track and TrackList, the
// per-file audio state and the aggregate collection the UI manipulates.
package track

import (
	"github.com/sytronik/thesia-go/internal/dynamics"
)

// Audio is spec §3's Audio entity: immutable after decode except via
// Mutate, which reapplies normalization stats and guard clipping.
type Audio struct {
	Wavs            [][]float32
	SR              uint32
	Stats           dynamics.Stats
	GuardClipResult dynamics.GuardClippingResult
	GuardClipStats  []dynamics.GuardClippingStats
}

// NewAudio wraps raw decoded samples, computing derived stats but applying
// no gain or guard-clipping (the "original" form of spec §3's Track).
func NewAudio(wavs [][]float32, sr uint32) Audio {
	return Audio{
		Wavs:  wavs,
		SR:    sr,
		Stats: dynamics.ComputeStats(wavs, sr),
	}
}

// Mutate applies normalize and a guard-clipping mode to original, yielding
// a new Audio whose Wavs are in [-1, 1] (Clip/ReduceGlobalLevel) or bear a
// per-sample gain history (Limit). original is never modified (spec §9:
// "copies once from original, never in place").
func Mutate(original Audio, normalize dynamics.Normalize, guardMode dynamics.GuardClipMode, limiterParams dynamics.LimiterParams) Audio {
	gain := normalize.Gain(original.Stats)
	gained := dynamics.Apply(original.Wavs, gain)
	clipped, result, stats := dynamics.ApplyGuardClipping(gained, original.SR, guardMode, limiterParams)
	return Audio{
		Wavs:            clipped,
		SR:              original.SR,
		Stats:           dynamics.ComputeStats(clipped, original.SR),
		GuardClipResult: result,
		GuardClipStats:  stats,
	}
}

// NumChannels returns the channel count.
func (a Audio) NumChannels() int {
	return len(a.Wavs)
}

// NumSamples returns the per-channel sample count (0 if no channels).
func (a Audio) NumSamples() int {
	if len(a.Wavs) == 0 {
		return 0
	}
	return len(a.Wavs[0])
}

// LengthSec returns the audio's duration in seconds.
func (a Audio) LengthSec() float64 {
	if a.SR == 0 {
		return 0
	}
	return float64(a.NumSamples()) / float64(a.SR)
}

// InterleavedFrames exposes the playback contract of spec §6.1: interleaved
// float32 frames, for a host player to consume. The core never opens an
// audio output device itself (spec §1's non-goal).
func (a Audio) InterleavedFrames() []float32 {
	nCh := a.NumChannels()
	if nCh == 0 {
		return nil
	}
	n := a.NumSamples()
	out := make([]float32, n*nCh)
	for c, ch := range a.Wavs {
		for i, v := range ch {
			out[i*nCh+c] = v
		}
	}
	return out
}
