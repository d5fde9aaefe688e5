package track

import (
	"fmt"
	"path/filepath"

	"github.com/sytronik/thesia-go/internal/decode"
	"github.com/sytronik/thesia-go/internal/dynamics"
)

// Track is spec §3's Track entity: a decoded file plus its common-setting-
// adjusted view.
type Track struct {
	FormatInfo decode.FormatInfo
	Path       string // canonical
	Original   Audio
	Audio      Audio
}

// NewTrack decodes path and canonicalizes it (spec §4.5: "Track::new(path)
// decodes the file and canonicalizes the path").
func NewTrack(path string, normalize dynamics.Normalize, guardMode dynamics.GuardClipMode, limiterParams dynamics.LimiterParams) (*Track, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("canonicalize %s: %w", path, err)
	}
	dec, err := decode.Decode(abs)
	if err != nil {
		return nil, err
	}
	original := NewAudio(dec.Wavs, dec.Format.SR)
	return &Track{
		FormatInfo: dec.Format,
		Path:       abs,
		Original:   original,
		Audio:      Mutate(original, normalize, guardMode, limiterParams),
	}, nil
}

// Reload re-decodes the file and reports whether its content changed
// (bit-for-bit sample compare, per spec §4.5 — cheaper than hashing for
// in-memory buffers and avoids a spurious hash-collision edge case, see
// DESIGN.md).
func (t *Track) Reload(normalize dynamics.Normalize, guardMode dynamics.GuardClipMode, limiterParams dynamics.LimiterParams) (changed bool, err error) {
	dec, err := decode.Decode(t.Path)
	if err != nil {
		return false, err
	}
	changed = !samplesEqual(t.Original.Wavs, dec.Wavs) || t.Original.SR != dec.Format.SR
	t.FormatInfo = dec.Format
	t.Original = NewAudio(dec.Wavs, dec.Format.SR)
	t.Audio = Mutate(t.Original, normalize, guardMode, limiterParams)
	return changed, nil
}

// ApplyCommonSettings re-derives Audio from Original under new common
// normalize/guard-clip settings (spec §4.5:
// "set_common_normalize/set_common_guard_clipping re-apply to all tracks").
func (t *Track) ApplyCommonSettings(normalize dynamics.Normalize, guardMode dynamics.GuardClipMode, limiterParams dynamics.LimiterParams) {
	t.Audio = Mutate(t.Original, normalize, guardMode, limiterParams)
}

func samplesEqual(a, b [][]float32) bool {
	if len(a) != len(b) {
		return false
	}
	for c := range a {
		if len(a[c]) != len(b[c]) {
			return false
		}
		for i := range a[c] {
			if a[c][i] != b[c][i] {
				return false
			}
		}
	}
	return true
}
