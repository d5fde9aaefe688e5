// Package trackmgr implements spec §4.6's Track Manager half: aggregates
// per-(track,channel) dB spectra and spectrogram images, tracks global
// dB/sample-rate bounds, and drives mipmap invalidation.
package trackmgr

import (
	"math"
	"sync"

	"github.com/sytronik/thesia-go/internal/analyzer"
	"github.com/sytronik/thesia-go/internal/coord"
	"github.com/sytronik/thesia-go/internal/obslog"
	"github.com/sytronik/thesia-go/internal/spectroimg"
	"github.com/sytronik/thesia-go/internal/track"
)

var log = obslog.For("trackmgr")

// IDCh is the (track id, channel) key spec §6.3 formats as "id_ch".
type IDCh struct {
	ID int
	Ch int
}

// TrackManager is spec §3/§4.6's TrackManager entity.
type TrackManager struct {
	mu sync.RWMutex

	analyzer *analyzer.Analyzer
	setting  analyzer.SpecSetting
	dBRange  float32
	colormapLength int

	specs    map[IDCh][][]float32
	specImgs map[IDCh]spectroimg.Image

	maxDB, minDB float32
	maxSR        uint32

	noMipmapIDs map[int]struct{}
}

// NewTrackManager returns a TrackManager with default setting/dB-range.
func NewTrackManager(nMels int) *TrackManager {
	return &TrackManager{
		analyzer:    analyzer.NewAnalyzer(nMels),
		setting:     analyzer.DefaultSpecSetting(),
		dBRange:     120,
		specs:       make(map[IDCh][][]float32),
		specImgs:    make(map[IDCh]spectroimg.Image),
		noMipmapIDs: make(map[int]struct{}),
		minDB:       0,
		maxDB:       0,
	}
}

// channelsOf enumerates (id, ch) pairs for the given track ids.
func channelsOf(tl *track.TrackList, ids []int) ([]IDCh, map[int]*track.Track) {
	var out []IDCh
	tracks := make(map[int]*track.Track, len(ids))
	for _, id := range ids {
		tr, err := tl.Get(id)
		if err != nil {
			continue
		}
		tracks[id] = tr
		for ch := 0; ch < tr.Audio.NumChannels(); ch++ {
			out = append(out, IDCh{ID: id, Ch: ch})
		}
	}
	return out, tracks
}

// OnAddOrReload computes specs for the given newly-added/reloaded ids and
// marks them pending mipmap rebuild (spec §4.6's add/reload lifecycle).
func (tm *TrackManager) OnAddOrReload(tl *track.TrackList, ids []int) {
	pairs, tracks := channelsOf(tl, ids)
	type job struct {
		key IDCh
		sr  uint32
		wav []float32
	}
	jobs := make([]job, len(pairs))
	for i, p := range pairs {
		jobs[i] = job{key: p, sr: tracks[p.ID].Audio.SR, wav: tracks[p.ID].Audio.Wavs[p.Ch]}
	}

	samples := make([][]float32, len(jobs))
	srs := make([]uint32, len(jobs))
	for i, j := range jobs {
		samples[i] = j.wav
		srs[i] = j.sr
	}
	results := tm.analyzer.ComputeSpecs(samples, srs, tm.setting)

	tm.mu.Lock()
	defer tm.mu.Unlock()
	for i, j := range jobs {
		tm.specs[j.key] = results[i]
	}
	for _, id := range ids {
		tm.noMipmapIDs[id] = struct{}{}
	}
}

// OnRemove drops specs/images for ids and retains analyzer caches to the
// remaining tracklist's params (spec §4.6).
func (tm *TrackManager) OnRemove(tl *track.TrackList, removedIDs []int, remainingKeys []track.SrWinNfft) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	for key := range tm.specs {
		for _, id := range removedIDs {
			if key.ID == id {
				delete(tm.specs, key)
				delete(tm.specImgs, key)
			}
		}
	}
	for _, id := range removedIDs {
		delete(tm.noMipmapIDs, id)
	}
	tm.analyzer.Retain(remainingKeys, tm.setting.FreqScale)
}

// ApplyTrackListChanges implements spec §4.6's apply_track_list_changes:
// recomputes global (min_dB, max_dB, max_sr); if any changed, every
// track's image is rebuilt, else only no_mipmap_ids. Returns the set of
// ids whose images were rebuilt.
func (tm *TrackManager) ApplyTrackListChanges(tl *track.TrackList) []int {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	maxVal := float32(math.Inf(-1))
	minVal := float32(math.Inf(1))
	var maxSR uint32
	allIDs := make(map[int]struct{})
	for key, spec := range tm.specs {
		allIDs[key.ID] = struct{}{}
		for _, row := range spec {
			for _, v := range row {
				if v > maxVal {
					maxVal = v
				}
				if v < minVal {
					minVal = v
				}
			}
		}
	}
	for _, id := range tl.Ids() {
		tr, err := tl.Get(id)
		if err == nil && tr.Audio.SR > maxSR {
			maxSR = tr.Audio.SR
		}
	}

	if maxVal > 0 {
		maxVal = 0
	}
	if math.IsInf(float64(maxVal), -1) {
		maxVal = 0
	}
	floor := maxVal - tm.dBRange
	if minVal < floor {
		minVal = floor
	}
	if math.IsInf(float64(minVal), 1) {
		minVal = floor
	}

	changed := maxVal != tm.maxDB || minVal != tm.minDB || maxSR != tm.maxSR
	tm.maxDB, tm.minDB, tm.maxSR = maxVal, minVal, maxSR

	var rebuildIDs map[int]struct{}
	if changed {
		rebuildIDs = allIDs
	} else {
		rebuildIDs = tm.noMipmapIDs
	}

	out := make([]int, 0, len(rebuildIDs))
	for id := range rebuildIDs {
		out = append(out, id)
		tm.rebuildImagesLocked(tl, id)
	}
	tm.noMipmapIDs = make(map[int]struct{})
	log.Debug("apply_track_list_changes", "rebuilt", len(out), "changed_bounds", changed)
	return out
}

// rebuildImagesLocked recomputes spec_imgs for every channel of id; caller
// must hold tm.mu.
func (tm *TrackManager) rebuildImagesLocked(tl *track.TrackList, id int) {
	tr, err := tl.Get(id)
	if err != nil {
		return
	}
	nyquist := float64(tr.Audio.SR) / 2
	maxNyquist := float64(tm.maxSR) / 2
	for ch := 0; ch < tr.Audio.NumChannels(); ch++ {
		key := IDCh{ID: id, Ch: ch}
		spec, ok := tm.specs[key]
		if !ok {
			continue
		}
		nBins := 0
		if len(spec) > 0 {
			nBins = len(spec[0])
		}
		lo, hi := tm.setting.FreqScale.HzRangeToIdx(0, math.Min(nyquist, maxNyquist), nyquist, nBins)
		tm.specImgs[key] = spectroimg.Build(spec, lo, hi, tm.minDB, tm.maxDB, tm.colormapLength)
	}
}

// SetSetting re-prepares analyzer caches and forces a full rebuild on the
// next ApplyTrackListChanges call (spec §4.6: "set_setting ... re-prepare
// analyzer caches and rebuild all images").
func (tm *TrackManager) SetSetting(tl *track.TrackList, setting analyzer.SpecSetting, keys []track.SrWinNfft) {
	tm.mu.Lock()
	tm.setting = setting
	tm.analyzer.Prepare(keys, setting.FreqScale)
	for _, id := range tl.Ids() {
		tm.noMipmapIDs[id] = struct{}{}
	}
	tm.mu.Unlock()
	tm.OnAddOrReload(tl, tl.Ids())
}

// SetDBRange updates the dB window used to derive (min_dB, max_dB) and
// forces a full image rebuild on the next apply.
func (tm *TrackManager) SetDBRange(tl *track.TrackList, dBRange float32) {
	tm.mu.Lock()
	tm.dBRange = dBRange
	for _, id := range tl.Ids() {
		tm.noMipmapIDs[id] = struct{}{}
	}
	tm.mu.Unlock()
}

// SetColormapLength updates the quantization level count and forces a
// full image rebuild.
func (tm *TrackManager) SetColormapLength(tl *track.TrackList, n int) {
	tm.mu.Lock()
	tm.colormapLength = n
	for _, id := range tl.Ids() {
		tm.noMipmapIDs[id] = struct{}{}
	}
	tm.mu.Unlock()
}

// Spec returns the dB spectrogram for (id, ch).
func (tm *TrackManager) Spec(id, ch int) ([][]float32, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	s, ok := tm.specs[IDCh{ID: id, Ch: ch}]
	return s, ok
}

// SpecImage returns the spectrogram image for (id, ch).
func (tm *TrackManager) SpecImage(id, ch int) (spectroimg.Image, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	img, ok := tm.specImgs[IDCh{ID: id, Ch: ch}]
	return img, ok
}

// Bounds returns the current global (min_dB, max_dB, max_sr).
func (tm *TrackManager) Bounds() (minDB, maxDB float32, maxSR uint32) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.minDB, tm.maxDB, tm.maxSR
}

// FreqScale returns the active setting's frequency scale, used by axis
// queries.
func (tm *TrackManager) FreqScale() coord.FreqScale {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.setting.FreqScale
}

// Setting returns the active analyzer setting.
func (tm *TrackManager) Setting() analyzer.SpecSetting {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.setting
}
