// Package thesiago is the engine's UI-facing entry point (spec §6.1):
// a single Engine value that owns the TrackList, TrackManager, mipmap
// pyramids, and the debounced image server, and exposes the operations a
// host UI drives directly.
package thesiago

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sytronik/thesia-go/internal/analyzer"
	"github.com/sytronik/thesia-go/internal/assert"
	"github.com/sytronik/thesia-go/internal/axis"
	"github.com/sytronik/thesia-go/internal/config"
	"github.com/sytronik/thesia-go/internal/dynamics"
	"github.com/sytronik/thesia-go/internal/enginerr"
	"github.com/sytronik/thesia-go/internal/imgserver"
	"github.com/sytronik/thesia-go/internal/mipmap"
	"github.com/sytronik/thesia-go/internal/obslog"
	"github.com/sytronik/thesia-go/internal/overview"
	"github.com/sytronik/thesia-go/internal/spectroimg"
	"github.com/sytronik/thesia-go/internal/track"
	"github.com/sytronik/thesia-go/internal/trackmgr"
	"github.com/sytronik/thesia-go/internal/wavdraw"
	"github.com/sytronik/thesia-go/internal/workpool"
)

var log = obslog.For("engine")

// Engine bundles the whole inspector pipeline behind spec §6.1's API.
type Engine struct {
	mu sync.RWMutex

	cfg       config.EngineConfig
	mipmapDir string

	tracks    *track.TrackList
	trackMgr  *trackmgr.TrackManager
	pyramids  map[trackmgr.IDCh]*mipmap.Pyramid
	pool      *workpool.Pool

	imgSrv *imgserver.Server
}

// New returns an Engine configured from cfg, storing mipmap tiles under
// mipmapDir (created on demand). cfg's Limiter fields are not applied:
// tracks use dynamics.DefaultLimiterParams.
func New(cfg config.EngineConfig, mipmapDir string) *Engine {
	e := &Engine{
		cfg:       cfg,
		mipmapDir: mipmapDir,
		tracks:    track.NewTrackList(),
		trackMgr:  trackmgr.NewTrackManager(cfg.NMels),
		pyramids:  make(map[trackmgr.IDCh]*mipmap.Pyramid),
		pool:      workpool.New(0),
	}
	e.imgSrv = imgserver.NewServer(&specSource{e: e}, &wavSource{e: e}, cfg.MaxImgCacheWidthPx)
	e.trackMgr.SetSetting(e.tracks, cfg.AnalyzerSetting(), nil)
	e.trackMgr.SetDBRange(e.tracks, cfg.DBRange)
	e.trackMgr.SetColormapLength(e.tracks, cfg.ColormapLength)
	return e
}

// AddTracks decodes and inserts paths at the given ids, returning the ids
// that were actually added (spec §6.1).
func (e *Engine) AddTracks(ids []int, paths []string) []int {
	added := e.tracks.AddTracks(ids, paths)
	e.trackMgr.OnAddOrReload(e.tracks, added)
	return added
}

// ReloadTracks re-decodes ids, returning the subset whose content was
// unchanged (spec §6.1).
func (e *Engine) ReloadTracks(ids []int) []int {
	unchanged := e.tracks.ReloadTracks(ids)
	e.trackMgr.OnAddOrReload(e.tracks, ids)
	return unchanged
}

// RemoveTracks drops ids from the tracklist, tears down their mipmap
// pyramids, and synchronizes with any in-flight image-server draw (spec
// §6.1/§4.11: Remove must wait for the current Draw task).
func (e *Engine) RemoveTracks(ids []int) {
	idChs := e.idChsForIDs(ids)
	e.imgSrv.Remove(idChs)

	remainingIDs := subtractIDs(e.tracks.Ids(), ids)
	keys := e.tracks.ConstructSrWinNfftSet(remainingIDs, e.deriveSrWinNfft)
	e.tracks.RemoveTracks(ids)
	e.trackMgr.OnRemove(e.tracks, ids, keys)

	e.mu.Lock()
	for _, k := range idChs {
		delete(e.pyramids, k)
	}
	e.mu.Unlock()
}

func subtractIDs(all, removed []int) []int {
	drop := make(map[int]struct{}, len(removed))
	for _, id := range removed {
		drop[id] = struct{}{}
	}
	out := make([]int, 0, len(all))
	for _, id := range all {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func (e *Engine) deriveSrWinNfft(sr uint32) track.SrWinNfft {
	d := e.trackMgr.Setting().Derive(sr)
	return track.SrWinNfft{SR: sr, WinLength: d.WinLength, NFFT: d.NFFT}
}

// idChsForIDs enumerates every present (id, ch) for the given ids.
func (e *Engine) idChsForIDs(ids []int) []trackmgr.IDCh {
	var out []trackmgr.IDCh
	for _, id := range ids {
		tr, err := e.tracks.Get(id)
		if err != nil {
			continue
		}
		for ch := 0; ch < tr.Audio.NumChannels(); ch++ {
			out = append(out, trackmgr.IDCh{ID: id, Ch: ch})
		}
	}
	return out
}

// SetCommonNormalize re-applies a normalization target to every track
// (spec §6.1).
func (e *Engine) SetCommonNormalize(n dynamics.Normalize) {
	e.tracks.SetCommonNormalize(n)
	e.trackMgr.OnAddOrReload(e.tracks, e.tracks.Ids())
}

// SetCommonGuardClipping re-applies a guard-clipping mode to every track
// (spec §6.1).
func (e *Engine) SetCommonGuardClipping(mode dynamics.GuardClipMode) {
	e.tracks.SetCommonGuardClipping(mode)
	e.trackMgr.OnAddOrReload(e.tracks, e.tracks.Ids())
}

// SetSetting changes the STFT/frequency-scale setting, re-preparing
// analyzer caches and recomputing every track's spectrum (spec §4.6/§6.1).
func (e *Engine) SetSetting(setting analyzer.SpecSetting) {
	ids := e.tracks.Ids()
	keys := e.tracks.ConstructSrWinNfftSet(ids, func(sr uint32) track.SrWinNfft {
		d := setting.Derive(sr)
		return track.SrWinNfft{SR: sr, WinLength: d.WinLength, NFFT: d.NFFT}
	})
	e.trackMgr.SetSetting(e.tracks, setting, keys)
}

// SetDBRange updates the global dB window (spec §6.1).
func (e *Engine) SetDBRange(dBRange float32) {
	assert.That(dBRange > 0, "db_range must be positive, got %v", dBRange)
	e.trackMgr.SetDBRange(e.tracks, dBRange)
}

// SetColormapLength updates the spectrogram image quantization level
// count (spec §6.1).
func (e *Engine) SetColormapLength(n int) { e.trackMgr.SetColormapLength(e.tracks, n) }

// ApplyTrackListChanges recomputes global (min_dB, max_dB, max_sr) and
// rebuilds affected images/mipmaps, returning the ids that changed (spec
// §4.6/§6.1). The UI calls this once after a batch of the above setters.
func (e *Engine) ApplyTrackListChanges() []int {
	changedIDs := e.trackMgr.ApplyTrackListChanges(e.tracks)
	for _, id := range changedIDs {
		e.rebuildMipmapsForTrack(id)
	}
	return changedIDs
}

func (e *Engine) rebuildMipmapsForTrack(id int) {
	tr, err := e.tracks.Get(id)
	if err != nil {
		return
	}
	nCh := tr.Audio.NumChannels()
	e.pool.RunEach(nCh, func(ch int) {
		img, ok := e.trackMgr.SpecImage(id, ch)
		if !ok || img.Width == 0 || img.Height == 0 {
			return
		}
		flat := flattenImage(img)
		dir := filepath.Join(e.mipmapDir, fmt.Sprintf("%d_%d", id, ch))
		pyr, err := mipmap.NewPyramid(dir, flat, img.Width, img.Height, e.cfg.MipmapMaxTileSize)
		if err != nil {
			log.Warn("mipmap pyramid build failed", "id", id, "ch", ch, "err", err)
			return
		}
		e.mu.Lock()
		e.pyramids[trackmgr.IDCh{ID: id, Ch: ch}] = pyr
		e.mu.Unlock()
	})
}

func flattenImage(img spectroimg.Image) []uint16 {
	out := make([]uint16, img.Width*img.Height)
	for row, pixels := range img.Pixels {
		copy(out[row*img.Width:(row+1)*img.Width], pixels)
	}
	return out
}

// GetSpectrogram implements spec §6.1's getSpectrogram(idChKey, (t0,t1),
// (f0,f1), marginPx) -> {args, tile, sec0}: it slices the (id, ch)
// mipmap pyramid down to the requested time window and frequency
// sub-band, returning whichever resolution level satisfies
// MipmapMaxTileSize along with the pixel args needed to place the tile.
func (e *Engine) GetSpectrogram(id, ch int, secRange, hzRange [2]float64, marginPx int) (mipmap.Slice, error) {
	tr, err := e.tracks.Get(id)
	if err != nil {
		return mipmap.Slice{}, err
	}
	if ch < 0 || ch >= tr.Audio.NumChannels() {
		return mipmap.Slice{}, enginerr.ErrNotFound
	}
	e.mu.RLock()
	pyr, ok := e.pyramids[trackmgr.IDCh{ID: id, Ch: ch}]
	e.mu.RUnlock()
	if !ok {
		return mipmap.Slice{}, enginerr.ErrNotFound
	}

	_, _, maxSR := e.trackMgr.Bounds()
	specHzHi := float64(tr.Audio.SR) / 2
	if maxNyquist := float64(maxSR) / 2; maxNyquist < specHzHi {
		specHzHi = maxNyquist
	}
	req := mipmap.SliceRequest{
		TrackSec:    tr.Audio.LengthSec(),
		SecRange:    secRange,
		SpecHzRange: [2]float64{0, specHzHi},
		HzRange:     hzRange,
		MarginPx:    marginPx,
		FreqScale:   e.trackMgr.FreqScale(),
	}
	return pyr.GetSlice(req), nil
}

// GetWavDrawingInfo renders the waveform drawing info for a pixel window
// of (id, ch) (spec §4.8/§6.1).
func (e *Engine) GetWavDrawingInfo(id, ch int, startSec float64, o wavdraw.Options) (wavdraw.Info, error) {
	assert.That(o.HeightPx >= 1, "height_px must be >= 1, got %d", o.HeightPx)
	assert.That(o.AmpHi >= o.AmpLo, "amp_range must not be inverted, got [%v, %v]", o.AmpLo, o.AmpHi)
	tr, err := e.tracks.Get(id)
	if err != nil {
		return nil, err
	}
	if ch < 0 || ch >= tr.Audio.NumChannels() {
		return nil, enginerr.ErrNotFound
	}
	window := sliceWindow(tr.Audio.Wavs[ch], tr.Audio.SR, startSec, o.WidthPx, o.AmpHi)
	return wavdraw.Build(window, o), nil
}

func sliceWindow(samples []float32, sr uint32, startSec float64, widthPx int, _ float32) []float32 {
	if len(samples) == 0 {
		return samples
	}
	start := int(startSec * float64(sr))
	if start < 0 {
		start = 0
	}
	if start > len(samples) {
		start = len(samples)
	}
	return samples[start:]
}

// GetOverviewDrawingInfo renders the full-track overview for id (spec
// §4.9/§6.1).
func (e *Engine) GetOverviewDrawingInfo(id int, o overview.Options) ([]overview.Drawing, error) {
	tr, err := e.tracks.Get(id)
	if err != nil {
		return nil, err
	}
	return overview.Build(tr, o), nil
}

// Draw enqueues a debounced, cancellable draw request (spec §4.11/§6.1).
func (e *Engine) Draw(idChs []trackmgr.IDCh, params imgserver.DrawParams) {
	e.imgSrv.Draw(idChs, params)
}

// Remove tears down cached images for idChs, awaiting any in-flight draw
// first (spec §4.11/§6.1).
func (e *Engine) Remove(idChs []trackmgr.IDCh) { e.imgSrv.Remove(idChs) }

// Results is the channel of successive draw-wave deliveries (spec §4.11:
// cache, then part, then new_cache waves).
func (e *Engine) Results() <-chan imgserver.Delivery { return e.imgSrv.Results }

// FileName returns the unique short filename for id (spec §4.5/§6.1).
func (e *Engine) FileName(id int) string { return e.tracks.FileName(id) }

// MaxSec returns the longest present track's duration (spec §6.1).
func (e *Engine) MaxSec() float64 { return e.tracks.MaxSec() }

// Bounds returns the current global (min_dB, max_dB, max_sr) (spec §6.1).
func (e *Engine) Bounds() (minDB, maxDB float32, maxSR uint32) { return e.trackMgr.Bounds() }

// TimeMarkers, FreqMarkers, AmpMarkers, DBMarkers expose spec §4.10's axis
// generators directly; the UI decides layout, the engine only supplies
// tick positions and labels.
func (e *Engine) TimeMarkers(startSec, endSec, tickUnitSec float64, labelInterval uint32) []axis.Marker {
	return axis.TimeMarkers(startSec, endSec, tickUnitSec, labelInterval, e.tracks.MaxSec())
}

func (e *Engine) FreqMarkers(loHz, hiHz float32, maxNumTicks uint32) []axis.Marker {
	return axis.FreqMarkers(loHz, hiHz, e.trackMgr.FreqScale(), maxNumTicks)
}

func (e *Engine) AmpMarkers(maxNumTicks, maxNumLabels uint32, ampLo, ampHi float32) []axis.Marker {
	return axis.AmpMarkers(maxNumTicks, maxNumLabels, ampLo, ampHi)
}

func (e *Engine) DBMarkers(maxNumTicks, maxNumLabels uint32) []axis.Marker {
	minDB, maxDB, _ := e.trackMgr.Bounds()
	return axis.DBMarkers(maxNumTicks, maxNumLabels, minDB, maxDB)
}

// Close releases mipmap tile directories on disk. The UI calls this on
// shutdown; it is not required for correctness of a single run.
func (e *Engine) Close() error {
	return os.RemoveAll(e.mipmapDir)
}
