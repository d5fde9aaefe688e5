package track

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sytronik/thesia-go/internal/dynamics"
	"github.com/sytronik/thesia-go/internal/enginerr"
	"github.com/sytronik/thesia-go/internal/obslog"
)

var log = obslog.For("tracklist")

// TrackList is spec §3's TrackList: a sparse indexed table of tracks (an
// explicit Option-slot slice rather than a hash map, per spec §9 — ids are
// UI-assigned dense small integers) plus unique short filenames and
// tracklist-wide derived state.
type TrackList struct {
	mu        sync.RWMutex
	slots     []*Track // nil == empty slot
	filenames map[int]string
	maxSec    float64
	idMaxSec  int // -1 if empty

	commonNormalize dynamics.Normalize
	commonGuard     dynamics.GuardClipMode
	limiterParams   dynamics.LimiterParams
}

// NewTrackList returns an empty TrackList.
func NewTrackList() *TrackList {
	return &TrackList{
		filenames:     make(map[int]string),
		idMaxSec:      -1,
		limiterParams: dynamics.DefaultLimiterParams(),
	}
}

func (tl *TrackList) ensureCapacity(id int) {
	for len(tl.slots) <= id {
		tl.slots = append(tl.slots, nil)
	}
}

// AddTracks decodes paths in parallel and inserts them at the requested
// ids (spec §4.5). Returns the ids that were actually added (decode
// failures silently drop their id from the result, per spec §7).
func (tl *TrackList) AddTracks(ids []int, paths []string) []int {
	type result struct {
		id    int
		track *Track
		err   error
	}
	results := make([]result, len(ids))
	var wg sync.WaitGroup
	tl.mu.RLock()
	normalize, guard, limiterParams := tl.commonNormalize, tl.commonGuard, tl.limiterParams
	tl.mu.RUnlock()

	for i := range ids {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr, err := NewTrack(paths[i], normalize, guard, limiterParams)
			results[i] = result{id: ids[i], track: tr, err: err}
		}()
	}
	wg.Wait()

	tl.mu.Lock()
	defer tl.mu.Unlock()
	added := make([]int, 0, len(ids))
	for _, r := range results {
		if r.err != nil {
			log.Warn("add track failed", "id", r.id, "err", r.err)
			continue
		}
		tl.ensureCapacity(r.id)
		tl.slots[r.id] = r.track
		added = append(added, r.id)
	}
	tl.recomputeFilenames()
	tl.recomputeMaxSec()
	return added
}

// ReloadTracks re-decodes the given ids and returns the ids whose content
// was unchanged (spec §6.1: "reloadTracks(ids) -> unchanged_ids").
func (tl *TrackList) ReloadTracks(ids []int) []int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	unchanged := make([]int, 0, len(ids))
	for _, id := range ids {
		if id < 0 || id >= len(tl.slots) || tl.slots[id] == nil {
			continue
		}
		changed, err := tl.slots[id].Reload(tl.commonNormalize, tl.commonGuard, tl.limiterParams)
		if err != nil {
			log.Warn("reload failed", "id", id, "err", err)
			continue
		}
		if !changed {
			unchanged = append(unchanged, id)
		}
	}
	tl.recomputeMaxSec()
	return unchanged
}

// RemoveTracks vacates the given slots (spec §4.5).
func (tl *TrackList) RemoveTracks(ids []int) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	removedLongest := false
	for _, id := range ids {
		if id >= 0 && id < len(tl.slots) && tl.slots[id] != nil {
			if id == tl.idMaxSec {
				removedLongest = true
			}
			tl.slots[id] = nil
			delete(tl.filenames, id)
		}
	}
	tl.recomputeFilenames()
	if removedLongest {
		tl.recomputeMaxSec()
	}
}

// SetCommonNormalize re-applies a new normalize setting to all tracks in
// parallel (spec §4.5).
func (tl *TrackList) SetCommonNormalize(n dynamics.Normalize) {
	tl.mu.Lock()
	tl.commonNormalize = n
	tl.reapplyAllLocked()
	tl.mu.Unlock()
}

// SetCommonGuardClipping re-applies a new guard-clip mode to all tracks in
// parallel (spec §4.5).
func (tl *TrackList) SetCommonGuardClipping(mode dynamics.GuardClipMode) {
	tl.mu.Lock()
	tl.commonGuard = mode
	tl.reapplyAllLocked()
	tl.mu.Unlock()
}

func (tl *TrackList) reapplyAllLocked() {
	var wg sync.WaitGroup
	for _, tr := range tl.slots {
		if tr == nil {
			continue
		}
		tr := tr
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.ApplyCommonSettings(tl.commonNormalize, tl.commonGuard, tl.limiterParams)
		}()
	}
	wg.Wait()
}

// CommonNormalize returns the current common normalize setting.
func (tl *TrackList) CommonNormalize() dynamics.Normalize {
	tl.mu.RLock()
	defer tl.mu.RUnlock()
	return tl.commonNormalize
}

// CommonGuardClipping returns the current common guard-clip mode.
func (tl *TrackList) CommonGuardClipping() dynamics.GuardClipMode {
	tl.mu.RLock()
	defer tl.mu.RUnlock()
	return tl.commonGuard
}

// Get returns the track at id, or enginerr.ErrNotFound.
func (tl *TrackList) Get(id int) (*Track, error) {
	tl.mu.RLock()
	defer tl.mu.RUnlock()
	if id < 0 || id >= len(tl.slots) || tl.slots[id] == nil {
		return nil, enginerr.ErrNotFound
	}
	return tl.slots[id], nil
}

// Ids returns the currently present track ids in ascending order.
func (tl *TrackList) Ids() []int {
	tl.mu.RLock()
	defer tl.mu.RUnlock()
	out := make([]int, 0, len(tl.slots))
	for id, tr := range tl.slots {
		if tr != nil {
			out = append(out, id)
		}
	}
	return out
}

// FileName returns the unique short filename for id (spec §4.5).
func (tl *TrackList) FileName(id int) string {
	tl.mu.RLock()
	defer tl.mu.RUnlock()
	return tl.filenames[id]
}

// MaxSec returns the longest present track's duration in seconds.
func (tl *TrackList) MaxSec() float64 {
	tl.mu.RLock()
	defer tl.mu.RUnlock()
	return tl.maxSec
}

// FindIDByPath returns the id whose canonical path matches, or false.
func (tl *TrackList) FindIDByPath(path string) (int, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	tl.mu.RLock()
	defer tl.mu.RUnlock()
	for id, tr := range tl.slots {
		if tr != nil && tr.Path == abs {
			return id, true
		}
	}
	return 0, false
}

// recomputeMaxSec scans all present tracks for the longest duration; must
// be called with tl.mu held for writing.
func (tl *TrackList) recomputeMaxSec() {
	tl.maxSec = 0
	tl.idMaxSec = -1
	for id, tr := range tl.slots {
		if tr == nil {
			continue
		}
		sec := tr.Audio.LengthSec()
		if sec > tl.maxSec {
			tl.maxSec = sec
			tl.idMaxSec = id
		}
	}
}

// recomputeFilenames derives, for every present track, the shortest
// non-empty suffix of its path (in path components) unique among all
// present tracks (spec §4.5). Must be called with tl.mu held for writing.
func (tl *TrackList) recomputeFilenames() {
	tl.filenames = make(map[int]string)
	type entry = struct {
		id    int
		parts []string // path components, root to leaf
	}
	var entries []entry
	for id, tr := range tl.slots {
		if tr == nil {
			continue
		}
		parts := strings.Split(filepath.ToSlash(tr.Path), "/")
		entries = append(entries, entry{id: id, parts: parts})
	}
	for _, e := range entries {
		n := len(e.parts)
		for k := 1; k <= n; k++ {
			candidate := strings.Join(e.parts[n-k:], string(filepath.Separator))
			if tl.isUniqueSuffix(entries, e.id, e.parts, k) {
				tl.filenames[e.id] = candidate
				break
			}
			if k == n {
				tl.filenames[e.id] = candidate
			}
		}
	}
}

func (tl *TrackList) isUniqueSuffix(entries []struct {
	id    int
	parts []string
}, selfID int, parts []string, k int) bool {
	n := len(parts)
	suffix := parts[n-k:]
	for _, other := range entries {
		if other.id == selfID {
			continue
		}
		on := len(other.parts)
		if on < k {
			continue
		}
		otherSuffix := other.parts[on-k:]
		if equalStrSlices(suffix, otherSuffix) {
			return false
		}
	}
	return true
}

func equalStrSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ConstructSrWinNfftSet returns, for the given track ids and setting, the
// set of (sr, win_length, n_fft) tuples needed to compute their spectra
// (spec §4.5), used to prepare/retain analyzer caches.
type SrWinNfft struct {
	SR        uint32
	WinLength int
	NFFT      int
}

func (tl *TrackList) ConstructSrWinNfftSet(ids []int, derive func(sr uint32) SrWinNfft) []SrWinNfft {
	tl.mu.RLock()
	defer tl.mu.RUnlock()
	seen := make(map[SrWinNfft]struct{})
	var out []SrWinNfft
	for _, id := range ids {
		if id < 0 || id >= len(tl.slots) || tl.slots[id] == nil {
			continue
		}
		key := derive(tl.slots[id].Audio.SR)
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			out = append(out, key)
		}
	}
	return out
}

// id_ch_key formatting lives in internal/coord (IDChKey); this local
// copy has no callers.
func idChKeyForTest(id, ch int) string { return fmt.Sprintf("%d_%d", id, ch) }
