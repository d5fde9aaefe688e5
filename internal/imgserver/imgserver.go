// Package imgserver implements spec §4.11: a debounced, cancellable
// image-draw pipeline that categorizes per-(track,channel) requests into
// use_cache/need_part/need_new_cache, composes spectrogram and waveform
// crops via alpha blending, and delivers results asynchronously.
package imgserver

import (
	"context"
	"sync"

	"github.com/sytronik/thesia-go/internal/obslog"
	"github.com/sytronik/thesia-go/internal/trackmgr"
)

var log = obslog.For("imgserver")

// DrawOption is spec §3's DrawOption.
type DrawOption struct {
	PxPerSec float64
	Height   uint32
}

// DrawOptionForWav is spec §3's DrawOptionForWav.
type DrawOptionForWav struct {
	AmpLo, AmpHi float32
	DPR          float32
	LineWidthPx  float32
	ContextPx    int
}

// DrawParams is spec §3's DrawParams.
type DrawParams struct {
	StartSec  float64
	Width     uint32
	Option    DrawOption
	OptForWav DrawOptionForWav
	Blend     float32 // in [0, 1]; 1 = spectrogram only, 0 = waveform only
}

// RGBA is a simple width x height interleaved RGBA buffer, avoiding a
// dependency on image.RGBA's stride/offset bookkeeping for the
// server-internal crop/blend arithmetic.
type RGBA struct {
	Width, Height int
	Pix           []uint8 // len == Width*Height*4
}

func newRGBA(w, h int) RGBA {
	return RGBA{Width: w, Height: h, Pix: make([]uint8, w*h*4)}
}

// category is spec §4.11 step 3a's per-(id,ch) classification.
type category int

const (
	useCache category = iota
	needPart
	needNewCache
)

// cacheEntry is a full-width cached image for one (id, ch).
type cacheEntry struct {
	img        RGBA
	totalWidth int // the track's full pixel width at the cached px_per_sec
}

// ImageSource abstracts the TrackManager/mipmap-backed producers the
// server calls into; kept as an interface so imgserver has no import
// cycle with internal/trackmgr or internal/mipmap.
type ImageSource interface {
	// DrawPartImgs renders the given id_ch list's visible window only,
	// for entries whose cache would exceed the width threshold.
	DrawPartImgs(ctx context.Context, idChs []trackmgr.IDCh, params DrawParams, fastResize bool) map[trackmgr.IDCh]RGBA
	// DrawEntireImgs renders full-width images for insertion into the cache.
	DrawEntireImgs(ctx context.Context, idChs []trackmgr.IDCh, params DrawParams) map[trackmgr.IDCh]RGBA
	// TotalWidthPx returns a track-channel's full pixel width at the
	// given px_per_sec, used for the cache-width threshold test.
	TotalWidthPx(idCh trackmgr.IDCh, pxPerSec float64) int
}

// Server is spec §4.11's single long-lived task pattern.
type Server struct {
	mu   sync.Mutex
	spec ImageSource
	wav  ImageSource

	specCache map[trackmgr.IDCh]cacheEntry
	wavCache  map[trackmgr.IDCh]cacheEntry

	prevOption    DrawOption
	prevOptForWav DrawOptionForWav
	haveParams    bool

	maxCacheWidthPx int

	cancel context.CancelFunc
	wg     sync.WaitGroup

	Results chan Delivery
}

// Delivery is one wave of results sent to the UI (spec §4.11: "first
// delivery", "part-draw phase", "new-cache phase").
type Delivery struct {
	Images map[trackmgr.IDCh]RGBA
	Wave   string // "cache" | "part" | "new_cache", for UI-side logging/tests
}

// NewServer returns a Server with empty caches.
func NewServer(spec, wav ImageSource, maxCacheWidthPx int) *Server {
	return &Server{
		spec:            spec,
		wav:             wav,
		specCache:       make(map[trackmgr.IDCh]cacheEntry),
		wavCache:        make(map[trackmgr.IDCh]cacheEntry),
		maxCacheWidthPx: maxCacheWidthPx,
		Results:         make(chan Delivery, 8),
	}
}

// Draw implements spec §4.11's per-Draw-message lifecycle: cancels any
// in-flight task, clears caches if option/opt_for_wav changed, then spawns
// a new task that emits up to three waves on s.Results.
func (s *Server) Draw(idChs []trackmgr.IDCh, params DrawParams) {
	log.Debug("draw", "n", len(idChs), "start_sec", params.StartSec, "width", params.Width)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.haveParams {
		if s.prevOption != params.Option {
			s.specCache = make(map[trackmgr.IDCh]cacheEntry)
			s.wavCache = make(map[trackmgr.IDCh]cacheEntry)
		} else if s.prevOptForWav != params.OptForWav {
			s.wavCache = make(map[trackmgr.IDCh]cacheEntry)
		}
	}
	s.prevOption, s.prevOptForWav, s.haveParams = params.Option, params.OptForWav, true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.runDraw(ctx, idChs, params)
	}()
}

// Remove implements spec §4.11's Remove: awaits the current task, then
// drops the named entries from both caches.
func (s *Server) Remove(idChs []trackmgr.IDCh) {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range idChs {
		delete(s.specCache, k)
		delete(s.wavCache, k)
	}
}

func (s *Server) runDraw(ctx context.Context, idChs []trackmgr.IDCh, params DrawParams) {
	specCats, wavCats := s.categorize(idChs, params)

	cached := s.cropPhase(idChs, params, specCats, wavCats)
	blended := s.blendAll(cached, params)
	if !s.deliver(ctx, blended, "cache") {
		return
	}

	partSpec := partIDs(specCats, needPart)
	partWav := partIDs(wavCats, needPart)
	if len(partSpec) > 0 || len(partWav) > 0 {
		fastResize := s.totalWidthFitsThreshold(idChs, params)
		partImgs := s.partPhase(ctx, partSpec, partWav, params, fastResize)
		if ctx.Err() != nil {
			return
		}
		if !s.deliver(ctx, partImgs, "part") {
			return
		}
	}

	newSpec := partIDs(specCats, needNewCache)
	newWav := partIDs(wavCats, needNewCache)
	if len(newSpec) > 0 || len(newWav) > 0 {
		newImgs := s.newCachePhase(ctx, newSpec, newWav, params)
		if ctx.Err() != nil {
			return
		}
		s.deliver(ctx, newImgs, "new_cache")
	}
}

func (s *Server) deliver(ctx context.Context, imgs map[trackmgr.IDCh]RGBA, wave string) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case s.Results <- Delivery{Images: imgs, Wave: wave}:
		return true
	case <-ctx.Done():
		return false
	}
}

// categorize implements spec §4.11 step 3a for both caches, gated by blend.
func (s *Server) categorize(idChs []trackmgr.IDCh, params DrawParams) (spec, wav map[trackmgr.IDCh]category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	spec = make(map[trackmgr.IDCh]category)
	wav = make(map[trackmgr.IDCh]category)
	if params.Blend > 0 {
		for _, k := range idChs {
			spec[k] = s.categorizeOne(s.specCache, s.spec, k, params)
		}
	}
	if params.Blend < 1 {
		for _, k := range idChs {
			wav[k] = s.categorizeOne(s.wavCache, s.wav, k, params)
		}
	}
	return spec, wav
}

func (s *Server) categorizeOne(cache map[trackmgr.IDCh]cacheEntry, src ImageSource, k trackmgr.IDCh, params DrawParams) category {
	entry, ok := cache[k]
	totalWidth := src.TotalWidthPx(k, params.Option.PxPerSec)
	if ok && entry.totalWidth == totalWidth {
		return useCache
	}
	if totalWidth <= s.maxCacheWidthPx {
		return needNewCache
	}
	return needPart
}

func (s *Server) totalWidthFitsThreshold(idChs []trackmgr.IDCh, params DrawParams) bool {
	for _, k := range idChs {
		w := s.spec.TotalWidthPx(k, params.Option.PxPerSec)
		if w > s.maxCacheWidthPx {
			return false
		}
	}
	return true
}

func partIDs(cats map[trackmgr.IDCh]category, want category) []trackmgr.IDCh {
	var out []trackmgr.IDCh
	for k, c := range cats {
		if c == want {
			out = append(out, k)
		}
	}
	return out
}

// cropPhase implements spec §4.11 step 3b: crop cached images to the
// requested window, zero-padding outside [0, total_width].
func (s *Server) cropPhase(idChs []trackmgr.IDCh, params DrawParams, specCats, wavCats map[trackmgr.IDCh]category) map[trackmgr.IDCh][2]RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[trackmgr.IDCh][2]RGBA, len(idChs))
	for _, k := range idChs {
		specHit := specCats[k] == useCache
		wavHit := wavCats[k] == useCache
		if !specHit && !wavHit {
			continue
		}
		var pair [2]RGBA
		if specHit {
			pair[0] = cropWindow(s.specCache[k].img, params)
		}
		if wavHit {
			pair[1] = cropWindow(s.wavCache[k].img, params)
		}
		out[k] = pair
	}
	return out
}

// cropWindow crops img to the pixel window implied by
// [start_sec, start_sec+width/px_per_sec), zero-padding outside the
// source's bounds.
func cropWindow(img RGBA, params DrawParams) RGBA {
	if img.Width == 0 {
		return RGBA{}
	}
	left := int(params.StartSec * params.Option.PxPerSec)
	width := int(params.Width)
	height := img.Height
	out := newRGBA(width, height)
	for x := 0; x < width; x++ {
		srcX := left + x
		if srcX < 0 || srcX >= img.Width {
			continue
		}
		for y := 0; y < height; y++ {
			srcIdx := (y*img.Width + srcX) * 4
			dstIdx := (y*width + x) * 4
			copy(out.Pix[dstIdx:dstIdx+4], img.Pix[srcIdx:srcIdx+4])
		}
	}
	return out
}

// blendAll implements spec §4.11 step 3c for every (id, ch) in cropped.
func (s *Server) blendAll(cropped map[trackmgr.IDCh][2]RGBA, params DrawParams) map[trackmgr.IDCh]RGBA {
	out := make(map[trackmgr.IDCh]RGBA, len(cropped))
	for k, pair := range cropped {
		out[k] = Blend(pair[0], pair[1], params.Blend)
	}
	return out
}

// Blend implements spec §4.11 step 3c / spec §3's DrawParams blend
// semantics: 1 = spec only, 0 = wav with alpha opaque on its effective
// region, (0,1) = darken-then-composite cross-fade.
func Blend(spec, wav RGBA, blend float32) RGBA {
	if blend >= 1 {
		return spec
	}
	if blend <= 0 {
		return opaque(wav)
	}
	w, h := spec.Width, spec.Height
	if w == 0 {
		w, h = wav.Width, wav.Height
	}
	out := newRGBA(w, h)
	darken := float32(0)
	if blend < 0.5 {
		darken = 1 - 2*blend
	}
	wavOpacity := float32(1)
	if 2-2*blend < 1 {
		wavOpacity = 2 - 2*blend
	}
	for i := 0; i < w*h; i++ {
		si := i * 4
		var r, g, b, a uint8
		if si+3 < len(spec.Pix) {
			r, g, b, a = spec.Pix[si], spec.Pix[si+1], spec.Pix[si+2], spec.Pix[si+3]
		}
		if darken > 0 {
			r = darkenByte(r, darken)
			g = darkenByte(g, darken)
			b = darkenByte(b, darken)
		}
		if si+3 < len(wav.Pix) {
			wr, wg, wb, wa := wav.Pix[si], wav.Pix[si+1], wav.Pix[si+2], wav.Pix[si+3]
			alpha := float32(wa) / 255 * wavOpacity
			r = compositeByte(r, wr, alpha)
			g = compositeByte(g, wg, alpha)
			b = compositeByte(b, wb, alpha)
			newA := float32(a) + alpha*(255-float32(a))
			a = uint8(newA)
		}
		out.Pix[si], out.Pix[si+1], out.Pix[si+2], out.Pix[si+3] = r, g, b, a
	}
	return out
}

func darkenByte(v uint8, amount float32) uint8 {
	f := float32(v) * (1 - amount)
	return uint8(f)
}

func compositeByte(base, top uint8, alpha float32) uint8 {
	f := float32(base)*(1-alpha) + float32(top)*alpha
	return uint8(f)
}

func opaque(img RGBA) RGBA {
	out := RGBA{Width: img.Width, Height: img.Height, Pix: make([]uint8, len(img.Pix))}
	copy(out.Pix, img.Pix)
	for i := 3; i < len(out.Pix); i += 4 {
		if out.Pix[i] > 0 {
			out.Pix[i] = 255
		}
	}
	return out
}

// partPhase implements spec §4.11 step 3e.
func (s *Server) partPhase(ctx context.Context, specIDs, wavIDs []trackmgr.IDCh, params DrawParams, fastResize bool) map[trackmgr.IDCh]RGBA {
	specImgs := s.spec.DrawPartImgs(ctx, specIDs, params, fastResize)
	wavImgs := s.wav.DrawPartImgs(ctx, wavIDs, params, fastResize)
	return mergeBlend(specImgs, wavImgs, params.Blend)
}

// newCachePhase implements spec §4.11 step 3g: produce full-width images,
// insert into caches, then crop+blend.
func (s *Server) newCachePhase(ctx context.Context, specIDs, wavIDs []trackmgr.IDCh, params DrawParams) map[trackmgr.IDCh]RGBA {
	specImgs := s.spec.DrawEntireImgs(ctx, specIDs, params)
	wavImgs := s.wav.DrawEntireImgs(ctx, wavIDs, params)

	s.mu.Lock()
	for k, img := range specImgs {
		s.specCache[k] = cacheEntry{img: img, totalWidth: img.Width}
	}
	for k, img := range wavImgs {
		s.wavCache[k] = cacheEntry{img: img, totalWidth: img.Width}
	}
	s.mu.Unlock()

	cropped := make(map[trackmgr.IDCh][2]RGBA)
	for k, img := range specImgs {
		var pair [2]RGBA
		pair[0] = cropWindow(img, params)
		if w, ok := wavImgs[k]; ok {
			pair[1] = cropWindow(w, params)
		}
		cropped[k] = pair
	}
	for k, img := range wavImgs {
		if _, ok := cropped[k]; !ok {
			cropped[k] = [2]RGBA{{}, cropWindow(img, params)}
		}
	}
	return s.blendAll(cropped, params)
}

func mergeBlend(spec, wav map[trackmgr.IDCh]RGBA, blend float32) map[trackmgr.IDCh]RGBA {
	out := make(map[trackmgr.IDCh]RGBA)
	for k, s := range spec {
		out[k] = Blend(s, wav[k], blend)
	}
	for k, w := range wav {
		if _, ok := out[k]; !ok {
			out[k] = Blend(RGBA{}, w, blend)
		}
	}
	return out
}
