// Package mipmap implements spec §4.7: a per-track-channel image pyramid
// of disk-backed, memory-mapped .npy tiles with lazy background
// generation and pruning. Grounded on
// original_source/src_backend/backend/visualize/mipmap.rs for the level
// layout and status-transition algorithm; storage is necessarily
// reimplemented (the Rust reference keeps everything in memory via
// fast_image_resize, this port persists tiles to disk per spec §4.7/§6.2
// — see DESIGN.md).
package mipmap

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/image/draw"

	"github.com/sytronik/thesia-go/internal/coord"
	"github.com/sytronik/thesia-go/internal/obslog"
)

var log = obslog.For("mipmap")

// Status is a Mipmap cell's lifecycle state (spec §4.7: "NoFile → Creating
// → Exists exactly once").
type Status int

const (
	NoFile Status = iota
	Creating
	Exists
)

// Cell is spec §3's Mipmap entry.
type Cell struct {
	Width, Height int
	Path          string
	Status        Status
}

// Pyramid is spec §3's per-track-channel Mipmap Pyramid.
type Pyramid struct {
	mu sync.RWMutex

	dir     string
	maxSize int

	// cells[i][j]: axis 0 (i) halves height each step, axis 1 (j) halves
	// width each step, both clamped at maxSize.
	cells [][]Cell

	base   []uint16 // the (0,0) level's pixels, kept resident
	baseW  int
	baseH  int
}

// NewPyramid lays out the level grid for an image of size (w0, h0) and
// synchronously materializes the (0,0) level and the last (lowest
// resolution) corner, matching the invariant that the last cell is
// always Exists before any user query.
func NewPyramid(dir string, pixels []uint16, w0, h0, maxSize int) (*Pyramid, error) {
	if maxSize < 1 {
		maxSize = 1
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mipmap dir %s: %w", dir, err)
	}
	heights := levelSizes(h0, maxSize)
	widths := levelSizes(w0, maxSize)

	p := &Pyramid{dir: dir, maxSize: maxSize, base: pixels, baseW: w0, baseH: h0}
	p.cells = make([][]Cell, len(heights))
	for i, h := range heights {
		row := make([]Cell, len(widths))
		for j, w := range widths {
			row[j] = Cell{Width: w, Height: h, Path: p.tilePath(i, j), Status: NoFile}
		}
		p.cells[i] = row
	}

	p.cells[0][0].Status = Exists // resident in memory, no file needed
	lastI, lastJ := len(heights)-1, len(widths)-1
	if err := p.materialize(lastI, lastJ); err != nil {
		return nil, err
	}
	return p, nil
}

func levelSizes(size0, maxSize int) []int {
	sizes := []int{size0}
	cur := size0
	for cur > maxSize {
		cur /= 2
		if cur < maxSize {
			cur = maxSize
		}
		sizes = append(sizes, cur)
	}
	return sizes
}

func (p *Pyramid) tilePath(i, j int) string {
	return filepath.Join(p.dir, fmt.Sprintf("mip_%d_%d.npy", i, j))
}

// materialize resizes the base image to cells[i][j]'s dimensions and
// writes it to disk, transitioning NoFile -> Creating -> Exists exactly
// once. Caller must hold no lock; materialize takes its own.
func (p *Pyramid) materialize(i, j int) error {
	p.mu.Lock()
	cell := p.cells[i][j]
	if cell.Status == Exists {
		p.mu.Unlock()
		return nil
	}
	p.cells[i][j].Status = Creating
	p.mu.Unlock()

	resized := resizeGray16(p.base, p.baseW, p.baseH, cell.Width, cell.Height)
	if err := writeNpyUint16(cell.Path, cell.Width, cell.Height, resized); err != nil {
		return err
	}

	p.mu.Lock()
	p.cells[i][j].Status = Exists
	p.mu.Unlock()
	return nil
}

// MaterializeAsync schedules background generation of cells[i][j] if it
// is still NoFile, returning immediately.
func (p *Pyramid) MaterializeAsync(i, j int) {
	p.mu.RLock()
	if i >= len(p.cells) || j >= len(p.cells[i]) || p.cells[i][j].Status != NoFile {
		p.mu.RUnlock()
		return
	}
	p.mu.RUnlock()
	go func() {
		if err := p.materialize(i, j); err != nil {
			log.Warn("mipmap tile generation failed", "i", i, "j", j, "err", err)
		}
	}()
}

// SlicedMipmap is the result of GetSlicedMipmap: a slice of pixels from
// whichever level was available, plus whether the caller should retry
// for full resolution later.
type SlicedMipmap struct {
	Pixels    []uint16
	Width     int
	Height    int
	LevelI    int
	LevelJ    int
	NeedWait  bool
}

// GetSlicedMipmap implements spec §4.7's core query: finds the finest
// cell whose width <= widthReq and height <= heightReq (the coarsest
// level when none fits) for the given target display size, returning its full tile
// (the design doesn't sub-slice the tile beyond level selection; per-pixel
// cropping is the image server's job in internal/imgserver). If the
// selected cell isn't ready, a lower-resolution Exists cell is returned
// instead and generation is scheduled.
func (p *Pyramid) GetSlicedMipmap(widthReq, heightReq int) SlicedMipmap {
	p.mu.RLock()
	i, j := p.selectLevelLocked(widthReq, heightReq)
	cell := p.cells[i][j]
	p.mu.RUnlock()

	if cell.Status == Exists {
		pixels, w, h := p.readLevel(i, j)
		p.Prune(i, j)
		return SlicedMipmap{Pixels: pixels, Width: w, Height: h, LevelI: i, LevelJ: j}
	}

	p.MaterializeAsync(i, j)
	li, lj := p.lowerResExistsLocked(i, j)
	pixels, w, h := p.readLevel(li, lj)
	p.Prune(li, lj)
	return SlicedMipmap{Pixels: pixels, Width: w, Height: h, LevelI: li, LevelJ: lj, NeedWait: true}
}

// SliceArgs is spec §4.7's derived SpectrogramSliceArgs: the pixel window
// of the returned tile within the selected level's own cell, plus which
// level was actually used to serve the query.
type SliceArgs struct {
	LeftPx, TopPx     int
	WidthPx, HeightPx int
	LevelI, LevelJ    int
}

// Slice is the {args, tile, sec0} triple spec §4.7/§6.1's
// get_sliced_mipmap / getSpectrogram return: the derived args, the cropped
// pixel tile (row-major, Args.WidthPx x Args.HeightPx), and the time in
// seconds at the tile's left edge.
type Slice struct {
	Args     SliceArgs
	Pixels   []uint16
	Sec0     float64
	NeedWait bool
}

// SliceRequest is spec §4.7's get_sliced_mipmap query: a requested time
// window and frequency sub-band, plus a symmetric pixel margin for
// smooth panning lookahead.
type SliceRequest struct {
	TrackSec    float64    // total track duration in seconds
	SecRange    [2]float64 // requested (t0, t1) window
	SpecHzRange [2]float64 // the band the base image was built over, e.g. (0, nyquist)
	HzRange     [2]float64 // requested (f0, f1) sub-band
	MarginPx    int
	FreqScale   coord.FreqScale
}

// GetSlice implements spec §4.7's full get_sliced_mipmap contract: it maps
// the requested (sec_range, hz_range) onto a fractional pixel window of the
// base image, picks the finest level whose slice fits max_size x max_size,
// crops that level's tile to the window (scaled to the level's own
// resolution), and prunes stale tiles around the chosen cell.
func (p *Pyramid) GetSlice(req SliceRequest) Slice {
	colLo, colHi := p.secRangeToCols(req)
	rowLo, rowHi := p.hzRangeToRows(req)

	p.mu.RLock()
	i, j := p.selectLevelForSliceLocked(colHi-colLo, rowHi-rowLo)
	cell := p.cells[i][j]
	p.mu.RUnlock()

	li, lj := i, j
	needWait := cell.Status != Exists
	if needWait {
		p.MaterializeAsync(i, j)
		li, lj = p.lowerResExistsLocked(i, j)
	}

	pixels, w, h := p.readLevel(li, lj)
	args, tile, sec0 := p.cropToLevel(pixels, w, h, li, lj, req, colLo, colHi, rowLo, rowHi)
	p.Prune(li, lj)
	return Slice{Args: args, Pixels: tile, Sec0: sec0, NeedWait: needWait}
}

// secRangeToCols maps req.SecRange onto a [0, baseW] column range of the
// base image, expanded by req.MarginPx on each side.
func (p *Pyramid) secRangeToCols(req SliceRequest) (lo, hi int) {
	if req.TrackSec <= 0 || p.baseW <= 0 {
		return 0, p.baseW
	}
	loFrac := req.SecRange[0] / req.TrackSec
	hiFrac := req.SecRange[1] / req.TrackSec
	lo = int(math.Floor(loFrac*float64(p.baseW))) - req.MarginPx
	hi = int(math.Ceil(hiFrac*float64(p.baseW))) + req.MarginPx
	return clampInt(lo, 0, p.baseW), clampInt(hi, 0, p.baseW)
}

// hzRangeToRows maps req.HzRange onto a [0, baseH] row range of the base
// image via the same scale.FreqScale.HzRangeToIdx convention
// trackmgr.rebuildImagesLocked used to build the image in the first place,
// expanded by req.MarginPx on each side.
func (p *Pyramid) hzRangeToRows(req SliceRequest) (lo, hi int) {
	lo, hi = req.FreqScale.HzRangeToIdx(req.HzRange[0], req.HzRange[1], req.SpecHzRange[1], p.baseH)
	lo -= req.MarginPx
	hi += req.MarginPx
	return clampInt(lo, 0, p.baseH), clampInt(hi, 0, p.baseH)
}

// selectLevelForSliceLocked picks the finest level whose slice (the
// requested column/row span scaled down to that level's own resolution)
// fits within maxSize x maxSize. Caller must hold p.mu (read or write).
func (p *Pyramid) selectLevelForSliceLocked(colSpan, rowSpan int) (i, j int) {
	baseW, baseH := maxInt(p.baseW, 1), maxInt(p.baseH, 1)
	for ii := range p.cells {
		rows := int(math.Round(float64(rowSpan) * float64(p.cells[ii][0].Height) / float64(baseH)))
		if rows <= p.maxSize || ii == len(p.cells)-1 {
			i = ii
			break
		}
	}
	for jj := range p.cells[i] {
		cols := int(math.Round(float64(colSpan) * float64(p.cells[i][jj].Width) / float64(baseW)))
		if cols <= p.maxSize || jj == len(p.cells[i])-1 {
			j = jj
			break
		}
	}
	return i, j
}

// cropToLevel rescales the base-resolution column/row bounds to level
// (li, lj)'s own pixel grid and crops pixels (that level's w x h tile) to
// the result.
func (p *Pyramid) cropToLevel(pixels []uint16, w, h, li, lj int, req SliceRequest, colLo, colHi, rowLo, rowHi int) (SliceArgs, []uint16, float64) {
	baseW, baseH := maxInt(p.baseW, 1), maxInt(p.baseH, 1)

	leftPx := clampInt(int(math.Floor(float64(colLo)*float64(w)/float64(baseW))), 0, w)
	rightPx := clampInt(int(math.Ceil(float64(colHi)*float64(w)/float64(baseW))), leftPx, w)
	topPx := clampInt(int(math.Floor(float64(rowLo)*float64(h)/float64(baseH))), 0, h)
	bottomPx := clampInt(int(math.Ceil(float64(rowHi)*float64(h)/float64(baseH))), topPx, h)

	widthPx, heightPx := rightPx-leftPx, bottomPx-topPx
	tile := make([]uint16, widthPx*heightPx)
	for y := 0; y < heightPx; y++ {
		srcOff := (topPx+y)*w + leftPx
		dstOff := y * widthPx
		copy(tile[dstOff:dstOff+widthPx], pixels[srcOff:srcOff+widthPx])
	}

	sec0 := req.TrackSec * float64(leftPx) / float64(maxInt(w, 1))
	args := SliceArgs{LeftPx: leftPx, TopPx: topPx, WidthPx: widthPx, HeightPx: heightPx, LevelI: li, LevelJ: lj}
	return args, tile, sec0
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (p *Pyramid) readLevel(i, j int) ([]uint16, int, int) {
	if i == 0 && j == 0 {
		return p.base, p.baseW, p.baseH
	}
	p.mu.RLock()
	path := p.cells[i][j].Path
	p.mu.RUnlock()
	tile, err := mmapNpyUint16(path)
	if err != nil {
		log.Warn("mipmap tile read failed, falling back to base", "i", i, "j", j, "err", err)
		return p.base, p.baseW, p.baseH
	}
	return tile.Pixels, tile.Width, tile.Height
}

// selectLevelLocked picks the finest level whose dims are both <= the
// requested display size, clamped to the smallest level available.
// Caller must hold p.mu (read or write).
func (p *Pyramid) selectLevelLocked(widthReq, heightReq int) (i, j int) {
	for ii := range p.cells {
		if p.cells[ii][0].Height <= heightReq || ii == len(p.cells)-1 {
			i = ii
			break
		}
	}
	for jj := range p.cells[i] {
		if p.cells[i][jj].Width <= widthReq || jj == len(p.cells[i])-1 {
			j = jj
			break
		}
	}
	return i, j
}

func (p *Pyramid) lowerResExistsLocked(i, j int) (li, lj int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for ii := i; ii < len(p.cells); ii++ {
		for jj := j; jj < len(p.cells[ii]); jj++ {
			if p.cells[ii][jj].Status == Exists {
				return ii, jj
			}
		}
	}
	return 0, 0
}

// Prune removes tile files that are neither the given working cell, its
// 8 neighbors, nor the last (lowest-resolution) cell (spec §4.7).
func (p *Pyramid) Prune(workingI, workingJ int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	lastI, lastJ := len(p.cells)-1, len(p.cells[len(p.cells)-1])-1
	keep := make(map[[2]int]bool)
	for di := -1; di <= 1; di++ {
		for dj := -1; dj <= 1; dj++ {
			ii, jj := workingI+di, workingJ+dj
			if ii >= 0 && ii < len(p.cells) && jj >= 0 && jj < len(p.cells[ii]) {
				keep[[2]int{ii, jj}] = true
			}
		}
	}
	keep[[2]int{lastI, lastJ}] = true
	keep[[2]int{0, 0}] = true

	for i, row := range p.cells {
		for j, cell := range row {
			if keep[[2]int{i, j}] || cell.Status != Exists || (i == 0 && j == 0) {
				continue
			}
			if err := os.Remove(cell.Path); err == nil {
				p.cells[i][j].Status = NoFile
			}
		}
	}
}

// resizeGray16 downsamples a planar uint16 grayscale buffer to the given
// size via golang.org/x/image/draw's bilinear scaler over image.Gray16,
// the same full-precision resize engine_imgsource.go's own resizeGray16
// uses for ad hoc part-draw sizes (mipmap.go can't import the root
// package to share that function directly, so the two stay as sibling
// implementations of the same technique).
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
