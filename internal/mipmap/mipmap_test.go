package mipmap

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sytronik/thesia-go/internal/coord"
)

func makeBase(w, h int) []uint16 {
	px := make([]uint16, w*h)
	for i := range px {
		px[i] = uint16(i % 65535)
	}
	return px
}

func Test_NewPyramid_baseAndLastCellExistImmediately(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPyramid(dir, makeBase(400, 200), 400, 200, 100)
	require.NoError(t, err)

	assert.Equal(t, Exists, p.cells[0][0].Status)
	lastI, lastJ := len(p.cells)-1, len(p.cells[len(p.cells)-1])-1
	assert.Equal(t, Exists, p.cells[lastI][lastJ].Status)
}

func Test_levelSizes_halvesUntilClampedToMaxSize(t *testing.T) {
	sizes := levelSizes(400, 100)
	assert.Equal(t, 400, sizes[0])
	assert.Equal(t, sizes[len(sizes)-1], 100)
	for _, s := range sizes {
		assert.GreaterOrEqual(t, s, 100)
	}
}

func Test_GetSlicedMipmap_returnsBaseWhenRequestMatchesFullSize(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPyramid(dir, makeBase(400, 200), 400, 200, 100)
	require.NoError(t, err)

	result := p.GetSlicedMipmap(400, 200)
	assert.Equal(t, 0, result.LevelI)
	assert.Equal(t, 0, result.LevelJ)
	assert.False(t, result.NeedWait)
	assert.Len(t, result.Pixels, 400*200)
}

func Test_GetSlicedMipmap_lowResRequestUsesCoarserLevel(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPyramid(dir, makeBase(400, 200), 400, 200, 100)
	require.NoError(t, err)

	result := p.GetSlicedMipmap(50, 25)
	assert.True(t, result.LevelI > 0 || result.LevelJ > 0)
}

func Test_Prune_keepsWorkingNeighborhoodAndCorners(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPyramid(dir, makeBase(800, 800), 800, 800, 50)
	require.NoError(t, err)

	for i := range p.cells {
		for j := range p.cells[i] {
			if p.cells[i][j].Status == NoFile {
				require.NoError(t, p.materialize(i, j))
			}
		}
	}

	p.Prune(1, 1)

	lastI, lastJ := len(p.cells)-1, len(p.cells[len(p.cells)-1])-1
	assert.Equal(t, Exists, p.cells[lastI][lastJ].Status, "lowest-res corner must survive pruning")
	assert.Equal(t, Exists, p.cells[0][0].Status, "base level must survive pruning")

	for i, row := range p.cells {
		for j, cell := range row {
			inNeighborhood := i >= 0 && i <= 2 && j >= 0 && j <= 2
			isCorner := (i == 0 && j == 0) || (i == lastI && j == lastJ)
			if !inNeighborhood && !isCorner {
				assert.Equal(t, NoFile, cell.Status, "cell (%d,%d) should have been pruned", i, j)
			}
		}
	}
}

func Test_tilePath_isStableAndUnderDir(t *testing.T) {
	p := &Pyramid{dir: "/tmp/mips"}
	assert.Equal(t, filepath.Join("/tmp/mips", "mip_2_3.npy"), p.tilePath(2, 3))
}

func Test_GetSlice_fullRangeAtBaseLevelReturnsWholeImage(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPyramid(dir, makeBase(400, 200), 400, 200, 1000)
	require.NoError(t, err)

	result := p.GetSlice(SliceRequest{
		TrackSec:    10,
		SecRange:    [2]float64{0, 10},
		SpecHzRange: [2]float64{0, 8000},
		HzRange:     [2]float64{0, 8000},
		FreqScale:   coord.Linear,
	})

	assert.Equal(t, 0, result.Args.LevelI)
	assert.Equal(t, 0, result.Args.LevelJ)
	assert.False(t, result.NeedWait)
	assert.Equal(t, 400, result.Args.WidthPx)
	assert.Equal(t, 200, result.Args.HeightPx)
	assert.Len(t, result.Pixels, 400*200)
}

func Test_GetSlice_narrowWindowCropsToRequestedSubRegion(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPyramid(dir, makeBase(400, 200), 400, 200, 1000)
	require.NoError(t, err)

	result := p.GetSlice(SliceRequest{
		TrackSec:    10,
		SecRange:    [2]float64{2, 3}, // [0.2, 0.3) of track -> cols [80, 120)
		SpecHzRange: [2]float64{0, 8000},
		HzRange:     [2]float64{0, 4000}, // lower half of the band -> rows [0, 100)
		FreqScale:   coord.Linear,
	})

	assert.Equal(t, 0, result.Args.LevelI)
	assert.Equal(t, 0, result.Args.LevelJ)
	assert.Equal(t, 80, result.Args.LeftPx)
	assert.Equal(t, 40, result.Args.WidthPx)
	assert.Equal(t, 0, result.Args.TopPx)
	assert.Equal(t, 100, result.Args.HeightPx)
	assert.InDelta(t, 2.0, result.Sec0, 1e-9)
	assert.Len(t, result.Pixels, 40*100)
}

func Test_GetSlice_marginPxExpandsTheCroppedWindow(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPyramid(dir, makeBase(400, 200), 400, 200, 1000)
	require.NoError(t, err)

	withoutMargin := p.GetSlice(SliceRequest{
		TrackSec: 10, SecRange: [2]float64{2, 3},
		SpecHzRange: [2]float64{0, 8000}, HzRange: [2]float64{0, 4000},
		FreqScale: coord.Linear,
	})
	withMargin := p.GetSlice(SliceRequest{
		TrackSec: 10, SecRange: [2]float64{2, 3},
		SpecHzRange: [2]float64{0, 8000}, HzRange: [2]float64{0, 4000},
		MarginPx: 10, FreqScale: coord.Linear,
	})

	assert.Greater(t, withMargin.Args.WidthPx, withoutMargin.Args.WidthPx)
	assert.Less(t, withMargin.Args.LeftPx, withoutMargin.Args.LeftPx)
}

func Test_GetSlice_lowResRequestSelectsCoarserLevelAndFitsMaxSize(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPyramid(dir, makeBase(800, 800), 800, 800, 50)
	require.NoError(t, err)

	result := p.GetSlice(SliceRequest{
		TrackSec:    20,
		SecRange:    [2]float64{0, 20},
		SpecHzRange: [2]float64{0, 8000},
		HzRange:     [2]float64{0, 8000},
		FreqScale:   coord.Linear,
	})

	assert.True(t, result.Args.LevelI > 0 || result.Args.LevelJ > 0)
	assert.LessOrEqual(t, result.Args.WidthPx, 50)
	assert.LessOrEqual(t, result.Args.HeightPx, 50)
}
