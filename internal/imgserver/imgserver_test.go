package imgserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sytronik/thesia-go/internal/trackmgr"
)

type fakeSource struct {
	totalWidth int
	fill       uint8
}

func (f *fakeSource) TotalWidthPx(trackmgr.IDCh, float64) int { return f.totalWidth }

func (f *fakeSource) DrawEntireImgs(_ context.Context, idChs []trackmgr.IDCh, params DrawParams) map[trackmgr.IDCh]RGBA {
	out := make(map[trackmgr.IDCh]RGBA)
	for _, k := range idChs {
		out[k] = solidRGBA(f.totalWidth, int(params.Option.Height), f.fill)
	}
	return out
}

func (f *fakeSource) DrawPartImgs(_ context.Context, idChs []trackmgr.IDCh, params DrawParams, _ bool) map[trackmgr.IDCh]RGBA {
	out := make(map[trackmgr.IDCh]RGBA)
	for _, k := range idChs {
		out[k] = solidRGBA(int(params.Width), int(params.Option.Height), f.fill)
	}
	return out
}

func solidRGBA(w, h int, v uint8) RGBA {
	img := newRGBA(w, h)
	for i := range img.Pix {
		if i%4 == 3 {
			img.Pix[i] = 255
		} else {
			img.Pix[i] = v
		}
	}
	return img
}

func Test_Blend_oneReturnsSpecUnchanged(t *testing.T) {
	spec := solidRGBA(2, 2, 200)
	wav := solidRGBA(2, 2, 10)
	out := Blend(spec, wav, 1)
	assert.Equal(t, spec, out)
}

func Test_Blend_zeroReturnsOpaqueWav(t *testing.T) {
	wav := solidRGBA(2, 2, 10)
	wav.Pix[3] = 128 // one non-opaque alpha
	out := Blend(RGBA{}, wav, 0)
	for i := 3; i < len(out.Pix); i += 4 {
		assert.Equal(t, uint8(255), out.Pix[i])
	}
}

func Test_Blend_midpointDarkensAndComposites(t *testing.T) {
	spec := solidRGBA(1, 1, 200)
	wav := solidRGBA(1, 1, 100)
	out := Blend(spec, wav, 0.5)
	assert.Equal(t, 1, out.Width)
	assert.Len(t, out.Pix, 4)
}

func Test_Server_Draw_firstCallGoesThroughNewCachePhaseAndDeliversCache(t *testing.T) {
	spec := &fakeSource{totalWidth: 500, fill: 200}
	wav := &fakeSource{totalWidth: 500, fill: 50}
	s := NewServer(spec, wav, 1000)

	k := trackmgr.IDCh{ID: 0, Ch: 0}
	s.Draw([]trackmgr.IDCh{k}, DrawParams{
		StartSec: 0, Width: 100,
		Option: DrawOption{PxPerSec: 10, Height: 64},
		Blend:  1,
	})

	var deliveries []Delivery
	timeout := time.After(2 * time.Second)
	for len(deliveries) < 2 {
		select {
		case d := <-s.Results:
			deliveries = append(deliveries, d)
		case <-timeout:
			t.Fatal("timed out waiting for the cache and new-cache deliveries")
		}
	}
	first := deliveries[0]
	assert.Equal(t, "cache", first.Wave)
	assert.Empty(t, first.Images, "first delivery must carry no entries when both caches are empty")
	assert.Equal(t, "new_cache", deliveries[1].Wave)
}

func Test_Server_Draw_cancelsPriorTaskOnNewDraw(t *testing.T) {
	spec := &fakeSource{totalWidth: 500, fill: 200}
	wav := &fakeSource{totalWidth: 500, fill: 50}
	s := NewServer(spec, wav, 1000)

	k := trackmgr.IDCh{ID: 0, Ch: 0}
	params := DrawParams{StartSec: 0, Width: 100, Option: DrawOption{PxPerSec: 10, Height: 64}, Blend: 1}
	s.Draw([]trackmgr.IDCh{k}, params)
	s.Draw([]trackmgr.IDCh{k}, params)
	s.wg.Wait()
	require.NotNil(t, s.cancel)
}

func Test_Server_Remove_dropsCacheEntries(t *testing.T) {
	spec := &fakeSource{totalWidth: 500, fill: 200}
	wav := &fakeSource{totalWidth: 500, fill: 50}
	s := NewServer(spec, wav, 1000)

	k := trackmgr.IDCh{ID: 0, Ch: 0}
	s.specCache[k] = cacheEntry{img: solidRGBA(10, 10, 1), totalWidth: 10}
	s.Remove([]trackmgr.IDCh{k})

	_, ok := s.specCache[k]
	assert.False(t, ok)
}

func Test_categorizeOne_usesCacheWhenTotalWidthUnchanged(t *testing.T) {
	spec := &fakeSource{totalWidth: 200}
	s := NewServer(spec, spec, 1000)
	k := trackmgr.IDCh{ID: 0, Ch: 0}
	s.specCache[k] = cacheEntry{img: RGBA{Width: 200}, totalWidth: 200}

	got := s.categorizeOne(s.specCache, spec, k, DrawParams{Option: DrawOption{PxPerSec: 10}})
	assert.Equal(t, useCache, got)
}

func Test_categorizeOne_needsNewCacheWhenBelowThreshold(t *testing.T) {
	spec := &fakeSource{totalWidth: 200}
	s := NewServer(spec, spec, 1000)
	k := trackmgr.IDCh{ID: 0, Ch: 0}

	got := s.categorizeOne(s.specCache, spec, k, DrawParams{Option: DrawOption{PxPerSec: 10}})
	assert.Equal(t, needNewCache, got)
}

func Test_categorizeOne_needsPartWhenAboveThreshold(t *testing.T) {
	spec := &fakeSource{totalWidth: 5000}
	s := NewServer(spec, spec, 1000)
	k := trackmgr.IDCh{ID: 0, Ch: 0}

	got := s.categorizeOne(s.specCache, spec, k, DrawParams{Option: DrawOption{PxPerSec: 10}})
	assert.Equal(t, needPart, got)
}
