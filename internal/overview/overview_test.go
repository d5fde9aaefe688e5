package overview

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sytronik/thesia-go/internal/track"
)

func Test_Layout_capsAtMaxChannels(t *testing.T) {
	layouts := Layout(8, false, Options{Height: 400, GapH: 2})
	assert.Len(t, layouts, maxChannels)
}

func Test_Layout_reservesGainBandsWhenRequested(t *testing.T) {
	layouts := Layout(2, true, Options{Height: 400, GapH: 2, GainH: 10})
	for _, l := range layouts {
		assert.NotNil(t, l.GainTop)
		assert.NotNil(t, l.GainBottom)
	}
}

func Test_Layout_noGainBandsWhenNotRequested(t *testing.T) {
	layouts := Layout(2, false, Options{Height: 400, GapH: 2})
	for _, l := range layouts {
		assert.Nil(t, l.GainTop)
		assert.Nil(t, l.GainBottom)
	}
}

func Test_Layout_zeroChannelsYieldsNoLayout(t *testing.T) {
	layouts := Layout(0, false, Options{Height: 400})
	assert.Nil(t, layouts)
}

func Test_Build_producesOneDrawingPerChannel(t *testing.T) {
	wavs := [][]float32{make([]float32, 1000), make([]float32, 1000)}
	tr := &track.Track{Audio: track.NewAudio(wavs, 44100)}
	drawings := Build(tr, Options{Width: 100, Height: 200, GapH: 2, GainH: 10, LineWidthPx: 1, TopBottomCtx: 8})
	assert.Len(t, drawings, 2)
	for i, d := range drawings {
		assert.Equal(t, i, d.Layout.Ch)
		assert.NotNil(t, d.Wave)
	}
}
