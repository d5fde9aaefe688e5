package spectroimg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Build_shapeMatchesFrameCountAndFreqBand(t *testing.T) {
	spec := [][]float32{
		{-80, -40, -10, 0},
		{-80, -40, -10, 0},
		{-80, -40, -10, 0},
	}
	img := Build(spec, 1, 3, -80, 0, 0)
	assert.Equal(t, 3, img.Width)
	assert.Equal(t, 2, img.Height)
	assert.Len(t, img.Pixels, 2)
	for _, row := range img.Pixels {
		assert.Len(t, row, 3)
	}
}

func Test_Build_minDBMapsToOneAndMaxDBMapsToMax(t *testing.T) {
	spec := [][]float32{{-80}, {0}}
	img := Build(spec, 0, 1, -80, 0, 0)
	assert.Equal(t, uint16(1), img.Pixels[0][0])
	assert.Equal(t, uint16(65535), img.Pixels[0][1])
}

func Test_Build_outOfBandFrequencyIsZero(t *testing.T) {
	spec := [][]float32{{-10, -10, -10}}
	img := Build(spec, 5, 8, -80, 0, 0)
	assert.Equal(t, uint16(0), img.Pixels[0][0])
}

func Test_Build_quantizesToColormapLengthLevels(t *testing.T) {
	spec := make([][]float32, 1)
	row := make([]float32, 200)
	for i := range row {
		row[i] = -80 + float32(i)*(80.0/199.0)
	}
	spec[0] = row
	img := Build(spec, 0, 1, -80, 0, 16)

	distinct := make(map[uint16]struct{})
	for _, v := range img.Pixels[0] {
		distinct[v] = struct{}{}
	}
	assert.LessOrEqual(t, len(distinct), 16)
}

func Test_Build_zeroSpanClampsToOne(t *testing.T) {
	spec := [][]float32{{-40, 0, 40}}
	img := Build(spec, 0, 1, 0, 0, 0)
	for _, v := range img.Pixels[0] {
		assert.Equal(t, uint16(1), v)
	}
}
