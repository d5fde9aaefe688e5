package mipmap

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_writeNpyUint16_roundTripsThroughMmap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tile.npy")
	width, height := 17, 5
	data := make([]uint16, width*height)
	for i := range data {
		data[i] = uint16(i * 7 % 65535)
	}

	require.NoError(t, writeNpyUint16(path, width, height, data))

	tile, err := mmapNpyUint16(path)
	require.NoError(t, err)
	assert.Equal(t, width, tile.Width)
	assert.Equal(t, height, tile.Height)
	assert.Equal(t, data, tile.Pixels)
}

func Test_parseShape_parsesHeightThenWidth(t *testing.T) {
	h, w, err := parseShape("{'descr': '<u2', 'fortran_order': False, 'shape': (5, 17), }")
	require.NoError(t, err)
	assert.Equal(t, 5, h)
	assert.Equal(t, 17, w)
}

func Test_parseShape_errorsOnMissingShapeField(t *testing.T) {
	_, _, err := parseShape("{'descr': '<u2'}")
	assert.Error(t, err)
}
