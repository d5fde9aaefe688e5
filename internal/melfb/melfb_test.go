package melfb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Build_shapeMatchesNMelsAndNFreqs(t *testing.T) {
	fb := Build(16000, 512, 40)
	assert.Len(t, fb, 40)
	for _, row := range fb {
		assert.Len(t, row, 512/2+1)
	}
}

func Test_Build_filterWeightsAreNonNegative(t *testing.T) {
	fb := Build(44100, 1024, 80)
	for _, row := range fb {
		for _, v := range row {
			assert.GreaterOrEqual(t, v, float32(0))
		}
	}
}

func Test_NewCache_appliesDefaultWhenNonPositive(t *testing.T) {
	c := NewCache(0)
	assert.Equal(t, defaultNMels, c.nMels)
}

func Test_Cache_RetainDropsUnreferencedEntries(t *testing.T) {
	c := NewCache(40)
	c.Get(Key{SR: 16000, NFFT: 512})
	c.Get(Key{SR: 44100, NFFT: 1024})
	c.Retain([]Key{{SR: 16000, NFFT: 512}})
	assert.Len(t, c.byKey, 1)
}
