package windows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Hann_isZeroPaddedToNFFTLength(t *testing.T) {
	w := Hann(8, 16)
	assert.Len(t, w, 16)
	for i := 0; i < 4; i++ {
		assert.Equal(t, float32(0), w[i])
		assert.Equal(t, float32(0), w[12+i])
	}
}

func Test_Hann_isSymmetric(t *testing.T) {
	w := Hann(9, 9)
	for i := 0; i < len(w)/2; i++ {
		assert.InDelta(t, float64(w[i]), float64(w[len(w)-1-i]), 1e-5)
	}
}

func Test_Cache_GetIsIdempotent(t *testing.T) {
	c := NewCache()
	a := c.Get(Key{WinLength: 10, NFFT: 16})
	b := c.Get(Key{WinLength: 10, NFFT: 16})
	assert.Equal(t, a, b)
}

func Test_Cache_RetainDropsUnreferencedKeys(t *testing.T) {
	c := NewCache()
	c.Get(Key{WinLength: 10, NFFT: 16})
	c.Get(Key{WinLength: 20, NFFT: 32})
	c.Retain([]Key{{WinLength: 10, NFFT: 16}})
	assert.Len(t, c.byKey, 1)
	_, ok := c.byKey[Key{WinLength: 20, NFFT: 32}]
	assert.False(t, ok)
}
