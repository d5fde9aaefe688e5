package coord

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func Test_MelFromHz_roundTripsThroughMelToHz(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		hz := rapid.Float64Range(1, 22050).Draw(t, "hz")
		mel := MelFromHz(hz)
		back := MelToHz(mel)
		assert.InEpsilonf(t, hz, back, 1e-6, "round trip mismatch for hz=%v", hz)
	})
}

func Test_MelFromHz_continuousAtKnee(t *testing.T) {
	below := MelFromHz(MelKnee - 1e-6)
	above := MelFromHz(MelKnee + 1e-6)
	assert.InDelta(t, below, above, 1e-4)
}

func Test_IDChKey_parseFormatRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := rapid.IntRange(0, 1000).Draw(t, "id")
		ch := rapid.IntRange(0, 8).Draw(t, "ch")
		key := IDChKey(id, ch)
		gotID, gotCh, err := ParseIDChKey(key)
		assert.NoError(t, err)
		assert.Equal(t, id, gotID)
		assert.Equal(t, ch, gotCh)
	})
}

func Test_ParseIDChKey_rejectsMalformedKeys(t *testing.T) {
	for _, bad := range []string{"", "noseparator", "a_1", "1_b"} {
		_, _, err := ParseIDChKey(bad)
		assert.Errorf(t, err, "expected error for %q", bad)
	}
}

func Test_TimeLabelToSeconds(t *testing.T) {
	assert.Equal(t, 5.0, TimeLabelToSeconds("5"))
	assert.Equal(t, 65.0, TimeLabelToSeconds("1:05"))
	assert.Equal(t, 3665.0, TimeLabelToSeconds("1:01:05"))
	assert.True(t, math.IsNaN(TimeLabelToSeconds("nonsense")))
	assert.True(t, math.IsNaN(TimeLabelToSeconds("")))
}

func Test_FreqLabelToHz(t *testing.T) {
	assert.Equal(t, 1500.0, FreqLabelToHz("1.5k"))
	assert.Equal(t, 1500.0, FreqLabelToHz("1k5"))
	assert.Equal(t, 1000.0, FreqLabelToHz("1k"))
	assert.Equal(t, 440.0, FreqLabelToHz("440"))
	assert.True(t, math.IsNaN(FreqLabelToHz("nope")))
}

func Test_HzRangeToIdx_fullRangeCoversAllBins(t *testing.T) {
	lo, hi := Linear.HzRangeToIdx(0, 22050, 22050, 512)
	assert.Equal(t, 0, lo)
	assert.Equal(t, 512, hi)
}

func Test_HzRangeToIdx_clampsWithinBounds(t *testing.T) {
	lo, hi := Mel.HzRangeToIdx(-100, 1e9, 22050, 512)
	assert.GreaterOrEqual(t, lo, 0)
	assert.LessOrEqual(t, hi, 512)
}
