package track

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sytronik/thesia-go/internal/dynamics"
)

func fakeTrackAt(path string, sr uint32, n int) *Track {
	wavs := [][]float32{make([]float32, n)}
	original := NewAudio(wavs, sr)
	return &Track{
		Path:     path,
		Original: original,
		Audio:    original,
	}
}

func Test_TrackList_recomputeFilenames_usesShortestUniqueSuffix(t *testing.T) {
	tl := NewTrackList()
	tl.slots = []*Track{
		fakeTrackAt("/a/b/song.wav", 44100, 100),
		fakeTrackAt("/a/c/song.wav", 44100, 100),
		fakeTrackAt("/x/y/other.wav", 44100, 100),
	}
	tl.recomputeFilenames()

	assert.NotEqual(t, tl.filenames[0], tl.filenames[1], "same leaf name in different dirs must disambiguate")
	assert.Equal(t, "other.wav", tl.filenames[2], "unique leaf name needs no extra path component")
}

func Test_TrackList_recomputeMaxSec_tracksLongestTrack(t *testing.T) {
	tl := NewTrackList()
	tl.slots = []*Track{
		fakeTrackAt("/a.wav", 44100, 44100),
		fakeTrackAt("/b.wav", 44100, 88200),
		nil,
	}
	tl.recomputeMaxSec()
	assert.Equal(t, 2.0, tl.maxSec)
	assert.Equal(t, 1, tl.idMaxSec)
}

func Test_TrackList_RemoveTracks_vacatesSparseSlotsAndRecomputesMax(t *testing.T) {
	tl := NewTrackList()
	tl.slots = []*Track{
		fakeTrackAt("/a.wav", 44100, 44100),
		fakeTrackAt("/b.wav", 44100, 88200),
	}
	tl.recomputeFilenames()
	tl.recomputeMaxSec()

	tl.RemoveTracks([]int{1})

	_, err := tl.Get(1)
	assert.Error(t, err)
	assert.Equal(t, 1.0, tl.MaxSec(), "removing the longest track must shrink max_sec")

	ids := tl.Ids()
	assert.Equal(t, []int{0}, ids)
}

func Test_TrackList_Get_unknownIDReturnsError(t *testing.T) {
	tl := NewTrackList()
	_, err := tl.Get(42)
	assert.Error(t, err)
}

func Test_TrackList_SetCommonNormalize_reappliesToAllTracks(t *testing.T) {
	tl := NewTrackList()
	tl.slots = []*Track{fakeTrackAt("/a.wav", 44100, 1000)}
	tl.SetCommonNormalize(dynamics.Normalize{})
	assert.Equal(t, dynamics.Normalize{}, tl.CommonNormalize())
}
