// Package decode implements the audio decoder contract of spec §4.1:
// opens a file, returns planar float32 samples per channel plus a
// FormatInfo record. Grounded on the teacher's
// simple_inference_go/pkg/audio (go-audio/wav) decoding style, generalized
// from "always 16-bit mono 16kHz" to spec §4.1's full bit-depth/channel
// inference contract.
package decode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"

	"github.com/sytronik/thesia-go/internal/enginerr"
	"github.com/sytronik/thesia-go/internal/obslog"
)

// FormatInfo describes the decoded container/codec (spec §3).
type FormatInfo struct {
	Name    string
	SR      uint32
	BitDepth int
	Bitrate int // kbps
}

// Decoded is the result of decoding a file (spec §4.1's output): planar
// float32 samples, not clamped, plus format metadata.
type Decoded struct {
	Wavs   [][]float32 // n_ch x n_samples
	Format FormatInfo
}

var log = obslog.For("decode")

// Decode opens path, probes its container by extension, and decodes all
// samples into planar float32 form. Errors map to spec §7's taxonomy:
// ErrNotFound, ErrInvalidFormat, ErrNoAudioTrack, ErrUnsupported.
func Decode(path string) (Decoded, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "wav", "wave":
		return decodeWav(path)
	default:
		return Decoded{}, fmt.Errorf("decode %s: %w", path, enginerr.ErrUnsupported)
	}
}

func decodeWav(path string) (Decoded, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Decoded{}, fmt.Errorf("decode %s: %w", path, enginerr.ErrNotFound)
		}
		return Decoded{}, fmt.Errorf("decode %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Decoded{}, fmt.Errorf("decode %s: %w", path, enginerr.ErrInvalidFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Decoded{}, fmt.Errorf("decode %s: %w", path, err)
	}
	dec.FwdToPCM()

	nChans := int(dec.NumChans)
	if nChans < 1 {
		return Decoded{}, fmt.Errorf("decode %s: %w", path, enginerr.ErrNoAudioTrack)
	}

	bitDepth := int(dec.BitDepth)
	maxVal := maxValForBitDepth(bitDepth)

	nFrames := buf.NumFrames()
	wavs := make([][]float32, nChans)
	for c := range wavs {
		wavs[c] = make([]float32, nFrames)
	}

	intData := buf.AsIntBuffer().Data
	for i := 0; i < nFrames; i++ {
		base := i * nChans
		for c := 0; c < nChans; c++ {
			if base+c < len(intData) {
				wavs[c][i] = float32(intData[base+c]) / maxVal
			}
		}
	}

	sr := uint32(dec.SampleRate)
	bitrate := bitrateFromBitDepth(bitDepth, sr)

	log.Debug("decoded", "path", path, "sr", sr, "ch", nChans, "samples", nFrames)

	return Decoded{
		Wavs: wavs,
		Format: FormatInfo{
			Name:     "wav",
			SR:       sr,
			BitDepth: bitDepth,
			Bitrate:  bitrate,
		},
	}, nil
}

func maxValForBitDepth(bitDepth int) float32 {
	switch bitDepth {
	case 8:
		return 128.0
	case 16:
		return 32768.0
	case 24:
		return 8388608.0
	case 32:
		return 2147483648.0
	default:
		return 32768.0
	}
}

// bitrateFromBitDepth computes an uncompressed PCM bitrate estimate when
// the codec doesn't report one directly (spec §4.1's fallback formula is
// for compressed codecs; PCM's bits_per_sample is authoritative).
func bitrateFromBitDepth(bitDepth int, sr uint32) int {
	return bitDepth * int(sr) / 1000
}
