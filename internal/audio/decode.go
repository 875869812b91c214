package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hajimehoshi/go-mp3"
	"github.com/petems/voicebook/internal/wav"
)

// DecodeClip turns a downloaded speech clip into mono float32 samples.
// WAV is detected by its RIFF preamble; anything else is tried as MP3.
func DecodeClip(data []byte) (wav.Clip, error) {
	if wav.LooksLikeWAV(data) {
		return wav.Decode(data)
	}

	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return wav.Clip{}, fmt.Errorf("unsupported audio clip: %w", err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return wav.Clip{}, fmt.Errorf("failed to decode mp3: %w", err)
	}
	if len(raw)%4 != 0 {
		return wav.Clip{}, errors.New("unexpected MP3 decoded length")
	}

	// go-mp3 always yields 16-bit little-endian stereo
	stereo := make([]float32, len(raw)/2)
	for i := range stereo {
		stereo[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768
	}

	return wav.Clip{
		SampleRate: dec.SampleRate(),
		Samples:    downmixInterleaved(stereo, 2, len(stereo)/2),
	}, nil
}

// downmixInterleaved averages frames of interleaved audio into mono.
func downmixInterleaved(input []float32, channels, frames int) []float32 {
	if channels < 1 {
		channels = 1
	}
	if n := frames * channels; n < len(input) {
		input = input[:n]
	}
	return wav.Downmix(input, channels)
}

// resampleLinear converts mono samples between rates by linear
// interpolation. Good enough for speech playback.
func resampleLinear(in []float32, inRate, outRate int) []float32 {
	if inRate == outRate || inRate <= 0 || outRate <= 0 || len(in) == 0 {
		return append([]float32(nil), in...)
	}

	ratio := float64(outRate) / float64(inRate)
	outLen := int(math.Round(float64(len(in)) * ratio))
	if outLen <= 1 {
		return []float32{}
	}

	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		srcPos := float64(i) / ratio
		i0 := int(math.Floor(srcPos))
		if i0 >= len(in) {
			i0 = len(in) - 1
		}
		i1 := i0 + 1
		if i1 >= len(in) {
			i1 = len(in) - 1
		}
		f := srcPos - float64(i0)
		out[i] = float32(float64(in[i0])*(1.0-f) + float64(in[i1])*f)
	}
	return out
}
