// Package wav reads and writes canonical RIFF/WAVE audio.
//
// Encode produces the 44-byte-header, 16-bit, mono PCM layout expected by
// the transcription endpoint. Decode accepts the wider set of layouts a
// text-to-speech backend may return and reduces them to mono float32.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// HeaderSize is the size of the canonical header written by Encode.
const HeaderSize = 44

const (
	formatPCM        = 1
	formatIEEEFloat  = 3
	formatExtensible = 0xFFFE
)

var ErrNotWAV = errors.New("not a RIFF/WAVE stream")

// header is the canonical 44-byte layout, field order matters for binary.Write.
type header struct {
	RiffTag       [4]byte
	RiffSize      uint32
	WaveTag       [4]byte
	FmtTag        [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataTag       [4]byte
	DataSize      uint32
}

// Encode writes samples as 16-bit mono PCM at sampleRate. The result is
// always HeaderSize + 2*len(samples) bytes.
func Encode(samples []float32, sampleRate int) []byte {
	dataSize := uint32(len(samples) * 2)

	h := header{
		RiffTag:       [4]byte{'R', 'I', 'F', 'F'},
		RiffSize:      36 + dataSize,
		WaveTag:       [4]byte{'W', 'A', 'V', 'E'},
		FmtTag:        [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   formatPCM,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * 2),
		BlockAlign:    2,
		BitsPerSample: 16,
		DataTag:       [4]byte{'d', 'a', 't', 'a'},
		DataSize:      dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize+int(dataSize)))
	// bytes.Buffer writes never fail
	_ = binary.Write(buf, binary.LittleEndian, &h)

	pcm := make([]byte, dataSize)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(SampleToInt16(s)))
	}
	buf.Write(pcm)

	return buf.Bytes()
}

// SampleToInt16 clamps s to [-1, 1] and scales it asymmetrically so that
// -1 maps to -32768 and 1 maps to 32767.
func SampleToInt16(s float32) int16 {
	v := float64(s)
	if math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	if v < 0 {
		return int16(math.Round(v * 32768))
	}
	return int16(math.Round(v * 32767))
}

// Clip is decoded audio reduced to a single channel.
type Clip struct {
	SampleRate int
	Samples    []float32
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

type format struct {
	audioFormat   uint16
	channels      int
	sampleRate    int
	bitsPerSample int
}

// Decode parses a RIFF/WAVE stream, walking chunks so that extra chunks
// (LIST, fact, ...) are skipped. Multi-channel audio is averaged to mono.
func Decode(data []byte) (Clip, error) {
	if !LooksLikeWAV(data) {
		return Clip{}, ErrNotWAV
	}

	var (
		f       format
		gotFmt  bool
		payload []byte
		gotData bool
	)

	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		pos += 8
		if chunkSize < 0 || pos+chunkSize > len(data) {
			// streaming encoders sometimes leave the data size unset
			if chunkID == "data" && !gotData {
				payload = data[pos:]
				gotData = true
			}
			break
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return Clip{}, fmt.Errorf("fmt chunk too small: %d bytes", chunkSize)
			}
			chunk := data[pos : pos+chunkSize]
			f.audioFormat = binary.LittleEndian.Uint16(chunk[0:2])
			f.channels = int(binary.LittleEndian.Uint16(chunk[2:4]))
			f.sampleRate = int(binary.LittleEndian.Uint32(chunk[4:8]))
			f.bitsPerSample = int(binary.LittleEndian.Uint16(chunk[14:16]))
			if f.audioFormat == formatExtensible && chunkSize >= 40 {
				// first two bytes of the sub-format GUID carry the real format code
				f.audioFormat = binary.LittleEndian.Uint16(chunk[24:26])
			}
			gotFmt = true
		case "data":
			if !gotData {
				payload = data[pos : pos+chunkSize]
				gotData = true
			}
		}

		pos += chunkSize
		if pos%2 == 1 {
			pos++
		}
	}

	if !gotFmt {
		return Clip{}, errors.New("no fmt chunk")
	}
	if !gotData {
		return Clip{}, errors.New("no data chunk")
	}
	if f.channels == 0 || f.sampleRate == 0 || f.bitsPerSample == 0 {
		return Clip{}, errors.New("bad fmt chunk")
	}

	interleaved, err := toFloat(payload, f)
	if err != nil {
		return Clip{}, err
	}

	return Clip{
		SampleRate: f.sampleRate,
		Samples:    Downmix(interleaved, f.channels),
	}, nil
}

// LooksLikeWAV reports whether data starts with a RIFF/WAVE preamble.
func LooksLikeWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func toFloat(payload []byte, f format) ([]float32, error) {
	width := f.bitsPerSample / 8
	if width == 0 {
		return nil, fmt.Errorf("unsupported bit depth %d", f.bitsPerSample)
	}
	n := len(payload) / width
	out := make([]float32, n)

	switch {
	case f.audioFormat == formatPCM && f.bitsPerSample == 8:
		for i := 0; i < n; i++ {
			out[i] = (float32(payload[i]) - 128) / 128
		}
	case f.audioFormat == formatPCM && f.bitsPerSample == 16:
		for i := 0; i < n; i++ {
			v := int16(binary.LittleEndian.Uint16(payload[i*2:]))
			out[i] = float32(v) / 32768
		}
	case f.audioFormat == formatPCM && f.bitsPerSample == 24:
		for i := 0; i < n; i++ {
			b := payload[i*3:]
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if v&0x800000 != 0 {
				v |= ^0xFFFFFF
			}
			out[i] = float32(v) / 8388608
		}
	case f.audioFormat == formatPCM && f.bitsPerSample == 32:
		for i := 0; i < n; i++ {
			v := int32(binary.LittleEndian.Uint32(payload[i*4:]))
			out[i] = float32(float64(v) / 2147483648)
		}
	case f.audioFormat == formatIEEEFloat && f.bitsPerSample == 32:
		for i := 0; i < n; i++ {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
		}
	default:
		return nil, fmt.Errorf("unsupported WAV combination: format=%d bits=%d", f.audioFormat, f.bitsPerSample)
	}

	return out, nil
}

// Downmix averages interleaved frames into a single channel. Mono input is
// copied so the caller may reuse its buffer.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(interleaved))
		copy(out, interleaved)
		return out
	}

	frames := len(interleaved) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += interleaved[i*channels+ch]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
