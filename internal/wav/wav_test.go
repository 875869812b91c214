package wav

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestEncodeLayout(t *testing.T) {
	for _, n := range []int{0, 1, 7, 16000} {
		samples := make([]float32, n)
		out := Encode(samples, 16000)

		if len(out) != HeaderSize+2*n {
			t.Fatalf("n=%d: expected %d bytes, got %d", n, HeaderSize+2*n, len(out))
		}
		if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" {
			t.Fatalf("n=%d: bad preamble %q / %q", n, out[0:4], out[8:12])
		}
		if string(out[12:16]) != "fmt " || string(out[36:40]) != "data" {
			t.Fatalf("n=%d: bad chunk markers", n)
		}
		if got := binary.LittleEndian.Uint32(out[4:8]); got != uint32(36+2*n) {
			t.Errorf("n=%d: riff size %d", n, got)
		}
		if got := binary.LittleEndian.Uint32(out[40:44]); got != uint32(2*n) {
			t.Errorf("n=%d: data size %d", n, got)
		}
	}
}

func TestEncodeFormatFields(t *testing.T) {
	out := Encode([]float32{0}, 16000)

	if got := binary.LittleEndian.Uint32(out[16:20]); got != 16 {
		t.Errorf("fmt size %d", got)
	}
	if got := binary.LittleEndian.Uint16(out[20:22]); got != 1 {
		t.Errorf("audio format %d", got)
	}
	if got := binary.LittleEndian.Uint16(out[22:24]); got != 1 {
		t.Errorf("channels %d", got)
	}
	if got := binary.LittleEndian.Uint32(out[24:28]); got != 16000 {
		t.Errorf("sample rate %d", got)
	}
	if got := binary.LittleEndian.Uint32(out[28:32]); got != 32000 {
		t.Errorf("byte rate %d", got)
	}
	if got := binary.LittleEndian.Uint16(out[32:34]); got != 2 {
		t.Errorf("block align %d", got)
	}
	if got := binary.LittleEndian.Uint16(out[34:36]); got != 16 {
		t.Errorf("bits per sample %d", got)
	}
}

func TestSampleScaling(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32768},
		{0.5, int16(math.Round(0.5 * 32767))},
		{-0.5, -16384},
		{1.7, 32767},
		{-3, -32768},
		{0.25, int16(math.Round(float64(float32(0.25)) * 32767))},
	}

	for _, tt := range tests {
		if got := SampleToInt16(tt.in); got != tt.want {
			t.Errorf("SampleToInt16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}

	if got := SampleToInt16(float32(math.NaN())); got != 0 {
		t.Errorf("NaN should encode as 0, got %d", got)
	}
}

func TestEncodeSamplesLittleEndian(t *testing.T) {
	out := Encode([]float32{1, -1, 0}, 8000)
	pcm := out[HeaderSize:]

	want := []int16{32767, -32768, 0}
	for i, w := range want {
		got := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		if got != w {
			t.Errorf("sample %d: got %d want %d", i, got, w)
		}
	}
}

func TestDecodeEncoded(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 1, -1}
	clip, err := Decode(Encode(in, 16000))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if clip.SampleRate != 16000 {
		t.Errorf("sample rate %d", clip.SampleRate)
	}
	if len(clip.Samples) != len(in) {
		t.Fatalf("expected %d samples, got %d", len(in), len(clip.Samples))
	}
	for i := range in {
		if d := math.Abs(float64(clip.Samples[i] - in[i])); d > 1.0/16384 {
			t.Errorf("sample %d: got %f want %f", i, clip.Samples[i], in[i])
		}
	}
}

func TestDecodeStereoSkipsExtraChunks(t *testing.T) {
	// 16-bit stereo with a LIST chunk between fmt and data
	var b []byte
	put32 := func(v uint32) { b = binary.LittleEndian.AppendUint32(b, v) }
	put16 := func(v uint16) { b = binary.LittleEndian.AppendUint16(b, v) }

	pcm := []int16{16384, -16384, 32767, 32767}
	list := []byte("INFOabcd")

	b = append(b, "RIFF"...)
	put32(0) // not checked
	b = append(b, "WAVE"...)
	b = append(b, "fmt "...)
	put32(16)
	put16(1)
	put16(2)
	put32(22050)
	put32(22050 * 4)
	put16(4)
	put16(16)
	b = append(b, "LIST"...)
	put32(uint32(len(list)))
	b = append(b, list...)
	b = append(b, "data"...)
	put32(uint32(len(pcm) * 2))
	for _, s := range pcm {
		put16(uint16(s))
	}

	clip, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if clip.SampleRate != 22050 {
		t.Errorf("sample rate %d", clip.SampleRate)
	}
	if len(clip.Samples) != 2 {
		t.Fatalf("expected 2 mono frames, got %d", len(clip.Samples))
	}
	if clip.Samples[0] != 0 {
		t.Errorf("frame 0 should cancel out, got %f", clip.Samples[0])
	}
	if clip.Samples[1] < 0.99 {
		t.Errorf("frame 1 should be near full scale, got %f", clip.Samples[1])
	}
}

func TestDecodeRejectsNonWAV(t *testing.T) {
	if _, err := Decode([]byte("ID3\x04not a wav file")); err != ErrNotWAV {
		t.Fatalf("expected ErrNotWAV, got %v", err)
	}
}

func TestDurationOfEmptyClip(t *testing.T) {
	if d := (Clip{}).Duration(); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
	if d := (Clip{SampleRate: 100, Samples: make([]float32, 50)}).Duration(); d != 0.5 {
		t.Fatalf("expected 0.5, got %f", d)
	}
}
