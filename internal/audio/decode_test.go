package audio

import (
	"testing"

	"github.com/petems/voicebook/internal/wav"
)

func TestDecodeClipWAV(t *testing.T) {
	data := wav.Encode([]float32{0, 0.5, -0.5}, 22050)

	clip, err := DecodeClip(data)
	if err != nil {
		t.Fatalf("DecodeClip: %v", err)
	}
	if clip.SampleRate != 22050 || len(clip.Samples) != 3 {
		t.Fatalf("unexpected clip: rate=%d samples=%d", clip.SampleRate, len(clip.Samples))
	}
}

func TestDecodeClipRejectsGarbage(t *testing.T) {
	if _, err := DecodeClip([]byte("definitely not audio")); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestResampleLinear(t *testing.T) {
	in := []float32{0, 1, 0, -1}

	same := resampleLinear(in, 16000, 16000)
	if len(same) != len(in) || &same[0] == &in[0] {
		t.Fatal("expected same-rate resample to copy input")
	}

	up := resampleLinear(in, 8000, 16000)
	if len(up) != 8 {
		t.Fatalf("expected 8 samples, got %d", len(up))
	}
	if up[1] != 0.5 {
		t.Errorf("expected interpolated 0.5, got %f", up[1])
	}

	down := resampleLinear(in, 16000, 8000)
	if len(down) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(down))
	}
}
