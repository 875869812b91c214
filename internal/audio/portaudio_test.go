package audio

import "testing"

func TestDownmixInterleaved(t *testing.T) {
	tests := []struct {
		name     string
		input    []float32
		channels int
		frames   int
		want     []float32
	}{
		{
			name:     "mono passthrough",
			input:    []float32{0.1, 0.2, 0.3, 0.4},
			channels: 1,
			frames:   4,
			want:     []float32{0.1, 0.2, 0.3, 0.4},
		},
		{
			name:     "stereo mic",
			input:    []float32{0.0, 1.0, 0.5, 0.5, 1.0, 0.0, -0.5, 0.5},
			channels: 2,
			frames:   4,
			want:     []float32{0.5, 0.5, 0.5, 0.0},
		},
		{
			name:     "three channels",
			input:    []float32{1, 3, 5, 2, 4, 6},
			channels: 3,
			frames:   2,
			want:     []float32{3, 4},
		},
		{
			name:     "buffer longer than frames read",
			input:    []float32{0.2, 0.4, 0.6, 0.8, 9, 9},
			channels: 2,
			frames:   2,
			want:     []float32{0.3, 0.7},
		},
		{
			name:     "zero channels treated as mono",
			input:    []float32{0.25, -0.25},
			channels: 0,
			frames:   2,
			want:     []float32{0.25, -0.25},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := downmixInterleaved(tt.input, tt.channels, tt.frames)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d frames, got %d", len(tt.want), len(got))
			}
			for i := range tt.want {
				if diff := got[i] - tt.want[i]; diff > 1e-6 || diff < -1e-6 {
					t.Fatalf("frame %d mismatch: expected %f, got %f", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestDownmixInterleavedCopiesMono(t *testing.T) {
	input := []float32{0.1, 0.2}
	got := downmixInterleaved(input, 1, len(input))

	if &got[0] == &input[0] {
		t.Fatal("expected mono result to be copied into a new slice")
	}
}
