package audio

import (
	"context"

	"github.com/petems/voicebook/internal/wav"
)

// Capture defines the interface for audio capture
type Capture interface {
	Start(ctx context.Context, deviceID string, sampleRate int, out chan<- []float32) error
	Stop() error
	ListDevices() ([]AudioDevice, error)
	Close() error
}

// Player plays a decoded clip and returns once playback has finished or
// ctx is cancelled.
type Player interface {
	Play(ctx context.Context, clip wav.Clip) error
	Close() error
}

// AudioDevice represents an audio input device
type AudioDevice struct {
	ID      string
	Name    string
	Default bool
}
