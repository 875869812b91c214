package audio

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/petems/voicebook/internal/config"
	"github.com/petems/voicebook/internal/wav"
)

const framesPerBuffer = 512

type portAudioCapture struct {
	stream *portaudio.Stream
}

// New creates a new PortAudio-based audio capture
func New(cfg config.AudioConfig) (Capture, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioCapture{}, nil
}

func (p *portAudioCapture) Start(ctx context.Context, deviceID string, sampleRate int, out chan<- []float32) error {
	device, err := findInputDevice(deviceID)
	if err != nil {
		return err
	}

	// Some USB headsets only open in stereo; downmix those to mono.
	channels := 1
	if device.MaxInputChannels >= 2 {
		channels = 2
	}

	buffer := make([]float32, framesPerBuffer*channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: framesPerBuffer,
	}, buffer)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}

	p.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	// Read loop
	go func() {
		defer stream.Close()
		for {
			select {
			case <-ctx.Done():
				stream.Stop()
				return
			default:
				if err := stream.Read(); err != nil {
					return
				}
				samples := downmixInterleaved(buffer, channels, framesPerBuffer)

				select {
				case out <- samples:
				case <-ctx.Done():
					stream.Stop()
					return
				default:
					// Drop if channel full (backpressure)
				}
			}
		}
	}()

	return nil
}

func findInputDevice(deviceID string) (*portaudio.DeviceInfo, error) {
	if deviceID == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == deviceID && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", deviceID)
}

func (p *portAudioCapture) Stop() error {
	if p.stream != nil {
		return p.stream.Stop()
	}
	return nil
}

func (p *portAudioCapture) ListDevices() ([]AudioDevice, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]AudioDevice, 0, len(devices))
	defaultDevice, _ := portaudio.DefaultInputDevice()

	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, AudioDevice{
				ID:      d.Name,
				Name:    d.Name,
				Default: d == defaultDevice,
			})
		}
	}

	return result, nil
}

func (p *portAudioCapture) Close() error {
	if p.stream != nil {
		p.stream.Close()
	}
	portaudio.Terminate()
	return nil
}

type portAudioPlayer struct{}

// NewPlayer creates a PortAudio player on the default output device.
func NewPlayer() (Player, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioPlayer{}, nil
}

func (p *portAudioPlayer) Play(ctx context.Context, clip wav.Clip) error {
	if len(clip.Samples) == 0 {
		return nil
	}

	samples := clip.Samples
	buffer := make([]float32, framesPerBuffer)

	stream, err := portaudio.OpenDefaultStream(0, 1, float64(clip.SampleRate), len(buffer), buffer)
	if err != nil {
		// Device refuses the clip's rate; play at its native rate instead.
		device, derr := portaudio.DefaultOutputDevice()
		if derr != nil {
			return fmt.Errorf("failed to open output stream: %w", err)
		}
		rate := int(device.DefaultSampleRate)
		samples = resampleLinear(clip.Samples, clip.SampleRate, rate)
		stream, err = portaudio.OpenDefaultStream(0, 1, float64(rate), len(buffer), buffer)
		if err != nil {
			return fmt.Errorf("failed to open output stream: %w", err)
		}
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	defer stream.Stop()

	for off := 0; off < len(samples); off += len(buffer) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(buffer, samples[off:])
		for i := n; i < len(buffer); i++ {
			buffer[i] = 0
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("failed to write audio: %w", err)
		}
	}

	return nil
}

func (p *portAudioPlayer) Close() error {
	return portaudio.Terminate()
}
