// Package capture records one fixed-length answer from the microphone,
// encodes it as 16 kHz mono WAV and uploads it for transcription. The
// outcome of every capture, success or failure, is published as exactly
// one Result.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/petems/voicebook/internal/audio"
	"github.com/petems/voicebook/internal/backend"
	"github.com/petems/voicebook/internal/permissions"
	"github.com/petems/voicebook/internal/wav"
	"github.com/rs/zerolog"
)

// ErrNoAudio is reported when the capture window closed without a single
// buffer from the device.
var ErrNoAudio = errors.New("no audio captured")

type Kind int

const (
	KindText Kind = iota
	KindError
)

func (k Kind) String() string {
	if k == KindError {
		return "error"
	}
	return "text"
}

// Result is the outcome of one capture. ID matches the value returned by
// StartCapture.
type Result struct {
	ID    string
	Kind  Kind
	Value string
}

// Transcriber uploads an encoded clip. backend.Client satisfies it.
type Transcriber interface {
	Transcribe(ctx context.Context, endpoint string, wavData []byte) (backend.TranscribeResult, error)
}

type Config struct {
	Audio       audio.Capture
	Transcriber Transcriber
	Results     chan<- Result
	DeviceID    string
	SampleRate  int
	Duration    time.Duration
	Logger      zerolog.Logger
	// Permission is checked before the device is opened. Defaults to
	// permissions.Microphone.
	Permission func() error
}

type session struct {
	id     string
	cancel context.CancelFunc
}

type Recorder struct {
	audio      audio.Capture
	stt        Transcriber
	results    chan<- Result
	deviceID   string
	sampleRate int
	duration   time.Duration
	permission func() error
	log        zerolog.Logger

	mu     sync.Mutex
	active *session
}

func New(cfg Config) *Recorder {
	r := &Recorder{
		audio:      cfg.Audio,
		stt:        cfg.Transcriber,
		results:    cfg.Results,
		deviceID:   cfg.DeviceID,
		sampleRate: cfg.SampleRate,
		duration:   cfg.Duration,
		permission: cfg.Permission,
		log:        cfg.Logger,
	}
	if r.sampleRate == 0 {
		r.sampleRate = 16000
	}
	if r.duration == 0 {
		r.duration = 5 * time.Second
	}
	if r.permission == nil {
		r.permission = permissions.Microphone
	}
	return r
}

// StartCapture begins a capture that uploads to endpoint and returns its
// ID. If a capture is already running nothing new is started and the
// running capture's ID is returned.
func (r *Recorder) StartCapture(ctx context.Context, endpoint string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		r.log.Debug().Str("capture", r.active.id).Msg("Capture already active")
		return r.active.id
	}

	windowCtx, cancel := context.WithTimeout(ctx, r.duration)
	sess := &session{id: uuid.NewString(), cancel: cancel}
	r.active = sess

	go r.run(ctx, windowCtx, sess, endpoint)

	return sess.id
}

// Stop ends the recording window of the active capture early. The capture
// still encodes, uploads and publishes its result.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		r.active.cancel()
	}
}

// SetDevice selects the input device for later captures. A capture
// already recording keeps its device.
func (r *Recorder) SetDevice(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deviceID = deviceID
}

// Active returns the ID of the running capture, if any.
func (r *Recorder) Active() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return "", false
	}
	return r.active.id, true
}

func (r *Recorder) run(ctx, windowCtx context.Context, sess *session, endpoint string) {
	defer sess.cancel()

	log := r.log.With().Str("capture", sess.id).Logger()
	res := Result{ID: sess.id}

	text, err := r.record(ctx, windowCtx, endpoint, log)
	switch {
	case err != nil:
		log.Error().Err(err).Msg("Capture failed")
		res.Kind = KindError
		res.Value = "Error: " + err.Error()
	case text.Text != "":
		res.Kind = KindText
		res.Value = text.Text
	case text.Error != "":
		log.Warn().Str("error", text.Error).Msg("Transcription error")
		res.Kind = KindError
		res.Value = text.Error
	default:
		res.Kind = KindText
	}

	// The guard is released before publishing so that a consumer reacting
	// to this result can start the next capture immediately.
	r.mu.Lock()
	if r.active == sess {
		r.active = nil
	}
	r.mu.Unlock()

	select {
	case r.results <- res:
	case <-ctx.Done():
		log.Debug().Msg("Result dropped, context done")
	}
}

func (r *Recorder) record(ctx, windowCtx context.Context, endpoint string, log zerolog.Logger) (backend.TranscribeResult, error) {
	if err := r.permission(); err != nil {
		return backend.TranscribeResult{}, err
	}

	samples, err := r.collect(windowCtx)
	if err != nil {
		return backend.TranscribeResult{}, err
	}

	log.Debug().
		Int("samples", len(samples)).
		Float64("seconds", float64(len(samples))/float64(r.sampleRate)).
		Msg("Recording finished")

	clip := wav.Encode(samples, r.sampleRate)

	res, err := r.stt.Transcribe(ctx, endpoint, clip)
	if err != nil {
		return backend.TranscribeResult{}, err
	}
	return res, nil
}

// collect buffers device fragments until the window closes.
func (r *Recorder) collect(windowCtx context.Context) ([]float32, error) {
	audioChan := make(chan []float32, 32)

	r.mu.Lock()
	deviceID := r.deviceID
	r.mu.Unlock()

	if err := r.audio.Start(windowCtx, deviceID, r.sampleRate, audioChan); err != nil {
		return nil, fmt.Errorf("microphone: %w", err)
	}

	var samples []float32
	for {
		select {
		case frag := <-audioChan:
			samples = append(samples, frag...)
		case <-windowCtx.Done():
			// take what is already queued
			for {
				select {
				case frag := <-audioChan:
					samples = append(samples, frag...)
				default:
					if len(samples) == 0 {
						return nil, ErrNoAudio
					}
					return samples, nil
				}
			}
		}
	}
}
