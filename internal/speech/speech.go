// Package speech turns assistant text into audible speech using the
// server's text-to-speech endpoint and the local audio output.
package speech

import (
	"context"
	"fmt"

	"github.com/petems/voicebook/internal/audio"
	"github.com/rs/zerolog"
)

// Synthesizer produces a downloadable clip for text. backend.Client
// satisfies it.
type Synthesizer interface {
	Speak(ctx context.Context, text string) (string, error)
	FetchAudio(ctx context.Context, audioURL string) ([]byte, error)
}

type Speaker struct {
	tts    Synthesizer
	player audio.Player
	log    zerolog.Logger
}

// New returns a Speaker. A nil player makes Speak a no-op after synthesis,
// for headless use.
func New(tts Synthesizer, player audio.Player, log zerolog.Logger) *Speaker {
	return &Speaker{tts: tts, player: player, log: log}
}

// Speak synthesizes text and blocks until it has been played.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	audioURL, err := s.tts.Speak(ctx, text)
	if err != nil {
		return err
	}
	if audioURL == "" {
		s.log.Debug().Str("text", text).Msg("No audio returned for text")
		return nil
	}
	if s.player == nil {
		return nil
	}

	data, err := s.tts.FetchAudio(ctx, audioURL)
	if err != nil {
		return err
	}

	clip, err := audio.DecodeClip(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", audioURL, err)
	}

	s.log.Debug().
		Str("url", audioURL).
		Float64("seconds", clip.Duration()).
		Msg("Playing speech")

	return s.player.Play(ctx, clip)
}
