// Package clipboard puts booking summaries and scan results on the
// system clipboard.
package clipboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"
)

// ErrUnsupported is returned when no clipboard utility is available
// (for example xclip or xsel missing on Linux).
var ErrUnsupported = errors.New("clipboard not supported on this system")

// Copier defines the interface for placing text on the clipboard
type Copier interface {
	Copy(text string) error
}

type System struct {
	write       func(string) error
	read        func() (string, error)
	unsupported bool
	log         zerolog.Logger
}

// New returns a Copier backed by the OS clipboard.
func New(log zerolog.Logger) *System {
	return &System{
		write:       clipboard.WriteAll,
		read:        clipboard.ReadAll,
		unsupported: clipboard.Unsupported,
		log:         log,
	}
}

// Copy replaces the clipboard contents with text. Blank text is ignored
// so an empty summary never clobbers what the user had copied.
func (s *System) Copy(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if s.unsupported {
		return ErrUnsupported
	}

	if err := s.write(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}

	s.log.Debug().Int("chars", len(text)).Msg("Copied to clipboard")
	return nil
}

// Read returns the current clipboard contents.
func (s *System) Read() (string, error) {
	if s.unsupported {
		return "", ErrUnsupported
	}
	return s.read()
}
