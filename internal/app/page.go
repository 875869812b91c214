package app

import (
	"strings"
	"sync"
	"time"

	"github.com/petems/voicebook/internal/booking"
	"github.com/rs/zerolog"
)

// Line is one transcript entry.
type Line struct {
	Speaker string
	Text    string
	At      time.Time
}

func (l Line) String() string {
	return l.Speaker + ": " + l.Text
}

// Page is the booking page the voice flow writes into: a transcript and
// the form fields. It satisfies flow.Transcript and flow.Form.
type Page struct {
	log zerolog.Logger

	mu    sync.Mutex
	lines []Line
	form  booking.Draft
}

func NewPage(log zerolog.Logger) *Page {
	return &Page{log: log}
}

// Append adds a transcript line. Empty text is dropped.
func (p *Page) Append(speaker, text string) {
	if text == "" {
		return
	}

	p.mu.Lock()
	p.lines = append(p.lines, Line{Speaker: speaker, Text: text, At: time.Now()})
	p.mu.Unlock()

	p.log.Info().Str("speaker", speaker).Str("text", text).Msg("Transcript")
}

// SetField writes a form input. The voice flow calls it for every
// accepted answer; callers may also edit fields by hand.
func (p *Page) SetField(step booking.Step, value string) {
	p.mu.Lock()
	p.form.Set(step, strings.TrimSpace(value))
	p.mu.Unlock()

	p.log.Debug().Str("field", step.String()).Str("value", value).Msg("Form updated")
}

// Form returns a copy of the current form fields.
func (p *Page) Form() booking.Draft {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.form
}

// Lines returns a copy of the transcript.
func (p *Page) Lines() []Line {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Line, len(p.lines))
	copy(out, p.lines)
	return out
}

// Last returns the most recent n transcript lines, oldest first.
func (p *Page) Last(n int) []Line {
	lines := p.Lines()
	if n < len(lines) {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// ResetForm clears the form, as a reload does after a successful booking.
// The transcript is kept.
func (p *Page) ResetForm() {
	p.mu.Lock()
	p.form = booking.Draft{}
	p.mu.Unlock()
}
