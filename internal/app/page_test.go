package app

import (
	"testing"

	"github.com/petems/voicebook/internal/booking"
	"github.com/petems/voicebook/internal/flow"
	"github.com/rs/zerolog"
)

func TestPageTranscript(t *testing.T) {
	p := NewPage(zerolog.Nop())

	p.Append(flow.SpeakerSystem, "Voice booking started.")
	p.Append(flow.SpeakerAssistant, "")
	p.Append(flow.SpeakerAssistant, "What is your name?")
	p.Append(flow.SpeakerUser, "John")

	lines := p.Lines()
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines (empty text dropped), got %d", len(lines))
	}
	if lines[1].String() != flow.SpeakerAssistant+": What is your name?" {
		t.Errorf("line = %q", lines[1].String())
	}

	last := p.Last(2)
	if len(last) != 2 || last[1].Text != "John" {
		t.Errorf("Last(2) = %+v", last)
	}
	if len(p.Last(10)) != 3 {
		t.Error("Last should cap at the transcript length")
	}
}

func TestPageForm(t *testing.T) {
	p := NewPage(zerolog.Nop())

	p.SetField(booking.StepName, " John ")
	p.SetField(booking.StepSessionType, booking.SessionOffline)

	form := p.Form()
	if form.Name != "John" || form.SessionType != booking.SessionOffline {
		t.Errorf("form = %+v", form)
	}

	p.Append(flow.SpeakerUser, "John")
	p.ResetForm()
	if p.Form() != (booking.Draft{}) {
		t.Error("ResetForm should clear every field")
	}
	if len(p.Lines()) != 1 {
		t.Error("ResetForm should keep the transcript")
	}
}
