package flow

import "github.com/petems/voicebook/internal/booking"

// Transcript receives the dialogue, one line per utterance.
type Transcript interface {
	Append(speaker, text string)
}

// Form mirrors stored answers into whatever the user is looking at.
type Form interface {
	SetField(step booking.Step, value string)
}

// Status is the coarse indicator shown while the flow works (tray icon).
type Status interface {
	SetIdle()
	SetRecording()
	SetProcessing()
	SetError()
}

// View bundles the outputs the flow writes to. Nil members are ignored.
type View struct {
	Transcript Transcript
	Form       Form
	Status     Status
}

func (v View) withDefaults() View {
	if v.Transcript == nil {
		v.Transcript = nopView{}
	}
	if v.Form == nil {
		v.Form = nopView{}
	}
	if v.Status == nil {
		v.Status = nopView{}
	}
	return v
}

type nopView struct{}

func (nopView) Append(string, string) {}
func (nopView) SetField(booking.Step, string) {}
func (nopView) SetIdle() {}
func (nopView) SetRecording() {}
func (nopView) SetProcessing() {}
func (nopView) SetError() {}
