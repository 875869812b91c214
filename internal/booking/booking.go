// Package booking holds the booking draft collected by the voice flow and
// the per-field rules applied to spoken answers.
package booking

import (
	"regexp"
	"strings"
	"unicode"
)

// Step indexes the draft fields in the order they are collected.
type Step int

const (
	StepName Step = iota
	StepEmail
	StepBookingTime
	StepIssue
	StepSessionType
	StepDone
)

var stepNames = [...]string{"name", "email", "booking_time", "issue_description", "session_type", "done"}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return "unknown"
	}
	return stepNames[s]
}

const (
	SessionOnline  = "online"
	SessionOffline = "offline"
)

// Draft is the record filled one field at a time. Empty means unset.
type Draft struct {
	Name             string `json:"name,omitempty"`
	Email            string `json:"email,omitempty"`
	BookingTime      string `json:"booking_time,omitempty"`
	IssueDescription string `json:"issue_description,omitempty"`
	SessionType      string `json:"session_type,omitempty"`
}

// NextIncompleteStep returns the first unset field, or StepDone.
func NextIncompleteStep(d Draft) Step {
	switch {
	case d.Name == "":
		return StepName
	case d.Email == "":
		return StepEmail
	case d.BookingTime == "":
		return StepBookingTime
	case d.IssueDescription == "":
		return StepIssue
	case d.SessionType == "":
		return StepSessionType
	default:
		return StepDone
	}
}

// Set stores an already-normalized value for step.
func (d *Draft) Set(step Step, value string) {
	switch step {
	case StepName:
		d.Name = value
	case StepEmail:
		d.Email = value
	case StepBookingTime:
		d.BookingTime = value
	case StepIssue:
		d.IssueDescription = value
	case StepSessionType:
		d.SessionType = value
	}
}

// NormalizeEmail lowercases and drops all whitespace, so "John Doe at
// Example dot com" style spacing collapses.
func NormalizeEmail(spoken string) string {
	var b strings.Builder
	b.Grow(len(spoken))
	for _, r := range strings.ToLower(spoken) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func NormalizeSessionType(spoken string) string {
	if strings.Contains(strings.ToLower(spoken), SessionOnline) {
		return SessionOnline
	}
	return SessionOffline
}

var prompts = [...]string{
	"What is your name?",
	"Please say your email address.",
	"Please say your booking date and time like 10 December 12 PM.",
	"Please describe your issue.",
	"Say online or offline for the session type.",
}

var instructions = [...]string{
	"Ask only the patient's name.",
	"Ask only the patient's email address.",
	"Ask booking date and time. Example: 10 December 12 PM.",
	"Ask the patient's health issue.",
	"Ask whether the session is online or offline.",
}

const (
	// FallbackPrompt is spoken when the assistant gives nothing usable.
	FallbackPrompt = "Please answer."

	CompletionMessage = "All details collected. Please review and confirm the booking."
	DateNotUnderstood = "I could not understand the date. Please say it like 10 December 12 PM."
	DateAlreadyPassed = "That date has already passed. Please say a future date."
)

// Prompt returns the scripted question for step, or "" for StepDone.
func Prompt(step Step) string {
	if step < 0 || int(step) >= len(prompts) {
		return ""
	}
	return prompts[step]
}

// Instruction returns the assistant instruction for step, or "".
func Instruction(step Step) string {
	if step < 0 || int(step) >= len(instructions) {
		return ""
	}
	return instructions[step]
}

var bracketed = regexp.MustCompile(`\[.*?\]`)

// SanitizeAssistantReply keeps the first line of reply, drops non-ASCII
// characters and [bracketed] annotations, and trims. It returns
// FallbackPrompt when nothing is left.
func SanitizeAssistantReply(reply string) string {
	line := reply
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}

	line = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, line)

	line = strings.TrimSpace(bracketed.ReplaceAllString(line, ""))
	if line == "" {
		return FallbackPrompt
	}
	return line
}
