// Package flow runs the spoken booking dialogue: it asks for each missing
// draft field in order, listens for the answer, normalizes it and moves on
// until the draft is complete.
//
// Questions and answers are strictly sequential. Stop can be called at any
// time; work already in flight finishes but its outcome is dropped, because
// every step re-checks that the session it belongs to is still current.
package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/petems/voicebook/internal/backend"
	"github.com/petems/voicebook/internal/booking"
	"github.com/petems/voicebook/internal/capture"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type State int

const (
	StateInactive State = iota
	StateAwaitingAnswer
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateCompleted:
		return "completed"
	default:
		return "inactive"
	}
}

const (
	SpeakerSystem    = "System"
	SpeakerAssistant = "Assistant"
	SpeakerUser      = "User"
)

// Capturer starts a recording whose result arrives later on the channel
// passed to Run. capture.Recorder satisfies it.
type Capturer interface {
	StartCapture(ctx context.Context, endpoint string) string
}

type Assistant interface {
	Assist(ctx context.Context, message string) (string, error)
}

// Speaker says text out loud and returns when playback is over.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

type DateParser interface {
	ParseBookingTime(ctx context.Context, spoken string) (backend.ParsedTime, error)
}

type Config struct {
	Capture     Capturer
	Assistant   Assistant
	Speaker     Speaker
	Dates       DateParser
	View        View
	STTEndpoint string
	AIMode      bool
	// SilenceSentinels are markers a speech backend emits instead of text
	// when nothing was said. A transcript containing any of them is silence.
	SilenceSentinels []string
	// RestartsPerMinute paces capture starts. Zero means unlimited.
	RestartsPerMinute int
	Logger            zerolog.Logger

	Now      func() time.Time
	Location *time.Location
}

type Flow struct {
	capture   Capturer
	assistant Assistant
	speaker   Speaker
	dates     DateParser
	view      View
	endpoint  string
	sentinels []string
	limiter   *rate.Limiter
	now       func() time.Time
	loc       *time.Location
	log       zerolog.Logger

	mu        sync.Mutex
	state     State
	step      booking.Step
	draft     booking.Draft
	aiMode    bool
	listening bool
	epoch     uint64
	session   string
	expect    string
}

func New(cfg Config) *Flow {
	f := &Flow{
		capture:   cfg.Capture,
		assistant: cfg.Assistant,
		speaker:   cfg.Speaker,
		dates:     cfg.Dates,
		view:      cfg.View.withDefaults(),
		endpoint:  cfg.STTEndpoint,
		sentinels: cfg.SilenceSentinels,
		aiMode:    cfg.AIMode,
		now:       cfg.Now,
		loc:       cfg.Location,
		log:       cfg.Logger,
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.loc == nil {
		f.loc = time.Local
	}

	f.limiter = rate.NewLimiter(rate.Inf, 1)
	if cfg.RestartsPerMinute > 0 {
		burst := 3
		if cfg.RestartsPerMinute < burst {
			burst = cfg.RestartsPerMinute
		}
		f.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RestartsPerMinute)), burst)
	}

	return f
}

// Session identifies one voice booking session. Work tied to a session
// that has since been stopped or replaced is skipped.
type Session struct {
	ID    string
	epoch uint64
}

// Start begins a new session with an empty draft and asks the first
// question. It returns once that question has been asked and listening
// has begun.
func (f *Flow) Start(ctx context.Context) {
	f.Ask(ctx, f.Begin())
}

// Begin opens a new session with an empty draft without asking anything,
// so State reports StateAwaitingAnswer as soon as it returns. Follow it
// with Ask.
func (f *Flow) Begin() Session {
	f.mu.Lock()
	f.epoch++
	f.session = uuid.NewString()
	f.draft = booking.Draft{}
	f.state = StateAwaitingAnswer
	f.step = booking.StepName
	f.listening = false
	f.expect = ""
	s := Session{ID: f.session, epoch: f.epoch}
	f.mu.Unlock()

	f.log.Info().Str("session", s.ID).Msg("Voice booking started")
	f.view.Transcript.Append(SpeakerSystem, "Voice booking started.")
	return s
}

// Ask asks the next question of s. It does nothing once s has been
// stopped or replaced.
func (f *Flow) Ask(ctx context.Context, s Session) {
	f.ask(ctx, s.epoch)
}

// Stop ends the session from any state. A capture still running will
// complete, but its result is ignored.
func (f *Flow) Stop() {
	f.mu.Lock()
	f.epoch++
	f.state = StateInactive
	f.listening = false
	f.expect = ""
	session := f.session
	f.mu.Unlock()

	f.log.Info().Str("session", session).Msg("Voice booking stopped")
	f.view.Transcript.Append(SpeakerSystem, "Voice booking stopped.")
	f.view.Status.SetIdle()
}

// AskCurrentQuestion asks for the first unset field of the current
// session, or announces completion when there is none.
func (f *Flow) AskCurrentQuestion(ctx context.Context) {
	f.mu.Lock()
	epoch := f.epoch
	f.mu.Unlock()

	f.ask(ctx, epoch)
}

// Run feeds capture results to HandleResult until ctx is done or results
// is closed.
func (f *Flow) Run(ctx context.Context, results <-chan capture.Result) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res, ok := <-results:
			if !ok {
				return nil
			}
			f.HandleResult(ctx, res)
		}
	}
}

// HandleResult processes one capture result. Results are ignored unless
// the flow is listening for exactly that capture.
func (f *Flow) HandleResult(ctx context.Context, res capture.Result) {
	f.mu.Lock()
	if f.state != StateAwaitingAnswer || !f.listening || res.ID != f.expect {
		f.mu.Unlock()
		f.log.Debug().Str("capture", res.ID).Msg("Ignoring capture result")
		return
	}
	f.listening = false
	f.expect = ""
	epoch := f.epoch
	step := f.step
	f.mu.Unlock()

	log := f.log.With().Str("step", step.String()).Logger()

	if res.Kind == capture.KindError {
		log.Warn().Str("error", res.Value).Msg("Capture failed, listening again")
		f.view.Transcript.Append(SpeakerSystem, res.Value)
		f.view.Status.SetError()
		f.listen(ctx, epoch)
		return
	}

	text := strings.TrimSpace(res.Value)
	if f.isSilence(text) {
		log.Debug().Msg("No speech detected, listening again")
		f.listen(ctx, epoch)
		return
	}

	f.view.Transcript.Append(SpeakerUser, text)
	f.view.Status.SetProcessing()

	var value string
	switch step {
	case booking.StepEmail:
		value = booking.NormalizeEmail(text)
	case booking.StepBookingTime:
		iso, problem := f.resolveBookingTime(ctx, text)
		if !f.current(epoch) {
			return
		}
		if problem != "" {
			log.Info().Str("spoken", text).Str("reason", problem).Msg("Booking time rejected")
			f.say(ctx, problem)
			f.listen(ctx, epoch)
			return
		}
		value = iso
	case booking.StepSessionType:
		value = booking.NormalizeSessionType(text)
	default:
		value = text
	}

	if !f.store(epoch, step, value) {
		return
	}
	log.Info().Str("value", value).Msg("Answer stored")

	f.ask(ctx, epoch)
}

func (f *Flow) SetAIMode(on bool) {
	f.mu.Lock()
	f.aiMode = on
	f.mu.Unlock()

	if on {
		f.view.Transcript.Append(SpeakerSystem, "AI mode enabled.")
	} else {
		f.view.Transcript.Append(SpeakerSystem, "AI mode disabled.")
	}
}

func (f *Flow) AIMode() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aiMode
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Step is the step being asked, meaningful while awaiting an answer.
func (f *Flow) Step() booking.Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

func (f *Flow) Listening() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listening
}

// Draft returns a copy of the answers collected so far.
func (f *Flow) Draft() booking.Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

func (f *Flow) ask(ctx context.Context, epoch uint64) {
	f.mu.Lock()
	if !f.activeLocked(epoch) {
		f.mu.Unlock()
		return
	}
	f.listening = false
	step := booking.NextIncompleteStep(f.draft)
	f.step = step
	ai := f.aiMode
	if step == booking.StepDone {
		f.state = StateCompleted
	}
	f.mu.Unlock()

	if step == booking.StepDone {
		f.log.Info().Msg("All booking details collected")
		f.say(ctx, booking.CompletionMessage)
		f.view.Status.SetIdle()
		return
	}

	question := f.question(ctx, step, ai)
	if !f.current(epoch) {
		return
	}

	f.say(ctx, question)
	if !f.current(epoch) {
		return
	}

	f.listen(ctx, epoch)
}

func (f *Flow) question(ctx context.Context, step booking.Step, ai bool) string {
	if !ai || f.assistant == nil {
		return booking.Prompt(step)
	}

	reply, err := f.assistant.Assist(ctx, booking.Instruction(step))
	if err != nil {
		f.log.Warn().Err(err).Str("step", step.String()).Msg("Assistant unavailable, using fallback")
		return booking.FallbackPrompt
	}
	return booking.SanitizeAssistantReply(reply)
}

func (f *Flow) say(ctx context.Context, text string) {
	f.view.Transcript.Append(SpeakerAssistant, text)
	if f.speaker == nil {
		return
	}

	f.view.Status.SetProcessing()
	if err := f.speaker.Speak(ctx, text); err != nil {
		f.log.Warn().Err(err).Msg("Speech playback failed")
	}
}

func (f *Flow) listen(ctx context.Context, epoch uint64) {
	if err := f.limiter.Wait(ctx); err != nil {
		return
	}

	f.mu.Lock()
	if !f.activeLocked(epoch) {
		f.mu.Unlock()
		return
	}
	f.listening = true
	// Started under the lock so a fast result cannot arrive before the
	// expected ID is recorded.
	f.expect = f.capture.StartCapture(ctx, f.endpoint)
	f.mu.Unlock()

	f.view.Status.SetRecording()
}

// BookingTimeLayout is the booking time format the server accepts.
const BookingTimeLayout = "2006-01-02 15:04"

// resolveBookingTime returns the booking time to store, or the message to speak
// when the answer cannot be used.
func (f *Flow) resolveBookingTime(ctx context.Context, spoken string) (string, string) {
	if f.dates == nil {
		return "", booking.DateNotUnderstood
	}

	parsed, err := f.dates.ParseBookingTime(ctx, spoken)
	if err != nil {
		f.log.Warn().Err(err).Msg("Date parsing failed")
		return "", booking.DateNotUnderstood
	}
	if !parsed.OK {
		return "", booking.DateNotUnderstood
	}

	chosen, err := ParseISO(parsed.ISO, f.loc)
	if err != nil {
		f.log.Warn().Err(err).Str("iso", parsed.ISO).Msg("Unusable date from parser")
		return "", booking.DateNotUnderstood
	}
	if !chosen.After(f.now()) {
		return "", booking.DateAlreadyPassed
	}
	return chosen.Format(BookingTimeLayout), ""
}

var isoLayouts = []string{
	BookingTimeLayout,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

var errBadISO = errors.New("unrecognized date-time")

// ParseISO reads the date-time format returned by the parsing endpoint.
// Values without a zone are taken in loc.
func ParseISO(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errBadISO
}

func (f *Flow) isSilence(text string) bool {
	if text == "" {
		return true
	}
	for _, s := range f.sentinels {
		if s != "" && strings.Contains(text, s) {
			return true
		}
	}
	return false
}

func (f *Flow) store(epoch uint64, step booking.Step, value string) bool {
	f.mu.Lock()
	if !f.activeLocked(epoch) || booking.NextIncompleteStep(f.draft) != step {
		f.mu.Unlock()
		return false
	}
	f.draft.Set(step, value)
	f.mu.Unlock()

	f.view.Form.SetField(step, value)
	return true
}

func (f *Flow) current(epoch uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeLocked(epoch)
}

func (f *Flow) activeLocked(epoch uint64) bool {
	return f.epoch == epoch && f.state == StateAwaitingAnswer
}
