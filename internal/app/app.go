package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/petems/voicebook/internal/audio"
	"github.com/petems/voicebook/internal/backend"
	"github.com/petems/voicebook/internal/clipboard"
	"github.com/petems/voicebook/internal/config"
	"github.com/petems/voicebook/internal/flow"
	"github.com/rs/zerolog"
)

type Mode int

const (
	PushToTalk Mode = iota
	Toggle
)

// Messages shown to the user for page actions.
const (
	MsgSelectDoctor    = "Please select a doctor."
	MsgEnterTime       = "Please enter booking time."
	MsgCheckSlotFirst  = "Please check slot availability first."
	MsgSlotAvailable   = "Slot Available!"
	MsgSlotCheckFailed = "Error checking slot."
	MsgBooked          = "Booking Successful!"
	MsgServerError     = "Server error occurred."
	MsgCancelled       = "Booking cancelled."
	MsgCancelFailed    = "Failed to cancel booking."
	MsgCancelError     = "Error cancelling booking."
	MsgSelectImage     = "Please select an image first."
	MsgScanComplete    = "Upload and Scan Complete!"
	MsgScanFailed      = "Scan failed."
)

var (
	ErrNoDoctor        = errors.New("no doctor selected")
	ErrNoBookingTime   = errors.New("no booking time")
	ErrSlotUnavailable = errors.New("slot unavailable")
	ErrSlotNotChecked  = errors.New("slot not checked")
	ErrNoReason        = errors.New("no cancellation reason")
	ErrNoImage         = errors.New("no prescription image")
)

// VoiceFlow is the part of *flow.Flow the page drives.
type VoiceFlow interface {
	Begin() flow.Session
	Ask(ctx context.Context, s flow.Session)
	Stop()
	State() flow.State
	SetAIMode(on bool)
	AIMode() bool
}

// Recorder is the part of *capture.Recorder the page controls directly.
type Recorder interface {
	// Stop ends the current answer window early.
	Stop()
	SetDevice(deviceID string)
}

// Backend is the part of *backend.Client the page calls directly.
type Backend interface {
	CheckSlot(ctx context.Context, doctorID, bookingTime string) (backend.SlotStatus, error)
	CreateBooking(ctx context.Context, b backend.BookingRequest) (string, error)
	CancelBooking(ctx context.Context, bookingID, reason string) error
	UploadPrescription(ctx context.Context, bookingID, filename string, image io.Reader) (string, error)
}

type Config struct {
	Flow      VoiceFlow
	Recorder  Recorder      // Optional - can be nil
	Audio     audio.Capture // Optional - used to list input devices
	Backend   Backend
	Page      *Page
	Clipboard clipboard.Copier // Optional - can be nil
	Config    *config.Config
	// ConfigPath is where mode and AI mode changes are saved. Empty
	// disables saving.
	ConfigPath string
	Logger     zerolog.Logger
}

type App struct {
	flow    VoiceFlow
	rec     Recorder
	audio   audio.Capture
	api     Backend
	page    *Page
	clip    clipboard.Copier
	cfg     *config.Config
	cfgPath string
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	doctorID   string
	doctorName string
	// checked is the doctor and time of the last slot check that came
	// back available. Confirming is allowed only while it still matches.
	checked string
}

func New(cfg Config) *App {
	page := cfg.Page
	if page == nil {
		page = NewPage(cfg.Logger)
	}
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		flow:    cfg.Flow,
		rec:     cfg.Recorder,
		audio:   cfg.Audio,
		api:     cfg.Backend,
		page:    page,
		clip:    cfg.Clipboard,
		cfg:     cfg.Config,
		cfgPath: cfg.ConfigPath,
		log:     cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	if a.cfg == nil {
		a.cfg = config.Default()
	}
	a.doctorID = a.cfg.Booking.DoctorID
	return a
}

func (a *App) Page() *Page {
	return a.page
}

// Voice booking

func (a *App) OnHotkey(pressed bool) {
	a.mu.Lock()
	mode := PushToTalk
	if a.cfg.Mode == config.ModeToggle {
		mode = Toggle
	}
	a.mu.Unlock()

	switch mode {
	case PushToTalk:
		// The session spans every question. Holding the key only bounds
		// the current answer.
		if pressed {
			a.StartVoice()
		} else {
			a.EndAnswer()
		}
	case Toggle:
		if pressed {
			a.ToggleVoice()
		}
	}
}

// StartVoice begins a voice booking session. The session is active when
// StartVoice returns; its first question is asked in the background. It
// does nothing while a session is already waiting for an answer.
func (a *App) StartVoice() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.startVoiceLocked()
}

func (a *App) startVoiceLocked() {
	if a.flow.State() == flow.StateAwaitingAnswer {
		return
	}
	if a.ctx.Err() != nil {
		a.log.Warn().Msg("App is shutting down, not starting voice booking")
		return
	}

	session := a.flow.Begin()
	a.log.Info().Str("session", session.ID).Msg("Starting voice booking")

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.flow.Ask(a.ctx, session)
	}()
}

func (a *App) StopVoice() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopVoiceLocked()
}

func (a *App) stopVoiceLocked() {
	if a.flow.State() == flow.StateInactive {
		return
	}
	a.log.Info().Msg("Stopping voice booking")
	a.flow.Stop()
}

// ToggleVoice stops an active session or starts a new one. The check and
// the change happen under one lock, so rapid repeats alternate.
func (a *App) ToggleVoice() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.flow.State() == flow.StateAwaitingAnswer {
		a.stopVoiceLocked()
	} else {
		a.startVoiceLocked()
	}
}

// EndAnswer closes the current answer window early. The recording made so
// far is transcribed and the session carries on.
func (a *App) EndAnswer() {
	if a.rec == nil || !a.VoiceActive() {
		return
	}
	a.log.Debug().Msg("Ending answer window")
	a.rec.Stop()
}

// VoiceActive reports whether a session is waiting for answers. A
// completed session counts as inactive.
func (a *App) VoiceActive() bool {
	return a.flow.State() == flow.StateAwaitingAnswer
}

func (a *App) SetAIMode(on bool) {
	a.flow.SetAIMode(on)

	a.mu.Lock()
	a.cfg.Flow.AIMode = on
	a.mu.Unlock()
	a.save()
}

func (a *App) AIMode() bool {
	return a.flow.AIMode()
}

func (a *App) SetMode(mode string) {
	a.mu.Lock()
	a.cfg.Mode = mode
	a.mu.Unlock()
	a.save()
}

func (a *App) Mode() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.Mode
}

func (a *App) ListDevices() ([]audio.AudioDevice, error) {
	if a.audio == nil {
		return nil, errors.New("no audio capture configured")
	}
	return a.audio.ListDevices()
}

// SetDevice selects the microphone for later answers. It is refused while
// a session is waiting for an answer.
func (a *App) SetDevice(id string) error {
	if a.VoiceActive() {
		return fmt.Errorf("cannot change device during voice booking")
	}

	a.mu.Lock()
	a.cfg.Audio.DeviceID = id
	a.mu.Unlock()

	if a.rec != nil {
		a.rec.SetDevice(id)
	}
	a.save()
	return nil
}

func (a *App) DeviceID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.Audio.DeviceID
}

// Page actions

// SelectDoctor picks the doctor to book with. Any previous slot check is
// discarded.
func (a *App) SelectDoctor(id, name string) {
	a.mu.Lock()
	a.doctorID = strings.TrimSpace(id)
	a.doctorName = strings.TrimSpace(name)
	a.checked = ""
	a.mu.Unlock()

	a.log.Info().Str("doctor", id).Msg("Doctor selected")
}

// CheckSlot asks the server whether the selected doctor is free at the
// form's booking time. The returned message is what the page shows.
func (a *App) CheckSlot(ctx context.Context) (string, error) {
	a.mu.Lock()
	doctor := a.doctorID
	a.checked = ""
	a.mu.Unlock()
	when := a.page.Form().BookingTime

	if doctor == "" {
		return MsgSelectDoctor, ErrNoDoctor
	}
	if when == "" {
		return MsgEnterTime, ErrNoBookingTime
	}

	status, err := a.api.CheckSlot(ctx, doctor, when)
	if err != nil {
		a.log.Error().Err(err).Str("doctor", doctor).Str("time", when).Msg("Slot check failed")
		return MsgSlotCheckFailed, err
	}

	msg := status.Reason
	if msg == "" {
		msg = MsgSlotAvailable
	}
	if !status.Available {
		a.log.Info().Str("doctor", doctor).Str("time", when).Str("reason", status.Reason).Msg("Slot unavailable")
		return msg, ErrSlotUnavailable
	}

	a.mu.Lock()
	a.checked = slotKey(doctor, when)
	a.mu.Unlock()

	a.log.Info().Str("doctor", doctor).Str("time", when).Msg("Slot available")
	return msg, nil
}

// CanConfirm reports whether the last slot check passed for the current
// doctor and booking time.
func (a *App) CanConfirm() bool {
	when := a.page.Form().BookingTime

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.checked != "" && a.checked == slotKey(a.doctorID, when)
}

// ConfirmBooking books the form. On success the form and doctor choice
// are reset.
func (a *App) ConfirmBooking(ctx context.Context) (string, error) {
	if !a.CanConfirm() {
		return MsgCheckSlotFirst, ErrSlotNotChecked
	}

	a.mu.Lock()
	doctor := a.doctorID
	a.mu.Unlock()
	form := a.page.Form()

	req := backend.BookingRequest{
		DoctorID:         doctor,
		BookingTime:      form.BookingTime,
		IssueDescription: form.IssueDescription,
		SessionType:      form.SessionType,
	}

	if _, err := a.api.CreateBooking(ctx, req); err != nil {
		var rejected *backend.RejectedError
		if errors.As(err, &rejected) {
			a.log.Warn().Str("message", rejected.Message).Msg("Booking rejected")
			return "Error: " + rejected.Message, err
		}
		a.log.Error().Err(err).Msg("Booking failed")
		return MsgServerError, err
	}

	a.log.Info().Str("doctor", doctor).Str("time", form.BookingTime).Msg("Booking created")

	a.page.ResetForm()
	a.mu.Lock()
	a.checked = ""
	a.doctorID = a.cfg.Booking.DoctorID
	a.doctorName = ""
	a.mu.Unlock()

	return MsgBooked, nil
}

// CancelBooking cancels an existing booking. A blank reason aborts
// without contacting the server.
func (a *App) CancelBooking(ctx context.Context, bookingID, reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", ErrNoReason
	}

	if err := a.api.CancelBooking(ctx, bookingID, reason); err != nil {
		if errors.Is(err, backend.ErrRejected) {
			a.log.Warn().Err(err).Str("booking", bookingID).Msg("Cancellation rejected")
			return MsgCancelFailed, err
		}
		a.log.Error().Err(err).Str("booking", bookingID).Msg("Cancellation failed")
		return MsgCancelError, err
	}

	a.log.Info().Str("booking", bookingID).Msg("Booking cancelled")
	return MsgCancelled, nil
}

// UploadPrescription sends the image at path for scanning and returns the
// server's analysis. On failure the returned string is the message to
// show instead.
func (a *App) UploadPrescription(ctx context.Context, bookingID, path string) (string, error) {
	if path == "" {
		return MsgSelectImage, ErrNoImage
	}
	f, err := os.Open(path)
	if err != nil {
		return MsgSelectImage, fmt.Errorf("%w: %v", ErrNoImage, err)
	}
	defer f.Close()

	analysis, err := a.api.UploadPrescription(ctx, bookingID, filepath.Base(path), f)
	if err != nil {
		var rejected *backend.RejectedError
		if errors.As(err, &rejected) {
			return "Error: " + rejected.Message, err
		}
		a.log.Error().Err(err).Str("booking", bookingID).Msg("Prescription scan failed")
		return MsgScanFailed, err
	}

	a.log.Info().Str("booking", bookingID).Msg(MsgScanComplete)
	return analysis, nil
}

// Summary renders the confirmation shown before booking.
func (a *App) Summary() string {
	a.mu.Lock()
	doctor := a.doctorName
	if doctor == "" {
		doctor = a.doctorID
	}
	a.mu.Unlock()
	if doctor == "" {
		doctor = "Unknown"
	}

	form := a.page.Form()
	var b strings.Builder
	fmt.Fprintf(&b, "Doctor: %s\n", doctor)
	fmt.Fprintf(&b, "Name: %s\n", form.Name)
	fmt.Fprintf(&b, "Email: %s\n", form.Email)
	fmt.Fprintf(&b, "Time: %s\n", form.BookingTime)
	fmt.Fprintf(&b, "Session: %s\n", form.SessionType)
	fmt.Fprintf(&b, "Issue: %s", form.IssueDescription)
	return b.String()
}

func (a *App) CopySummary() error {
	if a.clip == nil {
		return errors.New("no clipboard configured")
	}
	return a.clip.Copy(a.Summary())
}

// Shutdown stops any voice session and waits for background work to
// finish or ctx to expire.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.VoiceActive() {
		a.flow.Stop()
	}
	a.cancel()
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *App) save() {
	if a.cfgPath == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.cfg.SaveFile(a.cfgPath); err != nil {
		a.log.Error().Err(err).Msg("Failed to save config")
	}
}

func slotKey(doctor, when string) string {
	return doctor + "\x00" + when
}
