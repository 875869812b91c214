package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/petems/voicebook/internal/app"
	"github.com/petems/voicebook/internal/backend"
	"github.com/petems/voicebook/internal/booking"
	"github.com/petems/voicebook/internal/clipboard"
	"github.com/petems/voicebook/internal/config"
	"github.com/petems/voicebook/internal/flow"
	"github.com/rs/zerolog"
)

var errUsage = errors.New("usage")

// headless bundles what the non-voice commands need.
type headless struct {
	cfg *config.Config
	api *backend.Client
	app *app.App
	log zerolog.Logger
	out io.Writer
	now func() time.Time
}

func newHeadless(cfg *config.Config, api *backend.Client, log zerolog.Logger, out io.Writer) *headless {
	return &headless{
		cfg: cfg,
		api: api,
		app: app.New(app.Config{
			Flow:    flow.New(flow.Config{Logger: log}),
			Backend: api,
			Config:  cfg,
			Logger:  log,
		}),
		log: log,
		out: out,
		now: time.Now,
	}
}

func runCommand(ctx context.Context, args []string, cfg *config.Config, log zerolog.Logger, out io.Writer) error {
	h := newHeadless(cfg, backend.New(cfg.Backend, log), log, out)
	return h.run(ctx, args)
}

func (h *headless) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	var err error
	switch args[0] {
	case "check":
		err = h.check(ctx, args[1:])
	case "book":
		err = h.book(ctx, args[1:])
	case "cancel":
		err = h.cancel(ctx, args[1:])
	case "scan":
		err = h.scan(ctx, args[1:])
	case "parse-time":
		err = h.parseTime(ctx, args[1:])
	default:
		fmt.Fprintf(h.out, "unknown command %q\n", args[0])
		return errUsage
	}

	if err != nil && !errors.Is(err, errUsage) {
		h.log.Debug().Err(err).Str("command", args[0]).Msg("Command failed")
	}
	return err
}

func (h *headless) check(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(h.out)
	doctor := fs.String("doctor", h.cfg.Booking.DoctorID, "doctor ID")
	when := fs.String("time", "", "booking time, e.g. \"2030-12-10 12:00\"")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	bookingTime, err := h.bookingTime(*when)
	if err != nil {
		return err
	}

	h.app.SelectDoctor(*doctor, "")
	h.app.Page().SetField(booking.StepBookingTime, bookingTime)

	msg, err := h.app.CheckSlot(ctx)
	fmt.Fprintln(h.out, msg)
	return err
}

func (h *headless) book(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("book", flag.ContinueOnError)
	fs.SetOutput(h.out)
	doctor := fs.String("doctor", h.cfg.Booking.DoctorID, "doctor ID")
	doctorName := fs.String("doctor-name", "", "doctor name shown in the summary")
	when := fs.String("time", "", "booking time, e.g. \"2030-12-10 12:00\"")
	name := fs.String("name", "", "patient name")
	email := fs.String("email", "", "patient email")
	issue := fs.String("issue", "", "issue description")
	session := fs.String("session", booking.SessionOffline, "online or offline")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	bookingTime, err := h.bookingTime(*when)
	if err != nil {
		return err
	}

	h.app.SelectDoctor(*doctor, *doctorName)
	page := h.app.Page()
	page.SetField(booking.StepName, *name)
	page.SetField(booking.StepEmail, booking.NormalizeEmail(*email))
	page.SetField(booking.StepBookingTime, bookingTime)
	page.SetField(booking.StepIssue, *issue)
	page.SetField(booking.StepSessionType, booking.NormalizeSessionType(*session))

	msg, err := h.app.CheckSlot(ctx)
	fmt.Fprintln(h.out, msg)
	if err != nil {
		return err
	}

	fmt.Fprintln(h.out, h.app.Summary())
	msg, err = h.app.ConfirmBooking(ctx)
	fmt.Fprintln(h.out, msg)
	return err
}

// bookingTime converts a -time value to the server's format. An empty
// value is passed through so the page reports the missing time.
func (h *headless) bookingTime(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	t, err := flow.ParseISO(s, time.Local)
	if err != nil {
		fmt.Fprintf(h.out, "invalid -time %q, want YYYY-MM-DD HH:MM\n", s)
		return "", errUsage
	}
	return t.Format(flow.BookingTimeLayout), nil
}

func (h *headless) cancel(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ContinueOnError)
	fs.SetOutput(h.out)
	reason := fs.String("reason", "", "reason for cancellation")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return errUsage
	}

	msg, err := h.app.CancelBooking(ctx, fs.Arg(0), *reason)
	if errors.Is(err, app.ErrNoReason) {
		fmt.Fprintln(h.out, "Cancellation aborted: no reason given.")
		return err
	}
	fmt.Fprintln(h.out, msg)
	return err
}

func (h *headless) scan(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(h.out)
	copyResult := fs.Bool("copy", false, "copy the analysis to the clipboard")
	if err := fs.Parse(args); err != nil || fs.NArg() < 1 || fs.NArg() > 2 {
		return errUsage
	}

	analysis, err := h.app.UploadPrescription(ctx, fs.Arg(0), fs.Arg(1))
	fmt.Fprintln(h.out, analysis)
	if err != nil {
		return err
	}
	fmt.Fprintln(h.out, app.MsgScanComplete)

	if *copyResult {
		if err := clipboard.New(h.log).Copy(analysis); err != nil {
			h.log.Error().Err(err).Msg("Failed to copy analysis")
			return err
		}
	}
	return nil
}

// parseTime resolves spoken text the way the voice flow does for the
// booking time step.
func (h *headless) parseTime(ctx context.Context, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return errUsage
	}

	parsed, err := h.api.ParseBookingTime(ctx, text)
	if err != nil || !parsed.OK || parsed.ISO == "" {
		fmt.Fprintln(h.out, booking.DateNotUnderstood)
		if err == nil {
			err = errors.New("booking time not understood")
		}
		return err
	}

	when, err := flow.ParseISO(parsed.ISO, time.Local)
	if err != nil {
		fmt.Fprintln(h.out, booking.DateNotUnderstood)
		return err
	}
	if !when.After(h.now()) {
		fmt.Fprintln(h.out, booking.DateAlreadyPassed)
		return errors.New("booking time already passed")
	}

	fmt.Fprintln(h.out, when.Format(flow.BookingTimeLayout))
	return nil
}
