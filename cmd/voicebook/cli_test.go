package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/petems/voicebook/internal/app"
	"github.com/petems/voicebook/internal/backend"
	"github.com/petems/voicebook/internal/booking"
	"github.com/petems/voicebook/internal/config"
	"github.com/rs/zerolog"
)

func newTestHeadless(t *testing.T, handler http.HandlerFunc) (*headless, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Backend.BaseURL = srv.URL
	cfg.Booking.DoctorID = "d1"

	var out bytes.Buffer
	h := newHeadless(cfg, backend.New(cfg.Backend, zerolog.Nop()), zerolog.Nop(), &out)
	h.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.Local) }
	return h, &out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestCheckCommand(t *testing.T) {
	h, out := newTestHeadless(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["doctor_id"] != "d1" || req["booking_time"] != "2030-12-10 12:00" {
			t.Errorf("unexpected request %v", req)
		}
		writeJSON(w, map[string]any{"available": true})
	})

	if err := h.run(context.Background(), []string{"check", "-time", "2030-12-10 12:00"}); err != nil {
		t.Fatalf("check: %v", err)
	}
	if strings.TrimSpace(out.String()) != app.MsgSlotAvailable {
		t.Errorf("output %q", out.String())
	}
}

func TestCheckCommandTimeFormat(t *testing.T) {
	tests := []struct {
		name string
		time string
	}{
		{"server format", "2030-12-10 12:00"},
		{"T separator", "2030-12-10T12:00"},
		{"with seconds", "2030-12-10T12:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h, _ := newTestHeadless(t, func(w http.ResponseWriter, r *http.Request) {
				var req map[string]string
				json.NewDecoder(r.Body).Decode(&req)
				got = req["booking_time"]
				writeJSON(w, map[string]any{"available": true})
			})

			if err := h.run(context.Background(), []string{"check", "-doctor", "d1", "-time", tt.time}); err != nil {
				t.Fatalf("check: %v", err)
			}
			if got != "2030-12-10 12:00" {
				t.Errorf("booking_time sent = %q, want %q", got, "2030-12-10 12:00")
			}
		})
	}
}

func TestCheckCommandBadTime(t *testing.T) {
	h, out := newTestHeadless(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be contacted")
	})

	err := h.run(context.Background(), []string{"check", "-time", "tomorrow noon"})
	if !errors.Is(err, errUsage) {
		t.Fatalf("expected errUsage, got %v", err)
	}
	if !strings.Contains(out.String(), "YYYY-MM-DD HH:MM") {
		t.Errorf("output %q", out.String())
	}
}

func TestBookCommand(t *testing.T) {
	var booked backend.BookingRequest
	h, out := newTestHeadless(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/check_slot":
			writeJSON(w, map[string]any{"available": true})
		case "/api/book":
			json.NewDecoder(r.Body).Decode(&booked)
			writeJSON(w, map[string]any{"success": true, "message": "ok"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	err := h.run(context.Background(), []string{
		"book", "-time", "2030-12-10T12:00", "-name", "John",
		"-email", "John @Example.com", "-issue", "fever", "-session", "Online please",
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	want := backend.BookingRequest{DoctorID: "d1", BookingTime: "2030-12-10 12:00", IssueDescription: "fever", SessionType: booking.SessionOnline}
	if booked != want {
		t.Errorf("booked %+v, want %+v", booked, want)
	}
	if !strings.Contains(out.String(), "Email: john@example.com") {
		t.Errorf("summary missing normalized email:\n%s", out.String())
	}
	if !strings.HasSuffix(strings.TrimSpace(out.String()), app.MsgBooked) {
		t.Errorf("output should end with %q:\n%s", app.MsgBooked, out.String())
	}
}

func TestBookCommandSlotTaken(t *testing.T) {
	h, out := newTestHeadless(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/book" {
			t.Error("booking should not be attempted")
		}
		writeJSON(w, map[string]any{"available": false, "reason": "Slot already booked"})
	})

	err := h.run(context.Background(), []string{"book", "-time", "2030-12-10T12:00"})
	if !errors.Is(err, app.ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	if strings.TrimSpace(out.String()) != "Slot already booked" {
		t.Errorf("output %q", out.String())
	}
}

func TestCancelCommand(t *testing.T) {
	h, out := newTestHeadless(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/api/booking/b%2F1/cancel" {
			t.Errorf("unexpected path %s", r.URL.EscapedPath())
		}
		writeJSON(w, map[string]any{"success": true})
	})

	if err := h.run(context.Background(), []string{"cancel", "-reason", "recovered", "b/1"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if strings.TrimSpace(out.String()) != app.MsgCancelled {
		t.Errorf("output %q", out.String())
	}

	if err := h.run(context.Background(), []string{"cancel", "b1"}); !errors.Is(err, app.ErrNoReason) {
		t.Errorf("cancel without reason: %v", err)
	}
	if err := h.run(context.Background(), []string{"cancel", "-reason", "x"}); !errors.Is(err, errUsage) {
		t.Errorf("cancel without ID: %v", err)
	}
}

func TestParseTimeCommand(t *testing.T) {
	tests := []struct {
		name    string
		reply   map[string]any
		want    string
		wantErr bool
	}{
		{"future", map[string]any{"ok": true, "iso": "2030-12-10 12:00"}, "2030-12-10 12:00", false},
		{"future with T separator", map[string]any{"ok": true, "iso": "2030-12-10T12:00"}, "2030-12-10 12:00", false},
		{"past", map[string]any{"ok": true, "iso": "2029-12-10 12:00"}, booking.DateAlreadyPassed, true},
		{"not understood", map[string]any{"ok": false}, booking.DateNotUnderstood, true},
		{"garbage iso", map[string]any{"ok": true, "iso": "next week"}, booking.DateNotUnderstood, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, out := newTestHeadless(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.reply)
			})

			err := h.run(context.Background(), []string{"parse-time", "10", "December", "12", "PM"})
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if strings.TrimSpace(out.String()) != tt.want {
				t.Errorf("output %q, want %q", out.String(), tt.want)
			}
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	h, _ := newTestHeadless(t, func(w http.ResponseWriter, r *http.Request) {})

	if err := h.run(context.Background(), []string{"dance"}); !errors.Is(err, errUsage) {
		t.Errorf("expected errUsage, got %v", err)
	}
	if err := h.run(context.Background(), nil); !errors.Is(err, errUsage) {
		t.Errorf("expected errUsage for no args, got %v", err)
	}
}
