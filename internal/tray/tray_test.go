package tray

import (
	"testing"

	"github.com/petems/voicebook/internal/audio"
	"github.com/petems/voicebook/internal/config"
)

func TestEmojiForStatus(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"recording", "🔴"},
		{"processing", "🟡"},
		{"idle", "🟢"},
		{"error", "⚪️"},
		{"bogus", "🟢"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			if got := emojiForStatus(tt.status); got != tt.want {
				t.Errorf("emojiForStatus(%q) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestModeTitle(t *testing.T) {
	tests := []struct {
		name string
		mode string
		want string
	}{
		{name: "PushToTalk mode", mode: config.ModePushToTalk, want: "Mode: Push-to-Talk"},
		{name: "Toggle mode", mode: config.ModeToggle, want: "Mode: Toggle"},
		{name: "unset defaults to toggle", mode: "", want: "Mode: Toggle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := modeTitle(tt.mode); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestMenuTitles(t *testing.T) {
	if voiceTitle(true) != "Stop Voice Booking" || voiceTitle(false) != "Start Voice Booking" {
		t.Error("unexpected voice titles")
	}
	if doctorTitle("") != "Doctor: none selected" || doctorTitle("d7") != "Doctor: d7" {
		t.Error("unexpected doctor titles")
	}
}

func TestOpenCommand(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"darwin", "open"},
		{"linux", "xdg-open"},
		{"windows", "cmd"},
	}

	for _, tt := range tests {
		name, args := openCommand(tt.goos, "/tmp/voicebook.log")
		if name != tt.want {
			t.Errorf("%s: command %q, want %q", tt.goos, name, tt.want)
		}
		if args[len(args)-1] != "/tmp/voicebook.log" {
			t.Errorf("%s: path should be the last argument, got %v", tt.goos, args)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate kept %q", got)
	}
	if got := truncate("Assistant: What is your name?", 10); got != "Assistant…" {
		t.Errorf("truncate = %q", got)
	}
}

func TestSelectedDevice(t *testing.T) {
	devices := []audio.AudioDevice{
		{ID: "Built-in Microphone", Name: "Built-in Microphone", Default: true},
		{ID: "USB Headset", Name: "USB Headset"},
	}

	tests := []struct {
		name       string
		configured string
		want       string
	}{
		{"unset uses default", "", "Built-in Microphone"},
		{"configured device", "USB Headset", "USB Headset"},
		{"unplugged device falls back", "Bluetooth", "Built-in Microphone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := selectedDevice(devices, tt.configured); got != tt.want {
				t.Errorf("selectedDevice(%q) = %q, want %q", tt.configured, got, tt.want)
			}
		})
	}

	if got := selectedDevice(nil, "USB Headset"); got != "" {
		t.Errorf("selectedDevice with no devices = %q", got)
	}
}
