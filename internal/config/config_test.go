package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope", "config.json"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.CaptureSeconds != 5 {
		t.Errorf("expected 5 second capture, got %d", cfg.Audio.CaptureSeconds)
	}
	if cfg.Backend.STTPath != "/api/stt/whisper" {
		t.Errorf("unexpected stt path %q", cfg.Backend.STTPath)
	}
	if len(cfg.Flow.SilenceSentinels) != 1 || cfg.Flow.SilenceSentinels[0] != "[BLANK_AUDIO]" {
		t.Errorf("unexpected sentinels %v", cfg.Flow.SilenceSentinels)
	}
}

func TestLoadFileOverridesFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"backend": {"base_url": "http://hospital.test"}, "flow": {"ai_mode": true}}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VOICEBOOK_BOOKING_DOCTOR_ID", "7")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Backend.BaseURL != "http://hospital.test" {
		t.Errorf("expected base url from file, got %q", cfg.Backend.BaseURL)
	}
	if !cfg.Flow.AIMode {
		t.Error("expected ai_mode from file")
	}
	if cfg.Booking.DoctorID != "7" {
		t.Errorf("expected doctor id from env, got %q", cfg.Booking.DoctorID)
	}
	// untouched keys keep defaults
	if cfg.Backend.BookPath != "/api/book" {
		t.Errorf("expected default book path, got %q", cfg.Backend.BookPath)
	}
}

func TestSaveFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicebook", "config.json")
	cfg := Default()
	cfg.Mode = ModePushToTalk
	cfg.Booking.DoctorID = "3"

	if err := cfg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.Mode != ModePushToTalk || loaded.Booking.DoctorID != "3" {
		t.Errorf("saved values not loaded back: mode=%s doctor=%s", loaded.Mode, loaded.Booking.DoctorID)
	}
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		name string
		base string
		path string
		want string
	}{
		{"joins", "http://h:5000", "/api/tts", "http://h:5000/api/tts"},
		{"trailing slash", "http://h:5000/", "api/tts", "http://h:5000/api/tts"},
		{"absolute path wins", "http://h:5000", "https://stt.example/x", "https://stt.example/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BackendConfig{BaseURL: tt.base}.Endpoint(tt.path)
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
