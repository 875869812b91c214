package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

const (
	ModePushToTalk = "PushToTalk"
	ModeToggle     = "Toggle"
)

type Config struct {
	Hotkey       string        `json:"hotkey" mapstructure:"hotkey"`
	HotkeyDarwin string        `json:"hotkey_darwin" mapstructure:"hotkey_darwin"`
	Mode         string        `json:"mode" mapstructure:"mode"` // "PushToTalk" or "Toggle"
	LogLevel     string        `json:"log_level" mapstructure:"log_level"`
	Backend      BackendConfig `json:"backend" mapstructure:"backend"`
	Audio        AudioConfig   `json:"audio" mapstructure:"audio"`
	Flow         FlowConfig    `json:"flow" mapstructure:"flow"`
	Booking      BookingConfig `json:"booking" mapstructure:"booking"`
}

type BackendConfig struct {
	BaseURL       string        `json:"base_url" mapstructure:"base_url"`
	STTPath       string        `json:"stt_path" mapstructure:"stt_path"`
	TTSPath       string        `json:"tts_path" mapstructure:"tts_path"`
	AssistantPath string        `json:"assistant_path" mapstructure:"assistant_path"`
	ParseTimePath string        `json:"parse_time_path" mapstructure:"parse_time_path"`
	CheckSlotPath string        `json:"check_slot_path" mapstructure:"check_slot_path"`
	BookPath      string        `json:"book_path" mapstructure:"book_path"`
	CancelPath    string        `json:"cancel_path" mapstructure:"cancel_path"` // "{id}" is replaced by the booking ID
	ScanPath      string        `json:"scan_path" mapstructure:"scan_path"`
	Cookie        string        `json:"cookie" mapstructure:"cookie"`
	TimeoutSecs   int           `json:"timeout_seconds" mapstructure:"timeout_seconds"` // 0 = no timeout
	Breaker       BreakerConfig `json:"breaker" mapstructure:"breaker"`
}

type BreakerConfig struct {
	Enabled             bool `json:"enabled" mapstructure:"enabled"`
	ConsecutiveFailures int  `json:"consecutive_failures" mapstructure:"consecutive_failures"`
	OpenSeconds         int  `json:"open_seconds" mapstructure:"open_seconds"`
}

type AudioConfig struct {
	DeviceID       string `json:"device_id" mapstructure:"device_id"`
	SampleRate     int    `json:"sample_rate" mapstructure:"sample_rate"`
	CaptureSeconds int    `json:"capture_seconds" mapstructure:"capture_seconds"`
}

type FlowConfig struct {
	AIMode           bool     `json:"ai_mode" mapstructure:"ai_mode"`
	SilenceSentinels []string `json:"silence_sentinels" mapstructure:"silence_sentinels"`
	RestartsPerMin   int      `json:"restarts_per_minute" mapstructure:"restarts_per_minute"`
}

type BookingConfig struct {
	DoctorID string `json:"doctor_id" mapstructure:"doctor_id"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Hotkey:       "Alt+Space",
		HotkeyDarwin: "Ctrl+Space",
		Mode:         ModeToggle,
		LogLevel:     "info",
		Backend: BackendConfig{
			BaseURL:       "http://127.0.0.1:5000",
			STTPath:       "/api/stt/whisper",
			TTSPath:       "/api/tts",
			AssistantPath: "/api/tinyllama/assistant",
			ParseTimePath: "/api/parse_booking_time",
			CheckSlotPath: "/api/check_slot",
			BookPath:      "/api/book",
			CancelPath:    "/api/booking/{id}/cancel",
			ScanPath:      "/api/upload_scan_prescription",
			TimeoutSecs:   0,
			Breaker: BreakerConfig{
				Enabled:             true,
				ConsecutiveFailures: 5,
				OpenSeconds:         30,
			},
		},
		Audio: AudioConfig{
			DeviceID:       "",
			SampleRate:     16000,
			CaptureSeconds: 5,
		},
		Flow: FlowConfig{
			AIMode:           false,
			SilenceSentinels: []string{"[BLANK_AUDIO]"},
			RestartsPerMin:   30,
		},
	}
}

// Load reads the config from disk, applies VOICEBOOK_* environment
// overrides and falls back to defaults for anything unset.
func Load() (*Config, error) {
	return LoadFile(configPath())
}

// LoadFile is Load with an explicit file path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("VOICEBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("hotkey", d.Hotkey)
	v.SetDefault("hotkey_darwin", d.HotkeyDarwin)
	v.SetDefault("mode", d.Mode)
	v.SetDefault("log_level", d.LogLevel)

	v.SetDefault("backend.base_url", d.Backend.BaseURL)
	v.SetDefault("backend.stt_path", d.Backend.STTPath)
	v.SetDefault("backend.tts_path", d.Backend.TTSPath)
	v.SetDefault("backend.assistant_path", d.Backend.AssistantPath)
	v.SetDefault("backend.parse_time_path", d.Backend.ParseTimePath)
	v.SetDefault("backend.check_slot_path", d.Backend.CheckSlotPath)
	v.SetDefault("backend.book_path", d.Backend.BookPath)
	v.SetDefault("backend.cancel_path", d.Backend.CancelPath)
	v.SetDefault("backend.scan_path", d.Backend.ScanPath)
	v.SetDefault("backend.cookie", d.Backend.Cookie)
	v.SetDefault("backend.timeout_seconds", d.Backend.TimeoutSecs)
	v.SetDefault("backend.breaker.enabled", d.Backend.Breaker.Enabled)
	v.SetDefault("backend.breaker.consecutive_failures", d.Backend.Breaker.ConsecutiveFailures)
	v.SetDefault("backend.breaker.open_seconds", d.Backend.Breaker.OpenSeconds)

	v.SetDefault("audio.device_id", d.Audio.DeviceID)
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.capture_seconds", d.Audio.CaptureSeconds)

	v.SetDefault("flow.ai_mode", d.Flow.AIMode)
	v.SetDefault("flow.silence_sentinels", d.Flow.SilenceSentinels)
	v.SetDefault("flow.restarts_per_minute", d.Flow.RestartsPerMin)

	v.SetDefault("booking.doctor_id", d.Booking.DoctorID)
}

// Save writes the config to disk
func (c *Config) Save() error {
	return c.SaveFile(configPath())
}

// SaveFile writes the config to path.
func (c *Config) SaveFile(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// PlatformHotkey returns the appropriate hotkey for the current platform
func (c *Config) PlatformHotkey() string {
	if runtime.GOOS == "darwin" && c.HotkeyDarwin != "" {
		return c.HotkeyDarwin
	}
	return c.Hotkey
}

// Endpoint joins the backend base URL and a path.
func (b BackendConfig) Endpoint(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(b.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// Path returns the config file location.
func Path() string {
	return configPath()
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "voicebook", "config.json")
}
