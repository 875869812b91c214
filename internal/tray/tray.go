package tray

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/getlantern/systray"
	"github.com/petems/voicebook/internal/app"
	"github.com/petems/voicebook/internal/audio"
	"github.com/petems/voicebook/internal/config"
	"github.com/petems/voicebook/internal/logging"
	"github.com/rs/zerolog"
)

// refreshInterval is how often menu labels are synced with the app.
const refreshInterval = 500 * time.Millisecond

type UI struct {
	app     *app.App
	cfg     *config.Config
	version string
	commit  string
	log     zerolog.Logger

	// Menu items
	mVoice     *systray.MenuItem
	mAIMode    *systray.MenuItem
	mMode      *systray.MenuItem
	mDevices   *systray.MenuItem
	mDoctor    *systray.MenuItem
	mCheckSlot *systray.MenuItem
	mConfirm   *systray.MenuItem
	mCopy      *systray.MenuItem
	mStatus    *systray.MenuItem
	mLast      *systray.MenuItem
}

// Status update methods for the voice flow to call
func (u *UI) SetIdle() {
	u.updateStatus("idle")
}

func (u *UI) SetRecording() {
	u.updateStatus("recording")
}

func (u *UI) SetProcessing() {
	u.updateStatus("processing")
}

func (u *UI) SetError() {
	u.updateStatus("error")
}

func New(application *app.App, cfg *config.Config, version, commit string, log zerolog.Logger) *UI {
	return &UI{
		app:     application,
		cfg:     cfg,
		version: version,
		commit:  commit,
		log:     log,
	}
}

// SetApp sets the app reference (for circular dependency resolution)
func (u *UI) SetApp(application *app.App) {
	u.app = application
}

// Run blocks until the tray quits or ctx is cancelled.
func (u *UI) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		systray.Quit()
	}()
	systray.Run(u.onReady, u.onExit)
	return nil
}

func (u *UI) onReady() {
	u.updateStatus("idle")
	systray.SetTooltip("Voice booking")

	// Build menu
	u.mVoice = systray.AddMenuItem(voiceTitle(false), "Book an appointment by voice")
	u.mAIMode = systray.AddMenuItemCheckbox("AI Mode", "Let the assistant phrase the questions", u.app.AIMode())
	u.mMode = systray.AddMenuItem(modeTitle(u.app.Mode()), "Toggle between hotkey modes")
	u.mDevices = systray.AddMenuItem("Microphone", "Select audio input device")
	u.buildDeviceMenu()
	systray.AddSeparator()

	u.mDoctor = systray.AddMenuItem(doctorTitle(u.cfg.Booking.DoctorID), "Doctor from config")
	u.mDoctor.Disable()
	u.mCheckSlot = systray.AddMenuItem("Check Slot", "Check the doctor's availability")
	u.mConfirm = systray.AddMenuItem("Confirm Booking", "Book the checked slot")
	u.mConfirm.Disable()
	u.mCopy = systray.AddMenuItem("Copy Booking Summary", "Copy the booking details")
	u.mStatus = systray.AddMenuItem("Ready", "")
	u.mStatus.Disable()
	u.mLast = systray.AddMenuItem("", "")
	u.mLast.Disable()
	u.mLast.Hide()

	systray.AddSeparator()
	mLogs := systray.AddMenuItem("Open Logs", "View application logs")
	mAbout := systray.AddMenuItem("About", "About voicebook")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	// Event loop
	go u.handleEvents(mLogs, mAbout, mQuit)
}

func (u *UI) handleEvents(mLogs, mAbout, mQuit *systray.MenuItem) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-u.mVoice.ClickedCh:
			u.app.ToggleVoice()
		case <-u.mAIMode.ClickedCh:
			u.toggleAIMode()
		case <-u.mMode.ClickedCh:
			u.toggleMode()
		case <-u.mCheckSlot.ClickedCh:
			go u.checkSlot()
		case <-u.mConfirm.ClickedCh:
			go u.confirmBooking()
		case <-u.mCopy.ClickedCh:
			u.copySummary()
		case <-mLogs.ClickedCh:
			u.openLogs()
		case <-mAbout.ClickedCh:
			u.showAbout()
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		case <-ticker.C:
			u.refresh()
		}
	}
}

func (u *UI) buildDeviceMenu() {
	devices, err := u.app.ListDevices()
	if err != nil {
		u.log.Error().Err(err).Msg("Failed to list audio devices")
		u.mDevices.Disable()
		return
	}

	var mu sync.Mutex
	selected := selectedDevice(devices, u.app.DeviceID())
	deviceItems := make(map[string]*systray.MenuItem)

	for _, dev := range devices {
		item := u.mDevices.AddSubMenuItem(dev.Name, "")
		if dev.ID == selected {
			item.Check()
		}
		deviceItems[dev.ID] = item

		go func(deviceID, deviceName string, menuItem *systray.MenuItem) {
			for range menuItem.ClickedCh {
				if err := u.app.SetDevice(deviceID); err != nil {
					u.log.Warn().Err(err).Str("device", deviceName).Msg("Device not changed")
					u.notify("Stop voice booking to change microphone.")
					menuItem.Uncheck()
					continue
				}

				mu.Lock()
				for id, itm := range deviceItems {
					if id != deviceID {
						itm.Uncheck()
					}
				}
				mu.Unlock()
				menuItem.Check()
				u.log.Info().Str("device", deviceName).Msg("Changed audio device")
			}
		}(dev.ID, dev.Name, item)
	}
}

// refresh syncs labels that depend on app state.
func (u *UI) refresh() {
	u.mVoice.SetTitle(voiceTitle(u.app.VoiceActive()))
	if u.app.CanConfirm() {
		u.mConfirm.Enable()
	} else {
		u.mConfirm.Disable()
	}

	if lines := u.app.Page().Last(1); len(lines) > 0 {
		u.mLast.SetTitle(truncate(lines[0].String(), 60))
		u.mLast.Show()
	}
}

func (u *UI) toggleAIMode() {
	on := !u.app.AIMode()
	u.app.SetAIMode(on)
	if on {
		u.mAIMode.Check()
	} else {
		u.mAIMode.Uncheck()
	}
	u.log.Info().Bool("ai_mode", on).Msg("Changed AI mode")
}

func (u *UI) toggleMode() {
	oldMode := u.app.Mode()
	newMode := config.ModePushToTalk
	if oldMode == config.ModePushToTalk {
		newMode = config.ModeToggle
	}
	u.app.SetMode(newMode)
	u.mMode.SetTitle(modeTitle(newMode))
	u.log.Info().Str("from", oldMode).Str("to", newMode).Msg("Changed mode")
}

func (u *UI) checkSlot() {
	msg, err := u.app.CheckSlot(context.Background())
	u.notify(msg)
	if err == nil {
		u.mConfirm.Enable()
	} else {
		u.mConfirm.Disable()
	}
}

func (u *UI) confirmBooking() {
	u.mConfirm.Disable()
	msg, err := u.app.ConfirmBooking(context.Background())
	u.notify(msg)
	if err != nil && u.app.CanConfirm() {
		u.mConfirm.Enable()
	}
}

func (u *UI) copySummary() {
	if err := u.app.CopySummary(); err != nil {
		u.log.Error().Err(err).Msg("Failed to copy summary")
		u.notify("Copy failed.")
		return
	}
	u.notify("Summary copied.")
}

func (u *UI) notify(msg string) {
	if msg == "" {
		return
	}
	u.mStatus.SetTitle(msg)
	systray.SetTooltip(msg)
}

func (u *UI) openLogs() {
	path := logging.LogPath()
	name, args := openCommand(runtime.GOOS, path)
	if err := exec.Command(name, args...).Start(); err != nil {
		u.log.Error().Err(err).Str("path", path).Msg("Failed to open logs")
	}
}

func (u *UI) showAbout() {
	u.notify(fmt.Sprintf("voicebook %s (%s)", u.version, u.commit))
}

func (u *UI) onExit() {
	// Cleanup
}

// updateStatus sets the tray title with microphone emoji and status indicator
func (u *UI) updateStatus(status string) {
	emoji := emojiForStatus(status)
	systray.SetTitle(fmt.Sprintf("🎤 %s", emoji))
}

// emojiForStatus returns the appropriate status emoji
func emojiForStatus(status string) string {
	switch status {
	case "recording":
		return "🔴" // Red - listening for an answer
	case "processing":
		return "🟡" // Yellow - transcribing or waiting on the server
	case "idle":
		return "🟢" // Green - ready/idle
	case "error":
		return "⚪️" // White - error
	default:
		return "🟢" // Green - default to ready
	}
}

func voiceTitle(active bool) string {
	if active {
		return "Stop Voice Booking"
	}
	return "Start Voice Booking"
}

func modeTitle(mode string) string {
	if mode == config.ModePushToTalk {
		return "Mode: Push-to-Talk"
	}
	return "Mode: Toggle"
}

// selectedDevice returns the ID of the device to show as checked: the
// configured one when it is still present, otherwise the system default.
func selectedDevice(devices []audio.AudioDevice, configured string) string {
	fallback := ""
	for _, dev := range devices {
		if configured != "" && dev.ID == configured {
			return dev.ID
		}
		if dev.Default {
			fallback = dev.ID
		}
	}
	return fallback
}

func doctorTitle(id string) string {
	if id == "" {
		return "Doctor: none selected"
	}
	return "Doctor: " + id
}

// openCommand returns the command that opens path with the default app.
func openCommand(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "cmd", []string{"/c", "start", "", path}
	default:
		return "xdg-open", []string{path}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
