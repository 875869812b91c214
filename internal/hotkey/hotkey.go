// Package hotkey registers the global shortcut that starts and stops
// voice booking.
package hotkey

// Handler is called with pressed=true on key down and false on key up.
type Handler func(pressed bool)

// Manager defines the interface for global hotkey management.
// Accelerators use the ParseAccelerator syntax, e.g. "Alt+Space".
type Manager interface {
	Register(accel string, handler Handler) error
	Unregister(accel string) error
	Close() error
}
