//go:build !darwin

package permissions

// EnsurePermissions is a no-op on non-macOS platforms.
func EnsurePermissions() error {
	return nil
}

// Microphone is a no-op on non-macOS platforms; device errors surface when
// the stream is opened.
func Microphone() error {
	return nil
}
