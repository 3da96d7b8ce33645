//go:build !windows && !linux && !darwin

package delivery

func activeWindow() (Window, error) {
	return Window{}, ErrUnsupported
}
