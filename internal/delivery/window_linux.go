//go:build linux

package delivery

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// activeWindow asks xdotool for the focused X11 window
func activeWindow() (Window, error) {
	path, err := exec.LookPath("xdotool")
	if err != nil {
		return Window{}, fmt.Errorf("xdotool: %w", ErrUnsupported)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	id, err := exec.CommandContext(ctx, path, "getactivewindow").Output()
	if err != nil {
		return Window{}, fmt.Errorf("xdotool getactivewindow: %w", err)
	}
	win := Window{ID: strings.TrimSpace(string(id))}

	if name, err := exec.CommandContext(ctx, path, "getwindowname", win.ID).Output(); err == nil {
		win.Title = strings.TrimSpace(string(name))
	}
	if pid, err := exec.CommandContext(ctx, path, "getwindowpid", win.ID).Output(); err == nil {
		win.Process = strings.TrimSpace(string(pid))
	}
	return win, nil
}
