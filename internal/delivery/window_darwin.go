//go:build darwin

package delivery

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const frontmostScript = `tell application "System Events"
	set proc to first application process whose frontmost is true
	set title to ""
	try
		set title to name of front window of proc
	end try
	return (name of proc) & "\n" & title
end tell`

func activeWindow() (Window, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "osascript", "-e", frontmostScript).Output()
	if err != nil {
		return Window{}, fmt.Errorf("osascript: %w", err)
	}

	proc, title, _ := strings.Cut(strings.TrimRight(string(out), "\n"), "\n")
	return Window{Title: title, Process: proc}, nil
}
