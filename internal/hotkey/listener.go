package hotkey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnsupported is returned where global shortcuts are not available
var ErrUnsupported = errors.New("hotkey: global shortcuts not supported on this platform")

// Action is what a shortcut asks the application to do
type Action int

const (
	ActionToggleRecording Action = iota + 1
	ActionToggleListening
	ActionCancel
	ActionQuit
)

func (a Action) String() string {
	switch a {
	case ActionToggleRecording:
		return "toggle_recording"
	case ActionToggleListening:
		return "toggle_listening"
	case ActionCancel:
		return "cancel"
	case ActionQuit:
		return "quit"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Event is a triggered action
type Event struct {
	Action Action
	At     time.Time
}

// Binding maps a shortcut to an action
type Binding struct {
	Action   Action
	Shortcut Shortcut
}

// Listener publishes events until ctx is done. Implementations never
// close events.
type Listener interface {
	Listen(ctx context.Context, events chan<- Event) error
}

// ParseBindings parses shortcut strings keyed by action. Empty strings are skipped.
func ParseBindings(shortcuts map[Action]string) ([]Binding, error) {
	var bindings []Binding
	seen := make(map[string]Action)
	for _, action := range []Action{ActionToggleRecording, ActionToggleListening, ActionCancel, ActionQuit} {
		binding, ok := shortcuts[action]
		if !ok || strings.TrimSpace(binding) == "" {
			continue
		}
		sc, err := ParseShortcut(binding)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", action, err)
		}
		if other, dup := seen[sc.String()]; dup {
			return nil, fmt.Errorf("shortcut %s bound to both %s and %s", sc, other, action)
		}
		seen[sc.String()] = action
		bindings = append(bindings, Binding{Action: action, Shortcut: sc})
	}
	return bindings, nil
}

// terminalCommands are the single-letter commands accepted on stdin
var terminalCommands = map[string]Action{
	"r": ActionToggleRecording,
	"l": ActionToggleListening,
	"c": ActionCancel,
	"q": ActionQuit,
}

// ParseCommand maps a terminal command line to its action
func ParseCommand(line string) (Action, bool) {
	action, ok := terminalCommands[strings.ToLower(strings.TrimSpace(line))]
	return action, ok
}
