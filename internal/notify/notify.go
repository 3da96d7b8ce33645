package notify

import (
	"log/slog"
	"sync"

	"github.com/gen2brain/beeep"
)

// AppName is the title used for all notifications
const AppName = "LemonFox Voice"

// Notifier sends desktop notifications when enabled
type Notifier struct {
	enabled bool
	logger  *slog.Logger
	send    func(title, message string) error

	mu   sync.Mutex
	last string
}

// New creates a notifier
func New(enabled bool, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{enabled: enabled, logger: logger, send: desktopNotify}
}

// Enabled reports whether notifications are shown
func (n *Notifier) Enabled() bool {
	return n != nil && n.enabled
}

// Notify shows message. Failures are logged and otherwise ignored.
func (n *Notifier) Notify(message string) {
	if !n.Enabled() {
		return
	}

	n.mu.Lock()
	n.last = message
	n.mu.Unlock()

	if err := n.send(AppName, message); err != nil {
		n.logger.Debug("Notification failed", slog.String("message", message), slog.String("error", err.Error()))
	}
}

// Last returns the most recent message
func (n *Notifier) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

func desktopNotify(title, message string) error {
	return beeep.Notify(title, message, "")
}
