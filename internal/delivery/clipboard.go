package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

// clipboardAccess is the system clipboard
type clipboardAccess interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error) { return clipboard.ReadAll() }

func (systemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	return clipboard.WriteAll(text)
}

// Clipboard copies text to the system clipboard
type Clipboard struct {
	board clipboardAccess
}

// NewClipboard creates a clipboard sink
func NewClipboard() *Clipboard {
	return &Clipboard{board: systemClipboard{}}
}

// Name returns the sink name
func (c *Clipboard) Name() string { return ModeClipboard }

// DeliverText replaces the clipboard contents with text
func (c *Clipboard) DeliverText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.board.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard write failed: %w", err)
	}
	return nil
}

// FocusedWindow returns the window that has keyboard focus
func (c *Clipboard) FocusedWindow() (Window, error) {
	return activeWindow()
}

// paster sends the paste shortcut to the focused window
type paster interface {
	Paste() error
}

// keyboardPaster presses Ctrl+V with a synthetic keyboard.
// The key bonding is created on first use since it may need /dev/uinput.
type keyboardPaster struct {
	once sync.Once
	kb   keybd_event.KeyBonding
	err  error
}

func (p *keyboardPaster) Paste() error {
	p.once.Do(func() {
		p.kb, p.err = keybd_event.NewKeyBonding()
	})
	if p.err != nil {
		return fmt.Errorf("keyboard unavailable: %w", p.err)
	}

	p.kb.Clear()
	p.kb.HasCTRL(true)
	p.kb.SetKeys(keybd_event.VK_V)
	return p.kb.Launching()
}

// InjectorConfig configures an Injector
type InjectorConfig struct {
	RestoreClipboard bool
	// PasteDelay is waited after writing the clipboard and again before restoring it.
	PasteDelay time.Duration
}

// Injector types text into the focused window by pasting it from the clipboard
type Injector struct {
	config InjectorConfig
	board  clipboardAccess
	keys   paster
	logger *slog.Logger

	mu sync.Mutex
}

// NewInjector creates an injector using the system clipboard and keyboard
func NewInjector(cfg InjectorConfig, logger *slog.Logger) *Injector {
	if cfg.PasteDelay <= 0 {
		cfg.PasteDelay = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Injector{
		config: cfg,
		board:  systemClipboard{},
		keys:   &keyboardPaster{},
		logger: logger,
	}
}

// Name returns the sink name
func (i *Injector) Name() string { return ModeInject }

// DeliverText pastes text into the focused window. The receiving window
// cannot be verified; a nil error only means the keystrokes were sent.
func (i *Injector) DeliverText(ctx context.Context, text string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	var previous string
	hadPrevious := false
	if i.config.RestoreClipboard {
		if prev, err := i.board.ReadAll(); err == nil {
			previous, hadPrevious = prev, true
		}
	}

	if err := i.board.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard write failed: %w", err)
	}
	if err := sleepCtx(ctx, i.config.PasteDelay); err != nil {
		return err
	}

	if err := i.keys.Paste(); err != nil {
		return fmt.Errorf("paste failed: %w", err)
	}

	if hadPrevious {
		// the target reads the clipboard asynchronously
		_ = sleepCtx(ctx, i.config.PasteDelay)
		if err := i.board.WriteAll(previous); err != nil {
			i.logger.Debug("Failed to restore clipboard", slog.String("error", err.Error()))
		}
	}
	return nil
}

// FocusedWindow returns the window that has keyboard focus
func (i *Injector) FocusedWindow() (Window, error) {
	return activeWindow()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
