//go:build windows

package hotkey

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"syscall"
	"time"
	"unsafe"
)

var (
	user32                 = syscall.NewLazyDLL("user32.dll")
	kernel32               = syscall.NewLazyDLL("kernel32.dll")
	procRegisterHotKey     = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey   = user32.NewProc("UnregisterHotKey")
	procGetMessageW        = user32.NewProc("GetMessageW")
	procPostThreadMessageW = user32.NewProc("PostThreadMessageW")
	procGetCurrentThreadID = kernel32.NewProc("GetCurrentThreadId")
)

const (
	wmHotkey    = 0x0312
	wmQuit      = 0x0012
	modNoRepeat = 0x4000
)

type msg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	PtX     int32
	PtY     int32
}

// GlobalListener registers system-wide shortcuts with RegisterHotKey
type GlobalListener struct {
	bindings []Binding
	logger   *slog.Logger
}

// NewGlobalListener creates a listener for bindings
func NewGlobalListener(bindings []Binding, logger *slog.Logger) (*GlobalListener, error) {
	if len(bindings) == 0 {
		return nil, fmt.Errorf("no shortcuts to register")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GlobalListener{bindings: bindings, logger: logger}, nil
}

// Listen implements Listener. The message loop runs on a locked OS thread
// since hotkey messages are posted to the registering thread.
func (g *GlobalListener) Listen(ctx context.Context, events chan<- Event) error {
	errCh := make(chan error, 1)
	threadCh := make(chan uintptr, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		for i, b := range g.bindings {
			r, _, callErr := procRegisterHotKey.Call(0, uintptr(i+1), uintptr(b.Shortcut.Modifiers|modNoRepeat), uintptr(b.Shortcut.VK))
			if r == 0 {
				for j := 0; j < i; j++ {
					procUnregisterHotKey.Call(0, uintptr(j+1))
				}
				errCh <- fmt.Errorf("RegisterHotKey failed for %s: %v", b.Shortcut, callErr)
				return
			}
		}
		defer func() {
			for i := range g.bindings {
				procUnregisterHotKey.Call(0, uintptr(i+1))
			}
		}()

		tid, _, _ := procGetCurrentThreadID.Call()
		threadCh <- tid
		errCh <- nil

		var m msg
		for {
			ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
			if int32(ret) <= 0 {
				return
			}
			if m.Message != wmHotkey {
				continue
			}
			id := int(m.WParam)
			if id < 1 || id > len(g.bindings) {
				continue
			}
			select {
			case events <- Event{Action: g.bindings[id-1].Action, At: time.Now()}:
			default:
				g.logger.Warn("Hotkey event dropped, consumer busy", slog.String("action", g.bindings[id-1].Action.String()))
			}
		}
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-time.After(2 * time.Second):
		return fmt.Errorf("timeout registering hotkeys")
	}

	for _, b := range g.bindings {
		g.logger.Info("Global hotkey registered",
			slog.String("action", b.Action.String()),
			slog.String("shortcut", b.Shortcut.String()))
	}

	tid := <-threadCh
	<-ctx.Done()
	procPostThreadMessageW.Call(tid, wmQuit, 0, 0)
	<-done
	return nil
}
