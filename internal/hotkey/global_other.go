//go:build !windows

package hotkey

import (
	"context"
	"log/slog"
)

// GlobalListener is unavailable on this platform
type GlobalListener struct{}

// NewGlobalListener returns ErrUnsupported; terminal commands still work
func NewGlobalListener(bindings []Binding, logger *slog.Logger) (*GlobalListener, error) {
	return nil, ErrUnsupported
}

// Listen implements Listener
func (g *GlobalListener) Listen(ctx context.Context, events chan<- Event) error {
	return ErrUnsupported
}
