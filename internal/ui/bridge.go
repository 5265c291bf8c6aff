package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"mixerpanel/internal/panel"
)

// Bridge lets other goroutines act on the panel while the terminal UI owns it.
// Actions are injected with Program.Send and applied inside Update.
type Bridge struct {
	send func(tea.Msg)
}

// NewBridge wires a Bridge to a running (or about to run) program.
func NewBridge(p *tea.Program) *Bridge {
	return &Bridge{send: p.Send}
}

// Dispatch applies a inside the Update loop and returns the handler's error.
// If the program has already exited the action is dropped and Dispatch waits
// for ctx.
func (b *Bridge) Dispatch(ctx context.Context, a panel.Action) error {
	result := make(chan error, 1)

	// Program.Send blocks until the program starts and returns once its context
	// is done, so this goroutine can outlive Dispatch but not the program.
	sent := make(chan struct{})
	go func() {
		defer close(sent)
		b.send(actionMsg{action: a, result: result})
	}()

	select {
	case <-sent:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
