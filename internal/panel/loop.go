package panel

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ============================================================================
// Loop - single-owner event loop for headless mode
// ============================================================================
// Loop owns a Panel and applies requests one at a time, each running to
// completion before the next is read. Callers on other goroutines (the remote
// endpoint) go through Dispatch and Do, never through the Panel directly.
// ============================================================================

// ErrLoopStopped is returned by Dispatch and Do once Run has returned.
var ErrLoopStopped = errors.New("panel loop stopped")

type request struct {
	fn     func(*Panel) error
	result chan error
}

// Loop serializes access to a Panel.
type Loop struct {
	panel    *Panel
	requests chan request
	done     chan struct{}
	logger   *zap.SugaredLogger
}

// NewLoop wraps p. p must not be used elsewhere once Run starts.
func NewLoop(p *Panel, logger *zap.SugaredLogger) *Loop {
	return &Loop{
		panel:    p,
		requests: make(chan request),
		done:     make(chan struct{}),
		logger:   logger.Named("loop"),
	}
}

// Run handles requests until ctx is canceled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	l.logger.Info("Panel loop started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Panel loop stopping (context canceled)")
			return nil

		case req := <-l.requests:
			start := time.Now()
			err := req.fn(l.panel)
			l.logger.Debugw("Handled request", "took", time.Since(start), "error", err)
			req.result <- err
		}
	}
}

// Dispatch applies a on the loop goroutine and returns the handler's error.
func (l *Loop) Dispatch(ctx context.Context, a Action) error {
	return l.Do(ctx, func(p *Panel) error {
		return p.Apply(a)
	})
}

// Snapshot reads the panel state on the loop goroutine.
func (l *Loop) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := l.Do(ctx, func(p *Panel) error {
		s = p.Snapshot()
		return nil
	})
	return s, err
}

// Do runs fn on the loop goroutine.
func (l *Loop) Do(ctx context.Context, fn func(*Panel) error) error {
	req := request{fn: fn, result: make(chan error, 1)}

	select {
	case l.requests <- req:
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once accepted the request always completes; the buffered result never blocks Run.
	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
