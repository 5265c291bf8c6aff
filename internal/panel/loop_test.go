package panel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startLoop(t *testing.T, p *Panel) (*Loop, context.CancelFunc) {
	t.Helper()
	l := NewLoop(p, zaptest.NewLogger(t).Sugar())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Errorf("timeout waiting for loop to stop")
		}
	})
	return l, cancel
}

func TestLoop_DispatchAppliesInOrder(t *testing.T) {
	p, s := newTestPanel(t, MuteInert)
	l, _ := startLoop(t, p)
	ctx := context.Background()

	require.NoError(t, l.Dispatch(ctx, SetSlider{Index: 0, Value: 1}))
	require.NoError(t, l.Dispatch(ctx, SwitchOutput{}))
	assert.ErrorIs(t, l.Dispatch(ctx, SetSlider{Index: 9}), ErrIndexOutOfRange)

	snap, err := l.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Output)
	assert.Equal(t, "SwitchOutput|0", snap.LastSent)
	assert.Equal(t, []string{"Sliders|1|1023|1023|1023|1023", "SwitchOutput|0"}, s.sent)
}

func TestLoop_ConcurrentDispatch(t *testing.T) {
	p, s := newTestPanel(t, MuteInert)
	l, _ := startLoop(t, p)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Dispatch(context.Background(), SwitchOutput{}))
		}()
	}
	wg.Wait()

	snap, err := l.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Output)
	assert.Len(t, s.sent, 20)
}

func TestLoop_StoppedRejectsRequests(t *testing.T) {
	p, _ := newTestPanel(t, MuteInert)
	l, cancel := startLoop(t, p)

	cancel()
	waitUntil(t, time.Second, func() bool {
		return l.Dispatch(context.Background(), SendSliders{}) == ErrLoopStopped
	}, "loop never reported stopped")
}

func TestLoop_DispatchHonoursCallerContext(t *testing.T) {
	p, _ := newTestPanel(t, MuteInert)
	// Not running: nothing will ever accept the request.
	l := NewLoop(p, zaptest.NewLogger(t).Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Dispatch(ctx, SendSliders{}), context.DeadlineExceeded)
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}
