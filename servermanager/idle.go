package servermanager

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// IdleTimer tracks a per-externalID countdown that calls Stop once no
// login arrives to cancel it.G: "when the Supervisor observes
// zero live player sessions for empty_shutdown_seconds, it invokes stop;
// any login arriving during the countdown cancels it." Grounded on the
// teacher's server/down_scaler.go downScalerImpl, generalized from a
// single package-level Routes lookup to an explicit Manager + externalID
// pair supplied by the caller.
type IdleTimer struct {
	mu sync.Mutex
	cancels map[string]context.CancelFunc
	manager Manager
	root context.Context
}

// NewIdleTimer builds an IdleTimer bound to manager, whose goroutines are
// all children of root and are torn down when root is cancelled.
func NewIdleTimer(root context.Context, manager Manager) *IdleTimer {
	return &IdleTimer{
		cancels: make(map[string]context.CancelFunc),
		manager: manager,
		root: root,
	}
}

// Begin starts (or restarts) the idle countdown for externalID: after
// delay with no intervening Cancel, manager.Stop(externalID) is invoked.
func (t *IdleTimer) Begin(externalID string, delay time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cancel, ok := t.cancels[externalID]; ok {
		cancel()
	}

	ctx, cancel := context.WithCancel(t.root)
	t.cancels[externalID] = cancel
	go t.wait(ctx, externalID, delay)
}

// Cancel aborts any pending idle countdown for externalID, called when a
// login arrives.
func (t *IdleTimer) Cancel(externalID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cancel, ok := t.cancels[externalID]; ok {
		cancel()
		delete(t.cancels, externalID)
	}
}

// Reset cancels every pending countdown, used on a full config reload.
func (t *IdleTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, cancel := range t.cancels {
		cancel()
	}
	t.cancels = make(map[string]context.CancelFunc)
}

func (t *IdleTimer) wait(ctx context.Context, externalID string, delay time.Duration) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}

	if err := t.manager.Stop(context.Background(), externalID); err != nil {
		logrus.WithError(err).WithField("externalID", externalID).Error("servermanager: idle shutdown failed")
	}
}
