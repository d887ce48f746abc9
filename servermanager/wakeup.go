package servermanager

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mc-gateway/gateway/mcerr"
)

// DefaultWakeDeadline is the default per-route cap on how long the
// wake-up protocol polls status() before giving up.
const DefaultWakeDeadline = 120 * time.Second

// WakeUpConfig tunes the exponential-backoff status poll.
type WakeUpConfig struct {
	InitialInterval time.Duration
	MaxInterval time.Duration
	Deadline time.Duration
}

// DefaultWakeUpConfig starts at 1s, doubling up to 10s, capped at
// DefaultWakeDeadline overall.
func DefaultWakeUpConfig() WakeUpConfig {
	return WakeUpConfig{
		InitialInterval: time.Second,
		MaxInterval: 10 * time.Second,
		Deadline: DefaultWakeDeadline,
	}
}

// WakeUp issues Start and then polls Status with exponential backoff until
// the backend reports StateRunning, the deadline elapses, or ctx is
// cancelled. On timeout it returns mcerr.ErrBackendStartFailed carrying
// the last observed state so the caller can pick a starting/crashed MOTD.
func WakeUp(ctx context.Context, manager Manager, externalID string, cfg WakeUpConfig) (BackendState, error) {
	if err := manager.Start(ctx, externalID); err != nil {
		return StateUnknown, errors.Wrapf(mcerr.ErrBackendStartFailed, "servermanager: start %q: %v", externalID, err)
	}

	deadline := time.Now().Add(cfg.Deadline)
	interval := cfg.InitialInterval
	if interval <= 0 {
		interval = time.Second
	}

	lastState := StateStarting
	for {
		state, err := manager.Status(ctx, externalID)
		if err == nil {
			lastState = state
			if state == StateRunning {
				return state, nil
			}
			if state == StateCrashed {
				return state, errors.Wrap(mcerr.ErrBackendStartFailed, "servermanager: backend crashed while waking up")
			}
		}

		if time.Now().Add(interval).After(deadline) {
			return lastState, errors.Wrap(mcerr.ErrBackendStartFailed, "servermanager: wake-up deadline exceeded")
		}

		select {
		case <-ctx.Done():
			return lastState, ctx.Err()
		case <-time.After(interval):
		}

		interval *= 2
		if interval > cfg.MaxInterval {
			interval = cfg.MaxInterval
		}
	}
}
