package servermanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdleTimerStopsAfterDelay(t *testing.T) {
	m := NewMock()
	m.SetState("X", StateRunning)
	timer := NewIdleTimer(context.Background(), m)

	timer.Begin("X", 20*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	state, _ := m.Status(context.Background(), "X")
	assert.Equal(t, StateStopping, state)
}

func TestIdleTimerCancelPreventsStop(t *testing.T) {
	m := NewMock()
	m.SetState("X", StateRunning)
	timer := NewIdleTimer(context.Background(), m)

	timer.Begin("X", 20*time.Millisecond)
	timer.Cancel("X")
	time.Sleep(60 * time.Millisecond)

	state, _ := m.Status(context.Background(), "X")
	assert.Equal(t, StateRunning, state)
}

func TestIdleTimerBeginRestartsCountdown(t *testing.T) {
	m := NewMock()
	m.SetState("X", StateRunning)
	timer := NewIdleTimer(context.Background(), m)

	timer.Begin("X", 30*time.Millisecond)
	time.Sleep(15 * time.Millisecond)
	timer.Begin("X", 30*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	state, _ := m.Status(context.Background(), "X")
	assert.Equal(t, StateRunning, state)
}
