package servermanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWakeUpSucceedsOnceBackendReportsRunning(t *testing.T) {
	m := NewMock()
	m.SetState("X", StateStopped)

	go func() {
		time.Sleep(30 * time.Millisecond)
		m.SetState("X", StateRunning)
	}()

	state, err := WakeUp(context.Background(), m, "X", WakeUpConfig{
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
		Deadline:        time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, StateRunning, state)
}

func TestWakeUpTimesOutWithoutReachingRunning(t *testing.T) {
	m := NewMock()
	m.SetState("X", StateStarting)

	_, err := WakeUp(context.Background(), m, "X", WakeUpConfig{
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Deadline:        30 * time.Millisecond,
	})
	require.Error(t, err)
}

func TestWakeUpPropagatesStartFailure(t *testing.T) {
	m := NewMock()
	m.StartErr = assertErr

	_, err := WakeUp(context.Background(), m, "X", DefaultWakeUpConfig())
	require.Error(t, err)
}

var assertErr = errFixture{}

type errFixture struct{}

func (errFixture) Error() string { return "start failed" }
