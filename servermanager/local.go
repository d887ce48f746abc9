package servermanager

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/gorcon/rcon"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// LocalProcess is the Local server-manager variant: the externalID names a
// process launched via a start command, tracked as an *exec.Cmd, and
// stopped gracefully by sending a "stop" command over RCON before falling
// back to killing the process. Grounded on gorcon/rcon usage in the
// retrieval pack's dedicated hosting-panel repo.
type LocalProcess struct {
	mu        sync.Mutex
	processes map[string]*exec.Cmd

	startCommands map[string]string
	rconAddr      map[string]string
	rconPassword  map[string]string
}

// NewLocalProcess builds an empty Local provider. RegisterServer must be
// called once per externalID before Start/Stop/Status can act on it.
func NewLocalProcess() *LocalProcess {
	return &LocalProcess{
		processes:     make(map[string]*exec.Cmd),
		startCommands: make(map[string]string),
		rconAddr:      make(map[string]string),
		rconPassword:  make(map[string]string),
	}
}

func (l *LocalProcess) Name() string { return "local" }

// RegisterServer records how to start externalID and where to reach its
// RCON listener for a graceful stop.
func (l *LocalProcess) RegisterServer(externalID, startCommand, rconAddr, rconPassword string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.startCommands[externalID] = startCommand
	l.rconAddr[externalID] = rconAddr
	l.rconPassword[externalID] = rconPassword
}

func (l *LocalProcess) Status(ctx context.Context, externalID string) (BackendState, error) {
	l.mu.Lock()
	cmd, tracked := l.processes[externalID]
	l.mu.Unlock()

	if !tracked {
		return StateStopped, nil
	}
	if cmd.ProcessState != nil {
		if cmd.ProcessState.Success() {
			return StateStopped, nil
		}
		return StateCrashed, nil
	}
	return StateRunning, nil
}

func (l *LocalProcess) Start(ctx context.Context, externalID string) error {
	l.mu.Lock()
	startCommand, ok := l.startCommands[externalID]
	l.mu.Unlock()
	if !ok {
		return errors.Errorf("servermanager: no start command registered for %q", externalID)
	}

	fields := strings.Fields(startCommand)
	if len(fields) == 0 {
		return errors.Errorf("servermanager: empty start command for %q", externalID)
	}

	cmd := exec.CommandContext(context.Background(), fields[0], fields[1:]...)
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "servermanager: launching %q", externalID)
	}

	l.mu.Lock()
	l.processes[externalID] = cmd
	l.mu.Unlock()

	go func() {
		if err := cmd.Wait(); err != nil {
			logrus.WithError(err).WithField("externalID", externalID).Debug("servermanager: local process exited")
		}
	}()

	return nil
}

func (l *LocalProcess) Stop(ctx context.Context, externalID string) error {
	l.mu.Lock()
	addr := l.rconAddr[externalID]
	password := l.rconPassword[externalID]
	cmd, tracked := l.processes[externalID]
	l.mu.Unlock()

	if addr != "" {
		if err := l.rconStop(addr, password); err == nil {
			return nil
		} else {
			logrus.WithError(err).WithField("externalID", externalID).Warn("servermanager: RCON stop failed, falling back to process kill")
		}
	}

	if tracked && cmd.Process != nil {
		return cmd.Process.Kill()
	}
	return fmt.Errorf("servermanager: no way to stop %q", externalID)
}

func (l *LocalProcess) Restart(ctx context.Context, externalID string) error {
	if err := l.Stop(ctx, externalID); err != nil {
		return err
	}
	return l.Start(ctx, externalID)
}

func (l *LocalProcess) rconStop(addr, password string) error {
	conn, err := rcon.Dial(addr, password)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Execute("stop")
	return err
}
