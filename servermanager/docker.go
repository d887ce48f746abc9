package servermanager

import (
	"context"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/pkg/errors"
)

// Docker is the Docker server-manager variant: externalID is a container
// ID or name. Grounded on the teacher's server/docker.go dockerWatcherImpl,
// which drives the same ContainerInspect/ContainerStart/ContainerStop
// calls for its auto-scale-up/down labels; here they are exposed directly
// through the Manager interface instead of being triggered by a label
// watcher.
type Docker struct {
	client       *client.Client
	stopTimeout  int
}

// NewDocker connects to the Docker daemon using API version negotiation,
// mirroring the teacher's default (no apiVersion override) path.
func NewDocker(socket string, stopTimeoutSeconds int) (*Docker, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if socket != "" {
		opts = append(opts, client.WithHost(socket))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "servermanager: connect to docker daemon")
	}
	return &Docker{client: cli, stopTimeout: stopTimeoutSeconds}, nil
}

func (d *Docker) Name() string { return "docker" }

func (d *Docker) Status(ctx context.Context, externalID string) (BackendState, error) {
	inspect, err := d.client.ContainerInspect(ctx, externalID)
	if err != nil {
		return StateUnknown, nil
	}
	if inspect.State == nil {
		return StateUnknown, nil
	}
	switch {
	case inspect.State.Running && !inspect.State.Paused:
		return StateRunning, nil
	case inspect.State.Restarting:
		return StateStarting, nil
	case inspect.State.Paused:
		return StateStopping, nil
	case inspect.State.OOMKilled, inspect.State.Dead:
		return StateCrashed, nil
	case inspect.State.ExitCode != 0 && !inspect.State.Running:
		return StateCrashed, nil
	default:
		return StateStopped, nil
	}
}

func (d *Docker) Start(ctx context.Context, externalID string) error {
	inspect, err := d.client.ContainerInspect(ctx, externalID)
	if err != nil {
		return errors.Wrapf(err, "servermanager: inspect container %q", externalID)
	}
	if inspect.State != nil && inspect.State.Paused {
		return d.client.ContainerUnpause(ctx, externalID)
	}
	return d.client.ContainerStart(ctx, externalID, types.ContainerStartOptions{})
}

func (d *Docker) Stop(ctx context.Context, externalID string) error {
	timeout := d.stopTimeout
	return d.client.ContainerStop(ctx, externalID, container.StopOptions{Timeout: &timeout})
}

func (d *Docker) Restart(ctx context.Context, externalID string) error {
	timeout := d.stopTimeout
	return d.client.ContainerRestart(ctx, externalID, container.StopOptions{Timeout: &timeout})
}
