package runner

import (
	"bytes"
	"context"
	"fmt"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// DockerClient wraps the Docker Engine API client with the one exec
// operation the sandboxed BuildStep needs. Grounded directly on the
// teacher repo's sibling agents/shared/docker client's Exec
// (ContainerExecCreate → ContainerExecAttach → stdcopy.StdCopy →
// ContainerExecInspect for the exit code).
type DockerClient struct {
	api *client.Client
}

// NewDockerClient opens a client negotiated against the daemon reachable
// via the environment (DOCKER_HOST et al.), mirroring
// agents/shared/docker.NewClient's FromEnv + API version negotiation.
func NewDockerClient() (*DockerClient, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("runner: docker client: %w", err)
	}
	return &DockerClient{api: cli}, nil
}

func (c *DockerClient) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.Close()
}

// Exec runs cmd inside containerID and returns its combined
// stdout+stderr, erroring on a non-zero exit code — the shape
// DockerBuildStep.Exec expects.
func (c *DockerClient) Exec(ctx context.Context, containerID string, cmd []string) ([]byte, error) {
	execResp, err := c.api.ContainerExecCreate(ctx, containerID, types.ExecConfig{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          cmd,
	})
	if err != nil {
		return nil, fmt.Errorf("runner: exec create: %w", err)
	}

	attach, err := c.api.ContainerExecAttach(ctx, execResp.ID, types.ExecStartCheck{})
	if err != nil {
		return nil, fmt.Errorf("runner: exec attach: %w", err)
	}
	defer attach.Close()

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, attach.Reader); err != nil {
		return buf.Bytes(), fmt.Errorf("runner: exec stream: %w", err)
	}

	inspect, err := c.api.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return buf.Bytes(), fmt.Errorf("runner: exec inspect: %w", err)
	}
	if inspect.ExitCode != 0 {
		return buf.Bytes(), fmt.Errorf("runner: exec exit code %d", inspect.ExitCode)
	}
	return buf.Bytes(), nil
}
