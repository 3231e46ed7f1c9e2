package runner

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
)

// SandboxSpec describes the container a DockerBuildStep executes
// against: image, mounted work directory, and memory limit — the latter
// sourced from the sandbox.memory-limit config key (see internal/config).
type SandboxSpec struct {
	Image       string
	WorkDir     string
	MemoryLimit int64 // bytes; 0 = unlimited
	Network     string
}

// CreateSandbox creates and starts a container for one
// experiment's build steps to exec into. Grounded on
// agents/shared/docker.Client.CreateContainer's (*container.Config,
// *container.HostConfig, *network.NetworkingConfig) shape; go-connections/nat
// supplies the PortSet type container.Config.ExposedPorts expects even
// though the sandbox itself exposes no ports today — kept for parity
// with the pack's own container-creation call sites, which all thread
// nat.PortSet through even for port-less containers.
func (c *DockerClient) CreateSandbox(ctx context.Context, spec SandboxSpec) (string, error) {
	cfg := &container.Config{
		Image:        spec.Image,
		ExposedPorts: nat.PortSet{},
		Tty:          false,
	}
	hostCfg := &container.HostConfig{
		Binds: []string{spec.WorkDir + ":/work"},
	}
	if spec.MemoryLimit > 0 {
		hostCfg.Resources = container.Resources{Memory: spec.MemoryLimit}
	}
	netCfg := &network.NetworkingConfig{}
	if spec.Network != "" {
		netCfg.EndpointsConfig = map[string]*network.EndpointSettings{
			spec.Network: {},
		}
	}

	resp, err := c.api.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, "")
	if err != nil {
		return "", fmt.Errorf("runner: create sandbox: %w", err)
	}
	if err := c.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("runner: start sandbox: %w", err)
	}
	return resp.ID, nil
}

// RemoveSandbox force-removes a sandbox container and its volumes once an
// experiment's Runner Pool has finished with it.
func (c *DockerClient) RemoveSandbox(ctx context.Context, containerID string) error {
	if err := c.api.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
		return fmt.Errorf("runner: remove sandbox: %w", err)
	}
	return nil
}
