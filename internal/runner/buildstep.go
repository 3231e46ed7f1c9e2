package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/creack/pty"

	"github.com/LuuuXXX/crater-ohos/internal/result"
	"github.com/LuuuXXX/crater-ohos/internal/toolchain"
)

// LocalBuildStep runs Command under a pty on the host, capturing
// combined output as the build log. Grounded on the creack/pty pattern
// the pack's terminal-wrapping tools use to capture interleaved
// stdout/stderr from a child process as a single ordered byte stream.
type LocalBuildStep struct {
	// Command builds the argv for pkg/tc/stage; e.g. ["cargo", "build"].
	Command func(pkg string, tc toolchain.Toolchain, stage Stage) []string
	WorkDir string
}

func (s LocalBuildStep) Run(ctx context.Context, pkg string, tc toolchain.Toolchain, stage Stage) (result.Outcome, []byte, error) {
	argv := s.Command(pkg, tc, stage)
	if len(argv) == 0 {
		return result.Outcome{}, nil, fmt.Errorf("runner: empty command for %s/%s", pkg, tc.String())
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = s.WorkDir

	f, err := pty.Start(cmd)
	if err != nil {
		return result.Outcome{}, nil, fmt.Errorf("runner: start pty for %s: %w", pkg, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, f)

	if err := cmd.Wait(); err != nil {
		return result.Outcome{}, buf.Bytes(), fmt.Errorf("%s: %w", buf.String(), err)
	}
	return result.TestPass(), buf.Bytes(), nil
}

// DockerBuildStep runs Command inside an already-running container via
// docker exec, capturing stdout/stderr. Grounded on the teacher repo's
// sibling agents/shared/docker client's Exec (ContainerExecCreate +
// ContainerExecAttach + stdcopy.StdCopy), adapted here to an Exec
// function injected as a field so this package doesn't have to carry
// the full docker/docker client dependency surface in its own test
// doubles.
type DockerBuildStep struct {
	Exec        func(ctx context.Context, containerID string, cmd []string) ([]byte, error)
	ContainerID string
	Command     func(pkg string, tc toolchain.Toolchain, stage Stage) []string
}

func (s DockerBuildStep) Run(ctx context.Context, pkg string, tc toolchain.Toolchain, stage Stage) (result.Outcome, []byte, error) {
	argv := s.Command(pkg, tc, stage)
	out, err := s.Exec(ctx, s.ContainerID, argv)
	if err != nil {
		return result.Outcome{}, out, fmt.Errorf("%s: %w", string(out), err)
	}
	return result.TestPass(), out, nil
}
