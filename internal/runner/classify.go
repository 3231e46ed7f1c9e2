// Package runner implements the Runner Pool (C7): the disk-space
// watchdog, the N-worker goroutine fan-out, failure-reason/broken-package
// classification over a build_step's error text, and pluggable local
// (creack/pty) and sandboxed (docker/docker) BuildStep implementations.
//
// Grounded on original_source/src/runner/mod.rs's dispatch loop and
// failure classification, and the teacher repo's sibling
// agents/shared/docker client (ContainerExecCreate/Attach/StdCopy idiom)
// for the sandboxed build step.
package runner

import (
	"strings"

	"github.com/LuuuXXX/crater-ohos/internal/result"
)

// ClassifyFailure derives a FailureReason from a build_step error's
// message via the substring rules spec.md §4.7 names, in priority order.
func ClassifyFailure(message string) result.FailureReason {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "out of memory") || strings.Contains(m, "oom"):
		return result.SimpleFailure(result.FailureOutOfMemory)
	case strings.Contains(m, "no space") || strings.Contains(m, "disk full"):
		return result.SimpleFailure(result.FailureNoSpace)
	case strings.Contains(m, "timeout") || strings.Contains(m, "timed out"):
		return result.SimpleFailure(result.FailureTimeout)
	case strings.Contains(m, "internal compiler error") || strings.Contains(m, "ice") ||
		strings.Contains(m, "thread 'rustc' panicked"):
		return result.SimpleFailure(result.FailureCompilerICE)
	case strings.Contains(m, "network") || strings.Contains(m, "connection"):
		return result.SimpleFailure(result.FailureNetworkAccess)
	case strings.Contains(m, "docker") || strings.Contains(m, "container"):
		return result.SimpleFailure(result.FailureSandbox)
	default:
		return result.SimpleFailure(result.FailureUnknown)
	}
}

// ClassifyBroken reports whether message indicates a broken package and,
// if so, the specific BrokenReason; broken-detection wins over
// failure-reason derivation whenever it matches, per spec.md §4.7.
func ClassifyBroken(message string) (result.BrokenReason, bool) {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "cargo.toml") && strings.Contains(m, "parse"):
		return result.SimpleBroken(result.BrokenBadManifest), true
	case strings.Contains(m, "yanked"):
		return result.SimpleBroken(result.BrokenYanked), true
	case strings.Contains(m, "missing") && strings.Contains(m, "dependencies"):
		return result.SimpleBroken(result.BrokenMissingDependencies), true
	case strings.Contains(m, "git") && strings.Contains(m, "not found"):
		return result.SimpleBroken(result.BrokenMissingGitRepository), true
	default:
		return result.BrokenReason{}, false
	}
}

// ClassifyError turns a raw build_step error message into an Outcome
// appropriate for the step that failed (prepare/build/test), applying
// broken-detection first since it takes precedence.
func ClassifyError(stage Stage, message string) result.Outcome {
	if broken, ok := ClassifyBroken(message); ok {
		return result.Broken(broken)
	}
	reason := ClassifyFailure(message)
	switch stage {
	case StagePrepare:
		return result.PrepareFail(reason)
	case StageBuild:
		return result.BuildFail(reason)
	default:
		return result.TestFail(reason)
	}
}

// Stage names which phase of a package's run produced an error, so
// ClassifyError can pick the matching Outcome variant.
type Stage string

const (
	StagePrepare Stage = "prepare"
	StageBuild   Stage = "build"
	StageTest    Stage = "test"
)
