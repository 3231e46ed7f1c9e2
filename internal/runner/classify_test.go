package runner

import (
	"testing"

	"github.com/LuuuXXX/crater-ohos/internal/result"
)

func TestClassifyFailureRules(t *testing.T) {
	cases := map[string]result.FailureReasonKind{
		"process ran out of memory":            result.FailureOutOfMemory,
		"OOM killed":                            result.FailureOutOfMemory,
		"no space left on device":               result.FailureNoSpace,
		"disk full":                             result.FailureNoSpace,
		"operation timed out":                   result.FailureTimeout,
		"build timeout exceeded":                result.FailureTimeout,
		"internal compiler error: unreachable":  result.FailureCompilerICE,
		"thread 'rustc' panicked at foo":         result.FailureCompilerICE,
		"network unreachable":                   result.FailureNetworkAccess,
		"connection reset by peer":               result.FailureNetworkAccess,
		"docker daemon unavailable":             result.FailureSandbox,
		"container exited unexpectedly":         result.FailureSandbox,
		"some other unexpected failure":         result.FailureUnknown,
	}
	for msg, want := range cases {
		if got := ClassifyFailure(msg); got.Kind != want {
			t.Fatalf("ClassifyFailure(%q) = %s, want %s", msg, got.Kind, want)
		}
	}
}

func TestClassifyBrokenRules(t *testing.T) {
	cases := map[string]result.BrokenReasonKind{
		"failed to parse Cargo.toml":                 result.BrokenBadManifest,
		"crate version yanked":                       result.BrokenYanked,
		"missing dependencies for build":              result.BrokenMissingDependencies,
		"git repository not found at url":            result.BrokenMissingGitRepository,
	}
	for msg, want := range cases {
		got, ok := ClassifyBroken(msg)
		if !ok {
			t.Fatalf("ClassifyBroken(%q) unexpectedly found nothing", msg)
		}
		if got.Kind != want {
			t.Fatalf("ClassifyBroken(%q) = %s, want %s", msg, got.Kind, want)
		}
	}
	if _, ok := ClassifyBroken("a perfectly normal build failure"); ok {
		t.Fatal("expected no broken classification for an unrelated message")
	}
}

func TestClassifyErrorBrokenWinsOverFailureReason(t *testing.T) {
	// This message matches both "network" (failure-reason) and
	// "missing"+"dependencies" (broken-detection); broken must win.
	outcome := ClassifyError(StageBuild, "missing dependencies while resolving network packages")
	if outcome.Kind != result.OutcomeBrokenPackage {
		t.Fatalf("expected broken-package to win, got %+v", outcome)
	}
}

func TestClassifyErrorStageSelectsOutcomeVariant(t *testing.T) {
	if o := ClassifyError(StagePrepare, "timed out"); o.Kind != result.OutcomePrepareFail {
		t.Fatalf("expected prepare-fail, got %s", o.Kind)
	}
	if o := ClassifyError(StageBuild, "timed out"); o.Kind != result.OutcomeBuildFail {
		t.Fatalf("expected build-fail, got %s", o.Kind)
	}
	if o := ClassifyError(StageTest, "timed out"); o.Kind != result.OutcomeTestFail {
		t.Fatalf("expected test-fail, got %s", o.Kind)
	}
}
