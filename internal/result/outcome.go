// Package result implements the Result Store (C4): the Outcome/FailureReason/
// BrokenReason tagged types, gzip|plain log encoding, and the put/get/count/
// progress/delete_all operations over a store.Store.
//
// Grounded on original_source/src/results/mod.rs. Variant names follow
// spec.md §4.4's renames over the original: OOM→OutOfMemory, ICE→CompilerICE,
// Docker→Sandbox, CompilerDiagnosticChange→DiagnosticChange,
// CargoToml→BadManifest.
package result

import (
	"encoding/json"
	"fmt"
)

// OutcomeKind tags the per-(package,toolchain) result class.
type OutcomeKind string

const (
	OutcomeTestPass       OutcomeKind = "test-pass"
	OutcomeTestSkipped    OutcomeKind = "test-skipped"
	OutcomeSkipped        OutcomeKind = "skipped"
	OutcomeTestFail       OutcomeKind = "test-fail"
	OutcomeBuildFail      OutcomeKind = "build-fail"
	OutcomePrepareFail    OutcomeKind = "prepare-fail"
	OutcomeBrokenPackage  OutcomeKind = "broken-package"
	OutcomeError          OutcomeKind = "error"
)

// Outcome is spec.md §4.4's tagged variant:
// TestPass | TestSkipped | Skipped | TestFail(FailureReason) |
// BuildFail(FailureReason) | PrepareFail(FailureReason) |
// BrokenPackage(BrokenReason) | Error.
type Outcome struct {
	Kind          OutcomeKind
	FailureReason *FailureReason // set iff Kind is TestFail/BuildFail/PrepareFail
	BrokenReason  *BrokenReason  // set iff Kind is BrokenPackage
}

func TestPass() Outcome    { return Outcome{Kind: OutcomeTestPass} }
func TestSkipped() Outcome { return Outcome{Kind: OutcomeTestSkipped} }
func Skipped() Outcome     { return Outcome{Kind: OutcomeSkipped} }
func Err() Outcome         { return Outcome{Kind: OutcomeError} }

func TestFail(r FailureReason) Outcome    { return Outcome{Kind: OutcomeTestFail, FailureReason: &r} }
func BuildFail(r FailureReason) Outcome   { return Outcome{Kind: OutcomeBuildFail, FailureReason: &r} }
func PrepareFail(r FailureReason) Outcome { return Outcome{Kind: OutcomePrepareFail, FailureReason: &r} }
func Broken(r BrokenReason) Outcome       { return Outcome{Kind: OutcomeBrokenPackage, BrokenReason: &r} }

// IsFailure mirrors original_source's TestResult::is_failure().
func (o Outcome) IsFailure() bool {
	switch o.Kind {
	case OutcomeTestFail, OutcomeBuildFail, OutcomePrepareFail, OutcomeBrokenPackage, OutcomeError:
		return true
	default:
		return false
	}
}

func (o Outcome) IsSuccess() bool { return !o.IsFailure() }

// MarshalJSON renders the externally-tagged shape the original's serde
// derive produces: a bare string for unit variants, {"kind": reason} for
// variants carrying data.
func (o Outcome) MarshalJSON() ([]byte, error) {
	switch o.Kind {
	case OutcomeTestPass, OutcomeTestSkipped, OutcomeSkipped, OutcomeError:
		return json.Marshal(string(o.Kind))
	case OutcomeTestFail, OutcomeBuildFail, OutcomePrepareFail:
		if o.FailureReason == nil {
			return nil, fmt.Errorf("result: outcome %s missing FailureReason", o.Kind)
		}
		return json.Marshal(map[string]FailureReason{string(o.Kind): *o.FailureReason})
	case OutcomeBrokenPackage:
		if o.BrokenReason == nil {
			return nil, fmt.Errorf("result: outcome broken-package missing BrokenReason")
		}
		return json.Marshal(map[string]BrokenReason{string(o.Kind): *o.BrokenReason})
	default:
		return nil, fmt.Errorf("result: unknown outcome kind %q", o.Kind)
	}
}

func (o *Outcome) UnmarshalJSON(b []byte) error {
	var asString string
	if err := json.Unmarshal(b, &asString); err == nil {
		o.Kind = OutcomeKind(asString)
		o.FailureReason = nil
		o.BrokenReason = nil
		return nil
	}
	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(b, &asObject); err != nil {
		return fmt.Errorf("result: outcome is neither a string nor an object: %w", err)
	}
	if len(asObject) != 1 {
		return fmt.Errorf("result: outcome object must have exactly one key, got %d", len(asObject))
	}
	for k, v := range asObject {
		o.Kind = OutcomeKind(k)
		switch o.Kind {
		case OutcomeTestFail, OutcomeBuildFail, OutcomePrepareFail:
			var fr FailureReason
			if err := json.Unmarshal(v, &fr); err != nil {
				return err
			}
			o.FailureReason = &fr
		case OutcomeBrokenPackage:
			var br BrokenReason
			if err := json.Unmarshal(v, &br); err != nil {
				return err
			}
			o.BrokenReason = &br
		default:
			return fmt.Errorf("result: unknown outcome object key %q", k)
		}
	}
	return nil
}

// FailureReasonKind tags the FailureReason variant.
type FailureReasonKind string

const (
	FailureUnknown          FailureReasonKind = "unknown"
	FailureOutOfMemory      FailureReasonKind = "out-of-memory"
	FailureNoSpace          FailureReasonKind = "no-space"
	FailureTimeout          FailureReasonKind = "timeout"
	FailureCompilerICE      FailureReasonKind = "compiler-ice"
	FailureNetworkAccess    FailureReasonKind = "network-access"
	FailureSandbox          FailureReasonKind = "sandbox"
	FailureDiagnosticChange FailureReasonKind = "diagnostic-change"
	FailureCompilerError    FailureReasonKind = "compiler-error"
	FailureDependsOn        FailureReasonKind = "depends-on"
)

// FailureReason = Unknown | OutOfMemory | NoSpace | Timeout | CompilerICE |
// NetworkAccess | Sandbox | DiagnosticChange | CompilerError(codes) |
// DependsOn(package ids).
type FailureReason struct {
	Kind              FailureReasonKind
	DiagnosticCodes   []string // set iff Kind == FailureCompilerError
	DependsOnPackages []string // set iff Kind == FailureDependsOn
}

func SimpleFailure(k FailureReasonKind) FailureReason { return FailureReason{Kind: k} }
func CompilerErrorReason(codes []string) FailureReason {
	return FailureReason{Kind: FailureCompilerError, DiagnosticCodes: codes}
}
func DependsOnReason(ids []string) FailureReason {
	return FailureReason{Kind: FailureDependsOn, DependsOnPackages: ids}
}

func (f FailureReason) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case FailureCompilerError:
		return json.Marshal(map[string][]string{string(f.Kind): f.DiagnosticCodes})
	case FailureDependsOn:
		return json.Marshal(map[string][]string{string(f.Kind): f.DependsOnPackages})
	default:
		return json.Marshal(string(f.Kind))
	}
}

func (f *FailureReason) UnmarshalJSON(b []byte) error {
	var asString string
	if err := json.Unmarshal(b, &asString); err == nil {
		f.Kind = FailureReasonKind(asString)
		f.DiagnosticCodes = nil
		f.DependsOnPackages = nil
		return nil
	}
	var asObject map[string][]string
	if err := json.Unmarshal(b, &asObject); err != nil {
		return fmt.Errorf("result: failure reason is neither a string nor an object: %w", err)
	}
	if len(asObject) != 1 {
		return fmt.Errorf("result: failure reason object must have exactly one key")
	}
	for k, v := range asObject {
		f.Kind = FailureReasonKind(k)
		switch f.Kind {
		case FailureCompilerError:
			f.DiagnosticCodes = v
		case FailureDependsOn:
			f.DependsOnPackages = v
		default:
			return fmt.Errorf("result: unknown failure reason object key %q", k)
		}
	}
	return nil
}

// BrokenReasonKind tags the BrokenReason variant.
type BrokenReasonKind string

const (
	BrokenUnknown               BrokenReasonKind = "unknown"
	BrokenBadManifest           BrokenReasonKind = "bad-manifest"
	BrokenYanked                BrokenReasonKind = "yanked"
	BrokenMissingDependencies   BrokenReasonKind = "missing-dependencies"
	BrokenMissingGitRepository  BrokenReasonKind = "missing-git-repository"
)

// BrokenReason = Unknown | BadManifest | Yanked | MissingDependencies |
// MissingGitRepository. No variant carries data, so JSON is a bare string.
type BrokenReason struct {
	Kind BrokenReasonKind
}

func SimpleBroken(k BrokenReasonKind) BrokenReason { return BrokenReason{Kind: k} }

func (b BrokenReason) MarshalJSON() ([]byte, error) { return json.Marshal(string(b.Kind)) }

func (b *BrokenReason) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b.Kind = BrokenReasonKind(s)
	return nil
}
