// Package experiment implements the Experiment Registry (C2): the
// Experiment record, its tagged sub-fields (Mode, CapLints, Status), and
// the create/edit/delete/get/list/transition/assignee operations.
//
// Grounded on original_source/src/experiments.rs (struct shape and its
// string_enum! macro, translated to Go string-backed consts with
// String()/Parse pairs) and original_source/src/actions/experiments.rs
// (create/edit/delete/run/complete/abort SQL shape and state gates).
package experiment

import (
	"fmt"
	"time"

	"github.com/LuuuXXX/crater-ohos/internal/pkgselect"
	"github.com/LuuuXXX/crater-ohos/internal/toolchain"
)

// Mode is the experiment's build mode.
type Mode string

const (
	ModeBuildAndTest      Mode = "build-and-test"
	ModeBuildOnly         Mode = "build-only"
	ModeCheckOnly         Mode = "check-only"
	ModeLint              Mode = "lint"
	ModeDoc               Mode = "doc"
	ModeUnstableFeatures  Mode = "unstable-features"
	ModeFix               Mode = "fix"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeBuildAndTest, ModeBuildOnly, ModeCheckOnly, ModeLint, ModeDoc, ModeUnstableFeatures, ModeFix:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("experiment: unknown mode %q", s)
	}
}

// CapLints is the lint-capping level applied during the run.
type CapLints string

const (
	CapAllow  CapLints = "allow"
	CapWarn   CapLints = "warn"
	CapDeny   CapLints = "deny"
	CapForbid CapLints = "forbid"
)

func ParseCapLints(s string) (CapLints, error) {
	switch CapLints(s) {
	case CapAllow, CapWarn, CapDeny, CapForbid:
		return CapLints(s), nil
	default:
		return "", fmt.Errorf("experiment: unknown cap-lints %q", s)
	}
}

// Status is the state-machine position spec.md §4.2 defines.
type Status string

const (
	StatusQueued           Status = "queued"
	StatusRunning          Status = "running"
	StatusNeedsReport      Status = "needs-report"
	StatusGeneratingReport Status = "generating-report"
	StatusReportFailed     Status = "report-failed"
	StatusCompleted        Status = "completed"
)

// PlatformIssue is the opaque cross-platform issue reference an
// Experiment may be linked to.
type PlatformIssue struct {
	PlatformTag string
	APIURL      string
	HTMLURL     string
	Identifier  string
}

// Experiment is the full record spec.md §3 describes.
type Experiment struct {
	Name             string
	ToolchainA       toolchain.Toolchain
	ToolchainB       toolchain.Toolchain
	Mode             Mode
	CapLints         CapLints
	Priority         int
	PackageSelection pkgselect.Selection
	PlatformIssue    *PlatformIssue
	CallbackURL      string
	Assignee         string
	ReportURL        string
	IgnoreBlacklist  bool
	Requirement      string
	Status           Status
	CreatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
}

// CreateRequest is the input to Create. Only Name, toolchains, Mode and
// CapLints are required; everything else defaults to its zero value.
type CreateRequest struct {
	Name             string
	ToolchainA       toolchain.Toolchain
	ToolchainB       toolchain.Toolchain
	Mode             Mode
	CapLints         CapLints
	Priority         int
	PackageSelection pkgselect.Selection
	PlatformIssue    *PlatformIssue
	CallbackURL      string
	IgnoreBlacklist  bool
	Requirement      string
}

// EditPatch carries the non-null subset of mutable fields edit() applies.
// A nil pointer means "leave unchanged".
type EditPatch struct {
	Name             *string
	Mode             *Mode
	PackageSelection *pkgselect.Selection
	PlatformIssue    **PlatformIssue
	CallbackURL      *string
	Priority         *int
}

// IsEmpty reports whether the patch changes nothing.
func (p EditPatch) IsEmpty() bool {
	return p.Name == nil && p.Mode == nil && p.PackageSelection == nil &&
		p.PlatformIssue == nil && p.CallbackURL == nil && p.Priority == nil
}

// legalTransitions encodes the state machine spec.md §4.2 draws: the set
// of statuses reachable directly from a given status via transition().
var legalTransitions = map[Status]map[Status]bool{
	StatusQueued:           {StatusRunning: true},
	StatusRunning:          {StatusCompleted: true, StatusReportFailed: true, StatusNeedsReport: true},
	StatusNeedsReport:      {StatusGeneratingReport: true},
	StatusGeneratingReport: {StatusCompleted: true, StatusReportFailed: true},
}

// CanTransition reports whether moving from `from` to `to` is legal.
func CanTransition(from, to Status) bool {
	return legalTransitions[from][to]
}
