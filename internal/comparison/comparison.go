// Package comparison implements the Comparison Engine (C6): classifying
// a pair of Outcomes into a Classification, and aggregating classification
// counts into a Summary.
//
// Grounded on original_source/src/report/analyzer.rs's compare_results(),
// preserving its exact precedence order (Broken, then PrepareFail, then
// Error, then the regressed/fixed/same pairings, then Skipped).
package comparison

import "github.com/LuuuXXX/crater-ohos/internal/result"

// Classification is the outcome pairing's verdict.
type Classification string

const (
	Skipped           Classification = "skipped"
	Unknown           Classification = "unknown"
	SameTestPass      Classification = "same-test-pass"
	SameBuildFail     Classification = "same-build-fail"
	SameTestFail      Classification = "same-test-fail"
	SameTestSkipped   Classification = "same-test-skipped"
	Broken            Classification = "broken"
	PrepareFail       Classification = "prepare-fail"
	Error             Classification = "error"
	Regressed         Classification = "regressed"
	Fixed             Classification = "fixed"
	SpuriousRegressed Classification = "spurious-regressed"
	SpuriousFixed     Classification = "spurious-fixed"
)

// SpuriousRegressed/SpuriousFixed are reserved for a retry-aware caller
// that reruns a Regressed/Fixed pair and finds the second run disagrees
// with the first; Compare itself never returns them since it only sees
// one (outA, outB) pair.

// ShowInSummary reports whether c belongs in the headline "interesting
// changes" section of a report, per spec.md §4.6.
func (c Classification) ShowInSummary() bool {
	switch c {
	case Regressed, Fixed, SpuriousRegressed, SpuriousFixed:
		return true
	default:
		return false
	}
}

// Compare classifies the pair (outA, outB) per spec.md §4.6's precedence
// table. Either outcome may be nil (⊥, meaning "no result recorded").
func Compare(outA, outB *result.Outcome) Classification {
	if outA == nil && outB == nil {
		return Skipped
	}
	if outA == nil || outB == nil {
		return Unknown
	}
	a, b := *outA, *outB

	if a.Kind == result.OutcomeBrokenPackage || b.Kind == result.OutcomeBrokenPackage {
		return Broken
	}
	if a.Kind == result.OutcomePrepareFail || b.Kind == result.OutcomePrepareFail {
		return PrepareFail
	}
	if a.Kind == result.OutcomeError || b.Kind == result.OutcomeError {
		return Error
	}
	if a.Kind == result.OutcomeTestPass && b.Kind == result.OutcomeTestPass {
		return SameTestPass
	}
	if a.Kind == result.OutcomeBuildFail && b.Kind == result.OutcomeBuildFail {
		return SameBuildFail
	}
	if a.Kind == result.OutcomeTestFail && b.Kind == result.OutcomeTestFail {
		return SameTestFail
	}
	if a.Kind == result.OutcomeTestSkipped && b.Kind == result.OutcomeTestSkipped {
		return SameTestSkipped
	}
	if a.Kind == result.OutcomeTestPass && isBuildOrTestFail(b.Kind) {
		return Regressed
	}
	if isBuildOrTestFail(a.Kind) && b.Kind == result.OutcomeTestPass {
		return Fixed
	}
	if a.Kind == result.OutcomeSkipped || b.Kind == result.OutcomeSkipped {
		return Skipped
	}
	return Unknown
}

func isBuildOrTestFail(k result.OutcomeKind) bool {
	return k == result.OutcomeBuildFail || k == result.OutcomeTestFail
}

// Summary aggregates per-classification counts plus a grand total.
type Summary struct {
	Counts map[Classification]int
	Total  int
}

// NewSummary aggregates classifications into a Summary.
func NewSummary(classifications []Classification) Summary {
	s := Summary{Counts: make(map[Classification]int, len(classifications))}
	for _, c := range classifications {
		s.Counts[c]++
		s.Total++
	}
	return s
}

// ShowInSummary returns only the counts for classifications spec.md §4.6
// flags as "show-in-summary" (Regressed/Fixed/SpuriousRegressed/
// SpuriousFixed), in a stable, deterministic order.
func (s Summary) ShowInSummary() []struct {
	Classification Classification
	Count          int
} {
	order := []Classification{Regressed, Fixed, SpuriousRegressed, SpuriousFixed}
	out := make([]struct {
		Classification Classification
		Count          int
	}, 0, len(order))
	for _, c := range order {
		if n, ok := s.Counts[c]; ok && n > 0 {
			out = append(out, struct {
				Classification Classification
				Count          int
			}{Classification: c, Count: n})
		}
	}
	return out
}
