package comparison

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/LuuuXXX/crater-ohos/internal/result"
)

func TestComparisonSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Comparison Suite")
}

var _ = Describe("Compare", func() {
	broken := &result.Outcome{Kind: result.OutcomeBrokenPackage, BrokenReason: &result.BrokenReason{Kind: result.BrokenYanked}}
	prepareFail := outcome(result.OutcomePrepareFail)
	errOut := outcome(result.OutcomeError)
	pass := outcome(result.OutcomeTestPass)
	buildFail := outcome(result.OutcomeBuildFail)
	skipped := outcome(result.OutcomeSkipped)

	DescribeTable("precedence beats every lower-ranked outcome it's paired against",
		func(higher, lower *result.Outcome, want Classification) {
			Expect(Compare(higher, lower)).To(Equal(want))
			Expect(Compare(lower, higher)).To(Equal(want))
		},
		Entry("broken beats prepare-fail", broken, prepareFail, Broken),
		Entry("broken beats error", broken, errOut, Broken),
		Entry("broken beats pass", broken, pass, Broken),
		Entry("prepare-fail beats error", prepareFail, errOut, PrepareFail),
		Entry("prepare-fail beats pass", prepareFail, pass, PrepareFail),
		Entry("error beats pass", errOut, pass, Error),
	)

	When("one side regresses from pass to fail", func() {
		It("classifies as Regressed", func() {
			Expect(Compare(pass, buildFail)).To(Equal(Regressed))
		})
	})

	When("one side recovers from fail to pass", func() {
		It("classifies as Fixed", func() {
			Expect(Compare(buildFail, pass)).To(Equal(Fixed))
		})
	})

	When("neither side carries a ranked failure and one is skipped", func() {
		It("classifies as Skipped", func() {
			Expect(Compare(pass, skipped)).To(Equal(Skipped))
		})
	})
})

var _ = Describe("Summary", func() {
	It("only surfaces show-in-summary classifications, in a stable order", func() {
		s := NewSummary([]Classification{Fixed, SameTestPass, Regressed, Regressed, Skipped})

		Expect(s.Total).To(Equal(5))
		rows := s.ShowInSummary()
		Expect(rows).To(HaveLen(2))
		Expect(rows[0].Classification).To(Equal(Regressed))
		Expect(rows[0].Count).To(Equal(2))
		Expect(rows[1].Classification).To(Equal(Fixed))
		Expect(rows[1].Count).To(Equal(1))
	})
})
