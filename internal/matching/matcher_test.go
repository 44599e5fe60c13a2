package matching_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/invoice-analyzer/internal/matching"
	"github.com/zombor/invoice-analyzer/internal/registry"
)

var _ = Describe("Matcher", func() {
	var (
		matcher   *matching.Matcher
		companies []registry.CompanyRecord
	)

	BeforeEach(func() {
		matcher = matching.NewMatcher()
		companies = []registry.CompanyRecord{
			{CompanyCode: "EDN", CompanyName: "Edenor S.A."},
			{CompanyCode: "EDS", CompanyName: "Edesur S.A."},
			{CompanyCode: "CGP", CompanyName: "Camuzzi Gas Pampeana"},
			{CompanyCode: "CGS", CompanyName: "Camuzzi Gas del Sur"},
			{CompanyCode: "", CompanyName: "Camuzzi Sin Codigo"},
			{CompanyCode: "VOID", CompanyName: ""},
		}
	})

	Describe("FindBestMatch", func() {
		It("prefers significant words", func() {
			c, ok := matcher.FindBestMatch("Edenor", companies)
			Expect(ok).To(BeTrue())
			Expect(c.Company.CompanyCode).To(Equal("EDN"))
			Expect(c.ExactMatch).To(BeTrue())
			Expect(c.HasSignificantWord).To(BeTrue())
			Expect(c.MatchingWords).To(Equal([]string{"edenor"}))
			Expect(c.Score).To(Equal(31.0))
		})

		It("scores partial matches by shared words", func() {
			ranked := matcher.Rank("Camuzzi Gas Pampeana", companies)
			Expect(ranked).To(HaveLen(2))
			Expect(ranked[0].Company.CompanyCode).To(Equal("CGP"))
			Expect(ranked[0].Score).To(Equal(13.0))
			Expect(ranked[1].Company.CompanyCode).To(Equal("CGS"))
			Expect(ranked[1].ExactMatch).To(BeFalse())
			Expect(ranked[1].Score).To(Equal(2.0))
		})

		It("keeps registry order on ties", func() {
			ranked := matcher.Rank("Camuzzi", companies)
			Expect(ranked).To(HaveLen(2))
			Expect(ranked[0].Score).To(Equal(ranked[1].Score))
			Expect(ranked[0].Company.CompanyCode).To(Equal("CGP"))
			Expect(ranked[1].Company.CompanyCode).To(Equal("CGS"))
		})

		It("skips records without a name or code", func() {
			ranked := matcher.Rank("Camuzzi Sin Codigo", companies)
			for _, c := range ranked {
				Expect(c.Company.CompanyCode).NotTo(BeEmpty())
			}
			Expect(ranked[0].Company.CompanyCode).To(Equal("CGP"))
		})

		It("reports no match", func() {
			_, ok := matcher.FindBestMatch("Empresa Inexistente", companies)
			Expect(ok).To(BeFalse())
		})

		It("reports no match for an empty name", func() {
			_, ok := matcher.FindBestMatch("S.A.", companies)
			Expect(ok).To(BeFalse())
		})

		It("is deterministic", func() {
			first, _ := matcher.FindBestMatch("Gas Pampeana", companies)
			for i := 0; i < 10; i++ {
				again, _ := matcher.FindBestMatch("Gas Pampeana", companies)
				Expect(again).To(Equal(first))
			}
		})

		It("honours custom significant words", func() {
			matcher = matching.NewMatcher("pampeana")
			c, ok := matcher.FindBestMatch("Pampeana", companies)
			Expect(ok).To(BeTrue())
			Expect(c.HasSignificantWord).To(BeTrue())
			Expect(c.Score).To(Equal(31.0))
		})
	})

	Describe("MatchFirstAlias", func() {
		It("returns the first alias that matches", func() {
			m, ok := matcher.MatchFirstAlias([]string{"Foo Unmatched", "Edenor"}, companies)
			Expect(ok).To(BeTrue())
			Expect(m.Index).To(Equal(1))
			Expect(m.Alias).To(Equal("Edenor"))
			Expect(m.Candidate.Company.CompanyCode).To(Equal("EDN"))
		})

		It("does not look at later aliases once one matched", func() {
			m, ok := matcher.MatchFirstAlias([]string{"Camuzzi", "Edenor"}, companies)
			Expect(ok).To(BeTrue())
			Expect(m.Index).To(Equal(0))
			Expect(m.Candidate.Company.CompanyCode).To(Equal("CGP"))
		})

		It("reports no match when every alias misses", func() {
			_, ok := matcher.MatchFirstAlias([]string{"Empresa Inexistente"}, companies)
			Expect(ok).To(BeFalse())
		})
	})
})
