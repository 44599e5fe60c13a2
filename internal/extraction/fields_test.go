package extraction

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Sanitize", func() {
	DescribeTable("removes formatting characters",
		func(input, expected string) {
			Expect(Sanitize(input)).To(Equal(expected))
			Expect(Sanitize(Sanitize(input))).To(Equal(Sanitize(input)))
		},
		Entry(nil, "123.456-789 ", "123456789"),
		Entry(nil, "AB-12 CD", "AB12CD"),
		Entry(nil, "", ""),
		Entry(nil, "  ", ""),
		Entry(nil, "1500,00", "1500,00"),
	)
})

var _ = Describe("general fields", func() {
	It("applies defaults for missing fields", func() {
		g := resolveGeneralFields(map[string]any{})
		Expect(g).To(Equal(generalFields{Amount: "0.00"}))
	})

	It("treats null and empty values as missing", func() {
		g := resolveGeneralFields(map[string]any{
			FieldAmount:   nil,
			FieldDueDate:  "",
			FieldCustomer: "   ",
		})
		Expect(g).To(Equal(generalFields{Amount: "0.00"}))
	})

	It("renders numeric amounts with two decimals", func() {
		g := resolveGeneralFields(map[string]any{FieldAmount: json.Number("1500")})
		Expect(g.Amount).To(Equal("1500.00"))
	})

	It("keeps text amounts as written", func() {
		g := resolveGeneralFields(map[string]any{FieldAmount: "1.234,56"})
		Expect(g.Amount).To(Equal("1.234,56"))
	})

	DescribeTable("normalizes due dates",
		func(input, expected string) {
			g := resolveGeneralFields(map[string]any{FieldDueDate: input})
			Expect(g.DueDate).To(Equal(expected))
		},
		Entry(nil, "2024-05-01", "2024-05-01"),
		Entry(nil, "2024-3-5", "2024-03-05"),
		Entry(nil, "2024-03-15 00:00", "2024-03-15"),
		Entry(nil, "2024-03-15 08:30:00", "2024-03-15"),
		Entry(nil, "2024-03-15T08:30:00", "2024-03-15"),
		Entry(nil, "15/03/2024", "2024-03-15"),
		Entry(nil, "5/3/2024", "2024-03-05"),
		Entry(nil, "15-03-2024", "2024-03-15"),
		Entry(nil, "2024/03/15", "2024-03-15"),
		Entry(nil, "15/03/24", "2024-03-15"),
		Entry(nil, "2024-03-15T00:00:00Z", "2024-03-15"),
		Entry(nil, "pronto", ""),
	)
})
