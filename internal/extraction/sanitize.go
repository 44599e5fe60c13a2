package extraction

import "strings"

var identifierReplacer = strings.NewReplacer(" ", "", ".", "", "-", "")

// Sanitize removes spaces, periods and hyphens from an identifier. The
// same rule applies to every data type.
func Sanitize(value string) string {
	return identifierReplacer.Replace(value)
}
