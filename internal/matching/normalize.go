// Package matching resolves free-text company names to registry records.
package matching

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var legalForms = []string{"s.a.", "s.a", "sa", "sociedad anonima", "sociedad anónima"}

var stopWords = map[string]struct{}{
	"y": {}, "de": {}, "la": {}, "el": {}, "los": {}, "las": {}, "del": {},
	"para": {}, "por": {}, "con": {}, "en": {}, "a": {}, "o": {}, "u": {},
}

// Normalize turns a company name into its significant lower-case tokens.
// Names joined with "/" are treated as separate brands whose tokens are
// concatenated in order.
func Normalize(name string) []string {
	name = norm.NFC.String(strings.ToLower(norm.NFC.String(name)))

	tokens := []string{}
	for _, part := range strings.Split(name, "/") {
		part = stripPunctuation(removeLegalForms(strings.TrimSpace(part)))
		for _, word := range strings.Fields(part) {
			if _, ok := stopWords[word]; ok {
				continue
			}
			tokens = append(tokens, word)
		}
	}
	return dropLegalTokens(tokens)
}

// NormalizeValue normalizes v when it is a string and returns no tokens
// for anything else.
func NormalizeValue(v any) []string {
	s, ok := v.(string)
	if !ok {
		return []string{}
	}
	return Normalize(s)
}

// NormalizeTokens normalizes an already tokenized name.
func NormalizeTokens(tokens []string) []string {
	return Normalize(strings.Join(tokens, " "))
}

// removeLegalForms deletes legal-form suffixes appearing as whole words.
// Alternatives are tried in declared order at each position.
func removeLegalForms(s string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		if matched := legalFormAt(s, i); matched > 0 {
			i += matched
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		b.WriteString(s[i : i+size])
		i += size
	}
	return b.String()
}

func legalFormAt(s string, i int) int {
	if !isBoundary(s, i) {
		return 0
	}
	for _, form := range legalForms {
		if strings.HasPrefix(s[i:], form) && isBoundary(s, i+len(form)) {
			return len(form)
		}
	}
	return 0
}

func isBoundary(s string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:i])
		before = isWordRune(r)
	}
	if i < len(s) {
		r, _ := utf8.DecodeRuneInString(s[i:])
		after = isWordRune(r)
	}
	return before != after
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if isWordRune(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
}

// dropLegalTokens removes legal forms that only become whole words once
// punctuation is gone, such as "s-a" or "sociedad, anónima", so that the
// output never changes when normalized again.
func dropLegalTokens(tokens []string) []string {
	out := tokens[:0]
	for _, t := range tokens {
		if t == "sa" {
			continue
		}
		if (t == "anonima" || t == "anónima") && len(out) > 0 && out[len(out)-1] == "sociedad" {
			out = out[:len(out)-1]
			continue
		}
		out = append(out, t)
	}
	return out
}
