// Package strings holds the list handling shared by scope sets and redirect
// entries.
package strings

import (
	"strings"
	"unicode"
)

// SplitList breaks a comma and/or whitespace separated value into its
// entries, then applies Dedupe.
func SplitList(raw string) []string {
	return Dedupe(strings.FieldsFunc(raw, isSeparator))
}

// Dedupe trims every entry and drops blanks and repeats, keeping the first
// occurrence. A nil input stays nil.
func Dedupe(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// DedupeFold is Dedupe with entries lower-cased first, so "Email" and
// "email" collapse into one.
func DedupeFold(values []string) []string {
	return dedupe(values, func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
}

func dedupe(values []string, canon func(string) string) []string {
	if values == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = canon(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func isSeparator(r rune) bool {
	return r == ',' || unicode.IsSpace(r)
}
