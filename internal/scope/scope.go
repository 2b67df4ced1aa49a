// Package scope maps permission names to the profile fields they expose.
//
// Scopes travel through the system as normalized string sets (lower-cased,
// deduplicated, sorted). Only names in the registry expose fields; unknown
// names are carried through consent bookkeeping but reveal nothing.
package scope

import (
	"sort"
	"strings"

	pstrings "campus-sso/pkg/platform/strings"
)

// Scope is a registered permission bundle.
type Scope string

const (
	Profile          Scope = "profile"
	Email            Scope = "email"
	StudentAcademics Scope = "student_academics"
	Role             Scope = "role"
)

// Field is a key in the scope-filtered user payload.
type Field string

const (
	FieldID       Field = "id"
	FieldName     Field = "name"
	FieldEmail    Field = "email"
	FieldRollNo   Field = "rollNo"
	FieldBranch   Field = "branch"
	FieldSemester Field = "semester"
	FieldRole     Field = "role"
)

type definition struct {
	label  string
	fields []Field
}

var registry = map[Scope]definition{
	Profile:          {label: "Basic profile (name)", fields: []Field{FieldName}},
	Email:            {label: "Email address", fields: []Field{FieldEmail}},
	StudentAcademics: {label: "Academic record (roll number, branch, semester)", fields: []Field{FieldRollNo, FieldBranch, FieldSemester}},
	Role:             {label: "Campus role", fields: []Field{FieldRole}},
}

// Known reports whether s is a registered scope.
func Known(s Scope) bool {
	_, ok := registry[s]
	return ok
}

// All returns every registered scope name, sorted.
func All() []string {
	out := make([]string, 0, len(registry))
	for s := range registry {
		out = append(out, string(s))
	}
	sort.Strings(out)
	return out
}

// FieldsFor returns the profile fields a scope exposes, or nil for unknown scopes.
func FieldsFor(s Scope) []Field {
	def, ok := registry[s]
	if !ok {
		return nil
	}
	out := make([]Field, len(def.fields))
	copy(out, def.fields)
	return out
}

// Label is the human-readable description shown on the consent page.
// Unknown scopes get a title-cased version of their name.
func Label(s Scope) string {
	if def, ok := registry[s]; ok {
		return def.label
	}
	words := strings.FieldsFunc(string(s), func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Normalize lower-cases, splits on commas and whitespace, deduplicates and
// sorts. The result is the canonical stored form of a scope set.
func Normalize(scopes []string) []string {
	out := pstrings.DedupeFold(pstrings.SplitList(strings.Join(scopes, " ")))
	if len(out) == 0 {
		return []string{}
	}
	sort.Strings(out)
	return out
}

// Parse normalizes a raw "scope" parameter ("profile email" or "profile,email").
func Parse(raw string) []string {
	return Normalize([]string{raw})
}

// String joins a normalized set with spaces, the wire form of the "scope" field.
func String(scopes []string) string {
	return strings.Join(Normalize(scopes), " ")
}

// Contains reports whether every scope in requested is present in granted.
// Both sides are normalized first.
func Contains(granted, requested []string) bool {
	have := make(map[string]struct{}, len(granted))
	for _, s := range Normalize(granted) {
		have[s] = struct{}{}
	}
	for _, s := range Normalize(requested) {
		if _, ok := have[s]; !ok {
			return false
		}
	}
	return true
}

// Registry resolves requested scopes against the configured defaults.
type Registry struct {
	defaults []string
}

func NewRegistry(defaults []string) *Registry {
	return &Registry{defaults: Normalize(defaults)}
}

// Defaults returns the scope set applied when a caller requests none.
func (r *Registry) Defaults() []string {
	out := make([]string, len(r.defaults))
	copy(out, r.defaults)
	return out
}

// Resolve parses raw and falls back to the defaults when it is empty.
func (r *Registry) Resolve(raw string) []string {
	if parsed := Parse(raw); len(parsed) > 0 {
		return parsed
	}
	return r.Defaults()
}

// Description pairs a scope with its consent-page label.
type Description struct {
	Name  string
	Label string
}

func Describe(scopes []string) []Description {
	norm := Normalize(scopes)
	out := make([]Description, 0, len(norm))
	for _, s := range norm {
		out = append(out, Description{Name: s, Label: Label(Scope(s))})
	}
	return out
}
