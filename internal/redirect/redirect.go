// Package redirect decides whether a caller-supplied return URL belongs to a
// relying application.
//
// An incoming URL is allowed against a registered entry when scheme and host
// match exactly and the incoming path starts with the registered path.
// Fragments never take part in the decision.
package redirect

import (
	"encoding/json"
	"net/url"
	"strings"

	pstrings "campus-sso/pkg/platform/strings"
)

type normalized struct {
	scheme string
	host   string
	path   string
}

// normalize strips the fragment, requires an absolute URL and drops a
// trailing slash from the path unless the path is the root.
func normalize(raw string) (normalized, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return normalized{}, false
	}
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" || u.Opaque != "" {
		return normalized{}, false
	}
	// userinfo lets "https://trusted@evil" read like a trusted URL
	if u.User != nil {
		return normalized{}, false
	}
	path := u.EscapedPath()
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimRight(path, "/")
	}
	return normalized{
		scheme: strings.ToLower(u.Scheme),
		host:   strings.ToLower(u.Host),
		path:   path,
	}, true
}

// Allowed reports whether candidate may be used as a return URL given one
// registered entry.
func Allowed(candidate, registered string) bool {
	reg, ok := normalize(registered)
	if !ok {
		return false
	}
	in, ok := normalize(candidate)
	if !ok {
		return false
	}
	if reg.scheme != in.scheme || reg.host != in.host {
		return false
	}
	if reg.path == "" || reg.path == "/" {
		return true
	}
	return strings.HasPrefix(in.path, reg.path)
}

// AllowedAny reports whether candidate is allowed by at least one entry.
// An empty registered set allows nothing.
func AllowedAny(candidate string, registered []string) bool {
	for _, r := range registered {
		if Allowed(candidate, r) {
			return true
		}
	}
	return false
}

// Equal compares two URLs under the same scheme, host and path
// normalization, ignoring fragments, queries and trailing slashes.
func Equal(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	na, okA := normalize(a)
	nb, okB := normalize(b)
	return okA && okB && na == nb
}

// AllowedTargets returns the registered redirect entries, falling back to the
// application's base URL when none are registered.
func AllowedTargets(redirects []string, baseURL string) []string {
	targets := pstrings.Dedupe(redirects)
	if len(targets) == 0 && strings.TrimSpace(baseURL) != "" {
		return []string{strings.TrimSpace(baseURL)}
	}
	return targets
}

// ParseEntries reads a stored redirect field: either a JSON list of strings
// or a comma/whitespace separated string. Blank and duplicate entries are
// dropped; order is preserved.
func ParseEntries(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, `"`) {
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			return pstrings.Dedupe(list)
		}
		var single string
		if err := json.Unmarshal([]byte(raw), &single); err == nil {
			raw = strings.TrimSpace(single)
		}
	}
	return pstrings.SplitList(raw)
}

// SerializeEntries renders entries in the newline separated stored form.
func SerializeEntries(entries []string) string {
	return strings.Join(pstrings.Dedupe(entries), "\n")
}

// WithQuery appends params to base, overwriting existing keys and keeping
// the rest of the URL (including any fragment) intact. Empty values are skipped.
func WithQuery(base string, params map[string]string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range params {
		if v == "" {
			continue
		}
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
