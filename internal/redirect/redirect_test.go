package redirect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type RedirectSuite struct {
	suite.Suite
}

func TestRedirectSuite(t *testing.T) {
	suite.Run(t, new(RedirectSuite))
}

func (s *RedirectSuite) TestAllowed() {
	tests := []struct {
		name       string
		candidate  string
		registered string
		want       bool
	}{
		{"exact match", "https://x/app", "https://x/app", true},
		{"deep link under registered path", "https://x/app/sub?foo=1", "https://x/app", true},
		{"registered trailing slash", "https://x/app/sub", "https://x/app/", true},
		{"root registration covers host", "https://x/anything/else", "https://x/", true},
		{"no path registration covers host", "https://x/anything", "https://x", true},
		{"different host", "https://evil/app", "https://x/app", false},
		{"different scheme", "http://x/app", "https://x/app", false},
		{"different port", "https://x:8443/app", "https://x/app", false},
		{"sibling path", "https://x/other", "https://x/app", false},
		{"relative candidate", "/app", "https://x/app", false},
		{"empty registered entry", "https://x/app", "", false},
		{"userinfo confusion", "https://x@evil/app", "https://x/app", false},
		{"host case insensitive", "https://X/app", "https://x/app", true},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(tt.want, Allowed(tt.candidate, tt.registered))
		})
	}
}

func (s *RedirectSuite) TestFragmentsNeverMatter() {
	cases := [][2]string{
		{"https://x/app/cb", "https://x/app"},
		{"https://evil/app", "https://x/app"},
		{"https://x/other", "https://x/app"},
	}
	for _, c := range cases {
		s.Equal(Allowed(c[0], c[1]), Allowed(c[0]+"#x", c[1]), c[0])
		s.Equal(Allowed(c[0], c[1]), Allowed(c[0], c[1]+"#frag"), c[0])
	}
	s.True(Allowed("https://x/app#/route", "https://x/app"))
}

func (s *RedirectSuite) TestAllowedAny() {
	registered := []string{"https://a.campus.edu/cb", "https://b.campus.edu/"}
	s.True(AllowedAny("https://b.campus.edu/x", registered))
	s.True(AllowedAny("https://a.campus.edu/cb/done", registered))
	s.False(AllowedAny("https://c.campus.edu/cb", registered))
	s.False(AllowedAny("https://a.campus.edu/cb", nil))
}

func (s *RedirectSuite) TestEqual() {
	s.True(Equal("https://x/app/", "https://x/app"))
	s.True(Equal("https://x/app#a", "https://x/app?b=1"))
	s.True(Equal("", ""))
	s.False(Equal("https://x/app", ""))
	s.False(Equal("https://x/app/sub", "https://x/app"))
	s.False(Equal("not a url", "not a url"))
}

func TestAllowedTargets(t *testing.T) {
	assert.Equal(t, []string{"https://x/a", "https://x/b"}, AllowedTargets([]string{"https://x/a", " https://x/b", "https://x/a", ""}, "https://x"))
	assert.Equal(t, []string{"https://x"}, AllowedTargets(nil, " https://x "))
	assert.Empty(t, AllowedTargets(nil, ""))
}

func TestParseEntries(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "  ", nil},
		{"json list", `["https://a/cb", " https://b/cb ", "https://a/cb", ""]`, []string{"https://a/cb", "https://b/cb"}},
		{"json string", `"https://a/cb, https://b/cb"`, []string{"https://a/cb", "https://b/cb"}},
		{"comma and newline separated", "https://a/cb,\r\nhttps://b/cb  https://c/cb", []string{"https://a/cb", "https://b/cb", "https://c/cb"}},
		{"broken json falls back to splitting", `[https://a/cb`, []string{"[https://a/cb"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseEntries(tt.raw))
		})
	}

	assert.Equal(t, "https://a/cb\nhttps://b/cb", SerializeEntries([]string{"https://a/cb", "https://b/cb", "https://a/cb"}))
}

func TestWithQuery(t *testing.T) {
	out, err := WithQuery("https://x/app/cb?keep=1#frag", map[string]string{"token": "abc", "state": ""})
	require.NoError(t, err)
	assert.Equal(t, "https://x/app/cb?keep=1&token=abc#frag", out)

	out, err = WithQuery("https://x/app/cb?error=old", map[string]string{"error": "access_denied"})
	require.NoError(t, err)
	assert.Equal(t, "https://x/app/cb?error=access_denied", out)
}
