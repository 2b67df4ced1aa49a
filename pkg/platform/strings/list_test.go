package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: "", want: []string{}},
		{name: "only separators", raw: " , ,\n", want: []string{}},
		{name: "spaces", raw: "profile email", want: []string{"profile", "email"}},
		{name: "commas without spaces", raw: "profile,email", want: []string{"profile", "email"}},
		{name: "mixed and repeated", raw: "https://a.test/cb,\n https://b.test https://a.test/cb", want: []string{"https://a.test/cb", "https://b.test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitList(tt.raw))
		})
	}
}

func TestDedupe(t *testing.T) {
	assert.Nil(t, Dedupe(nil))
	assert.Equal(t, []string{}, Dedupe([]string{"", "  "}))
	assert.Equal(t, []string{"Foo", "foo"}, Dedupe([]string{" Foo", "foo ", "Foo"}))
}

func TestDedupeFold(t *testing.T) {
	assert.Equal(t, []string{"email", "profile"}, DedupeFold([]string{"Email", " PROFILE ", "email"}))
}
