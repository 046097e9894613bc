package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	cases := map[string]struct {
		in   []string
		want []string
	}{
		"nil stays nil":              {in: nil, want: nil},
		"empty stays empty":          {in: []string{}, want: []string{}},
		"task labels":                {in: []string{" backend", "urgent ", "backend"}, want: []string{"backend", "urgent"}},
		"comma split claim":          {in: []string{"p1", " p2", "", " "}, want: []string{"p1", "p2"}},
		"first occurrence wins":      {in: []string{"b", "a", "b", "c", "a"}, want: []string{"b", "a", "c"}},
		"case is significant":        {in: []string{"Ops", "ops"}, want: []string{"Ops", "ops"}},
		"only blanks collapse empty": {in: []string{"", "  "}, want: []string{}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, DedupeAndTrim(tc.in))
		})
	}
}

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold([]string{"viewer", "ADMIN"}, "admin"))
	assert.False(t, ContainsFold([]string{"administrator"}, "admin"))
	assert.False(t, ContainsFold(nil, "admin"))
}
