package grounding

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkhani/shipping-agent/pkg/sql"
)

func parseForTest(q string) *sql.Statement {
	return sql.Parse(q)
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"cost", "cost", 0},
		{"costs", "cost", 1},
		{"shiped", "shipped", 1},
		{"kitten", "sitting", 3},
		{"şehir", "sehir", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestClosest(t *testing.T) {
	cols := []string{"id", "cost", "costId", "createdAt"}

	got, dist, ok := closest("COST", cols, 2)
	assert.True(t, ok)
	assert.Equal(t, "cost", got)
	assert.Equal(t, 0, dist)

	got, _, ok = closest("cosd", cols, 2)
	assert.True(t, ok)
	assert.Equal(t, "cost", got)

	_, _, ok = closest("zzzznomatch", cols, 2)
	assert.False(t, ok)

	// Ties go to the earlier candidate.
	got, _, ok = closest("ab", []string{"ax", "ay"}, 2)
	assert.True(t, ok)
	assert.Equal(t, "ax", got)
}
