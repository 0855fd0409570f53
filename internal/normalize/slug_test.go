package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagSlug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase", "DRAGONS", "dragons"},
		{"spaces to dashes", "slow burn", "slow-burn"},
		{"underscores to dashes", "slow_burn", "slow-burn"},
		{"already normalized", "slow-burn", "slow-burn"},
		{"trim whitespace", "  dragons  ", "dragons"},
		{"multiple spaces", "slow   burn", "slow-burn"},
		{"punctuation removal", "sci-fi/fantasy", "sci-fi-fantasy"},
		{"apostrophe removal", "don't", "dont"},
		{"accent folding", "Café Noir", "cafe-noir"},
		{"multiple dashes", "slow--burn", "slow-burn"},
		{"leading and trailing dashes", "--slow--burn--", "slow-burn"},
		{"empty string", "", ""},
		{"only special chars", "!@#$%", ""},
		{"mixed case with numbers", "Top 10 Books", "top-10-books"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TagSlug(tt.input))
		})
	}
}
