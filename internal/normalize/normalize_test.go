package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase passthrough", "dune", "dune"},
		{"uppercase", "DUNE", "dune"},
		{"accents stripped", "Émile Zola", "emile zola"},
		{"umlauts", "Über die Wälder", "uber die walder"},
		{"whitespace collapsed", "  The   Hobbit ", "the hobbit"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fold(tt.input))
		})
	}
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("The Name of the Wind", "name of"))
	assert.True(t, Contains("The Name of the Wind", "WIND"))
	assert.True(t, Contains("Émile Zola", "emile"))
	assert.True(t, Contains("anything", ""))
	assert.False(t, Contains("The Name of the Wind", "rothfuss"))
}
