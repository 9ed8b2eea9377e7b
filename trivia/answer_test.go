package trivia

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanAnswer(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<i>Shakespeare</i>", "Shakespeare"},
		{"Plath", "Plath"},
		{"<i>The Bell Jar</i>", "The Bell Jar"},
		{"<i>unterminated", "<i>unterminated"},
		{"trailing only</i>", "trailing only</i>"},
		{"<i></i>", ""},
		{"<i>", "<i>"},
		{"", ""},
		{"a <i>partial</i> match", "a <i>partial</i> match"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanAnswer(tt.in), "CleanAnswer(%q)", tt.in)
	}
}
