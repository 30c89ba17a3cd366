package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Token
	}{
		{
			name: "lowercases and drops stop words",
			text: "The Renewal of the CONTRACT",
			want: []Token{{"renewal", 0}, {"contract", 1}},
		},
		{
			name: "drops single-rune tokens",
			text: "a b cd e",
			want: []Token{{"cd", 0}},
		},
		{
			name: "keeps dotted words",
			text: "pi is 3.14, not 3. U.S.A office.",
			want: []Token{{"pi", 0}, {"3.14", 1}, {"u.s.a", 2}, {"office", 3}},
		},
		{
			name: "splits on punctuation",
			text: "follow-up: e-mail/phone",
			want: []Token{{"follow", 0}, {"up", 1}, {"mail", 2}, {"phone", 3}},
		},
		{
			name: "unicode letters",
			text: "Réunion à Zürich",
			want: []Token{{"réunion", 0}, {"zürich", 1}},
		},
		{
			name: "only stop words",
			text: "to be or not to be",
			want: nil,
		},
		{
			name: "empty",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Analyze(tt.text))
		})
	}
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"pricing", "call"}, Terms("Pricing call"))
	assert.Empty(t, Terms("the"))
}
