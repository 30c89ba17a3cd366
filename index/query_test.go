package index

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"pricing", "pricing"},
		{"pricing renewal", "(pricing OR renewal)"},
		{`"contract renewal"`, `"contract renewal"`},
		{"a AND b OR c", "((a AND b) OR c)"},
		{"a OR b AND c", "(a OR (b AND c))"},
		{"pricing AND NOT discount", "(pricing AND NOT discount)"},
		{"pricing ANDNOT discount", "(pricing AND NOT discount)"},
		{"pricing NOT discount", "(pricing OR NOT discount)"},
		{"title:(pricing OR quote)", "(title:pricing OR title:quote)"},
		{`title:"big deal" content:budget`, `(title:"big deal" OR content:budget)`},
		{"title:(a content:b)", "(title:a OR content:b)"},
		{"NOT NOT a", "a"},
		{"(a)", "a"},
		{"10:30", "10:30"},
		{"re: contract renewal", "(re: OR contract OR renewal)"},
		{"Note: pricing", "(Note: OR pricing)"},
		{"email:renewal", "email:renewal"},
		{"Title:pricing", "Title:pricing"},
		{"memo:(pricing)", "(memo: OR pricing)"},
		{"pricing and discount", "(pricing OR and OR discount)"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, err := Parse(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.String())
			assert.Equal(t, tt.query, q.Text())
		})
	}
}

func TestParse_SyntaxErrors(t *testing.T) {
	tests := []struct {
		query  string
		offset int
		msg    string
	}{
		{"", 0, "empty query"},
		{"   ", 0, "empty query"},
		{`"open`, 0, "unterminated quote"},
		{`a "open`, 2, "unterminated quote"},
		{"(a OR b", 0, "unbalanced parenthesis"},
		{"a OR b)", 6, "unbalanced parenthesis"},
		{")", 0, "unbalanced parenthesis"},
		{"a AND", 2, "dangling operator AND"},
		{"OR a", 0, "dangling operator OR"},
		{"a OR OR b", 2, "dangling operator OR"},
		{"a AND NOT", 6, "dangling operator NOT"},
		{"()", 0, "empty group"},
		{"a ( )", 2, "empty group"},
		{"title:", 0, "field title has no operand"},
		{"NOT a", 0, "negation needs a positive clause"},
		{"b AND (NOT a)", 7, "negation needs a positive clause"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, err := Parse(tt.query)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrQuerySyntax), "error should wrap ErrQuerySyntax")

			var qe *QueryError
			require.True(t, errors.As(err, &qe))
			assert.Equal(t, tt.offset, qe.Offset)
			assert.Equal(t, tt.msg, qe.Msg)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
