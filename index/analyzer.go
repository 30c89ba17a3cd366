package index

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Stop words removed by the analyzer. Matches the default English list of
// the whoosh search library, which the CRM reports were originally scored with.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "can": true, "for": true, "from": true, "have": true,
	"if": true, "in": true, "is": true, "it": true, "may": true, "not": true,
	"of": true, "on": true, "or": true, "tbd": true, "that": true, "the": true,
	"this": true, "to": true, "us": true, "we": true, "when": true, "will": true,
	"with": true, "yet": true, "you": true, "your": true,
}

const minTokenRunes = 2

// Token is an analyzed term with its position in the field.
// Positions are renumbered after stop-word removal.
type Token struct {
	Text string
	Pos  int
}

// Analyze splits text into lowercased word tokens, dropping stop words and
// tokens shorter than two runes.
//
// A word is a run of letters, digits or underscores; single dots between
// word characters are kept, so "3.14" and "u.s.a" stay one token.
func Analyze(text string) []Token {
	var tokens []Token
	for _, word := range splitWords(text) {
		word = strings.ToLower(word)
		if utf8.RuneCountInString(word) < minTokenRunes || stopWords[word] {
			continue
		}
		tokens = append(tokens, Token{Text: word, Pos: len(tokens)})
	}
	return tokens
}

// Terms returns only the token texts of Analyze(text).
func Terms(text string) []string {
	tokens := Analyze(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Text
	}
	return terms
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func splitWords(text string) []string {
	var words []string
	start := -1
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case isWordRune(r):
			if start < 0 {
				start = i
			}
		case r == '.' && start >= 0 && nextIsWord(text[i+size:]):
			// dotted word continues
		default:
			if start >= 0 {
				words = append(words, text[start:i])
				start = -1
			}
		}
		i += size
	}
	if start >= 0 {
		words = append(words, text[start:])
	}
	return words
}

func nextIsWord(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError && isWordRune(r)
}
