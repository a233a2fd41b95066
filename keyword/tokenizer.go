package keyword

import (
	"strings"
	"unicode"
)

// Tokenizer turns the bytes of one row into a list of terms: a default
// non-alphanumeric splitter, a delimiter-set splitter, or a user-supplied
// functor.
type Tokenizer interface {
	Tokenize(b []byte) []string
}

// TokenizerFunc adapts a plain function to Tokenizer, for user-supplied
// functors.
type TokenizerFunc func(b []byte) []string

func (f TokenizerFunc) Tokenize(b []byte) []string { return f(b) }

// DefaultTokenizer splits on any byte that is not a letter or digit.
type DefaultTokenizer struct{}

func (DefaultTokenizer) Tokenize(b []byte) []string {
	return strings.FieldsFunc(string(b), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// DelimiterTokenizer splits on any byte in Delimiters, mirroring
// ikeywords.cpp's delimiter-set variant.
type DelimiterTokenizer struct {
	Delimiters string
}

func (t DelimiterTokenizer) Tokenize(b []byte) []string {
	return strings.FieldsFunc(string(b), func(r rune) bool {
		return strings.ContainsRune(t.Delimiters, r)
	})
}
