package sparql

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/vemonet/curies/errors"
)

// tokenKind classifies lexer output
type tokenKind int

const (
	tokWord    tokenKind = iota // keywords, prefixed names, bare numbers
	tokIRI                      // <...>
	tokVar                      // ?name or $name
	tokLiteral                  // "..." or '...'
	tokPunct                    // { } ( ) . ; , *
)

// token is one lexical unit of a SPARQL query string
type token struct {
	kind  tokenKind
	value string
}

// isKeyword matches a word token against a SPARQL keyword, case-insensitively
func (t token) isKeyword(keyword string) bool {
	return t.kind == tokWord && strings.EqualFold(t.value, keyword)
}

// isPunct matches a punctuation token
func (t token) isPunct(p string) bool {
	return t.kind == tokPunct && t.value == p
}

// isWordChar reports whether a rune may appear in a word token (keywords,
// prefixed names like owl:sameAs, numbers)
func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == ':'
}

// tokenize splits a query string into tokens. Structure is whitespace
// insensitive; comments run from # to end of line.
func tokenize(query string) ([]token, error) {
	var tokens []token
	runes := []rune(query)

	for i := 0; i < len(runes); {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++

		case r == '#':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}

		case r == '<':
			end := -1
			for j := i + 1; j < len(runes); j++ {
				if runes[j] == '>' {
					end = j
					break
				}
			}
			if end < 0 {
				return nil, errors.WrapInvalid(errors.ErrMalformedQuery, "sparql", "tokenize",
					"unterminated IRI")
			}
			tokens = append(tokens, token{kind: tokIRI, value: string(runes[i+1 : end])})
			i = end + 1

		case r == '?' || r == '$':
			j := i + 1
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			if j == i+1 {
				return nil, errors.WrapInvalid(errors.ErrMalformedQuery, "sparql", "tokenize",
					"empty variable name")
			}
			tokens = append(tokens, token{kind: tokVar, value: string(runes[i+1 : j])})
			i = j

		case r == '"' || r == '\'':
			quote := r
			var sb strings.Builder
			j := i + 1
			closed := false
			for j < len(runes) {
				if runes[j] == '\\' && j+1 < len(runes) {
					sb.WriteRune(runes[j+1])
					j += 2
					continue
				}
				if runes[j] == quote {
					closed = true
					break
				}
				sb.WriteRune(runes[j])
				j++
			}
			if !closed {
				return nil, errors.WrapInvalid(errors.ErrMalformedQuery, "sparql", "tokenize",
					"unterminated string literal")
			}
			tokens = append(tokens, token{kind: tokLiteral, value: sb.String()})
			i = j + 1

		case strings.ContainsRune("{}().;,*!=/|&", r):
			tokens = append(tokens, token{kind: tokPunct, value: string(r)})
			i++

		case isWordChar(r):
			j := i
			for j < len(runes) && isWordChar(runes[j]) {
				j++
			}
			tokens = append(tokens, token{kind: tokWord, value: string(runes[i:j])})
			i = j

		default:
			return nil, errors.WrapInvalid(errors.ErrMalformedQuery, "sparql", "tokenize",
				fmt.Sprintf("unexpected character %q", r))
		}
	}

	return tokens, nil
}
