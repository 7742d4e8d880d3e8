package lexical

import (
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a about above after again against all am an and any are as at be because been
		before being below between both but by can could did do does doing down during each few for from further
		had has have having he her here hers herself him himself his how i if in into is it its itself just me more
		most my myself no nor not now of off on once only or other our ours ourselves out over own same she should
		so some such than that the their theirs them themselves then there these they this those through to too
		under until up very was we were what when where which while who whom why will with would you your yours
		yourself yourselves tell please explain describe give show`) {
		stopwords[w] = struct{}{}
	}
}

// IsStopword reports whether a lowercase token carries no retrieval signal
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// Tokenize lowercases text, splits on anything that is not a letter or digit
// and drops stopwords and single letters. Order and duplicates are kept.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) == 1 && !unicode.IsNumber([]rune(f)[0]) {
			continue
		}
		if IsStopword(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// Terms returns the distinct tokens of text
func Terms(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range Tokenize(text) {
		set[t] = struct{}{}
	}
	return set
}
