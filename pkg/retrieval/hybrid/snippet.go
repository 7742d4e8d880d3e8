package hybrid

import (
	"strings"
	"unicode/utf8"

	"research-agent-be/pkg/retrieval/lexical"
)

const MaxSnippetLength = 500

// Snippet picks the run of consecutive sentences, at most max bytes long,
// that covers the most distinct query terms. Without any overlap the opening
// of the text is returned.
func Snippet(text, query string, max int) string {
	if max <= 0 {
		max = MaxSnippetLength
	}
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= max {
		return text
	}

	queryTerms := lexical.Terms(query)
	sentences := splitSentences(text)
	if len(queryTerms) == 0 || len(sentences) == 0 {
		return truncate(text, max)
	}

	bestStart, bestEnd, bestScore := 0, 0, 0
	for i := range sentences {
		length := 0
		seen := make(map[string]struct{})
		for j := i; j < len(sentences); j++ {
			add := len(sentences[j])
			if j > i {
				add++
			}
			if length+add > max && j > i {
				break
			}
			length += add
			for t := range lexical.Terms(sentences[j]) {
				if _, ok := queryTerms[t]; ok {
					seen[t] = struct{}{}
				}
			}
			if len(seen) > bestScore {
				bestStart, bestEnd, bestScore = i, j, len(seen)
			}
		}
	}
	if bestScore == 0 {
		return truncate(text, max)
	}
	return truncate(strings.Join(sentences[bestStart:bestEnd+1], " "), max)
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == len(text) || text[i+1] == ' ' {
				if s := strings.TrimSpace(text[start : i+1]); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// truncate cuts at a word boundary and marks the cut
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if idx := strings.LastIndex(s[:cut], " "); idx > max/2 {
		cut = idx
	}
	return strings.TrimSpace(s[:cut]) + "..."
}
