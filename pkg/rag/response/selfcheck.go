package response

import (
	"fmt"
	"sort"
	"strings"

	"research-agent-be/pkg/rag/prompt"
	"research-agent-be/pkg/retrieval/lexical"
	"research-agent-be/pkg/store"
)

const DefaultSelfCheckThreshold = 0.45

// directAnswerTerms is the most content terms a bare general answer
// ("Bangkok.") may have while still being scored as addressing the question
const directAnswerTerms = 3

var refusalPhrases = []string{
	"i cannot answer", "i can't answer", "i am unable to answer", "i'm unable to answer",
	"i don't know", "i do not know", "no information", "not enough information",
	"does not contain", "do not contain", "doesn't contain", "not mentioned in",
}

// Assessment scores a draft without calling a model.
//
// Groundedness is the share of the draft's content terms found in its
// sources (excerpts for grounded answers, the transcript for memory answers).
// Completeness is the share of the question's content terms the draft
// addresses. General answers have no sources, count as fully grounded and
// are scored on completeness alone.
type Assessment struct {
	Groundedness float64  `json:"groundedness"`
	Completeness float64  `json:"completeness"`
	Score        float64  `json:"score"`
	Passed       bool     `json:"passed"`
	Issues       []string `json:"issues,omitempty"`
}

// CheckInput is the evidence a draft is judged against
type CheckInput struct {
	Path     prompt.Path
	Question string
	Draft    string
	Excerpts []store.GradedCandidate
	History  []store.Turn
}

func SelfCheck(in CheckInput, threshold float64) Assessment {
	draft := strings.TrimSpace(in.Draft)
	if draft == "" {
		return Assessment{Issues: []string{"the answer is empty"}}
	}

	draftTerms := lexical.Terms(draft)
	questionTerms := lexical.Terms(in.Question)

	var a Assessment
	var missing []string
	a.Completeness, missing = coverage(questionTerms, draftTerms)

	switch in.Path {
	case prompt.PathGrounded:
		sources := lexical.Terms(in.Question)
		for _, e := range in.Excerpts {
			addTerms(sources, e.Chunk.Text)
			addTerms(sources, e.Source)
		}
		a.Groundedness, _ = coverage(draftTerms, sources)
		a.Score = 0.6*a.Groundedness + 0.4*a.Completeness
	case prompt.PathMemory:
		sources := lexical.Terms(in.Question)
		for _, t := range in.History {
			addTerms(sources, t.Content)
		}
		a.Groundedness, _ = coverage(draftTerms, sources)
		a.Score = 0.5*a.Groundedness + 0.5*a.Completeness
	default:
		a.Groundedness = 1
		a.Score = a.Completeness
		if len(draftTerms) <= directAnswerTerms {
			a.Score = max(a.Score, 0.5)
		}
	}

	refused := in.Path == prompt.PathGrounded && isRefusal(draft)
	a.Passed = a.Score >= threshold && !refused

	if refused {
		a.Issues = append(a.Issues, "the answer declines to answer although relevant excerpts were supplied")
	}
	if in.Path != prompt.PathGeneral && a.Groundedness < 0.5 {
		a.Issues = append(a.Issues, "the answer contains statements not supported by the supplied material")
	}
	if len(missing) > 0 && a.Completeness < 0.5 {
		a.Issues = append(a.Issues, fmt.Sprintf("the answer does not address: %s", strings.Join(missing, ", ")))
	}
	if !a.Passed && len(a.Issues) == 0 {
		a.Issues = append(a.Issues, "the answer is too weakly connected to the question")
	}
	return a
}

func addTerms(set map[string]struct{}, text string) {
	for t := range lexical.Terms(text) {
		set[t] = struct{}{}
	}
}

// coverage is the share of want found in have; terms match on a shared stem
// of at least four letters so "debug" covers "debugging".
func coverage(want, have map[string]struct{}) (float64, []string) {
	if len(want) == 0 {
		return 1, nil
	}
	hit := 0
	var missing []string
	for t := range want {
		if containsTerm(have, t) {
			hit++
			continue
		}
		missing = append(missing, t)
	}
	sort.Strings(missing)
	return float64(hit) / float64(len(want)), missing
}

func containsTerm(set map[string]struct{}, term string) bool {
	if _, ok := set[term]; ok {
		return true
	}
	if len(term) < 4 {
		return false
	}
	for t := range set {
		if len(t) < 4 {
			continue
		}
		if strings.HasPrefix(t, term) || strings.HasPrefix(term, t) {
			return true
		}
	}
	return false
}

func isRefusal(draft string) bool {
	lower := strings.ToLower(draft)
	if len(lexical.Tokenize(draft)) > 40 {
		return false
	}
	for _, p := range refusalPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
