package response

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"research-agent-be/internal/constant"
	"research-agent-be/pkg/llm"
	"research-agent-be/pkg/rag/prompt"
	"research-agent-be/pkg/store"
)

type MemoryKind string

const (
	MemoryCount   MemoryKind = "count"
	MemoryList    MemoryKind = "list"
	MemoryHistory MemoryKind = "history"
)

var (
	countPattern  = regexp.MustCompile(`(?i)\bhow many\b|\bnumber of (questions|messages)\b`)
	listPattern   = regexp.MustCompile(`(?i)\b(previous|last|latest|earlier|prior|first) (question|questions|query|queries)\b|\bwhat (did|have) (i|we) (just )?ask(ed)?\b|\b(list|show|repeat)\b.*\bquestions\b`)
	firstPattern  = regexp.MustCompile(`(?i)\bfirst (question|query)\b`)
	latestPattern = regexp.MustCompile(`(?i)\b(previous|last|latest|prior) (question|query)\b|\bwhat did i (just )?ask\b`)
)

// ClassifyMemory decides what kind of answer a conversation question wants
func ClassifyMemory(question string) MemoryKind {
	switch {
	case countPattern.MatchString(question):
		return MemoryCount
	case listPattern.MatchString(question):
		return MemoryList
	default:
		return MemoryHistory
	}
}

// Deterministic reports whether the answer is fully determined by the log
func (k MemoryKind) Deterministic() bool {
	return k == MemoryCount || k == MemoryList
}

// MemoryAnswer answers from the log alone. history is oldest first and does
// not include the question being asked.
func MemoryAnswer(kind MemoryKind, question string, history []store.Turn) string {
	var asked []string
	for _, t := range history {
		if t.Role == store.RoleHuman {
			asked = append(asked, t.Content)
		}
	}
	if len(asked) == 0 {
		return constant.MemoryNoHistory
	}

	switch kind {
	case MemoryCount:
		if len(asked) == 1 {
			return "You have asked 1 question in this conversation so far."
		}
		return fmt.Sprintf("You have asked %d questions in this conversation so far.", len(asked))
	case MemoryList:
		if firstPattern.MatchString(question) {
			return fmt.Sprintf("Your first question was: \"%s\"", asked[0])
		}
		if latestPattern.MatchString(question) {
			return fmt.Sprintf("Your previous question was: \"%s\"", asked[len(asked)-1])
		}
		var sb strings.Builder
		sb.WriteString("Here are the questions you have asked so far:\n")
		for i, q := range asked {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, q))
		}
		return strings.TrimSpace(sb.String())
	default:
		return "Here is our conversation so far:\n" + prompt.Transcript(history)
	}
}

// Memory asks the model to answer a history question from the transcript
func (g *Generator) Memory(ctx context.Context, kind MemoryKind, question string, history []store.Turn) (string, error) {
	if g.llmProvider == nil {
		return "", ErrNoProvider
	}
	instruction := map[MemoryKind]string{
		MemoryCount:   "The user wants to know how many interactions there were.",
		MemoryList:    "The user wants to see their previous questions.",
		MemoryHistory: "The user wants a summary or recollection of the conversation.",
	}[kind]

	return g.llmProvider.Generate(ctx,
		fmt.Sprintf(constant.MemoryPrompt, instruction, prompt.Transcript(history), question),
		llm.WithTemperature(0.2),
	)
}
