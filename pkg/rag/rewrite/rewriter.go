package rewrite

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"research-agent-be/internal/constant"
	"research-agent-be/internal/pkg/logger"
	"research-agent-be/pkg/llm"
	"research-agent-be/pkg/rag/prompt"
	"research-agent-be/pkg/retrieval/lexical"
	"research-agent-be/pkg/store"
)

var (
	// Conversational framing removed before retrieval
	framingPattern = regexp.MustCompile(`(?i)^(please\s+|(can|could|would) you (please\s+)?(tell me|explain|describe|show me)\s+|i (want|would like|need) to know\s+|tell me\s+|do you know\s+)+`)

	referentialPattern = regexp.MustCompile(`(?i)\b(it|its|they|them|their|this|that|these|those|he|she|him|her|his|the same|above|former|latter|previous one|more about|what about|how about|and what|why not|elaborate|continue|go on)\b`)
)

type Result struct {
	Query     string
	Rewritten bool // Set only when the model produced the query
}

// Rewriter turns a question into a standalone retrieval query. Self-contained
// questions are only normalized, so rewriting is idempotent on them.
type Rewriter struct {
	llmProvider llm.LLMProvider
	logger      logger.ILogger
}

func NewRewriter(llmProvider llm.LLMProvider, log logger.ILogger) *Rewriter {
	return &Rewriter{llmProvider: llmProvider, logger: log}
}

// NeedsContext reports whether the question leans on earlier turns
func NeedsContext(question string) bool {
	if referentialPattern.MatchString(question) {
		return true
	}
	trimmed := strings.TrimSpace(strings.ToLower(question))
	for _, prefix := range []string{"and ", "also ", "but ", "so ", "then "} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return len(lexical.Tokenize(question)) < 2
}

// Normalize strips framing and collapses whitespace
func Normalize(question string) string {
	q := strings.Join(strings.Fields(question), " ")
	stripped := strings.TrimSpace(framingPattern.ReplaceAllString(q, ""))
	if stripped == "" {
		return q
	}
	return stripped
}

// Rewrite never fails; without a usable model reply the normalized question is used.
// recent holds the latest turns, newest first.
func (r *Rewriter) Rewrite(ctx context.Context, question string, recent []store.Turn) Result {
	normalized := Normalize(question)
	if len(recent) == 0 || r.llmProvider == nil || !NeedsContext(normalized) {
		return Result{Query: normalized}
	}

	reply, err := r.llmProvider.Generate(ctx,
		fmt.Sprintf(constant.RewritePrompt, prompt.Transcript(recent), normalized),
		llm.WithTemperature(0.3),
	)
	if err != nil {
		r.logger.Warn("Rewriter", "Rewrite failed, using original question", map[string]interface{}{
			"error": err.Error(),
		})
		return Result{Query: normalized}
	}

	rewritten := clean(reply)
	if rewritten == "" || len(rewritten) > 4*len(normalized)+200 {
		r.logger.Warn("Rewriter", "Discarding unusable rewrite", map[string]interface{}{"reply_length": len(reply)})
		return Result{Query: normalized}
	}

	r.logger.Debug("Rewriter", "Rewrote question", map[string]interface{}{
		"original":  normalized,
		"rewritten": rewritten,
	})
	return Result{Query: rewritten, Rewritten: true}
}

const quotes = "\"'`“”"

// clean keeps the first non-empty line and strips quotes and labels
func clean(reply string) string {
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), quotes))
		if line == "" {
			continue
		}
		for _, label := range []string{"Rewritten question:", "Question:", "Standalone question:"} {
			if len(line) >= len(label) && strings.EqualFold(line[:len(label)], label) {
				line = strings.TrimSpace(line[len(label):])
			}
		}
		return strings.TrimSpace(strings.Trim(line, quotes))
	}
	return ""
}
