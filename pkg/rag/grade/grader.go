package grade

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"research-agent-be/internal/constant"
	"research-agent-be/internal/pkg/logger"
	"research-agent-be/pkg/llm"
	"research-agent-be/pkg/store"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultThreshold   = 0.5
	DefaultConcurrency = 4
	excerptLimit       = 1000
)

var floatPattern = regexp.MustCompile(`\d*\.?\d+`)

// Grader asks the model how relevant each candidate is to the question
type Grader struct {
	llmProvider llm.LLMProvider
	concurrency int
	logger      logger.ILogger
}

func NewGrader(llmProvider llm.LLMProvider, concurrency int, log logger.ILogger) *Grader {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Grader{llmProvider: llmProvider, concurrency: concurrency, logger: log}
}

type Result struct {
	Graded []store.GradedCandidate // Every candidate, best grade first
	// FallbackCount counts candidates graded by their fused score because the
	// model reply was missing or unreadable.
	FallbackCount int
}

// Relevant returns the candidates that passed, preserving order
func (r *Result) Relevant() []store.GradedCandidate {
	var out []store.GradedCandidate
	for _, g := range r.Graded {
		if g.Relevant {
			out = append(out, g)
		}
	}
	return out
}

// Grade scores candidates concurrently. A candidate is relevant when its grade
// exceeds threshold. Only cancellation of ctx is reported as an error.
func (g *Grader) Grade(ctx context.Context, question string, candidates []store.FusedCandidate, threshold float64) (*Result, error) {
	graded := make([]store.GradedCandidate, len(candidates))
	fallback := make([]bool, len(candidates))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i, c := range candidates {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			score, reason, ok := g.gradeOne(egctx, question, c)
			if !ok {
				score, reason = c.Score, "graded by retrieval score"
				fallback[i] = true
			}
			graded[i] = store.GradedCandidate{
				FusedCandidate: c,
				Grade:          score,
				Relevant:       score > threshold,
				Rationale:      reason,
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Graded: graded}
	for _, f := range fallback {
		if f {
			res.FallbackCount++
		}
	}
	sort.SliceStable(res.Graded, func(i, j int) bool {
		if res.Graded[i].Grade != res.Graded[j].Grade {
			return res.Graded[i].Grade > res.Graded[j].Grade
		}
		return res.Graded[i].Chunk.ID < res.Graded[j].Chunk.ID
	})
	return res, nil
}

func (g *Grader) gradeOne(ctx context.Context, question string, c store.FusedCandidate) (float64, string, bool) {
	if g.llmProvider == nil {
		return 0, "", false
	}
	excerpt := c.Chunk.Text
	if len(excerpt) > excerptLimit {
		excerpt = excerpt[:excerptLimit] + "..."
	}

	reply, err := g.llmProvider.Generate(ctx, fmt.Sprintf(constant.GradePrompt, question, excerpt), llm.WithTemperature(0.1))
	if err != nil {
		if ctx.Err() == nil {
			g.logger.Warn("Grader", "Grading call failed, using retrieval score", map[string]interface{}{
				"chunk_id": c.Chunk.ID,
				"error":    err.Error(),
			})
		}
		return 0, "", false
	}
	return ParseGrade(reply)
}

// ParseGrade reads {"score": x, "reason": ...}; failing that, the first number
// in the reply. Scores outside [0,1] are rejected.
func ParseGrade(reply string) (float64, string, bool) {
	if start, end := strings.Index(reply, "{"), strings.LastIndex(reply, "}"); start >= 0 && end > start {
		raw := reply[start : end+1]
		if gjson.Valid(raw) {
			if s := gjson.Get(raw, "score"); s.Exists() && s.Type == gjson.Number {
				score := s.Float()
				if score >= 0 && score <= 1 {
					return score, gjson.Get(raw, "reason").String(), true
				}
				return 0, "", false
			}
			if rel := gjson.Get(raw, "relevant"); rel.IsBool() {
				if rel.Bool() {
					return 1, gjson.Get(raw, "reason").String(), true
				}
				return 0, gjson.Get(raw, "reason").String(), true
			}
		}
	}

	m := floatPattern.FindString(reply)
	if m == "" {
		return 0, "", false
	}
	score, err := strconv.ParseFloat(m, 64)
	if err != nil || score < 0 || score > 1 {
		return 0, "", false
	}
	return score, "", true
}
