package orchestrator

import (
	"time"

	"research-agent-be/pkg/rag/grade"
	"research-agent-be/pkg/rag/response"
	"research-agent-be/pkg/retrieval/hybrid"
)

// Settings is the per-question configuration. Zero values are replaced by
// defaults in Normalize.
type Settings struct {
	SemanticWeight     float64
	LexicalWeight      float64
	TopK               int
	ChannelTopK        int
	GradeThreshold     float64
	SelfCheckThreshold float64
	MaxRegenerations   int // 0 or 1
	HistoryWindow      int // Turns shown to the rewriter and generator
	QuestionTimeout    time.Duration
	ProviderTimeout    time.Duration
	PrimaryModel       string
	BackupModel        string
}

func DefaultSettings() Settings {
	opts := hybrid.DefaultOptions()
	return Settings{
		SemanticWeight:     opts.SemanticWeight,
		LexicalWeight:      opts.LexicalWeight,
		TopK:               opts.K,
		ChannelTopK:        opts.ChannelK,
		GradeThreshold:     grade.DefaultThreshold,
		SelfCheckThreshold: response.DefaultSelfCheckThreshold,
		MaxRegenerations:   1,
		HistoryWindow:      6,
		QuestionTimeout:    90 * time.Second,
		ProviderTimeout:    30 * time.Second,
	}
}

// Overrides carries the fields a caller set for one question. Nil fields
// keep the process-wide value.
type Overrides struct {
	SemanticWeight     *float64
	LexicalWeight      *float64
	TopK               *int
	ChannelTopK        *int
	GradeThreshold     *float64
	SelfCheckThreshold *float64
	MaxRegenerations   *int
	HistoryWindow      *int
	QuestionTimeout    *time.Duration
	ProviderTimeout    *time.Duration
	PrimaryModel       *string
	BackupModel        *string
}

// Merge applies the present override fields and normalizes the result
func (s Settings) Merge(o *Overrides) Settings {
	if o != nil {
		setFloat(&s.SemanticWeight, o.SemanticWeight)
		setFloat(&s.LexicalWeight, o.LexicalWeight)
		setInt(&s.TopK, o.TopK)
		setInt(&s.ChannelTopK, o.ChannelTopK)
		setFloat(&s.GradeThreshold, o.GradeThreshold)
		setFloat(&s.SelfCheckThreshold, o.SelfCheckThreshold)
		setInt(&s.MaxRegenerations, o.MaxRegenerations)
		setInt(&s.HistoryWindow, o.HistoryWindow)
		if o.QuestionTimeout != nil {
			s.QuestionTimeout = *o.QuestionTimeout
		}
		if o.ProviderTimeout != nil {
			s.ProviderTimeout = *o.ProviderTimeout
		}
		if o.PrimaryModel != nil {
			s.PrimaryModel = *o.PrimaryModel
		}
		if o.BackupModel != nil {
			s.BackupModel = *o.BackupModel
		}
	}
	return s.Normalize()
}

// Normalize clamps every field into its valid range
func (s Settings) Normalize() Settings {
	d := DefaultSettings()
	if s.SemanticWeight < 0 {
		s.SemanticWeight = 0
	}
	if s.LexicalWeight < 0 {
		s.LexicalWeight = 0
	}
	if s.TopK <= 0 {
		s.TopK = d.TopK
	}
	if s.ChannelTopK < s.TopK {
		s.ChannelTopK = s.TopK
	}
	s.GradeThreshold = clamp01(s.GradeThreshold)
	s.SelfCheckThreshold = clamp01(s.SelfCheckThreshold)
	if s.MaxRegenerations < 0 {
		s.MaxRegenerations = 0
	}
	if s.MaxRegenerations > 1 {
		s.MaxRegenerations = 1
	}
	if s.HistoryWindow < 0 {
		s.HistoryWindow = 0
	}
	if s.QuestionTimeout <= 0 {
		s.QuestionTimeout = d.QuestionTimeout
	}
	if s.ProviderTimeout <= 0 {
		s.ProviderTimeout = d.ProviderTimeout
	}
	return s
}

func (s Settings) retrievalOptions() hybrid.Options {
	return hybrid.Options{
		K:              s.TopK,
		ChannelK:       s.ChannelTopK,
		SemanticWeight: s.SemanticWeight,
		LexicalWeight:  s.LexicalWeight,
	}
}

// maxGenerations is the hard bound on generation calls per question
func (s Settings) maxGenerations() int {
	return 1 + s.MaxRegenerations
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
