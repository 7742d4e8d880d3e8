package dto

import "time"

type QueryRequest struct {
	Question string       `json:"question" validate:"required,max=4000"`
	ThreadID string       `json:"thread_id,omitempty" validate:"omitempty,max=128"`
	Config   *QueryConfig `json:"config,omitempty"`
}

// QueryConfig overrides process-wide settings for one question. Absent
// fields keep their defaults.
type QueryConfig struct {
	SemanticWeight         *float64 `json:"semantic_weight,omitempty" validate:"omitempty,gte=0,lte=1"`
	LexicalWeight          *float64 `json:"lexical_weight,omitempty" validate:"omitempty,gte=0,lte=1"`
	TopK                   *int     `json:"top_k,omitempty" validate:"omitempty,gte=1,lte=50"`
	ChannelTopK            *int     `json:"channel_top_k,omitempty" validate:"omitempty,gte=1,lte=200"`
	GradeThreshold         *float64 `json:"grade_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	SelfCheckThreshold     *float64 `json:"self_check_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	MaxRegenerations       *int     `json:"max_regenerations,omitempty" validate:"omitempty,gte=0,lte=1"`
	HistoryWindow          *int     `json:"history_window,omitempty" validate:"omitempty,gte=0,lte=100"`
	QuestionTimeoutSeconds *float64 `json:"question_timeout_seconds,omitempty" validate:"omitempty,gt=0,lte=600"`
	ProviderTimeoutSeconds *float64 `json:"provider_timeout_seconds,omitempty" validate:"omitempty,gt=0,lte=300"`
	PrimaryModel           *string  `json:"primary_model,omitempty" validate:"omitempty,max=200"`
	BackupModel            *string  `json:"backup_model,omitempty" validate:"omitempty,max=200"`
}

type ReferenceResponse struct {
	Source         string  `json:"source"`
	RelevanceScore float64 `json:"relevance_score"`
	Snippet        string  `json:"snippet"`
}

type QueryResponse struct {
	Answer     string              `json:"answer"`
	References []ReferenceResponse `json:"references"`
	ThreadID   string              `json:"thread_id"`
	Route      string              `json:"route"`
	Degraded   bool                `json:"degraded"`
	Notices    []string            `json:"notices,omitempty"`
}

type ThreadMessage struct {
	Type      string    `json:"type"` // "human" | "ai"
	Content   string    `json:"content"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

type ThreadStatusResponse struct {
	ThreadID     string          `json:"thread_id"`
	MessageCount int             `json:"message_count"`
	HasHistory   bool            `json:"has_history"`
	Messages     []ThreadMessage `json:"messages"`
}

type ResetThreadResponse struct {
	ThreadID string `json:"thread_id"`
	Cleared  int    `json:"cleared"`
}
