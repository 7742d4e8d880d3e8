package store

// Reference points the reader at the passage an answer relied on
type Reference struct {
	Source         string  `json:"source"`
	RelevanceScore float64 `json:"relevance_score"`
	Snippet        string  `json:"snippet"`
}

// Answer is the externally visible result of one question
type Answer struct {
	Text       string      `json:"answer"`
	References []Reference `json:"references"`
	ThreadID   string      `json:"thread_id"`
	Route      string      `json:"route"`
	Degraded   bool        `json:"degraded"`
	Notices    []string    `json:"notices,omitempty"`
}
