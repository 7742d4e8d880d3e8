package store

// DocumentChunk is a bounded span of extracted document text, the unit of indexing
type DocumentChunk struct {
	ID       string                 `json:"id"`
	Source   string                 `json:"source"`  // Document name, e.g. "self-debug.pdf"
	Locator  string                 `json:"locator"` // Page/offset hint for display
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// RetrievalCandidate is a channel-local hit produced per query
type RetrievalCandidate struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
	Channel string  `json:"channel"` // "lexical" | "semantic"
}

// FusedCandidate is the ranking output of the hybrid engine
type FusedCandidate struct {
	Chunk         DocumentChunk `json:"chunk"`
	Score         float64       `json:"score"`
	Source        string        `json:"source"`
	Snippet       string        `json:"snippet"`
	LexicalScore  *float64      `json:"lexical_score,omitempty"`  // Normalized, nil when the channel missed
	SemanticScore *float64      `json:"semantic_score,omitempty"` // Normalized, nil when the channel missed
}

// GradedCandidate carries the grader verdict for a fused candidate
type GradedCandidate struct {
	FusedCandidate
	Relevant  bool    `json:"relevant"`
	Grade     float64 `json:"grade"`
	Rationale string  `json:"rationale"`
}

// Retrieval channels
const (
	ChannelLexical  = "lexical"
	ChannelSemantic = "semantic"
)
