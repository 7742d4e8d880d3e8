package ingest

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

const (
	DefaultChunkTokens   = 1000
	DefaultOverlapTokens = 200
)

// separators are tried in order; text that still does not fit is cut into
// raw token windows
var separators = []string{"\n\n", "\n", " "}

// Splitter cuts text into windows of at most ChunkTokens tokens, repeating
// up to OverlapTokens tokens between neighbours.
type Splitter struct {
	ChunkTokens   int
	OverlapTokens int
	codec         tokenizer.Codec
}

func NewSplitter(chunkTokens, overlapTokens int) (*Splitter, error) {
	if chunkTokens <= 0 {
		chunkTokens = DefaultChunkTokens
	}
	if overlapTokens < 0 || overlapTokens >= chunkTokens {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", chunkTokens, overlapTokens)
	}
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	return &Splitter{ChunkTokens: chunkTokens, OverlapTokens: overlapTokens, codec: codec}, nil
}

// Count returns the number of tokens in text
func (s *Splitter) Count(text string) int {
	ids, _, err := s.codec.Encode(text)
	if err != nil {
		return len(strings.Fields(text))
	}
	return len(ids)
}

// Split prefers paragraph boundaries, then lines, then words
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return s.split(text, 0)
}

func (s *Splitter) split(text string, level int) []string {
	if s.Count(text) <= s.ChunkTokens {
		return []string{text}
	}
	if level >= len(separators) {
		return s.windows(text)
	}

	sep := separators[level]
	var pieces []string
	for _, part := range strings.Split(text, sep) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if s.Count(part) > s.ChunkTokens {
			pieces = append(pieces, s.split(part, level+1)...)
			continue
		}
		pieces = append(pieces, part)
	}
	return s.merge(pieces, sep)
}

// merge packs pieces into chunks, carrying a tail of each chunk into the next
func (s *Splitter) merge(pieces []string, sep string) []string {
	var chunks, window []string
	var sizes []int
	total := 0

	for _, p := range pieces {
		n := s.Count(p)
		if total+n > s.ChunkTokens && len(window) > 0 {
			chunks = append(chunks, strings.Join(window, sep))
			for len(window) > 0 && (total > s.OverlapTokens || total+n > s.ChunkTokens) {
				total -= sizes[0]
				window, sizes = window[1:], sizes[1:]
			}
		}
		window = append(window, p)
		sizes = append(sizes, n)
		total += n
	}
	if len(window) > 0 {
		chunks = append(chunks, strings.Join(window, sep))
	}
	return chunks
}

// windows cuts text with no usable separator into fixed token windows
func (s *Splitter) windows(text string) []string {
	ids, _, err := s.codec.Encode(text)
	if err != nil {
		return []string{text}
	}
	step := s.ChunkTokens - s.OverlapTokens
	var out []string
	for start := 0; start < len(ids); start += step {
		end := min(start+s.ChunkTokens, len(ids))
		piece, err := s.codec.Decode(ids[start:end])
		if err == nil && strings.TrimSpace(piece) != "" {
			out = append(out, strings.TrimSpace(piece))
		}
		if end == len(ids) {
			break
		}
	}
	return out
}
