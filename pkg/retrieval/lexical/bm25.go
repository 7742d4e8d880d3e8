package lexical

import (
	"math"
	"sort"

	"research-agent-be/pkg/store"
)

// Okapi BM25 parameters
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

type document struct {
	id     string
	tf     map[string]int
	length int
}

// Index is an immutable BM25 index over a chunk set. Safe for concurrent search.
type Index struct {
	docs   []document
	df     map[string]int
	avgLen float64
	k1     float64
	b      float64
}

func NewIndex(chunks []store.DocumentChunk) *Index {
	ix := &Index{
		docs: make([]document, 0, len(chunks)),
		df:   make(map[string]int),
		k1:   DefaultK1,
		b:    DefaultB,
	}

	total := 0
	for _, c := range chunks {
		tokens := Tokenize(c.Text)
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		for t := range tf {
			ix.df[t]++
		}
		ix.docs = append(ix.docs, document{id: c.ID, tf: tf, length: len(tokens)})
		total += len(tokens)
	}
	if len(ix.docs) > 0 {
		ix.avgLen = float64(total) / float64(len(ix.docs))
	}
	return ix
}

func (ix *Index) Len() int {
	return len(ix.docs)
}

func (ix *Index) idf(term string) float64 {
	n := float64(len(ix.docs))
	df := float64(ix.df[term])
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// Search returns up to k chunks with a positive BM25 score, best first,
// ties broken by chunk id ascending.
func (ix *Index) Search(query string, k int) []store.RetrievalCandidate {
	if len(ix.docs) == 0 || k <= 0 {
		return nil
	}
	terms := Terms(query)
	if len(terms) == 0 {
		return nil
	}

	idf := make(map[string]float64, len(terms))
	for t := range terms {
		if ix.df[t] > 0 {
			idf[t] = ix.idf(t)
		}
	}
	if len(idf) == 0 {
		return nil
	}

	var hits []store.RetrievalCandidate
	for _, d := range ix.docs {
		score := 0.0
		for t, w := range idf {
			f := float64(d.tf[t])
			if f == 0 {
				continue
			}
			norm := 1 - ix.b + ix.b*float64(d.length)/ix.avgLen
			score += w * f * (ix.k1 + 1) / (f + ix.k1*norm)
		}
		if score > 0 {
			hits = append(hits, store.RetrievalCandidate{ChunkID: d.id, Score: score, Channel: store.ChannelLexical})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
