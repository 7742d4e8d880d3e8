package hybrid

import (
	"sort"

	"research-agent-be/pkg/store"
)

// normalize min-max scales channel scores into [0,1]; a channel whose hits all
// score the same maps every hit to 1.
func normalize(hits []store.RetrievalCandidate) map[string]float64 {
	out := make(map[string]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < lo {
			lo = h.Score
		}
		if h.Score > hi {
			hi = h.Score
		}
	}
	for _, h := range hits {
		if hi == lo {
			out[h.ChunkID] = 1
			continue
		}
		out[h.ChunkID] = (h.Score - lo) / (hi - lo)
	}
	return out
}

// weights resolves the channel weights actually applied. Weights are scaled to
// sum to one; a degraded channel hands its share to the surviving one.
func weights(semantic, lexical float64, semanticUp, lexicalUp bool) (float64, float64) {
	if semantic < 0 {
		semantic = 0
	}
	if lexical < 0 {
		lexical = 0
	}
	switch {
	case semanticUp && !lexicalUp:
		return 1, 0
	case lexicalUp && !semanticUp:
		return 0, 1
	case !semanticUp && !lexicalUp:
		return 0, 0
	}
	total := semantic + lexical
	if total == 0 {
		return 0.5, 0.5
	}
	return semantic / total, lexical / total
}

type fused struct {
	id       string
	score    float64
	lexical  *float64
	semantic *float64
}

// fuse merges both channels by chunk id. A chunk missing from a channel
// contributes zero for it. Ordering is score descending then id ascending.
func fuse(lexicalHits, semanticHits []store.RetrievalCandidate, ws, wl float64) []fused {
	ln := normalize(lexicalHits)
	sn := normalize(semanticHits)

	byID := make(map[string]*fused, len(ln)+len(sn))
	get := func(id string) *fused {
		f, ok := byID[id]
		if !ok {
			f = &fused{id: id}
			byID[id] = f
		}
		return f
	}
	for id, v := range ln {
		f := get(id)
		f.lexical = &v
		f.score += wl * v
	}
	for id, v := range sn {
		f := get(id)
		f.semantic = &v
		f.score += ws * v
	}

	out := make([]fused, 0, len(byID))
	for _, f := range byID {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].id < out[j].id
	})
	return out
}
