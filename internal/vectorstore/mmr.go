package vectorstore

import (
	"math"

	"literary-rag/internal/models"
)

// CosineSimilarity returns 0 when either vector has zero length.
func CosineSimilarity(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// MaximalMarginalRelevance returns the indexes of up to k embeddings, in
// selection order. The first pick is the one most similar to the query;
// each next pick maximizes
//
//	lambda*sim(query, e) - (1-lambda)*max(sim(e, picked))
//
// Ties go to the lower index.
func MaximalMarginalRelevance(query []float32, embeddings [][]float32, lambda float64, k int) []int {
	k = min(k, len(embeddings))
	if k <= 0 {
		return nil
	}

	toQuery := make([]float64, len(embeddings))
	best := 0
	for i, e := range embeddings {
		toQuery[i] = CosineSimilarity(query, e)
		if toQuery[i] > toQuery[best] {
			best = i
		}
	}

	picked := []int{best}
	used := make([]bool, len(embeddings))
	used[best] = true
	// redundancy[i] is the max similarity of i to anything picked so far.
	redundancy := make([]float64, len(embeddings))
	for i := range redundancy {
		redundancy[i] = math.Inf(-1)
	}

	for len(picked) < k {
		last := embeddings[picked[len(picked)-1]]
		next, nextScore := -1, math.Inf(-1)
		for i, e := range embeddings {
			if used[i] {
				continue
			}
			redundancy[i] = max(redundancy[i], CosineSimilarity(e, last))
			score := lambda*toQuery[i] - (1-lambda)*redundancy[i]
			if score > nextScore {
				next, nextScore = i, score
			}
		}
		picked = append(picked, next)
		used[next] = true
	}
	return picked
}

// Select narrows the raw nearest neighbours to opts.K candidates. Candidates
// must carry their embeddings for MMR; their Score is set to the cosine
// similarity to the query.
func Select(query []float32, fetched []models.Candidate, opts SearchOptions) []models.Candidate {
	opts = opts.Normalize()
	for i := range fetched {
		if fetched[i].Embedding != nil {
			fetched[i].Score = CosineSimilarity(query, fetched[i].Embedding)
		}
	}

	if opts.Diversity != MMR {
		return fetched[:min(opts.K, len(fetched))]
	}

	vectors := make([][]float32, len(fetched))
	for i, c := range fetched {
		vectors[i] = c.Embedding
	}
	idxs := MaximalMarginalRelevance(query, vectors, opts.Lambda, opts.K)
	out := make([]models.Candidate, len(idxs))
	for i, idx := range idxs {
		out[i] = fetched[idx]
	}
	return out
}
