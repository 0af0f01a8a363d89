package adapter

import (
	"math"
	"sort"
)

// RankedText is one candidate ordered by similarity to the query.
type RankedText struct {
	Text  string
	Score float64
}

// SimilarTextRanker orders candidate texts by cosine similarity to a query
// using TF-IDF over character n-grams. Character grams keep the ranker
// language-agnostic and robust to tokenization differences.
type SimilarTextRanker struct {
	minGram int
	maxGram int
}

func NewSimilarTextRanker() *SimilarTextRanker {
	return &SimilarTextRanker{minGram: 3, maxGram: 5}
}

// Rank returns up to topK candidates sorted by descending similarity.
// Candidates with zero overlap still appear (score 0) so callers can decide
// their own cutoff. An empty candidate list yields nil.
func (r *SimilarTextRanker) Rank(query string, candidates []string, topK int) []RankedText {
	if len(candidates) == 0 {
		return nil
	}
	if topK <= 0 {
		topK = 10
	}

	docs := make([]map[string]float64, 0, len(candidates)+1)
	df := map[string]int{}
	for _, c := range append(append([]string{}, candidates...), query) {
		tf := r.termFrequencies(c)
		docs = append(docs, tf)
		for gram := range tf {
			df[gram]++
		}
	}

	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for gram, count := range df {
		// Smoothed IDF so grams present everywhere still carry some weight.
		idf[gram] = math.Log((1+n)/(1+float64(count))) + 1
	}

	queryVec := weighted(docs[len(docs)-1], idf)

	ranked := make([]RankedText, len(candidates))
	for i, c := range candidates {
		ranked[i] = RankedText{
			Text:  c,
			Score: cosine(weighted(docs[i], idf), queryVec),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

func (r *SimilarTextRanker) termFrequencies(text string) map[string]float64 {
	tf := map[string]float64{}
	runes := []rune(text)
	for n := r.minGram; n <= r.maxGram; n++ {
		for i := 0; i+n <= len(runes); i++ {
			tf[string(runes[i:i+n])]++
		}
	}
	return tf
}

func weighted(tf map[string]float64, idf map[string]float64) map[string]float64 {
	vec := make(map[string]float64, len(tf))
	for gram, count := range tf {
		vec[gram] = count * idf[gram]
	}
	return vec
}

func cosine(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for gram, va := range a {
		normA += va * va
		if vb, ok := b[gram]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
