// Package websearch collects similarity evidence from external search
// backends: paginated text search and reverse-image search with local
// candidate scoring.
package websearch

import "context"

// PageResult is one organic text-search result.
type PageResult struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Snippet   string  `json:"snippet,omitempty"`
	Position  int     `json:"position,omitempty"`
	Relevance float64 `json:"relevance,omitempty"` // snippet similarity to the query, filled by the collector
}

// TextPage is one page of text-search results.
type TextPage struct {
	Results []PageResult
	HasNext bool
}

// Candidate is an unscored visual match reported by an image backend.
type Candidate struct {
	URL       string
	Thumbnail string
}

// PageRef points at a page that carries a matching image.
type PageRef struct {
	URL string `json:"url"`
}

// ReverseResult is the raw output of one reverse-image lookup.
type ReverseResult struct {
	Candidates []Candidate
	Pages      []PageRef
}

// SimilarImage is a scored visual match, score in [0,100].
type SimilarImage struct {
	URL       string  `json:"url"`
	Thumbnail string  `json:"thumbnail"`
	Score     float64 `json:"score"`
}

// ImageQuery carries the source image in whichever form a backend can use:
// raw bytes, or a public URL for backends that only search by reference.
type ImageQuery struct {
	Image []byte
	URL   string
}

// TextSearcher returns one page of results at the given offset. Pagination
// policy (page count, dedup, truncation) belongs to the Collector.
type TextSearcher interface {
	SearchPage(ctx context.Context, query string, start, size int) (*TextPage, error)
}

// ImageSearcher performs one reverse-image lookup.
type ImageSearcher interface {
	ReverseSearch(ctx context.Context, q ImageQuery) (*ReverseResult, error)
}
