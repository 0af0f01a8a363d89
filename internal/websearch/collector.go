package websearch

import (
	"context"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/origuard-ai/origuard/internal/adapter"
	"github.com/origuard-ai/origuard/internal/config"
	"github.com/origuard-ai/origuard/internal/imagesim"
)

// TextCollection is the deduplicated, relevance-annotated text evidence for
// one query.
type TextCollection struct {
	Results      []PageResult `json:"results"`
	MaxRelevance float64      `json:"max_relevance"`
}

// ImageCollection is the scored visual evidence for one image.
type ImageCollection struct {
	SimilarImages []SimilarImage `json:"similar_images"`
	Pages         []PageRef      `json:"pages"`
	MaxScore      float64        `json:"max_score"`
}

// Collector drives the search backends: pagination and deduplication for
// text, candidate download and similarity scoring for images. Backends may be
// nil, in which case the corresponding mode degrades to an empty collection
// instead of failing the request.
type Collector struct {
	text   TextSearcher
	image  ImageSearcher
	ranker *adapter.SimilarTextRanker

	fetchClient  *http.Client
	fetchTimeout time.Duration

	pageSize      int
	maxPages      int
	maxResults    int
	maxCandidates int
}

func NewCollector(cfg config.SearchConfig, text TextSearcher, image ImageSearcher) *Collector {
	return &Collector{
		text:          text,
		image:         image,
		ranker:        adapter.NewSimilarTextRanker(),
		fetchClient:   &http.Client{Timeout: time.Duration(cfg.FetchTimeoutS) * time.Second},
		fetchTimeout:  time.Duration(cfg.FetchTimeoutS) * time.Second,
		pageSize:      cfg.PageSize,
		maxPages:      cfg.MaxPages,
		maxResults:    cfg.MaxResults,
		maxCandidates: cfg.MaxCandidates,
	}
}

// TextEnabled reports whether a text backend is configured.
func (c *Collector) TextEnabled() bool { return c != nil && c.text != nil }

// ImageEnabled reports whether a reverse-image backend is configured.
func (c *Collector) ImageEnabled() bool { return c != nil && c.image != nil }

// CollectText paginates the text backend, deduplicates by URL preserving
// first-seen order, truncates to the configured count, and annotates each
// result with its snippet similarity to the query.
func (c *Collector) CollectText(ctx context.Context, query string) (*TextCollection, error) {
	out := &TextCollection{Results: []PageResult{}}
	if c.text == nil {
		return out, nil
	}

	seen := map[string]bool{}
	start := 0
	for page := 0; page < c.maxPages && len(out.Results) < c.maxResults; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tp, err := c.text.SearchPage(ctx, query, start, c.pageSize)
		if err != nil {
			if page == 0 {
				return nil, err
			}
			// Later pages failing lose tail results, not the whole collection.
			log.Printf("websearch: page %d failed, keeping %d results: %v", page, len(out.Results), err)
			break
		}

		for _, r := range tp.Results {
			if r.URL == "" || seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			out.Results = append(out.Results, r)
			if len(out.Results) >= c.maxResults {
				break
			}
		}

		if !tp.HasNext {
			break
		}
		start += c.pageSize
	}

	c.annotateRelevance(query, out)
	return out, nil
}

func (c *Collector) annotateRelevance(query string, out *TextCollection) {
	if len(out.Results) == 0 {
		return
	}
	snippets := make([]string, len(out.Results))
	for i, r := range out.Results {
		snippets[i] = r.Snippet
	}
	// Rank over all snippets; scores are mapped back by text, order is kept
	// first-seen per the dedup contract.
	ranked := c.ranker.Rank(query, snippets, len(snippets))
	scores := make(map[string]float64, len(ranked))
	for _, rt := range ranked {
		if _, ok := scores[rt.Text]; !ok {
			scores[rt.Text] = rt.Score
		}
	}
	for i := range out.Results {
		rel := scores[out.Results[i].Snippet]
		out.Results[i].Relevance = rel
		if rel > out.MaxRelevance {
			out.MaxRelevance = rel
		}
	}
}

// CollectImage performs one reverse-image lookup, then downloads and scores
// each unique candidate against the original. Candidates that fail to fetch
// or decode are dropped entirely; they are excluded from ranking rather than
// scored zero.
func (c *Collector) CollectImage(ctx context.Context, original []byte, publicURL string) (*ImageCollection, error) {
	out := &ImageCollection{SimilarImages: []SimilarImage{}, Pages: []PageRef{}}
	if c.image == nil {
		return out, nil
	}

	rr, err := c.image.ReverseSearch(ctx, ImageQuery{Image: original, URL: publicURL})
	if err != nil {
		return nil, err
	}

	candidates := dedupCandidates(rr.Candidates, c.maxCandidates)
	out.Pages = dedupPages(rr.Pages)

	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := fetchImageBytes(ctx, c.fetchClient, cand.URL, c.fetchTimeout)
		if err != nil {
			log.Printf("websearch: dropping candidate %s: %v", cand.URL, err)
			continue
		}

		score, detail := imagesim.ScorePair(original, body)
		if !detail.Computed {
			log.Printf("websearch: dropping candidate %s: %s", cand.URL, detail.Reason)
			continue
		}

		thumb := cand.Thumbnail
		if thumb == "" {
			thumb = cand.URL
		}
		out.SimilarImages = append(out.SimilarImages, SimilarImage{
			URL:       cand.URL,
			Thumbnail: thumb,
			Score:     score,
		})
	}

	// Highest similarity first; stable so first-seen order breaks ties.
	sort.SliceStable(out.SimilarImages, func(i, j int) bool {
		return out.SimilarImages[i].Score > out.SimilarImages[j].Score
	})
	if len(out.SimilarImages) > 0 {
		out.MaxScore = out.SimilarImages[0].Score
	}
	return out, nil
}

func dedupCandidates(in []Candidate, limit int) []Candidate {
	seen := map[string]bool{}
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		if c.URL == "" || seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		out = append(out, c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func dedupPages(in []PageRef) []PageRef {
	seen := map[string]bool{}
	out := make([]PageRef, 0, len(in))
	for _, p := range in {
		if p.URL == "" || seen[p.URL] {
			continue
		}
		seen[p.URL] = true
		out = append(out, p)
	}
	return out
}
