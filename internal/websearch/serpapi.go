package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const serpMaxResponseBytes = 4 * 1024 * 1024

// SerpAPI reaches the SerpAPI REST endpoint for Google text search and
// Google Lens reverse-image search.
type SerpAPI struct {
	endpoint string
	apiKey   string
	language string
	country  string
	client   *http.Client
}

// NewSerpAPI builds the backend client. The key must already be resolved;
// callers decide what to do when it is absent.
func NewSerpAPI(endpoint, apiKey, language, country string, timeout time.Duration) (*SerpAPI, error) {
	if apiKey == "" {
		return nil, errors.New("serpapi key is empty")
	}
	if endpoint == "" {
		endpoint = "https://serpapi.com/search.json"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SerpAPI{
		endpoint: endpoint,
		apiKey:   apiKey,
		language: language,
		country:  country,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

type serpTextResponse struct {
	OrganicResults []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		URL      string `json:"url"`
		Snippet  string `json:"snippet"`
		Position int    `json:"position"`
	} `json:"organic_results"`
	Pagination struct {
		Next string `json:"next"`
	} `json:"serpapi_pagination"`
}

// SearchPage fetches one page of Google organic results starting at the
// given offset.
func (s *SerpAPI) SearchPage(ctx context.Context, query string, start, size int) (*TextPage, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("hl", s.language)
	params.Set("gl", s.country)
	params.Set("num", strconv.Itoa(size))
	params.Set("api_key", s.apiKey)
	if start > 0 {
		params.Set("start", strconv.Itoa(start))
	}

	var parsed serpTextResponse
	if err := s.get(ctx, params, &parsed); err != nil {
		return nil, err
	}

	page := &TextPage{HasNext: parsed.Pagination.Next != ""}
	for _, item := range parsed.OrganicResults {
		link := item.Link
		if link == "" {
			link = item.URL
		}
		page.Results = append(page.Results, PageResult{
			Title:    item.Title,
			URL:      link,
			Snippet:  item.Snippet,
			Position: item.Position,
		})
	}
	return page, nil
}

type serpLensResponse struct {
	VisualMatches []struct {
		Link      string `json:"link"`
		Image     string `json:"image"`
		Thumbnail string `json:"thumbnail"`
	} `json:"visual_matches"`
	Pages []struct {
		Link string `json:"link"`
	} `json:"pages"`
}

// ReverseSearch runs a Google Lens lookup. Lens only accepts a public image
// URL, so a bytes-only query is a backend capability miss.
func (s *SerpAPI) ReverseSearch(ctx context.Context, q ImageQuery) (*ReverseResult, error) {
	if q.URL == "" {
		return nil, errors.New("serpapi lens requires a public image url")
	}

	params := url.Values{}
	params.Set("engine", "google_lens")
	params.Set("url", q.URL)
	params.Set("hl", s.language)
	params.Set("gl", s.country)
	params.Set("api_key", s.apiKey)

	var parsed serpLensResponse
	if err := s.get(ctx, params, &parsed); err != nil {
		return nil, err
	}

	out := &ReverseResult{}
	for _, m := range parsed.VisualMatches {
		link := m.Link
		if link == "" {
			link = m.Image
		}
		if link == "" {
			continue
		}
		thumb := m.Thumbnail
		if thumb == "" {
			thumb = m.Image
		}
		out.Candidates = append(out.Candidates, Candidate{URL: link, Thumbnail: thumb})
	}
	for _, p := range parsed.Pages {
		if p.Link != "" {
			out.Pages = append(out.Pages, PageRef{URL: p.Link})
		}
	}
	return out, nil
}

func (s *SerpAPI) get(ctx context.Context, params url.Values, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build serpapi request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("call serpapi: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("serpapi status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, serpMaxResponseBytes))
	if err != nil {
		return fmt.Errorf("read serpapi response: %w", err)
	}
	if err := json.Unmarshal(body, into); err != nil {
		return fmt.Errorf("decode serpapi response: %w", err)
	}
	return nil
}
