package websearch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const visionMaxResponseBytes = 8 * 1024 * 1024

// Vision reaches the Google Cloud Vision images:annotate REST endpoint and
// uses WEB_DETECTION to find matching and visually similar images.
type Vision struct {
	endpoint   string
	apiKey     string
	maxResults int
	client     *http.Client
}

func NewVision(endpoint, apiKey string, maxResults int, timeout time.Duration) (*Vision, error) {
	if apiKey == "" {
		return nil, errors.New("vision api key is empty")
	}
	if endpoint == "" {
		endpoint = "https://vision.googleapis.com/v1/images:annotate"
	}
	if maxResults <= 0 {
		maxResults = 20
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Vision{
		endpoint:   endpoint,
		apiKey:     apiKey,
		maxResults: maxResults,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

type visionAnnotateRequest struct {
	Requests []struct {
		Image struct {
			Content string `json:"content"`
		} `json:"image"`
		Features []struct {
			Type       string `json:"type"`
			MaxResults int    `json:"maxResults"`
		} `json:"features"`
	} `json:"requests"`
}

type visionImageRef struct {
	URL string `json:"url"`
}

type visionAnnotateResponse struct {
	Responses []struct {
		WebDetection struct {
			FullMatchingImages    []visionImageRef `json:"fullMatchingImages"`
			PartialMatchingImages []visionImageRef `json:"partialMatchingImages"`
			VisuallySimilarImages []visionImageRef `json:"visuallySimilarImages"`
			PagesWithMatching     []visionImageRef `json:"pagesWithMatchingImages"`
		} `json:"webDetection"`
	} `json:"responses"`
}

// ReverseSearch submits the image bytes for web detection. Candidate groups
// are appended strongest-match first (full, partial, visually similar) so
// downstream capping keeps the best leads.
func (v *Vision) ReverseSearch(ctx context.Context, q ImageQuery) (*ReverseResult, error) {
	if len(q.Image) == 0 {
		return nil, errors.New("vision web detection requires image bytes")
	}

	var reqBody visionAnnotateRequest
	reqBody.Requests = make([]struct {
		Image struct {
			Content string `json:"content"`
		} `json:"image"`
		Features []struct {
			Type       string `json:"type"`
			MaxResults int    `json:"maxResults"`
		} `json:"features"`
	}, 1)
	reqBody.Requests[0].Image.Content = base64.StdEncoding.EncodeToString(q.Image)
	reqBody.Requests[0].Features = []struct {
		Type       string `json:"type"`
		MaxResults int    `json:"maxResults"`
	}{{Type: "WEB_DETECTION", MaxResults: v.maxResults}}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal vision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint+"?key="+v.apiKey, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build vision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call vision: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vision status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, visionMaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read vision response: %w", err)
	}

	var parsed visionAnnotateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode vision response: %w", err)
	}
	if len(parsed.Responses) == 0 {
		return &ReverseResult{}, nil
	}

	wd := parsed.Responses[0].WebDetection
	out := &ReverseResult{}
	for _, group := range [][]visionImageRef{wd.FullMatchingImages, wd.PartialMatchingImages, wd.VisuallySimilarImages} {
		for _, ref := range group {
			if ref.URL == "" {
				continue
			}
			out.Candidates = append(out.Candidates, Candidate{URL: ref.URL, Thumbnail: ref.URL})
		}
	}
	for _, page := range wd.PagesWithMatching {
		if page.URL != "" {
			out.Pages = append(out.Pages, PageRef{URL: page.URL})
		}
	}
	return out, nil
}
