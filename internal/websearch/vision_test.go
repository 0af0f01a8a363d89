package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestVision_ReverseSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Query().Get("key") != "vision-key" {
			t.Errorf("key = %q, want vision-key", r.URL.Query().Get("key"))
		}

		var body struct {
			Requests []struct {
				Image struct {
					Content string `json:"content"`
				} `json:"image"`
				Features []struct {
					Type string `json:"type"`
				} `json:"features"`
			} `json:"requests"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(body.Requests) != 1 || body.Requests[0].Features[0].Type != "WEB_DETECTION" {
			t.Errorf("unexpected request shape: %+v", body.Requests)
		}
		if body.Requests[0].Image.Content == "" {
			t.Error("image content missing")
		}

		json.NewEncoder(w).Encode(map[string]any{
			"responses": []map[string]any{{
				"webDetection": map[string]any{
					"fullMatchingImages":      []map[string]any{{"url": "https://full"}},
					"partialMatchingImages":   []map[string]any{{"url": "https://partial"}},
					"visuallySimilarImages":   []map[string]any{{"url": "https://similar"}, {"url": ""}},
					"pagesWithMatchingImages": []map[string]any{{"url": "https://page"}},
				},
			}},
		})
	}))
	defer srv.Close()

	v, err := NewVision(srv.URL, "vision-key", 20, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	got, err := v.ReverseSearch(context.Background(), ImageQuery{Image: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("ReverseSearch: %v", err)
	}

	want := []string{"https://full", "https://partial", "https://similar"}
	if len(got.Candidates) != len(want) {
		t.Fatalf("candidates = %d, want %d", len(got.Candidates), len(want))
	}
	for i, u := range want {
		if got.Candidates[i].URL != u {
			t.Errorf("candidate[%d] = %q, want %q (strongest match first)", i, got.Candidates[i].URL, u)
		}
	}
	if len(got.Pages) != 1 || got.Pages[0].URL != "https://page" {
		t.Errorf("pages = %+v", got.Pages)
	}
}

func TestVision_ReverseSearchRequiresBytes(t *testing.T) {
	v, _ := NewVision("https://vision.googleapis.com/v1/images:annotate", "k", 20, time.Second)
	if _, err := v.ReverseSearch(context.Background(), ImageQuery{URL: "https://pub"}); err == nil {
		t.Fatal("expected error for url-only query against vision")
	}
}

func TestVision_EmptyResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"responses": []any{}})
	}))
	defer srv.Close()

	v, _ := NewVision(srv.URL, "k", 20, time.Second)
	got, err := v.ReverseSearch(context.Background(), ImageQuery{Image: []byte{1}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Candidates) != 0 || len(got.Pages) != 0 {
		t.Errorf("expected empty result, got %+v", got)
	}
}

func TestNewVision_RequiresKey(t *testing.T) {
	if _, err := NewVision("", "", 0, 0); err == nil {
		t.Fatal("expected error for empty api key")
	}
}
