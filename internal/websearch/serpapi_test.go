package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSerpAPI_SearchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("engine") != "google" {
			t.Errorf("engine = %q, want google", q.Get("engine"))
		}
		if q.Get("api_key") != "test-key" {
			t.Errorf("api_key = %q, want test-key", q.Get("api_key"))
		}
		if q.Get("q") != "red fox artwork" {
			t.Errorf("q = %q", q.Get("q"))
		}

		resp := map[string]any{
			"organic_results": []map[string]any{
				{"title": "Fox 1", "link": "https://one", "snippet": "s1", "position": 1},
				{"title": "Fox 2", "url": "https://two", "snippet": "s2", "position": 2},
			},
		}
		if q.Get("start") == "" {
			resp["serpapi_pagination"] = map[string]any{"next": "https://serpapi.com/search.json?start=10"}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	s, err := NewSerpAPI(srv.URL, "test-key", "en", "us", time.Second)
	if err != nil {
		t.Fatal(err)
	}

	page, err := s.SearchPage(context.Background(), "red fox artwork", 0, 10)
	if err != nil {
		t.Fatalf("SearchPage: %v", err)
	}
	if len(page.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(page.Results))
	}
	if page.Results[1].URL != "https://two" {
		t.Errorf("url fallback not applied: %q", page.Results[1].URL)
	}
	if !page.HasNext {
		t.Error("HasNext = false, want true when pagination.next present")
	}
}

func TestSerpAPI_SearchPageNoNext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"organic_results": []map[string]any{}})
	}))
	defer srv.Close()

	s, _ := NewSerpAPI(srv.URL, "k", "en", "us", time.Second)
	page, err := s.SearchPage(context.Background(), "q", 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.HasNext {
		t.Error("HasNext = true, want false without pagination.next")
	}
}

func TestSerpAPI_ReverseSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("engine") != "google_lens" {
			t.Errorf("engine = %q, want google_lens", q.Get("engine"))
		}
		if q.Get("url") != "https://example.com/src.png" {
			t.Errorf("url = %q", q.Get("url"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"visual_matches": []map[string]any{
				{"link": "https://m1", "thumbnail": "https://t1"},
				{"image": "https://m2"},
				{}, // no usable url, skipped
			},
			"pages": []map[string]any{{"link": "https://p1"}},
		})
	}))
	defer srv.Close()

	s, _ := NewSerpAPI(srv.URL, "k", "en", "us", time.Second)
	got, err := s.ReverseSearch(context.Background(), ImageQuery{URL: "https://example.com/src.png"})
	if err != nil {
		t.Fatalf("ReverseSearch: %v", err)
	}
	if len(got.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(got.Candidates))
	}
	if got.Candidates[1].URL != "https://m2" || got.Candidates[1].Thumbnail != "https://m2" {
		t.Errorf("image fallback not applied: %+v", got.Candidates[1])
	}
	if len(got.Pages) != 1 || got.Pages[0].URL != "https://p1" {
		t.Errorf("pages = %+v", got.Pages)
	}
}

func TestSerpAPI_ReverseSearchRequiresURL(t *testing.T) {
	s, _ := NewSerpAPI("https://serpapi.com/search.json", "k", "en", "us", time.Second)
	if _, err := s.ReverseSearch(context.Background(), ImageQuery{Image: []byte{1}}); err == nil {
		t.Fatal("expected error for bytes-only query against lens")
	}
}

func TestSerpAPI_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s, _ := NewSerpAPI(srv.URL, "k", "en", "us", time.Second)
	if _, err := s.SearchPage(context.Background(), "q", 0, 10); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

func TestNewSerpAPI_RequiresKey(t *testing.T) {
	if _, err := NewSerpAPI("", "", "en", "us", 0); err == nil {
		t.Fatal("expected error for empty api key")
	}
}
