package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchImageBytes_ContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/img":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("jpeg bytes"))
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html>"))
		case "/mislabeled.png":
			// wrong header, but extension rescues it
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write([]byte("png bytes"))
		}
	}))
	defer srv.Close()

	client := srv.Client()

	if _, err := fetchImageBytes(context.Background(), client, srv.URL+"/img", time.Second); err != nil {
		t.Errorf("image content-type rejected: %v", err)
	}
	if _, err := fetchImageBytes(context.Background(), client, srv.URL+"/page.html", time.Second); err == nil {
		t.Error("non-image content accepted")
	}
	if _, err := fetchImageBytes(context.Background(), client, srv.URL+"/mislabeled.png", time.Second); err != nil {
		t.Errorf("extension fallback failed: %v", err)
	}
}

func TestFetchImageBytes_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if _, err := fetchImageBytes(context.Background(), srv.Client(), srv.URL+"/gone.png", time.Second); err == nil {
		t.Error("404 accepted")
	}
}

func TestFetchImageBytes_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	start := time.Now()
	_, err := fetchImageBytes(context.Background(), srv.Client(), srv.URL+"/slow.png", 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("fetch did not respect timeout, took %v", elapsed)
	}
}

func TestHasImageExtension(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://x/img.JPG", true},
		{"https://x/img.webp?w=200", true},
		{"https://x/page", false},
		{"https://x/archive.zip", false},
	}
	for _, tt := range tests {
		if got := hasImageExtension(tt.url); got != tt.want {
			t.Errorf("hasImageExtension(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
