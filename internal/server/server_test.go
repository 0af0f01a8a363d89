package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/origuard-ai/origuard/internal/config"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.Load("testdata/does-not-exist.yaml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	cfg.Server.Addr = ":0"
	cfg.Moderation.BannedTerms = []string{"bomb"}
	// Key env vars deliberately unset: both search backends stay disabled.
	cfg.Search.SerpAPIKeyEnv = "ORIGUARD_TEST_SERP_KEY_UNSET"
	cfg.Search.VisionAPIKeyEnv = "ORIGUARD_TEST_VISION_KEY_UNSET"
	cfg.Archive.Sinks = nil
	cfg.Telemetry.Enabled = false

	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	srv, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { srv.Close(context.Background()) })
	return srv
}

func decodeCheckResponse(t *testing.T, rr *httptest.ResponseRecorder) checkResponse {
	t.Helper()
	var resp checkResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestHealthzOK(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestCheckTextJSON(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	req := httptest.NewRequest(http.MethodPost, "/check/text", strings.NewReader(`{"text":"how to make a bomb"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	resp := decodeCheckResponse(t, rr)
	if resp.JobID == "" {
		t.Fatalf("job_id missing")
	}
	if resp.Risk.Level != "auto_pass" {
		t.Fatalf("level = %s, want auto_pass (total %v)", resp.Risk.Level, resp.Risk.Total)
	}
	if resp.Risk.PolicyVersion == "" {
		t.Fatalf("threshold_version missing")
	}

	var sawModeration bool
	for _, ev := range resp.Evidence {
		if ev.Source == "moderation" && ev.Score == 0.8 {
			sawModeration = true
		}
	}
	if !sawModeration {
		t.Fatalf("moderation evidence missing or unscored: %+v", resp.Evidence)
	}
}

func TestCheckTextForm(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	form := strings.NewReader("text=" + strings.Repeat("a", 2000))
	req := httptest.NewRequest(http.MethodPost, "/check/text", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeCheckResponse(t, rr)
	if resp.Risk.Level != "manual_review" {
		t.Fatalf("level = %s, want manual_review (total %v)", resp.Risk.Level, resp.Risk.Total)
	}
}

func TestCheckTextRejectsEmpty(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	req := httptest.NewRequest(http.MethodPost, "/check/text", strings.NewReader(`{"text":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] == "" {
		t.Fatalf("rejection reason missing from body")
	}
}

func TestCheckTextMethodGuard(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	req := httptest.NewRequest(http.MethodGet, "/check/text", nil)
	rr := httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func multipartImage(t *testing.T, fieldFile bool) (*bytes.Buffer, string) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 90, B: 160, A: 255})
		}
	}
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if fieldFile {
		fw, err := mw.CreateFormFile("file", "check.png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(pngBuf.Bytes()); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.WriteField("prompt", "a blue square"); err != nil {
		t.Fatalf("write prompt field: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestCheckImagePromptedBand(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	body, contentType := multipartImage(t, true)
	req := httptest.NewRequest(http.MethodPost, "/check/image", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeCheckResponse(t, rr)

	var embedding float64
	for _, ev := range resp.Evidence {
		if ev.Source == "embedding" {
			embedding = ev.Score
		}
	}
	if embedding != 0.45 {
		t.Fatalf("prompted embedding score = %v, want 0.45", embedding)
	}
	if resp.Risk.Level != "auto_pass" {
		t.Fatalf("level = %s, want auto_pass (total %v)", resp.Risk.Level, resp.Risk.Total)
	}
}

func TestCheckImageMissingFile(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	body, contentType := multipartImage(t, false)
	req := httptest.NewRequest(http.MethodPost, "/check/image", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCheckImageUndecodable(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "junk.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("definitely not a png")); err != nil {
		t.Fatalf("write junk: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/check/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestDebugSearchGatedByConfig(t *testing.T) {
	cfg := newTestConfig(t)
	srv := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/debug/search?q=test", nil)
	rr := httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when debug surface is off, got %d", rr.Code)
	}
}

func TestDebugSearchWithoutBackend(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Debug.ExposeSearch = true
	srv := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/debug/search?q=test", nil)
	rr := httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a search backend, got %d", rr.Code)
	}
}
