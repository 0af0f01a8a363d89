// Package server exposes the evidence engine over HTTP: one check endpoint
// per request kind, plus health and an optional debug surface.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/origuard-ai/origuard/internal/adapter"
	"github.com/origuard-ai/origuard/internal/archive"
	"github.com/origuard-ai/origuard/internal/config"
	"github.com/origuard-ai/origuard/internal/risk"
	"github.com/origuard-ai/origuard/internal/telemetry"
	"github.com/origuard-ai/origuard/internal/websearch"
)

// Server wraps the HTTP components for OriGuard.
type Server struct {
	mux        *http.ServeMux
	cfg        *config.Config
	snapshot   risk.Snapshot
	aggregator *risk.Aggregator
	collector  *websearch.Collector
	archive    *archive.Emitter
	telemetry  *telemetry.Provider
	model      *adapter.SyntheticModel
}

// New builds the engine from config. Optional collaborators degrade rather
// than fail: a missing search key disables that backend, a missing model
// falls back to heuristic bands.
func New(cfg *config.Config, tel *telemetry.Provider) (*Server, error) {
	mux := http.NewServeMux()

	// Synthetic-image classifier is optional.
	var model *adapter.SyntheticModel
	if cfg.Embedding.ModelDir != "" {
		m, err := adapter.LoadSyntheticModel(cfg.Embedding.ModelDir, cfg.Embedding.ImageSize)
		if err != nil {
			log.Printf("synthetic classifier unavailable (%v); embedding adapter runs heuristic bands", err)
		} else {
			log.Printf("synthetic classifier loaded from %s version=%s", cfg.Embedding.ModelDir, m.Version())
			model = m
		}
	}

	textAdapters := []adapter.Adapter{
		adapter.NewPlagiarism(),
		adapter.NewModeration(cfg.Moderation.BannedTerms, cfg.Moderation.Severity),
	}
	imageAdapters := []adapter.Adapter{
		adapter.NewEmbedding(model, cfg.Embedding.BaseDistance, cfg.Embedding.PromptedDistance),
	}

	searchTimeout := time.Duration(cfg.Search.SearchTimeoutS) * time.Second

	var textBackend websearch.TextSearcher
	if key := strings.TrimSpace(os.Getenv(cfg.Search.SerpAPIKeyEnv)); key != "" {
		sa, err := websearch.NewSerpAPI(cfg.Search.SerpEndpoint, key, cfg.Search.Language, cfg.Search.Country, searchTimeout)
		if err != nil {
			return nil, fmt.Errorf("serpapi backend: %w", err)
		}
		textBackend = sa
	} else {
		log.Printf("%s not set; text web search disabled", cfg.Search.SerpAPIKeyEnv)
	}

	var imageBackend websearch.ImageSearcher
	if key := strings.TrimSpace(os.Getenv(cfg.Search.VisionAPIKeyEnv)); key != "" {
		v, err := websearch.NewVision(cfg.Search.VisionEndpoint, key, cfg.Search.MaxResults, searchTimeout)
		if err != nil {
			return nil, fmt.Errorf("vision backend: %w", err)
		}
		imageBackend = v
	} else {
		log.Printf("%s not set; reverse image search disabled", cfg.Search.VisionAPIKeyEnv)
	}

	collector := websearch.NewCollector(cfg.Search, textBackend, imageBackend)

	sinks, err := archive.BuildSinks(cfg.Archive.Sinks)
	if err != nil {
		return nil, err
	}
	emitter := archive.NewEmitter(archive.EmitterConfig{
		QueueSize:       cfg.Archive.QueueSize,
		Workers:         cfg.Archive.Workers,
		ShutdownTimeout: time.Duration(cfg.Archive.ShutdownTimeoutS) * time.Second,
	}, sinks)

	s := &Server{
		mux:        mux,
		cfg:        cfg,
		snapshot:   risk.SnapshotFromConfig(cfg.Policy),
		aggregator: risk.NewAggregator(textAdapters, imageAdapters, collector, tel),
		collector:  collector,
		archive:    emitter,
		telemetry:  tel,
		model:      model,
	}

	// Routes
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/check/text", s.handleCheckText)
	mux.HandleFunc("/check/image", s.handleCheckImage)

	if cfg.Debug.ExposeSearch {
		log.Printf("debug search endpoint enabled at /debug/search")
		mux.HandleFunc("/debug/search", s.handleDebugSearch)
	}

	return s, nil
}

// Start runs the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	log.Printf("OriGuard engine running on %s (policy %s)", addr, s.snapshot.Version)
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.mux,
		ReadTimeout: time.Duration(s.cfg.Server.ReadTimeoutS) * time.Second,
	}
	return srv.ListenAndServe()
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Close drains the archive queue and releases the model session.
func (s *Server) Close(ctx context.Context) {
	s.archive.Close(ctx)
	if s.model != nil {
		s.model.Close()
	}
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}

type checkTextRequest struct {
	Text   string `json:"text"`
	Prompt string `json:"prompt,omitempty"`
}

type checkResponse struct {
	JobID         string                   `json:"job_id"`
	Risk          risk.Verdict             `json:"risk"`
	Evidence      []risk.EvidenceItem      `json:"evidence"`
	SimilarImages []websearch.SimilarImage `json:"similar_images,omitempty"`
}

func (s *Server) handleCheckText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body checkTextRequest
	ct := r.Header.Get("Content-Type")
	if strings.Contains(ct, "application/json") {
		if err := json.NewDecoder(io.LimitReader(r.Body, s.maxUploadBytes())).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form body")
			return
		}
		body.Text = r.FormValue("text")
		body.Prompt = r.FormValue("prompt")
	}

	s.runCheck(w, r, risk.Request{
		Kind:   risk.KindText,
		Text:   body.Text,
		Prompt: body.Prompt,
	})
}

func (s *Server) handleCheckImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form with a file field")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	imageBytes, err := io.ReadAll(io.LimitReader(file, s.maxUploadBytes()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	s.runCheck(w, r, risk.Request{
		Kind:     risk.KindImage,
		Prompt:   r.FormValue("prompt"),
		Image:    imageBytes,
		ImageURL: r.FormValue("image_url"),
	})
}

func (s *Server) runCheck(w http.ResponseWriter, r *http.Request, req risk.Request) {
	jobID := uuid.NewString()
	start := time.Now()

	report, err := s.aggregator.Check(r.Context(), s.snapshot, req)
	if err != nil {
		var malformed *risk.MalformedInputError
		if errors.As(err, &malformed) {
			s.archive.Emit(r.Context(), &archive.Record{
				JobID:     jobID,
				Kind:      string(req.Kind),
				Status:    archive.StatusRejected,
				Reason:    malformed.Reason,
				CreatedAt: time.Now().UTC(),
			})
			writeError(w, http.StatusBadRequest, malformed.Reason)
			return
		}
		log.Printf("check %s failed: %v", jobID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.telemetry.RecordCheck(string(req.Kind), string(report.Risk.Level), float64(time.Since(start).Milliseconds()))

	s.archive.Emit(r.Context(), &archive.Record{
		JobID:         jobID,
		Kind:          string(req.Kind),
		Status:        archive.StatusCompleted,
		CreatedAt:     time.Now().UTC(),
		Risk:          &report.Risk,
		Evidence:      report.Evidence,
		SimilarImages: report.SimilarImages,
	})

	writeJSON(w, http.StatusOK, checkResponse{
		JobID:         jobID,
		Risk:          report.Risk,
		Evidence:      report.Evidence,
		SimilarImages: report.SimilarImages,
	})
}

// handleDebugSearch runs the text collector directly for a query. Gated by
// config; intended for operators tuning search settings, not for clients.
func (s *Server) handleDebugSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	if !s.collector.TextEnabled() {
		writeError(w, http.StatusServiceUnavailable, "text search backend not configured")
		return
	}

	coll, err := s.collector.CollectText(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusBadGateway, "search backend error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, coll)
}

func (s *Server) maxUploadBytes() int64 {
	return s.cfg.Server.MaxUploadMB << 20
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
