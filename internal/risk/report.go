package risk

import (
	"github.com/origuard-ai/origuard/internal/adapter"
	"github.com/origuard-ai/origuard/internal/websearch"
)

// Kind selects which adapters run for a request.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Request is one engine invocation. The engine depends only on the content
// itself, never on user identity or stored job state.
type Request struct {
	Kind   Kind
	Text   string
	Prompt string
	Image  []byte
	// ImageURL optionally names a public copy of Image for reverse-search
	// backends that cannot accept raw bytes.
	ImageURL string
}

// SignalResult is the outcome of exactly one adapter invocation. It is
// created once during aggregation and never mutated.
type SignalResult struct {
	Source string
	Raw    adapter.Raw
	Score  float64 // normalized, in [0,1]
}

// EvidenceItem is the reviewer-facing projection of one signal.
type EvidenceItem struct {
	Source string         `json:"source"`
	Score  float64        `json:"score"`
	Detail map[string]any `json:"detail"`
}

// Verdict is the bounded risk estimate for one request.
type Verdict struct {
	Total         float64 `json:"total"`
	Level         Level   `json:"level"`
	PolicyVersion string  `json:"threshold_version"`
}

// Report is the full engine output handed to the persistence and
// presentation collaborators.
type Report struct {
	Risk          Verdict                  `json:"risk"`
	Evidence      []EvidenceItem           `json:"evidence"`
	SimilarImages []websearch.SimilarImage `json:"similar_images,omitempty"`
}
