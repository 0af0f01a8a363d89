// Package archive delivers check records to the persistence collaborators
// (job store, audit trail) without ever blocking or failing a request. The
// engine is agnostic to whether delivery succeeds.
package archive

import (
	"fmt"
	"strings"
	"time"

	"github.com/origuard-ai/origuard/internal/config"
	"github.com/origuard-ai/origuard/internal/risk"
	"github.com/origuard-ai/origuard/internal/websearch"
)

// Statuses a job record can carry.
const (
	StatusCompleted = "completed"
	StatusRejected  = "rejected"
)

// Record is one persisted check: the job, its verdict, and all supporting
// evidence keyed by job ID.
type Record struct {
	JobID         string                   `json:"job_id"`
	Kind          string                   `json:"kind"`
	Status        string                   `json:"status"`
	Reason        string                   `json:"reason,omitempty"` // rejection reason, human-readable
	CreatedAt     time.Time                `json:"created_at"`
	Risk          *risk.Verdict            `json:"risk,omitempty"`
	Evidence      []risk.EvidenceItem      `json:"evidence,omitempty"`
	SimilarImages []websearch.SimilarImage `json:"similar_images,omitempty"`
}

// BuildSinks constructs the configured sinks.
func BuildSinks(cfgs []config.ArchiveSinkConfig) ([]Sink, error) {
	sinks := make([]Sink, 0, len(cfgs))
	for i, sc := range cfgs {
		switch strings.ToLower(strings.TrimSpace(sc.Type)) {
		case "file_jsonl":
			s, err := NewFileSink(sc.Path)
			if err != nil {
				return nil, fmt.Errorf("archive sink %d: %w", i, err)
			}
			sinks = append(sinks, s)
		case "webhook":
			s, err := NewWebhookSink(sc.URL, sc.Headers, 0)
			if err != nil {
				return nil, fmt.Errorf("archive sink %d: %w", i, err)
			}
			sinks = append(sinks, s)
		default:
			return nil, fmt.Errorf("archive sink %d has unknown type %q", i, sc.Type)
		}
	}
	return sinks, nil
}
