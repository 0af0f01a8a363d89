package risk

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/origuard-ai/origuard/internal/adapter"
	"github.com/origuard-ai/origuard/internal/config"
	"github.com/origuard-ai/origuard/internal/imagesim"
	"github.com/origuard-ai/origuard/internal/telemetry"
	"github.com/origuard-ai/origuard/internal/websearch"
)

// textQueryLimit caps how much of the submitted text is used as the web
// search query.
const textQueryLimit = 256

// MalformedInputError rejects a request before any adapter runs. It is the
// only per-request failure surfaced to the client; everything below it
// degrades instead of failing.
type MalformedInputError struct {
	Reason string
}

func (e *MalformedInputError) Error() string { return e.Reason }

// Aggregator runs the signal adapters for a request kind, normalizes their
// results, applies one policy snapshot, and produces a verdict with ranked
// evidence.
type Aggregator struct {
	textAdapters  []adapter.Adapter
	imageAdapters []adapter.Adapter
	collector     *websearch.Collector
	telemetry     *telemetry.Provider
}

func NewAggregator(textAdapters, imageAdapters []adapter.Adapter, collector *websearch.Collector, tel *telemetry.Provider) *Aggregator {
	return &Aggregator{
		textAdapters:  textAdapters,
		imageAdapters: imageAdapters,
		collector:     collector,
		telemetry:     tel,
	}
}

// Check evaluates one request under the given policy snapshot.
func (a *Aggregator) Check(ctx context.Context, snap Snapshot, req Request) (*Report, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	adapters := a.selectAdapters(req.Kind)
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters available for kind %q", req.Kind)
	}

	signals := a.runAll(ctx, adapters, adapter.Payload{
		Text:   req.Text,
		Prompt: req.Prompt,
		Image:  req.Image,
	})

	report := &Report{}

	// Web evidence is additive: it rides along as one more signal and only
	// influences the total when the policy assigns it a weight.
	if webSignal, similar := a.collectWebEvidence(ctx, req); webSignal != nil {
		signals = append(signals, *webSignal)
		report.SimilarImages = similar
	}

	var total float64
	for _, sig := range signals {
		total += sig.Score * snap.Weight(sig.Source)
		report.Evidence = append(report.Evidence, EvidenceItem{
			Source: sig.Source,
			Score:  sig.Score,
			Detail: sig.Raw,
		})
	}
	total = math.Round(total*10000) / 10000

	report.Risk = Verdict{
		Total:         total,
		Level:         snap.Decide(total),
		PolicyVersion: snap.Version,
	}
	return report, nil
}

func validateRequest(req Request) error {
	switch req.Kind {
	case KindText:
		if strings.TrimSpace(req.Text) == "" {
			return &MalformedInputError{Reason: "text is empty"}
		}
	case KindImage:
		if len(req.Image) == 0 {
			return &MalformedInputError{Reason: "image is empty"}
		}
		if _, err := imagesim.Decode(req.Image); err != nil {
			return &MalformedInputError{Reason: "image is not decodable: " + err.Error()}
		}
	default:
		return &MalformedInputError{Reason: fmt.Sprintf("unknown request kind %q", req.Kind)}
	}
	return nil
}

func (a *Aggregator) selectAdapters(kind Kind) []adapter.Adapter {
	switch kind {
	case KindText:
		return a.textAdapters
	case KindImage:
		return a.imageAdapters
	default:
		return nil
	}
}

// runAll executes the adapters concurrently. Results keep adapter order so
// evidence is deterministic. A failing adapter contributes a zero score with
// the failure reason recorded as evidence; it never aborts the aggregation.
func (a *Aggregator) runAll(ctx context.Context, adapters []adapter.Adapter, payload adapter.Payload) []SignalResult {
	results := make([]SignalResult, len(adapters))

	var wg sync.WaitGroup
	for i, ad := range adapters {
		wg.Add(1)
		go func(i int, ad adapter.Adapter) {
			defer wg.Done()
			start := time.Now()
			raw, err := ad.Run(ctx, payload)
			elapsed := time.Since(start)

			if err != nil {
				log.Printf("risk: adapter %s failed, scoring 0: %v", ad.Name(), err)
				a.telemetry.RecordAdapter(ad.Name(), float64(elapsed.Milliseconds()), true)
				results[i] = SignalResult{
					Source: ad.Name(),
					Raw:    adapter.Raw{"error": err.Error()},
					Score:  0,
				}
				return
			}

			a.telemetry.RecordAdapter(ad.Name(), float64(elapsed.Milliseconds()), false)
			results[i] = SignalResult{
				Source: ad.Name(),
				Raw:    raw,
				Score:  ad.Normalize(raw),
			}
		}(i, ad)
	}
	wg.Wait()

	return results
}

// collectWebEvidence runs the collector for the request kind. A missing or
// unreachable backend yields no signal at all rather than a request failure.
func (a *Aggregator) collectWebEvidence(ctx context.Context, req Request) (*SignalResult, []websearch.SimilarImage) {
	switch req.Kind {
	case KindImage:
		if !a.collector.ImageEnabled() {
			return nil, nil
		}
		coll, err := a.collector.CollectImage(ctx, req.Image, req.ImageURL)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, nil
			}
			log.Printf("risk: image web evidence unavailable: %v", err)
			return &SignalResult{
				Source: config.SourceWebSearch,
				Raw:    adapter.Raw{"error": err.Error()},
				Score:  0,
			}, nil
		}
		return &SignalResult{
			Source: config.SourceWebSearch,
			Raw: adapter.Raw{
				"max_score": coll.MaxScore,
				"pages":     coll.Pages,
				"matches":   len(coll.SimilarImages),
			},
			Score: clamp01(coll.MaxScore / 100),
		}, coll.SimilarImages

	case KindText:
		if !a.collector.TextEnabled() {
			return nil, nil
		}
		coll, err := a.collector.CollectText(ctx, truncate(req.Text, textQueryLimit))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, nil
			}
			log.Printf("risk: text web evidence unavailable: %v", err)
			return &SignalResult{
				Source: config.SourceWebSearch,
				Raw:    adapter.Raw{"error": err.Error()},
				Score:  0,
			}, nil
		}
		return &SignalResult{
			Source: config.SourceWebSearch,
			Raw: adapter.Raw{
				"max_relevance": coll.MaxRelevance,
				"results":       coll.Results,
			},
			Score: clamp01(coll.MaxRelevance),
		}, nil
	}
	return nil, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
