package adapter

import "context"

// Payload carries the request content an adapter works on. Absent fields are
// zero values; adapters treat a missing prompt or text as empty rather than
// failing.
type Payload struct {
	Text   string
	Prompt string
	Image  []byte
}

// Raw is the source-specific result of one adapter run. It is attached to the
// evidence shown to reviewers, so adapters should keep it JSON-friendly.
type Raw map[string]any

// Adapter produces one independent risk signal.
//
// Run may perform network I/O or local computation. Normalize is a pure
// function over the raw result: it reads one well-known key and always
// returns a score in [0,1], coercing missing or invalid values to 0.
type Adapter interface {
	Name() string
	Run(ctx context.Context, payload Payload) (Raw, error)
	Normalize(raw Raw) float64
}

// rawFloat extracts a numeric value from a raw map, returning 0 when the key
// is missing or not a number.
func rawFloat(raw Raw, key string) float64 {
	if raw == nil {
		return 0
	}
	switch v := raw[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
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
