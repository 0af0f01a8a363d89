package adapter

import (
	"context"
	"errors"
	"strings"
)

// Embedding produces a distance-like score for an image: the higher the
// value, the higher the assumed risk.
//
// When a local ONNX classifier is loaded the distance comes from the model.
// Without a model the adapter falls back to fixed bands, raising the score
// when a generation prompt accompanies the image (prompted generation is
// treated as higher risk).
type Embedding struct {
	model            *SyntheticModel
	baseDistance     float64
	promptedDistance float64
}

func NewEmbedding(model *SyntheticModel, baseDistance, promptedDistance float64) *Embedding {
	if baseDistance <= 0 {
		baseDistance = 0.30
	}
	if promptedDistance <= 0 {
		promptedDistance = 0.45
	}
	return &Embedding{
		model:            model,
		baseDistance:     baseDistance,
		promptedDistance: promptedDistance,
	}
}

func (e *Embedding) Name() string { return "embedding" }

func (e *Embedding) Run(ctx context.Context, payload Payload) (Raw, error) {
	if len(payload.Image) == 0 {
		return nil, errors.New("embedding adapter requires image bytes")
	}

	prompted := strings.TrimSpace(payload.Prompt) != ""

	if e.model != nil {
		score, err := e.model.Score(ctx, payload.Image)
		if err == nil {
			return Raw{"distance": float64(score), "model": e.model.Version(), "prompted": prompted}, nil
		}
		// Model failure degrades to the heuristic band rather than losing
		// the signal entirely.
		distance := e.band(prompted)
		return Raw{"distance": distance, "model": "heuristic", "prompted": prompted, "model_error": err.Error()}, nil
	}

	return Raw{"distance": e.band(prompted), "model": "heuristic", "prompted": prompted}, nil
}

func (e *Embedding) band(prompted bool) float64 {
	if prompted {
		return e.promptedDistance
	}
	return e.baseDistance
}

func (e *Embedding) Normalize(raw Raw) float64 {
	return clamp01(rawFloat(raw, "distance"))
}
