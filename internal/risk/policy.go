package risk

import "github.com/origuard-ai/origuard/internal/config"

// Level is the decision tier derived from the weighted total.
type Level string

const (
	LevelAutoPass     Level = "auto_pass"
	LevelManualReview Level = "manual_review"
	LevelAutoBlock    Level = "auto_block"
)

// Snapshot is one immutable policy version: signal weights and decision
// thresholds pinned together. A verdict is reproducible from
// (snapshot version, inputs) alone, and two concurrent requests may safely
// evaluate under different snapshots during a policy rollover.
type Snapshot struct {
	Version         string
	Weights         map[string]float64
	BlockThreshold  float64
	ReviewThreshold float64
}

// SnapshotFromConfig copies the policy section into a snapshot. The weight
// map is cloned so a config reload can never mutate an in-flight evaluation.
func SnapshotFromConfig(cfg config.PolicyConfig) Snapshot {
	weights := make(map[string]float64, len(cfg.Weights))
	for source, w := range cfg.Weights {
		weights[source] = w
	}
	return Snapshot{
		Version:         cfg.Version,
		Weights:         weights,
		BlockThreshold:  cfg.BlockThreshold,
		ReviewThreshold: cfg.ReviewThreshold,
	}
}

// Weight returns the configured weight for a source. Sources with no
// configured weight contribute zero; that is an explicit default, not an
// error.
func (s Snapshot) Weight(source string) float64 {
	return s.Weights[source]
}

// Decide maps a weighted total onto its decision tier.
func (s Snapshot) Decide(total float64) Level {
	if total >= s.BlockThreshold {
		return LevelAutoBlock
	}
	if total >= s.ReviewThreshold {
		return LevelManualReview
	}
	return LevelAutoPass
}
