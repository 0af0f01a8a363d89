package risk

import (
	"testing"

	"github.com/origuard-ai/origuard/internal/config"
)

func TestDecideTiers(t *testing.T) {
	snap := Snapshot{
		Version:         "v1",
		BlockThreshold:  0.65,
		ReviewThreshold: 0.35,
	}

	cases := []struct {
		total float64
		want  Level
	}{
		{0.0, LevelAutoPass},
		{0.34, LevelAutoPass},
		{0.35, LevelManualReview},
		{0.64, LevelManualReview},
		{0.65, LevelAutoBlock},
		{1.0, LevelAutoBlock},
	}
	for _, tc := range cases {
		if got := snap.Decide(tc.total); got != tc.want {
			t.Errorf("Decide(%v) = %s, want %s", tc.total, got, tc.want)
		}
	}
}

func TestWeightDefaultsToZero(t *testing.T) {
	snap := Snapshot{Weights: map[string]float64{"plagiarism": 0.4}}

	if got := snap.Weight("plagiarism"); got != 0.4 {
		t.Fatalf("configured weight = %v, want 0.4", got)
	}
	if got := snap.Weight("web_search"); got != 0 {
		t.Fatalf("unconfigured weight = %v, want 0", got)
	}
}

func TestSnapshotFromConfigClonesWeights(t *testing.T) {
	cfg := config.PolicyConfig{
		Version:         "v1",
		Weights:         map[string]float64{"plagiarism": 0.4, "moderation": 0.1},
		BlockThreshold:  0.65,
		ReviewThreshold: 0.35,
	}
	snap := SnapshotFromConfig(cfg)

	cfg.Weights["plagiarism"] = 99

	if got := snap.Weight("plagiarism"); got != 0.4 {
		t.Fatalf("snapshot weight changed after config mutation: %v", got)
	}
	if snap.Version != "v1" || snap.BlockThreshold != 0.65 || snap.ReviewThreshold != 0.35 {
		t.Fatalf("snapshot fields not copied: %+v", snap)
	}
}
