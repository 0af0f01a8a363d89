// Package imagesim fuses multiple perceptual hashes with a structural
// similarity term into a single 0-100 image similarity score. A single hash
// is brittle to cropping and recoloring; combining several cheap global
// descriptors is robust enough for candidate ranking without a trained model.
package imagesim

import (
	"bytes"
	"image"
	"math"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const hashBits = 64

// Term weights for the fused score.
const (
	weightPerceptual = 2.0
	weightDifference = 1.5
	weightAverage    = 1.5
	weightStructural = 2.0
)

// Detail records how a score was produced. Computed distinguishes a real
// low-similarity result from a missing signal (undecodable input); the two
// must never be conflated in logs even though both score 0.
type Detail struct {
	Computed bool               `json:"computed"`
	Terms    map[string]float64 `json:"terms,omitempty"`
	Reason   string             `json:"reason,omitempty"`
}

// Decode parses image bytes using all registered formats
// (jpeg, png, gif, webp, bmp, tiff).
func Decode(b []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(b))
	return img, err
}

// ScorePair computes the fused similarity of two images in [0,100], rounded
// to two decimals. Undecodable input yields 0.0 with Detail.Computed false
// instead of an error; a missing signal must not abort candidate collection.
func ScorePair(original, candidate []byte) (float64, Detail) {
	a, err := Decode(original)
	if err != nil {
		return 0, Detail{Computed: false, Reason: "original undecodable: " + err.Error()}
	}
	b, err := Decode(candidate)
	if err != nil {
		return 0, Detail{Computed: false, Reason: "candidate undecodable: " + err.Error()}
	}

	terms := map[string]float64{}
	var sum, weightSum float64

	add := func(name string, sim, weight float64) {
		terms[name] = sim
		sum += sim * weight
		weightSum += weight
	}

	if sim, ok := hashSimilarity(goimagehash.PerceptionHash, a, b); ok {
		add("phash", sim, weightPerceptual)
	}
	if sim, ok := hashSimilarity(goimagehash.DifferenceHash, a, b); ok {
		add("dhash", sim, weightDifference)
	}
	if sim, ok := hashSimilarity(goimagehash.AverageHash, a, b); ok {
		add("ahash", sim, weightAverage)
	}
	add("ssim", structuralSimilarity(a, b), weightStructural)

	if weightSum == 0 {
		return 0, Detail{Computed: false, Reason: "no similarity terms computable"}
	}

	score := sum / weightSum * 100
	return math.Round(score*100) / 100, Detail{Computed: true, Terms: terms}
}

// hashSimilarity maps the Hamming distance of one 64-bit hash pair onto
// [0,1], where 1 is identical.
func hashSimilarity(hashFn func(image.Image) (*goimagehash.ImageHash, error), a, b image.Image) (float64, bool) {
	ha, err := hashFn(a)
	if err != nil {
		return 0, false
	}
	hb, err := hashFn(b)
	if err != nil {
		return 0, false
	}
	dist, err := ha.Distance(hb)
	if err != nil {
		return 0, false
	}
	sim := 1.0 - float64(dist)/hashBits
	if sim < 0 {
		sim = 0
	}
	if sim > 1 {
		sim = 1
	}
	return sim, true
}
