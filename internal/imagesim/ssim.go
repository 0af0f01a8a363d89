package imagesim

import (
	"image"

	"golang.org/x/image/draw"
)

const (
	ssimSize   = 256 // both images are resized to this square before comparison
	ssimWindow = 8
)

// Stabilizing constants from the SSIM paper, for 8-bit dynamic range.
var (
	ssimC1 = (0.01 * 255) * (0.01 * 255)
	ssimC2 = (0.03 * 255) * (0.03 * 255)
)

// structuralSimilarity computes the mean SSIM index of two images over
// non-overlapping 8x8 windows of their 256x256 grayscale renderings,
// clamped to [0,1].
func structuralSimilarity(a, b image.Image) float64 {
	ga := toGray256(a)
	gb := toGray256(b)

	var total float64
	var windows int

	for wy := 0; wy+ssimWindow <= ssimSize; wy += ssimWindow {
		for wx := 0; wx+ssimWindow <= ssimSize; wx += ssimWindow {
			total += windowSSIM(ga, gb, wx, wy)
			windows++
		}
	}

	ssim := total / float64(windows)
	if ssim < 0 {
		return 0
	}
	if ssim > 1 {
		return 1
	}
	return ssim
}

func windowSSIM(a, b *image.Gray, wx, wy int) float64 {
	const n = float64(ssimWindow * ssimWindow)

	var sumA, sumB float64
	for y := wy; y < wy+ssimWindow; y++ {
		for x := wx; x < wx+ssimWindow; x++ {
			sumA += float64(a.GrayAt(x, y).Y)
			sumB += float64(b.GrayAt(x, y).Y)
		}
	}
	muA := sumA / n
	muB := sumB / n

	var varA, varB, cov float64
	for y := wy; y < wy+ssimWindow; y++ {
		for x := wx; x < wx+ssimWindow; x++ {
			da := float64(a.GrayAt(x, y).Y) - muA
			db := float64(b.GrayAt(x, y).Y) - muB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	varA /= n - 1
	varB /= n - 1
	cov /= n - 1

	num := (2*muA*muB + ssimC1) * (2*cov + ssimC2)
	den := (muA*muA + muB*muB + ssimC1) * (varA + varB + ssimC2)
	return num / den
}

func toGray256(src image.Image) *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, ssimSize, ssimSize))
	draw.ApproxBiLinear.Scale(gray, gray.Bounds(), src, src.Bounds(), draw.Src, nil)
	return gray
}
