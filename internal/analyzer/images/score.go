package images

import (
	"fmt"
	"math"

	"github.com/sitewarden/site-auditor/internal/audit"
)

// largeImageBytes is the payload size above which an image is flagged.
const largeImageBytes = 500 * 1024

// Weights applied to the coverage ratios when computing the category score.
const (
	weightAltText    = 0.4
	weightWebpFormat = 0.3
	weightSize       = 0.2
	weightLazyLoad   = 0.1
)

// Evaluate scores a collected image inventory. A page with no images scores
// a perfect 100.
func Evaluate(imgs []pageImage) audit.ImageResult {
	result := audit.ImageResult{TotalImages: len(imgs)}

	for _, img := range imgs {
		if img.hasAlt {
			result.ImagesWithAlt++
		} else {
			result.ImagesWithoutAlt++
			if !img.background {
				result.Issues = append(result.Issues, audit.ImageIssue{
					Type:     "missing-alt",
					Message:  fmt.Sprintf("Image missing alt text: %s", img.src),
					Severity: audit.SeverityHigh,
				})
			}
		}
		if img.lazy {
			result.LazyLoadedImages++
		}
		if img.background {
			result.BackgroundImages++
		}
		if img.format == "webp" {
			result.WebpImages++
		}
		if img.size > largeImageBytes {
			result.LargeImages++
			result.Issues = append(result.Issues, audit.ImageIssue{
				Type:     "large-image",
				Message:  fmt.Sprintf("Large image detected: %s (%s)", img.src, formatSize(img.size)),
				Severity: audit.SeverityMedium,
			})
		}
		if img.format == "jpeg" || img.format == "png" {
			result.Issues = append(result.Issues, audit.ImageIssue{
				Type:     "format-optimization",
				Message:  fmt.Sprintf("Consider converting to WebP: %s", img.src),
				Severity: audit.SeverityLow,
			})
		}
		if img.probeErr {
			result.Issues = append(result.Issues, audit.ImageIssue{
				Type:     "analysis-error",
				Message:  fmt.Sprintf("Failed to analyze image: %s", img.src),
				Severity: audit.SeverityLow,
			})
		}
	}

	result.Score = score(result)
	return result
}

func score(result audit.ImageResult) int {
	if result.TotalImages == 0 {
		return 100
	}
	total := float64(result.TotalImages)

	altScore := float64(result.ImagesWithAlt) / total * 100
	formatScore := float64(result.WebpImages) / total * 100
	sizeScore := math.Max(0, 100-float64(result.LargeImages)/total*100)
	lazyScore := float64(result.LazyLoadedImages) / total * 100

	weighted := altScore*weightAltText +
		formatScore*weightWebpFormat +
		sizeScore*weightSize +
		lazyScore*weightLazyLoad
	return int(math.Round(weighted))
}

func formatSize(bytes int64) string {
	if bytes > 1024*1024 {
		return fmt.Sprintf("%.2fMB", float64(bytes)/(1024*1024))
	}
	return fmt.Sprintf("%dKB", bytes/1024)
}
