package audit

import "math"

// Category weights for the overall score. Performance dominates because it
// has the largest SEO impact; the remaining weight is split evenly between
// markup quality and image hygiene.
const (
	WeightPerformance = 0.4
	WeightSeo         = 0.3
	WeightImages      = 0.3
)

// OverallScore reduces whatever category results are present into one 0-100
// score. Weights are renormalized over the present categories so a missing
// (failed) category is excluded rather than penalized. With no categories
// present the score is 0.
func OverallScore(results Results) int {
	var total, weight float64

	if results.Performance != nil {
		total += float64(results.Performance.Score) * WeightPerformance
		weight += WeightPerformance
	}
	if results.Seo != nil {
		total += float64(results.Seo.Score) * WeightSeo
		weight += WeightSeo
	}
	if results.Images != nil {
		total += float64(results.Images.Score) * WeightImages
		weight += WeightImages
	}

	if weight == 0 {
		return 0
	}
	return int(math.Round(total / weight))
}
