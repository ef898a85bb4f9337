package audit

import "fmt"

// Recommend inspects the settled category results and emits a prioritized
// list of action items. Rules are independent, threshold-driven, and
// evaluated in a fixed category order (performance, meta-tags, images) so the
// output is deterministic. No rule fires for an absent category. The list is
// intentionally not deduplicated or re-ranked beyond rule order.
func Recommend(results Results) []Recommendation {
	recs := []Recommendation{}
	recs = append(recs, performanceRecommendations(results.Performance)...)
	recs = append(recs, seoRecommendations(results.Seo)...)
	recs = append(recs, imageRecommendations(results.Images)...)
	return recs
}

func performanceRecommendations(perf *PerformanceResult) []Recommendation {
	if perf == nil {
		return nil
	}
	var recs []Recommendation
	if perf.Score < 80 {
		recs = append(recs, Recommendation{
			Category:    CategoryPerformance,
			Priority:    PriorityHigh,
			Title:       "Improve Page Performance",
			Description: "Your page performance score is below 80. Consider optimizing images, reducing JavaScript, and improving server response times.",
			Impact:      "High impact on user experience and SEO rankings",
			Effort:      "Medium effort - requires development work",
		})
	}
	if perf.LargestContentfulPaintMs > 2500 {
		recs = append(recs, Recommendation{
			Category:    CategoryPerformance,
			Priority:    PriorityMedium,
			Title:       "Reduce Largest Contentful Paint",
			Description: "The largest content element takes more than 2.5 seconds to render. Optimize the hero image or critical resources.",
			Impact:      "Medium impact on perceived load speed",
			Effort:      "Medium effort - requires development work",
		})
	}
	return recs
}

func seoRecommendations(seo *SeoResult) []Recommendation {
	if seo == nil {
		return nil
	}
	var recs []Recommendation
	if seo.Score < 80 {
		recs = append(recs, Recommendation{
			Category:    CategoryMetaTags,
			Priority:    PriorityMedium,
			Title:       "Optimize Meta Tags",
			Description: "Improve your meta tags for better SEO and social media sharing.",
			Impact:      "Medium impact on search rankings and click-through rates",
			Effort:      "Low effort - quick win",
		})
	}
	if seo.Title.Score < 80 {
		recs = append(recs, Recommendation{
			Category:    CategoryMetaTags,
			Priority:    PriorityHigh,
			Title:       "Optimize Title Tag",
			Description: "Improve your title tag for better SEO",
			Impact:      "High impact on search rankings",
			Effort:      "Low effort - quick win",
		})
	}
	if seo.Description.Score < 80 {
		recs = append(recs, Recommendation{
			Category:    CategoryMetaTags,
			Priority:    PriorityHigh,
			Title:       "Optimize Meta Description",
			Description: "Improve your meta description for better click-through rates",
			Impact:      "High impact on click-through rates",
			Effort:      "Low effort - quick win",
		})
	}
	if seo.OpenGraph.Score < 60 {
		recs = append(recs, Recommendation{
			Category:    CategoryMetaTags,
			Priority:    PriorityMedium,
			Title:       "Add Open Graph Tags",
			Description: "Add Open Graph tags for better social media sharing",
			Impact:      "Medium impact on social sharing",
			Effort:      "Low effort - quick win",
		})
	}
	return recs
}

func imageRecommendations(images *ImageResult) []Recommendation {
	if images == nil {
		return nil
	}
	var recs []Recommendation
	if images.Score < 80 {
		recs = append(recs, Recommendation{
			Category:    CategoryImages,
			Priority:    PriorityMedium,
			Title:       "Optimize Images",
			Description: "Improve your image optimization for better page load speeds.",
			Impact:      "Medium impact on page load speed",
			Effort:      "Medium effort - requires image optimization",
		})
	}
	if images.ImagesWithoutAlt > 0 {
		recs = append(recs, Recommendation{
			Category:    CategoryImages,
			Priority:    PriorityHigh,
			Title:       "Add Alt Text to Images",
			Description: fmt.Sprintf("%d images are missing alt text", images.ImagesWithoutAlt),
			Impact:      "High impact on accessibility and SEO",
			Effort:      "Low effort - quick win",
		})
	}
	if images.TotalImages > 0 && float64(images.WebpImages) < float64(images.TotalImages)*0.5 {
		recs = append(recs, Recommendation{
			Category:    CategoryImages,
			Priority:    PriorityMedium,
			Title:       "Convert Images to WebP",
			Description: "Consider converting images to WebP format for better compression",
			Impact:      "Medium impact on page load speed",
			Effort:      "Medium effort - requires development work",
		})
	}
	if images.LargeImages > 0 {
		recs = append(recs, Recommendation{
			Category:    CategoryImages,
			Priority:    PriorityHigh,
			Title:       "Optimize Large Images",
			Description: fmt.Sprintf("%d images are larger than 500KB", images.LargeImages),
			Impact:      "High impact on page load speed",
			Effort:      "Medium effort - requires image optimization",
		})
	}
	if images.TotalImages > 0 && float64(images.LazyLoadedImages) < float64(images.TotalImages)*0.8 {
		recs = append(recs, Recommendation{
			Category:    CategoryImages,
			Priority:    PriorityMedium,
			Title:       "Implement Lazy Loading",
			Description: "Add lazy loading to images below the fold",
			Impact:      "Medium impact on initial page load speed",
			Effort:      "Low effort - quick win",
		})
	}
	return recs
}
