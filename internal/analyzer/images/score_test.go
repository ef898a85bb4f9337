package images

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitewarden/site-auditor/internal/audit"
)

func TestEvaluateNoImagesIsPerfect(t *testing.T) {
	t.Parallel()

	result := Evaluate(nil)
	require.Equal(t, 100, result.Score)
	require.Zero(t, result.TotalImages)
	require.Empty(t, result.Issues)
}

func TestEvaluateAllOptimized(t *testing.T) {
	t.Parallel()

	result := Evaluate([]pageImage{
		{src: "https://e.com/a.webp", hasAlt: true, lazy: true, format: "webp", size: 40 * 1024},
		{src: "https://e.com/b.webp", hasAlt: true, lazy: true, format: "webp", size: 90 * 1024},
	})
	require.Equal(t, 100, result.Score)
	require.Equal(t, 2, result.ImagesWithAlt)
	require.Equal(t, 2, result.WebpImages)
	require.Equal(t, 2, result.LazyLoadedImages)
	require.Empty(t, result.Issues)
}

func TestEvaluateCountsAndIssues(t *testing.T) {
	t.Parallel()

	result := Evaluate([]pageImage{
		{src: "https://e.com/a.jpg", hasAlt: true, format: "jpeg", size: 600 * 1024},
		{src: "https://e.com/b.png", format: "png", size: 30 * 1024},
		{src: "https://e.com/bg.png", background: true, format: "png"},
		{src: "https://e.com/c.webp", hasAlt: true, lazy: true, format: "webp", probeErr: true},
	})

	require.Equal(t, 4, result.TotalImages)
	require.Equal(t, 2, result.ImagesWithAlt)
	require.Equal(t, 2, result.ImagesWithoutAlt)
	require.Equal(t, 1, result.WebpImages)
	require.Equal(t, 1, result.LazyLoadedImages)
	require.Equal(t, 1, result.LargeImages)
	require.Equal(t, 1, result.BackgroundImages)

	types := map[string]int{}
	severities := map[string]audit.IssueSeverity{}
	for _, issue := range result.Issues {
		types[issue.Type]++
		severities[issue.Type] = issue.Severity
	}
	// Background images without alt text are not flagged.
	require.Equal(t, 1, types["missing-alt"])
	require.Equal(t, 1, types["large-image"])
	require.Equal(t, 3, types["format-optimization"])
	require.Equal(t, 1, types["analysis-error"])
	require.Equal(t, audit.SeverityHigh, severities["missing-alt"])
	require.Equal(t, audit.SeverityMedium, severities["large-image"])
	require.Equal(t, audit.SeverityLow, severities["format-optimization"])

	// alt 2/4, webp 1/4, large 1/4, lazy 1/4:
	// 50*0.4 + 25*0.3 + 75*0.2 + 25*0.1 = 45
	require.Equal(t, 45, result.Score)
}

func TestEvaluateLargeImageMessageIncludesSize(t *testing.T) {
	t.Parallel()

	result := Evaluate([]pageImage{
		{src: "https://e.com/huge.png", hasAlt: true, format: "png", size: 3 * 1024 * 1024},
	})
	require.Equal(t, 1, result.LargeImages)

	var found bool
	for _, issue := range result.Issues {
		if issue.Type == "large-image" {
			require.Contains(t, issue.Message, "3.00MB")
			found = true
		}
	}
	require.True(t, found)
}

func TestFormatDetection(t *testing.T) {
	t.Parallel()

	require.Equal(t, "webp", formatFromPath("https://e.com/img/a.webp?v=2"))
	require.Equal(t, "jpeg", formatFromPath("https://e.com/a.JPG"))
	require.Equal(t, "", formatFromPath("https://e.com/no-extension"))
	require.Equal(t, "webp", formatFromContentType("image/webp"))
	require.Equal(t, "png", formatFromContentType("IMAGE/PNG; charset=binary"))
	require.Equal(t, "", formatFromContentType("text/html"))
}
