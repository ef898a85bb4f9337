package metatags

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvalTitleScoring(t *testing.T) {
	t.Parallel()

	missing := evalTitle("")
	require.False(t, missing.Present)
	require.Zero(t, missing.Score)
	require.Contains(t, missing.Issues, "Title tag is missing")

	short := evalTitle("Acme")
	require.Equal(t, 40, short.Score)
	require.Contains(t, short.Issues, "Title is too short (less than 30 characters)")

	good := evalTitle(strings.Repeat("a", 45))
	require.Equal(t, 80, good.Score)
	require.Empty(t, good.Issues)

	long := evalTitle(strings.Repeat("a", 70))
	require.Equal(t, 30, long.Score)
	require.Contains(t, long.Issues, "Title is too long (more than 60 characters)")

	generic := evalTitle(strings.Repeat("x", 20) + " Homepage")
	require.Contains(t, generic.Issues, `Title is generic (contains "Homepage")`)
}

func TestEvalDescriptionScoring(t *testing.T) {
	t.Parallel()

	good := evalDescription(strings.Repeat("d", 140))
	require.Equal(t, 80, good.Score)
	require.Empty(t, good.Issues)

	placeholder := evalDescription("Lorem ipsum dolor sit amet " + strings.Repeat("x", 100))
	require.Contains(t, placeholder.Issues, "Description contains placeholder text")

	missing := evalDescription("")
	require.Zero(t, missing.Score)
	require.Contains(t, missing.Issues, "Meta description is missing")
}

func TestEvalOpenGraphScoring(t *testing.T) {
	t.Parallel()

	full := evalOpenGraph(pageMeta{
		ogTitle:       "t",
		ogDescription: "d",
		ogImage:       "i",
		ogURL:         "u",
		ogType:        "website",
		ogSiteName:    "s",
	})
	require.Equal(t, 100, full.Score)
	require.Empty(t, full.Issues)

	partial := evalOpenGraph(pageMeta{ogTitle: "t", ogImage: "i"})
	require.Equal(t, 40, partial.Score)
	require.Contains(t, partial.Issues, "Open Graph description is missing")
	require.NotContains(t, partial.Issues, "Open Graph title is missing")
}

func TestEvalTwitterCardScoring(t *testing.T) {
	t.Parallel()

	full := evalTwitterCard(pageMeta{
		twitterCard:        "summary",
		twitterTitle:       "t",
		twitterDescription: "d",
		twitterImage:       "i",
		twitterSite:        "@acme",
		twitterCreator:     "@me",
	})
	require.Equal(t, 100, full.Score)

	cardOnly := evalTwitterCard(pageMeta{twitterCard: "summary"})
	require.Equal(t, 25, cardOnly.Score)
	require.Contains(t, cardOnly.Issues, "Twitter Card title is missing")
}

func TestEvalRobotsDefaultsToHalfScore(t *testing.T) {
	t.Parallel()

	require.Equal(t, 50, evalRobots("").Score)
	require.Equal(t, 100, evalRobots("index,follow").Score)
	require.Empty(t, evalRobots("noindex").Issues)
}

func TestEvalStructuredDataSkipsInvalidJSON(t *testing.T) {
	t.Parallel()

	check := evalStructuredData(pageMeta{
		jsonLD: []string{
			`{"@context":"https://schema.org","@type":"Organization"}`,
			`{not json`,
			`{"@type":"WebSite"}`,
		},
	})
	require.True(t, check.Present)
	require.Equal(t, 2, check.Count)
	require.Equal(t, []string{"Organization", "WebSite"}, check.Types)
	require.Equal(t, 100, check.Score)

	microdataOnly := evalStructuredData(pageMeta{microdata: 3})
	require.True(t, microdataOnly.Present)
	require.Zero(t, microdataOnly.Count)
	require.Zero(t, microdataOnly.Score)
}

func TestEvalH1Counts(t *testing.T) {
	t.Parallel()

	require.Zero(t, evalH1(nil).Score)
	require.Equal(t, 100, evalH1([]string{"Welcome"}).Score)

	multiple := evalH1([]string{"a", "b"})
	require.Equal(t, 50, multiple.Score)
	require.Contains(t, multiple.Issues, "Multiple H1 tags found (should be only one)")
}

func TestEvaluatePerfectPageScoresFull(t *testing.T) {
	t.Parallel()

	meta := pageMeta{
		title:              strings.Repeat("t", 45),
		description:        strings.Repeat("d", 140),
		ogTitle:            "t",
		ogDescription:      "d",
		ogImage:            "i",
		ogURL:              "u",
		ogType:             "website",
		ogSiteName:         "s",
		twitterCard:        "summary",
		twitterTitle:       "t",
		twitterDescription: "d",
		twitterImage:       "i",
		twitterSite:        "@acme",
		twitterCreator:     "@me",
		canonical:          "https://example.com/",
		robots:             "index,follow",
		jsonLD:             []string{`{"@type":"WebSite"}`},
		h1s:                []string{"Welcome"},
		lang:               "en",
		charset:            "utf-8",
		viewport:           "width=device-width",
	}
	result := Evaluate(meta)

	// Title and description cap at 80 without keyword tuning, so the
	// weighted total lands at 90 for an otherwise perfect page.
	require.Equal(t, 90, result.Score)
	require.True(t, result.Language.Present)
	require.True(t, result.Charset.Present)
	require.True(t, result.Viewport.Present)
}

func TestEvaluateEmptyPage(t *testing.T) {
	t.Parallel()

	result := Evaluate(pageMeta{})

	// Only the robots floor contributes: 50 * 0.05 rounds to 3.
	require.Equal(t, 3, result.Score)
	require.False(t, result.Title.Present)
	require.False(t, result.Canonical.Present)
}
