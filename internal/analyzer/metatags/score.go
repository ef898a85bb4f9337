package metatags

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/sitewarden/site-auditor/internal/audit"
)

// Weights applied to per-check scores when computing the category score.
// Language, charset and viewport checks are reported but unweighted.
const (
	weightTitle          = 0.25
	weightDescription    = 0.25
	weightOpenGraph      = 0.15
	weightTwitterCard    = 0.10
	weightCanonical      = 0.10
	weightRobots         = 0.05
	weightStructuredData = 0.05
	weightH1             = 0.05
)

// Evaluate scores a collected page inventory. It is deterministic and has no
// I/O, so a given inventory always yields the same result.
func Evaluate(meta pageMeta) audit.SeoResult {
	result := audit.SeoResult{
		Title:          evalTitle(meta.title),
		Description:    evalDescription(meta.description),
		OpenGraph:      evalOpenGraph(meta),
		TwitterCard:    evalTwitterCard(meta),
		Canonical:      evalCanonical(meta.canonical),
		Robots:         evalRobots(meta.robots),
		StructuredData: evalStructuredData(meta),
		H1:             evalH1(meta.h1s),
		Language:       evalAttr(meta.lang, "HTML lang attribute is missing"),
		Charset:        evalAttr(meta.charset, "Charset declaration is missing"),
		Viewport:       evalAttr(meta.viewport, "Viewport meta tag is missing"),
	}

	weighted := float64(result.Title.Score)*weightTitle +
		float64(result.Description.Score)*weightDescription +
		float64(result.OpenGraph.Score)*weightOpenGraph +
		float64(result.TwitterCard.Score)*weightTwitterCard +
		float64(result.Canonical.Score)*weightCanonical +
		float64(result.Robots.Score)*weightRobots +
		float64(result.StructuredData.Score)*weightStructuredData +
		float64(result.H1.Score)*weightH1
	result.Score = int(math.Round(weighted))
	return result
}

func evalTitle(title string) audit.TagCheck {
	length := len(title)

	score := 0
	if title != "" {
		score += 50
	}
	if length >= 30 && length <= 60 {
		score += 30
	}
	if length > 60 {
		score -= 20
	}
	if length < 30 {
		score -= 10
	}

	var issues []string
	if title == "" {
		issues = append(issues, "Title tag is missing")
	} else {
		if length < 30 {
			issues = append(issues, "Title is too short (less than 30 characters)")
		}
		if length > 60 {
			issues = append(issues, "Title is too long (more than 60 characters)")
		}
		lower := strings.ToLower(title)
		if strings.Contains(lower, "untitled") {
			issues = append(issues, `Title contains "Untitled"`)
		}
		if strings.Contains(lower, "homepage") {
			issues = append(issues, `Title is generic (contains "Homepage")`)
		}
	}

	return audit.TagCheck{
		Present: title != "",
		Content: title,
		Length:  length,
		Score:   clamp(score),
		Issues:  issues,
	}
}

func evalDescription(description string) audit.TagCheck {
	length := len(description)

	score := 0
	if description != "" {
		score += 50
	}
	if length >= 120 && length <= 160 {
		score += 30
	}
	if length > 160 {
		score -= 20
	}
	if length < 120 {
		score -= 10
	}

	var issues []string
	if description == "" {
		issues = append(issues, "Meta description is missing")
	} else {
		if length < 120 {
			issues = append(issues, "Description is too short (less than 120 characters)")
		}
		if length > 160 {
			issues = append(issues, "Description is too long (more than 160 characters)")
		}
		if strings.Contains(strings.ToLower(description), "lorem ipsum") {
			issues = append(issues, "Description contains placeholder text")
		}
	}

	return audit.TagCheck{
		Present: description != "",
		Content: description,
		Length:  length,
		Score:   clamp(score),
		Issues:  issues,
	}
}

func evalOpenGraph(meta pageMeta) audit.OpenGraphCheck {
	score := 0
	if meta.ogTitle != "" {
		score += 20
	}
	if meta.ogDescription != "" {
		score += 20
	}
	if meta.ogImage != "" {
		score += 20
	}
	if meta.ogURL != "" {
		score += 15
	}
	if meta.ogType != "" {
		score += 15
	}
	if meta.ogSiteName != "" {
		score += 10
	}

	var issues []string
	if meta.ogTitle == "" {
		issues = append(issues, "Open Graph title is missing")
	}
	if meta.ogDescription == "" {
		issues = append(issues, "Open Graph description is missing")
	}
	if meta.ogImage == "" {
		issues = append(issues, "Open Graph image is missing")
	}
	if meta.ogURL == "" {
		issues = append(issues, "Open Graph URL is missing")
	}
	if meta.ogType == "" {
		issues = append(issues, "Open Graph type is missing")
	}

	return audit.OpenGraphCheck{
		Title:       meta.ogTitle,
		Description: meta.ogDescription,
		Image:       meta.ogImage,
		URL:         meta.ogURL,
		Type:        meta.ogType,
		SiteName:    meta.ogSiteName,
		Score:       score,
		Issues:      issues,
	}
}

func evalTwitterCard(meta pageMeta) audit.TwitterCardCheck {
	score := 0
	if meta.twitterCard != "" {
		score += 25
	}
	if meta.twitterTitle != "" {
		score += 20
	}
	if meta.twitterDescription != "" {
		score += 20
	}
	if meta.twitterImage != "" {
		score += 20
	}
	if meta.twitterSite != "" {
		score += 10
	}
	if meta.twitterCreator != "" {
		score += 5
	}

	var issues []string
	if meta.twitterCard == "" {
		issues = append(issues, "Twitter Card type is missing")
	}
	if meta.twitterTitle == "" {
		issues = append(issues, "Twitter Card title is missing")
	}
	if meta.twitterDescription == "" {
		issues = append(issues, "Twitter Card description is missing")
	}
	if meta.twitterImage == "" {
		issues = append(issues, "Twitter Card image is missing")
	}

	return audit.TwitterCardCheck{
		Card:        meta.twitterCard,
		Title:       meta.twitterTitle,
		Description: meta.twitterDescription,
		Image:       meta.twitterImage,
		Site:        meta.twitterSite,
		Creator:     meta.twitterCreator,
		Score:       score,
		Issues:      issues,
	}
}

func evalCanonical(canonical string) audit.LinkCheck {
	check := audit.LinkCheck{
		Present: canonical != "",
		URL:     canonical,
	}
	if canonical != "" {
		check.Score = 100
	} else {
		check.Issues = []string{"Canonical URL is missing"}
	}
	return check
}

// A missing robots directive is not an error, crawlers default to
// index,follow, so the floor is 50 rather than 0.
func evalRobots(robots string) audit.TagCheck {
	check := audit.TagCheck{
		Present: robots != "",
		Content: robots,
		Length:  len(robots),
		Score:   50,
	}
	if robots != "" {
		check.Score = 100
	} else {
		check.Issues = []string{"Robots meta tag is missing"}
	}
	return check
}

func evalStructuredData(meta pageMeta) audit.StructuredDataCheck {
	var types []string
	valid := 0
	for _, raw := range meta.jsonLD {
		var block map[string]any
		if err := json.Unmarshal([]byte(raw), &block); err != nil {
			continue
		}
		valid++
		if t, ok := block["@type"].(string); ok && t != "" {
			types = append(types, t)
		}
	}

	check := audit.StructuredDataCheck{
		Present: valid > 0 || meta.microdata > 0 || meta.rdfa > 0,
		Types:   types,
		Count:   valid,
	}
	if valid > 0 {
		check.Score = 100
	} else {
		check.Issues = []string{"No structured data found"}
	}
	return check
}

func evalH1(h1s []string) audit.HeadingCheck {
	check := audit.HeadingCheck{
		Count: len(h1s),
		Tags:  h1s,
	}
	switch len(h1s) {
	case 0:
		check.Issues = []string{"No H1 tag found"}
	case 1:
		check.Score = 100
	default:
		check.Score = 50
		check.Issues = []string{"Multiple H1 tags found (should be only one)"}
	}
	return check
}

func evalAttr(value, missingIssue string) audit.AttrCheck {
	check := audit.AttrCheck{
		Present: value != "",
		Value:   value,
	}
	if value != "" {
		check.Score = 100
	} else {
		check.Issues = []string{missingIssue}
	}
	return check
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
