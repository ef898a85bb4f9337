package performance

import (
	"fmt"

	"github.com/sitewarden/site-auditor/internal/audit"
)

// pageAccessibility is the raw defect census taken from the rendered DOM.
type pageAccessibility struct {
	MissingAlt      int  `json:"missingAlt"`
	UnlabeledInputs int  `json:"unlabeledInputs"`
	EmptyLinks      int  `json:"emptyLinks"`
	MissingLang     bool `json:"missingLang"`
	MissingMain     bool `json:"missingMain"`
}

// Per-defect deductions from a perfect score. Counted defects deduct per
// instance up to their cap.
const (
	altDeduction    = 5
	altDeductionCap = 30
	inputDeduction  = 5
	inputCap        = 20
	linkDeduction   = 3
	linkCap         = 15
	langDeduction   = 15
	mainDeduction   = 10
)

// EvaluateAccessibility scores a defect census. It is deterministic and has
// no I/O.
func EvaluateAccessibility(census pageAccessibility) audit.AccessibilityResult {
	score := 100
	var issues []string

	if census.MissingAlt > 0 {
		score -= capped(census.MissingAlt*altDeduction, altDeductionCap)
		issues = append(issues, fmt.Sprintf("%d images are missing alt attributes", census.MissingAlt))
	}
	if census.UnlabeledInputs > 0 {
		score -= capped(census.UnlabeledInputs*inputDeduction, inputCap)
		issues = append(issues, fmt.Sprintf("%d form controls have no accessible label", census.UnlabeledInputs))
	}
	if census.EmptyLinks > 0 {
		score -= capped(census.EmptyLinks*linkDeduction, linkCap)
		issues = append(issues, fmt.Sprintf("%d links have no discernible text", census.EmptyLinks))
	}
	if census.MissingLang {
		score -= langDeduction
		issues = append(issues, "The html element has no lang attribute")
	}
	if census.MissingMain {
		score -= mainDeduction
		issues = append(issues, "No main landmark found")
	}

	if score < 0 {
		score = 0
	}
	return audit.AccessibilityResult{
		Score:  score,
		Issues: issues,
	}
}

func capped(value, limit int) int {
	if value > limit {
		return limit
	}
	return value
}
