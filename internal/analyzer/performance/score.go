package performance

import (
	"math"

	"github.com/sitewarden/site-auditor/internal/audit"
)

// Metric thresholds in milliseconds (CLS is unitless). A value at or below
// the good bound scores 100, at or above the poor bound scores 0, linear in
// between.
const (
	fcpGoodMs = 1800
	fcpPoorMs = 3000

	lcpGoodMs = 2500
	lcpPoorMs = 4000

	clsGood = 0.1
	clsPoor = 0.25

	ttiGoodMs = 3800
	ttiPoorMs = 7300

	siGoodMs = 3400
	siPoorMs = 5800

	tbtGoodMs = 200
	tbtPoorMs = 600
)

// Weights applied to metric scores. Time to interactive is reported but
// not weighted.
const (
	weightFCP = 0.10
	weightSI  = 0.10
	weightLCP = 0.25
	weightTBT = 0.30
	weightCLS = 0.25
)

// longTaskBudgetMs is the per-task allowance before a long task starts
// contributing to total blocking time.
const longTaskBudgetMs = 50

// Score converts a raw timing snapshot into the reported performance result.
// It is deterministic and has no I/O.
func Score(t pageTimings) audit.PerformanceResult {
	tbt := totalBlockingTime(t.LongTaskDurations)
	si := speedIndex(t)
	tti := t.DomInteractive

	weighted := metricScore(t.FirstContentfulPaint, fcpGoodMs, fcpPoorMs)*weightFCP +
		metricScore(si, siGoodMs, siPoorMs)*weightSI +
		metricScore(t.LargestContentfulPaint, lcpGoodMs, lcpPoorMs)*weightLCP +
		metricScore(tbt, tbtGoodMs, tbtPoorMs)*weightTBT +
		metricScore(t.CumulativeLayoutShift, clsGood, clsPoor)*weightCLS

	return audit.PerformanceResult{
		Score:                    int(math.Round(weighted)),
		FirstContentfulPaintMs:   int64(math.Round(t.FirstContentfulPaint)),
		LargestContentfulPaintMs: int64(math.Round(t.LargestContentfulPaint)),
		CumulativeLayoutShift:    math.Round(t.CumulativeLayoutShift*1000) / 1000,
		TimeToInteractiveMs:      int64(math.Round(tti)),
		SpeedIndexMs:             int64(math.Round(si)),
		TotalBlockingTimeMs:      int64(math.Round(tbt)),
	}
}

func metricScore(value, good, poor float64) float64 {
	if value <= good {
		return 100
	}
	if value >= poor {
		return 0
	}
	return 100 * (poor - value) / (poor - good)
}

func totalBlockingTime(longTasks []float64) float64 {
	var tbt float64
	for _, d := range longTasks {
		if d > longTaskBudgetMs {
			tbt += d - longTaskBudgetMs
		}
	}
	return tbt
}

// speedIndex approximates visual completeness from the paint milestones. A
// page whose contentful paints land early indexes well even when full load
// trails behind.
func speedIndex(t pageTimings) float64 {
	if t.FirstContentfulPaint == 0 && t.LargestContentfulPaint == 0 {
		return t.DomContentLoaded
	}
	if t.LargestContentfulPaint == 0 {
		return t.FirstContentfulPaint
	}
	return (t.FirstContentfulPaint + t.LargestContentfulPaint) / 2
}
