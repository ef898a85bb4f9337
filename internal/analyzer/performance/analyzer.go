// Package performance measures page load characteristics with headless
// Chrome and scores them against web-vitals thresholds. The same rendered
// pass feeds a heuristic accessibility check.
package performance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/sitewarden/site-auditor/internal/audit"
)

// ErrDisabled indicates headless analysis has been disabled via configuration.
var ErrDisabled = errors.New("headless analysis disabled")

// Config holds the headless Chrome settings for the performance analyzer.
type Config struct {
	UserAgent      string
	Timeout        time.Duration
	MaxConcurrency int
}

// Analyzer drives a shared headless browser, one tab per analysis.
type Analyzer struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	sem             chan struct{}
	timeout         time.Duration
	userAgent       string
}

// New launches the shared browser and returns a ready analyzer.
func New(cfg Config, logger *zap.Logger) (*Analyzer, error) {
	if cfg.MaxConcurrency <= 0 {
		return nil, ErrDisabled
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Analyzer{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		sem:             make(chan struct{}, cfg.MaxConcurrency),
		timeout:         cfg.Timeout,
		userAgent:       cfg.UserAgent,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (a *Analyzer) Close() {
	if a == nil {
		return
	}
	a.browserCancel()
	a.allocatorCancel()
}

// pageTimings is the raw measurement snapshot pulled out of the page.
type pageTimings struct {
	FirstContentfulPaint   float64   `json:"fcp"`
	LargestContentfulPaint float64   `json:"lcp"`
	CumulativeLayoutShift  float64   `json:"cls"`
	DomInteractive         float64   `json:"domInteractive"`
	DomContentLoaded       float64   `json:"domContentLoaded"`
	LongTaskDurations      []float64 `json:"longTasks"`
}

// Analyze loads the page in a fresh tab under the requested device profile
// and returns the scored timing metrics plus the accessibility snapshot.
func (a *Analyzer) Analyze(ctx context.Context, rawURL string, device audit.DeviceType) (audit.PerformanceReport, error) {
	if a == nil {
		return audit.PerformanceReport{}, ErrDisabled
	}
	a.logger.Debug("analyzing performance",
		zap.String("url", rawURL),
		zap.String("device", string(device)))

	select {
	case a.sem <- struct{}{}:
		defer func() { <-a.sem }()
	case <-ctx.Done():
		return audit.PerformanceReport{}, fmt.Errorf("acquire headless slot: %w", ctx.Err())
	}

	tabCtx, cancelTab := chromedp.NewContext(a.browserCtx)
	defer cancelTab()

	taskCtx := tabCtx
	if a.timeout > 0 {
		var cancelTask context.CancelFunc
		taskCtx, cancelTask = context.WithTimeout(tabCtx, a.timeout)
		defer cancelTask()
	}
	stop := forwardCancel(ctx, cancelTab)
	defer stop()

	var timings pageTimings
	var a11y pageAccessibility
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(a.userAgent),
		deviceProfile(device),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(timingsScript, &timings, awaitPromise),
		chromedp.Evaluate(accessibilityScript, &a11y),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return audit.PerformanceReport{}, fmt.Errorf("chromedp run: %w", err)
	}

	access := EvaluateAccessibility(a11y)
	return audit.PerformanceReport{
		Performance:   Score(timings),
		Accessibility: &access,
	}, nil
}

// deviceProfile applies viewport metrics for the requested device type.
func deviceProfile(device audit.DeviceType) chromedp.Action {
	if device == audit.DeviceMobile {
		return chromedp.Tasks{
			emulation.SetDeviceMetricsOverride(375, 812, 3, true),
			emulation.SetTouchEmulationEnabled(true),
		}
	}
	return chromedp.Tasks{
		emulation.SetDeviceMetricsOverride(1366, 768, 1, false),
		emulation.SetTouchEmulationEnabled(false),
	}
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// timingsScript gathers buffered performance entries once the page has had a
// moment to settle. Long tasks and layout shifts only surface through
// buffered observers, not getEntriesByType.
const timingsScript = `new Promise((resolve) => {
	const snapshot = {
		fcp: 0, lcp: 0, cls: 0,
		domInteractive: 0, domContentLoaded: 0,
		longTasks: [],
	};
	const nav = performance.getEntriesByType('navigation')[0];
	if (nav) {
		snapshot.domInteractive = nav.domInteractive;
		snapshot.domContentLoaded = nav.domContentLoadedEventEnd;
	}
	const paint = performance.getEntriesByType('paint')
		.find((e) => e.name === 'first-contentful-paint');
	if (paint) {
		snapshot.fcp = paint.startTime;
	}
	try {
		new PerformanceObserver((list) => {
			const entries = list.getEntries();
			if (entries.length > 0) {
				snapshot.lcp = entries[entries.length - 1].startTime;
			}
		}).observe({type: 'largest-contentful-paint', buffered: true});
		new PerformanceObserver((list) => {
			for (const e of list.getEntries()) {
				if (!e.hadRecentInput) {
					snapshot.cls += e.value;
				}
			}
		}).observe({type: 'layout-shift', buffered: true});
		new PerformanceObserver((list) => {
			for (const e of list.getEntries()) {
				snapshot.longTasks.push(e.duration);
			}
		}).observe({type: 'longtask', buffered: true});
	} catch (err) {
		// Older engines without these entry types still report the rest.
	}
	setTimeout(() => resolve(snapshot), 200);
})`

// accessibilityScript takes a cheap census of common accessibility defects
// in the rendered DOM.
const accessibilityScript = `({
	missingAlt: document.querySelectorAll('img:not([alt])').length,
	unlabeledInputs: Array.from(
		document.querySelectorAll('input:not([type=hidden]), select, textarea')
	).filter((el) => {
		if (el.labels && el.labels.length > 0) return false;
		if (el.getAttribute('aria-label')) return false;
		if (el.getAttribute('aria-labelledby')) return false;
		return true;
	}).length,
	emptyLinks: Array.from(document.querySelectorAll('a[href]')).filter(
		(el) => el.textContent.trim() === '' &&
			!el.getAttribute('aria-label') &&
			el.querySelectorAll('img[alt]').length === 0
	).length,
	missingLang: !document.documentElement.getAttribute('lang'),
	missingMain: document.querySelector('main, [role=main]') === null,
})`
