// Package images inventories the images on a page and scores alt-text
// coverage, modern-format adoption, payload size and lazy loading.
package images

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/sitewarden/site-auditor/internal/audit"
)

// Config holds the fetch settings for the image analyzer.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// ProbeTimeout bounds the HEAD request issued per image to learn its
	// size and content type.
	ProbeTimeout time.Duration
	// MaxProbes caps how many images are probed on image-heavy pages.
	MaxProbes int
}

// Analyzer fetches a page, inventories its images and scores the result.
type Analyzer struct {
	base      *colly.Collector
	probes    *http.Client
	userAgent string
	maxProbes int
	logger    *zap.Logger
}

var backgroundImagePattern = regexp.MustCompile(`background-image:\s*url\(['"]?([^'")]+)['"]?\)`)

// New constructs a configured image analyzer.
func New(cfg Config, logger *zap.Logger) (*Analyzer, error) {
	opts := []colly.CollectorOption{}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	base := colly.NewCollector(opts...)
	base.AllowURLRevisit = true
	if cfg.Timeout > 0 {
		base.SetRequestTimeout(cfg.Timeout)
	}

	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	maxProbes := cfg.MaxProbes
	if maxProbes <= 0 {
		maxProbes = 50
	}

	return &Analyzer{
		base:      base,
		probes:    &http.Client{Timeout: probeTimeout},
		userAgent: cfg.UserAgent,
		maxProbes: maxProbes,
		logger:    logger,
	}, nil
}

// pageImage is one discovered image prior to scoring.
type pageImage struct {
	src        string
	hasAlt     bool
	lazy       bool
	background bool

	format   string
	size     int64
	probeErr bool
}

// Analyze fetches the page, probes its images and returns the scored
// inventory.
func (a *Analyzer) Analyze(ctx context.Context, rawURL string) (audit.ImageResult, error) {
	a.logger.Debug("analyzing images", zap.String("url", rawURL))

	collector := a.base.Clone()
	resultCh := make(chan imagesResult, 1)
	var once sync.Once
	send := func(res imagesResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnHTML("html", func(e *colly.HTMLElement) {
		var imgs []pageImage
		e.ForEach("img", func(_ int, img *colly.HTMLElement) {
			src := img.Attr("src")
			if src == "" {
				return
			}
			_, hasAlt := img.DOM.Attr("alt")
			imgs = append(imgs, pageImage{
				src:    img.Request.AbsoluteURL(src),
				hasAlt: hasAlt && img.Attr("alt") != "",
				lazy:   img.Attr("loading") == "lazy",
			})
		})
		e.ForEach("[style]", func(_ int, el *colly.HTMLElement) {
			match := backgroundImagePattern.FindStringSubmatch(el.Attr("style"))
			if match == nil {
				return
			}
			imgs = append(imgs, pageImage{
				src:        el.Request.AbsoluteURL(match[1]),
				background: true,
			})
		})
		send(imagesResult{images: imgs})
	})

	collector.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(imagesResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return audit.ImageResult{}, err
	}
	collector.Wait()

	var res imagesResult
	select {
	case res = <-resultCh:
	default:
		return audit.ImageResult{}, errors.New("page produced no parsable html")
	}
	if res.err != nil {
		return audit.ImageResult{}, res.err
	}

	for i := range res.images {
		if i >= a.maxProbes {
			break
		}
		if err := ctx.Err(); err != nil {
			return audit.ImageResult{}, err
		}
		a.probe(ctx, &res.images[i])
	}
	if err := ctx.Err(); err != nil {
		return audit.ImageResult{}, err
	}

	return Evaluate(res.images), nil
}

// probe issues a HEAD request to learn the image's size and format without
// downloading the payload.
func (a *Analyzer) probe(ctx context.Context, img *pageImage) {
	img.format = formatFromPath(img.src)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, img.src, nil)
	if err != nil {
		img.probeErr = true
		return
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}
	resp, err := a.probes.Do(req)
	if err != nil {
		img.probeErr = true
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		img.probeErr = true
		return
	}

	if format := formatFromContentType(resp.Header.Get("Content-Type")); format != "" {
		img.format = format
	}
	if resp.ContentLength > 0 {
		img.size = resp.ContentLength
	}
}

func formatFromPath(src string) string {
	path := src
	if idx := strings.IndexAny(path, "?#"); idx >= 0 {
		path = path[:idx]
	}
	switch strings.ToLower(path[strings.LastIndex(path, ".")+1:]) {
	case "webp":
		return "webp"
	case "jpg", "jpeg":
		return "jpeg"
	case "png":
		return "png"
	case "gif":
		return "gif"
	case "svg":
		return "svg"
	case "avif":
		return "avif"
	default:
		return ""
	}
}

func formatFromContentType(contentType string) string {
	mediaType := contentType
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	switch strings.TrimSpace(strings.ToLower(mediaType)) {
	case "image/webp":
		return "webp"
	case "image/jpeg":
		return "jpeg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/svg+xml":
		return "svg"
	case "image/avif":
		return "avif"
	default:
		return ""
	}
}

type imagesResult struct {
	images []pageImage
	err    error
}
