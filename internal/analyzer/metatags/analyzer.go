// Package metatags inspects a page's head section and scores its SEO
// readiness: title, description, social tags, canonical link, robots
// directives, structured data and heading usage.
package metatags

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/sitewarden/site-auditor/internal/audit"
)

// Config holds the fetch settings for the meta-tag analyzer.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Analyzer fetches a page once and evaluates its meta tags.
type Analyzer struct {
	base   *colly.Collector
	logger *zap.Logger
}

// New constructs a configured meta-tag analyzer.
func New(cfg Config, logger *zap.Logger) (*Analyzer, error) {
	opts := []colly.CollectorOption{}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	base := colly.NewCollector(opts...)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
	})
	if cfg.Timeout > 0 {
		base.SetRequestTimeout(cfg.Timeout)
	}
	return &Analyzer{
		base:   base,
		logger: logger,
	}, nil
}

// pageMeta is the raw markup inventory collected from a single page, prior
// to scoring.
type pageMeta struct {
	title       string
	description string

	ogTitle       string
	ogDescription string
	ogImage       string
	ogURL         string
	ogType        string
	ogSiteName    string

	twitterCard        string
	twitterTitle       string
	twitterDescription string
	twitterImage       string
	twitterSite        string
	twitterCreator     string

	canonical string
	robots    string

	jsonLD    []string
	microdata int
	rdfa      int

	h1s      []string
	lang     string
	charset  string
	viewport string
}

// Analyze fetches the page and returns its scored meta-tag breakdown.
func (a *Analyzer) Analyze(ctx context.Context, rawURL string) (audit.SeoResult, error) {
	a.logger.Debug("analyzing meta tags", zap.String("url", rawURL))

	collector := a.base.Clone()
	resultCh := make(chan metaResult, 1)
	var once sync.Once
	send := func(res metaResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnHTML("html", func(e *colly.HTMLElement) {
		meta := pageMeta{
			title:              strings.TrimSpace(e.ChildText("title")),
			description:        e.ChildAttr(`meta[name="description"]`, "content"),
			ogTitle:            e.ChildAttr(`meta[property="og:title"]`, "content"),
			ogDescription:      e.ChildAttr(`meta[property="og:description"]`, "content"),
			ogImage:            e.ChildAttr(`meta[property="og:image"]`, "content"),
			ogURL:              e.ChildAttr(`meta[property="og:url"]`, "content"),
			ogType:             e.ChildAttr(`meta[property="og:type"]`, "content"),
			ogSiteName:         e.ChildAttr(`meta[property="og:site_name"]`, "content"),
			twitterCard:        e.ChildAttr(`meta[name="twitter:card"]`, "content"),
			twitterTitle:       e.ChildAttr(`meta[name="twitter:title"]`, "content"),
			twitterDescription: e.ChildAttr(`meta[name="twitter:description"]`, "content"),
			twitterImage:       e.ChildAttr(`meta[name="twitter:image"]`, "content"),
			twitterSite:        e.ChildAttr(`meta[name="twitter:site"]`, "content"),
			twitterCreator:     e.ChildAttr(`meta[name="twitter:creator"]`, "content"),
			canonical:          e.ChildAttr(`link[rel="canonical"]`, "href"),
			robots:             e.ChildAttr(`meta[name="robots"]`, "content"),
			lang:               e.Attr("lang"),
			viewport:           e.ChildAttr(`meta[name="viewport"]`, "content"),
		}
		meta.charset = e.ChildAttr("meta[charset]", "charset")
		if meta.charset == "" {
			meta.charset = e.ChildAttr(`meta[http-equiv="Content-Type"]`, "content")
		}
		e.ForEach(`script[type="application/ld+json"]`, func(_ int, s *colly.HTMLElement) {
			meta.jsonLD = append(meta.jsonLD, s.Text)
		})
		e.ForEach("h1", func(_ int, h *colly.HTMLElement) {
			meta.h1s = append(meta.h1s, strings.TrimSpace(h.Text))
		})
		meta.microdata = e.DOM.Find("[itemscope]").Length()
		meta.rdfa = e.DOM.Find("[typeof]").Length()

		send(metaResult{meta: meta})
	})

	collector.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(metaResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return audit.SeoResult{}, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return audit.SeoResult{}, err
		}
		if res.err != nil {
			return audit.SeoResult{}, res.err
		}
		return Evaluate(res.meta), nil
	default:
		return audit.SeoResult{}, errors.New("page produced no parsable html")
	}
}

type metaResult struct {
	meta pageMeta
	err  error
}
