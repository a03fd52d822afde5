package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/FranksOps/scout/internal/config"
	"github.com/FranksOps/scout/internal/fetch"
	"github.com/FranksOps/scout/internal/logging"
	"github.com/FranksOps/scout/internal/politeness"
)

const (
	// DuckDuckGoEndpoint serves the JavaScript-free result page.
	DuckDuckGoEndpoint = "https://html.duckduckgo.com/html/"
	// DuckDuckGoRobots is consulted once per run for a crawl delay.
	DuckDuckGoRobots = "https://duckduckgo.com/robots.txt"
)

// ErrNoSearcher marks a DuckDuckGo provider built without a search backend.
var ErrNoSearcher = errors.New("duckduckgo: no search backend available")

// Searcher runs one text search and returns result URLs in rank order.
type Searcher interface {
	Search(ctx context.Context, keyword string, maxResults int) ([]string, error)
}

// HTMLSearcher scrapes DuckDuckGo's HTML endpoint.
type HTMLSearcher struct {
	Fetcher  *fetch.Fetcher
	Endpoint string
	// Region is sent as kl, e.g. "us-en".
	Region string
	// Method "html" posts the form, "scrape" issues a GET.
	Method string
}

// Search fetches one result page and extracts up to maxResults links.
func (s *HTMLSearcher) Search(ctx context.Context, keyword string, maxResults int) ([]string, error) {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = DuckDuckGoEndpoint
	}
	form := url.Values{"q": {keyword}}
	if s.Region != "" {
		form.Set("kl", s.Region)
	}

	var (
		resp *fetch.Response
		err  error
	)
	if s.Method == "scrape" {
		resp, err = s.Fetcher.Get(ctx, endpoint+"?"+form.Encode(), nil)
	} else {
		resp, err = s.Fetcher.PostForm(ctx, endpoint, form)
	}
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return parseResults(resp.Body, maxResults)
}

// parseResults reads result anchors from a DuckDuckGo HTML page, unwrapping
// the /l/?uddg= redirect and dropping links back into duckduckgo.com (ads).
func parseResults(body []byte, maxResults int) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}

	var out []string
	doc.Find("a.result__a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if len(out) >= maxResults {
			return false
		}
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		if link := unwrapRedirect(href); link != "" {
			out = append(out, link)
		}
		return true
	})
	return out, nil
}

func unwrapRedirect(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if h := u.Hostname(); h == "duckduckgo.com" || strings.HasSuffix(h, ".duckduckgo.com") || u.Host == "" {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
		return ""
	}
	return href
}

// DuckDuckGo queries through a Searcher, honouring the crawl delay published
// in DuckDuckGo's robots.txt.
type DuckDuckGo struct {
	*base
	searcher Searcher
	gate     *politeness.Gate
}

// NewDuckDuckGo builds the provider. A nil searcher makes it a counted no-op;
// a nil gate means no crawl delay.
func NewDuckDuckGo(cfg config.ProviderConfig, searcher Searcher, gate *politeness.Gate, opts Options) *DuckDuckGo {
	opts = opts.withDefaults()
	if gate == nil {
		gate = politeness.New(true, 0)
	}
	d := &DuckDuckGo{
		base:     newBase(config.DuckDuckGo, cfg, opts),
		searcher: searcher,
		gate:     gate.WithSleep(opts.Sleep),
	}
	if searcher == nil {
		d.logger.Warn("search backend not available; queries will return empty results",
			"collected_at", logging.CollectedAt(time.Now()))
	}
	return d
}

// Gate exposes the crawl policy resolved at construction.
func (d *DuckDuckGo) Gate() *politeness.Gate { return d.gate }

// Query waits on the rate limiter and crawl delay, then searches once with
// every error treated as retryable.
func (d *DuckDuckGo) Query(ctx context.Context, keyword string, maxResults int) []string {
	made, ok := d.charge()
	if !ok || d.searcher == nil || maxResults <= 0 {
		return nil
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return nil
	}
	if err := d.gate.Wait(ctx); err != nil {
		return nil
	}

	var results []string
	err := d.retry(ctx, func(error) bool { return ctx.Err() == nil }, func() error {
		r, err := d.searcher.Search(ctx, keyword, maxResults)
		if err != nil {
			return err
		}
		results = r
		return nil
	})
	if err != nil {
		d.logger.Warn("ddg error",
			"keyword", keyword,
			"error_code", errorCode(err),
			"collected_at", logging.CollectedAt(time.Now()))
		return nil
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	d.logger.Info("ddg results",
		"keyword", keyword,
		"collected_at", logging.CollectedAt(time.Now()),
		"delay_used", d.delayUsed(),
		"domains_returned", len(results),
		"error_code", nil,
		"queries_made", made,
		"robots_respected", d.gate.Allowed(),
		"crawl_delay", d.gate.CrawlDelay().Seconds())
	return results
}
