package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/FranksOps/scout/internal/config"
	"github.com/FranksOps/scout/internal/fetch"
	"github.com/FranksOps/scout/internal/logging"
)

// GoogleEndpoint is the Custom Search JSON API.
const GoogleEndpoint = "https://www.googleapis.com/customsearch/v1"

const (
	googlePageSize = 10
	// googleMaxStart is the deepest start offset the API serves.
	googleMaxStart = 91
)

// GoogleCSE queries the Google Custom Search JSON API.
type GoogleCSE struct {
	*base
	fetcher  *fetch.Fetcher
	endpoint string
	apiKey   string
	cx       string
	safe     string
	credErr  error
}

type googleResponse struct {
	Items []struct {
		Link         string `json:"link"`
		FormattedURL string `json:"formattedUrl"`
	} `json:"items"`
}

// NewGoogleCSE builds the provider. Missing credentials are logged once here
// and turn every Query into a counted no-op. An empty endpoint selects
// GoogleEndpoint.
func NewGoogleCSE(cfg config.ProviderConfig, f *fetch.Fetcher, endpoint string, opts Options) *GoogleCSE {
	opts = opts.withDefaults()
	if endpoint == "" {
		endpoint = GoogleEndpoint
	}
	g := &GoogleCSE{
		base:     newBase(config.GoogleCSE, cfg, opts),
		fetcher:  f,
		endpoint: endpoint,
		apiKey:   opts.Getenv(cfg.APIKeyEnv),
		cx:       opts.Getenv(cfg.CXEnv),
		safe:     cfg.Safe,
	}
	g.credErr = googleCredentials(cfg, opts.Getenv)
	if g.credErr != nil {
		g.logger.Warn("provider missing API key or CX; queries will return empty results",
			"collected_at", logging.CollectedAt(time.Now()),
			"error_code", g.credErr.Error())
	}
	return g
}

func googleCredentials(cfg config.ProviderConfig, getenv func(string) string) error {
	var missing []string
	if getenv(cfg.APIKeyEnv) == "" {
		missing = append(missing, cfg.APIKeyEnv)
	}
	if getenv(cfg.CXEnv) == "" {
		missing = append(missing, cfg.CXEnv)
	}
	if len(missing) > 0 {
		return &CredentialError{Provider: config.GoogleCSE, Missing: missing}
	}
	return nil
}

// Query pages through results ten at a time until maxResults are collected
// or the API depth limit is reached. A failed or empty page is logged and
// paging moves on to the next offset.
func (g *GoogleCSE) Query(ctx context.Context, keyword string, maxResults int) []string {
	made, ok := g.charge()
	if !ok || g.credErr != nil || maxResults <= 0 {
		return nil
	}

	var results []string
	for start := 1; len(results) < maxResults && start <= googleMaxStart; start += googlePageSize {
		if err := g.limiter.Wait(ctx); err != nil {
			break
		}
		num := min(googlePageSize, maxResults-len(results))

		page, err := g.page(ctx, keyword, start, num)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			msg := "google non-200"
			if IsTransient(err) {
				msg = "google backoff exhausted"
			}
			g.logger.Warn(msg,
				"keyword", keyword,
				"start", start,
				"error_code", errorCode(err),
				"collected_at", logging.CollectedAt(time.Now()))
			continue
		}

		g.logger.Info("google results",
			"keyword", keyword,
			"collected_at", logging.CollectedAt(time.Now()),
			"delay_used", g.delayUsed(),
			"domains_returned", len(page),
			"error_code", nil,
			"queries_made", made)

		results = append(results, page...)
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

func (g *GoogleCSE) page(ctx context.Context, keyword string, start, num int) ([]string, error) {
	params := url.Values{
		"key":   {g.apiKey},
		"cx":    {g.cx},
		"q":     {keyword},
		"num":   {strconv.Itoa(num)},
		"start": {strconv.Itoa(start)},
	}
	if g.safe != "" {
		params.Set("safe", g.safe)
	}
	target := g.endpoint + "?" + params.Encode()

	var links []string
	err := g.retry(ctx, IsTransient, func() error {
		resp, err := g.fetcher.Get(ctx, target, nil)
		if err := classify(resp, err); err != nil {
			return err
		}
		var body googleResponse
		if err := json.Unmarshal(resp.Body, &body); err != nil {
			return &TerminalError{Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
		links = links[:0]
		for _, it := range body.Items {
			link := it.Link
			if link == "" {
				link = it.FormattedURL
			}
			if link != "" {
				links = append(links, link)
			}
		}
		return nil
	})
	return links, err
}
