package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/scout/internal/bypass"
	"github.com/FranksOps/scout/internal/fingerprint"
	"github.com/FranksOps/scout/internal/metrics"
	"github.com/FranksOps/scout/pkg/httpclient"
	"github.com/FranksOps/scout/pkg/proxy"
	"github.com/FranksOps/scout/pkg/useragent"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// maxBody caps how much of a provider response is buffered.
const maxBody = 4 << 20

// Config configures a Fetcher for one provider.
type Config struct {
	// Provider labels metrics.
	Provider    string
	Timeout     time.Duration
	UAPool      *useragent.Pool
	ProxyPool   *proxy.Pool
	Fingerprint fingerprint.Profile
}

// Response is a fully buffered provider response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
	// Challenge names the anti-bot system that answered, if any.
	Challenge string
}

// Fetcher performs single outbound requests on behalf of a provider.
type Fetcher struct {
	cfg    Config
	client *httpclient.Client
}

// New builds a Fetcher. The transport is created once so connections are
// pooled across queries.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = httpclient.DefaultTimeout
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.Fixed("")
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileGo
	}

	// The proxy for a request travels in its context so rotation does not
	// touch the shared transport.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok {
			return u, nil
		}
		return http.ProxyFromEnvironment(req)
	}
	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("setup transport: %w", err)
	}

	return &Fetcher{
		cfg:    cfg,
		client: httpclient.New(httpclient.Config{Timeout: cfg.Timeout, Transport: transport}),
	}, nil
}

// Get issues a GET to target with the extra headers.
func (f *Fetcher) Get(ctx context.Context, target string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return f.do(req)
}

// PostForm issues a form-encoded POST to target.
func (f *Fetcher) PostForm(ctx context.Context, target string, form url.Values) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(req)
}

func (f *Fetcher) do(req *http.Request) (*Response, error) {
	var activeProxy *url.URL
	if f.cfg.ProxyPool != nil {
		activeProxy = f.cfg.ProxyPool.Next()
	}
	if activeProxy != nil {
		req = req.WithContext(context.WithValue(req.Context(), proxyKey, activeProxy))
	}

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", f.cfg.UAPool.GetSequential())
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	start := time.Now()
	resp, err := f.client.Do(req.Context(), req)
	if err != nil {
		if activeProxy != nil {
			_ = f.cfg.ProxyPool.MarkFailure(activeProxy)
		}
		metrics.RecordRequest(f.cfg.Provider, 0, err, time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	elapsed := time.Since(start)
	metrics.RecordRequest(f.cfg.Provider, resp.StatusCode, err, elapsed)
	if err != nil {
		if activeProxy != nil {
			_ = f.cfg.ProxyPool.MarkFailure(activeProxy)
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	if activeProxy != nil {
		_ = f.cfg.ProxyPool.MarkSuccess(activeProxy)
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Duration:   elapsed,
	}
	if detected, source := bypass.Analyze(bypass.Page{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, bypass.DefaultDetectors()); detected {
		out.Challenge = source
	}
	return out, nil
}
