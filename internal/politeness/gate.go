package politeness

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/FranksOps/scout/internal/fetch"
	"github.com/FranksOps/scout/internal/logging"
	"github.com/FranksOps/scout/pkg/ratelimit"
)

// FetchTimeout bounds the one-time robots.txt lookup.
const FetchTimeout = 6 * time.Second

var crawlDelayLine = regexp.MustCompile(`(?im)^\s*crawl-?delay\s*:\s*([0-9]+(?:\.[0-9]+)?)`)

// Gate carries the crawl policy a search host publishes. It is resolved once
// and read-only afterwards.
type Gate struct {
	allowed bool
	delay   time.Duration
	sleep   ratelimit.SleepFunc
}

// Open fetches robotsURL once, reads the first crawl delay it declares and
// checks whether userAgent may fetch the root path.
// Every failure, including a non-200 status, yields an allowed gate with no
// delay.
func Open(ctx context.Context, f *fetch.Fetcher, robotsURL, userAgent string, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{allowed: true, sleep: ratelimit.Sleep}
	if f == nil || robotsURL == "" {
		return g
	}

	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	resp, err := f.Get(ctx, robotsURL, http.Header{"User-Agent": {userAgent}})
	if err != nil {
		logger.Debug("robots.txt fetch failed, defaulting to allow", "url", robotsURL, "error_code", logging.RedactErr(err))
		return g
	}
	if resp.StatusCode != http.StatusOK {
		logger.Debug("robots.txt unavailable, defaulting to allow", "url", robotsURL, "status", resp.StatusCode)
		return g
	}

	g.delay = parseDelay(resp.Body)
	if data, err := robotstxt.FromBytes(resp.Body); err == nil {
		g.allowed = data.TestAgent("/", userAgent)
	}
	logger.Debug("robots.txt loaded", "url", robotsURL, "robots_respected", g.allowed, "crawl_delay", g.delay.Seconds())
	return g
}

// New builds a gate with a fixed policy.
func New(allowed bool, delay time.Duration) *Gate {
	return &Gate{allowed: allowed, delay: delay, sleep: ratelimit.Sleep}
}

// WithSleep replaces the sleep used by Wait.
func (g *Gate) WithSleep(fn ratelimit.SleepFunc) *Gate {
	if fn != nil {
		g.sleep = fn
	}
	return g
}

// Allowed reports whether the root path is allowed for the agent. It is
// informational only.
func (g *Gate) Allowed() bool { return g.allowed }

// CrawlDelay is the advertised delay, zero if none.
func (g *Gate) CrawlDelay() time.Duration { return g.delay }

// Wait sleeps for the crawl delay when it is positive.
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil || g.delay <= 0 {
		return nil
	}
	return g.sleep(ctx, g.delay)
}

// parseDelay takes the first crawl-delay directive in the body, whatever
// group it belongs to.
func parseDelay(body []byte) time.Duration {
	m := crawlDelayLine.FindSubmatch(body)
	if m == nil {
		return 0
	}
	secs, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
