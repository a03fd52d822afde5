package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/FranksOps/scout/internal/config"
	"github.com/FranksOps/scout/internal/fetch"
	"github.com/FranksOps/scout/internal/fingerprint"
	"github.com/FranksOps/scout/internal/politeness"
	"github.com/FranksOps/scout/pkg/proxy"
	"github.com/FranksOps/scout/pkg/useragent"
)

// Selected returns the enabled providers among names, in config.ProviderOrder.
func Selected(cfg config.Config, names []string) []string {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []string
	for _, name := range config.ProviderOrder {
		pc, _ := cfg.Provider(name)
		if want[name] && pc.Enabled {
			out = append(out, name)
		}
	}
	return out
}

// Preflight reports whether the named provider could issue queries, without
// touching the network.
func Preflight(cfg config.Config, name string, getenv func(string) string) error {
	pc, ok := cfg.Provider(name)
	if !ok {
		return fmt.Errorf("unknown provider %q", name)
	}
	switch name {
	case config.GoogleCSE:
		if getenv == nil {
			getenv = os.Getenv
		}
		return googleCredentials(pc, getenv)
	case config.DuckDuckGo:
		if _, err := fingerprint.ParseProfile(pc.Fingerprint); err != nil {
			return err
		}
	}
	return nil
}

// Build constructs the named providers. DuckDuckGo resolves its crawl policy
// here, which is a network call.
func Build(ctx context.Context, cfg config.Config, names []string, opts Options) ([]Provider, error) {
	opts = opts.withDefaults()
	var out []Provider
	for _, name := range names {
		pc, ok := cfg.Provider(name)
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", name)
		}
		f, err := newFetcher(name, pc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		switch name {
		case config.GoogleCSE:
			out = append(out, NewGoogleCSE(pc, f, "", opts))
		case config.DuckDuckGo:
			gate := politeness.Open(ctx, f, DuckDuckGoRobots, useragent.Bot, opts.Logger.With("provider", name))
			searcher := &HTMLSearcher{Fetcher: f, Region: pc.Region, Method: pc.Method}
			out = append(out, NewDuckDuckGo(pc, searcher, gate, opts))
		}
	}
	return out, nil
}

func newFetcher(name string, pc config.ProviderConfig) (*fetch.Fetcher, error) {
	profile, err := fingerprint.ParseProfile(pc.Fingerprint)
	if err != nil {
		return nil, err
	}
	proxies, err := proxy.FromList(proxy.Config{}, pc.Proxies)
	if err != nil {
		return nil, fmt.Errorf("proxies: %w", err)
	}

	// The JSON API expects an honest agent; the HTML endpoint rotates
	// browser agents unless one is configured.
	uas := useragent.Fixed(pc.UserAgent)
	if name == config.DuckDuckGo && pc.UserAgent == "" {
		uas = useragent.NewPool(nil)
	}

	return fetch.New(fetch.Config{
		Provider:    name,
		Timeout:     pc.Timeout(),
		UAPool:      uas,
		ProxyPool:   proxies,
		Fingerprint: profile,
	})
}
