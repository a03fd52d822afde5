// Package storagetest holds the behaviour every run history backend must
// share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/FranksOps/scout/internal/report"
	"github.com/FranksOps/scout/internal/storage"
)

// Records returns three runs an hour apart, oldest first.
func Records(now time.Time) []*storage.RunRecord {
	now = now.UTC().Truncate(time.Millisecond)
	mk := func(id string, age time.Duration, domains ...string) *storage.RunRecord {
		return &storage.RunRecord{
			ID:            id,
			Keywords:      []string{"plumber austin", "roofer, austin"},
			UniqueDomains: len(domains),
			ProviderUsage: map[string]report.Usage{
				"google_cse": {QueriesMade: 2, Domains: len(domains)},
				"duckduckgo": {QueriesMade: 2, Domains: 0},
			},
			OutputPath:  "out/domains.txt",
			StartedAt:   now.Add(-age - time.Minute),
			CollectedAt: now.Add(-age),
			Domains:     domains,
		}
	}
	return []*storage.RunRecord{
		mk("run-1", 2*time.Hour, "acme.com", "zeta.io"),
		mk("run-2", time.Hour, "beta.net"),
		mk("run-3", 0, "acme.com"),
	}
}

// Exercise saves Records into b and checks ordering, filters and a full
// round trip of one record.
func Exercise(t *testing.T, b storage.Backend) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	recs := Records(now)

	for _, r := range recs {
		if err := b.Save(ctx, r); err != nil {
			t.Fatalf("save %s: %v", r.ID, err)
		}
	}

	all, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(all) != 3 || all[0].ID != "run-3" || all[2].ID != "run-1" {
		t.Fatalf("expected newest first, got %v", ids(all))
	}

	got := all[2]
	want := recs[0]
	if len(got.Keywords) != 2 || got.Keywords[1] != "roofer, austin" {
		t.Errorf("keywords did not round trip: %v", got.Keywords)
	}
	if len(got.Domains) != 2 || got.Domains[0] != "acme.com" || got.Domains[1] != "zeta.io" {
		t.Errorf("domains did not round trip: %v", got.Domains)
	}
	if got.ProviderUsage["google_cse"].Domains != 2 || got.ProviderUsage["duckduckgo"].QueriesMade != 2 {
		t.Errorf("usage did not round trip: %v", got.ProviderUsage)
	}
	if got.UniqueDomains != 2 || got.OutputPath != want.OutputPath {
		t.Errorf("unexpected record %+v", got)
	}
	if !got.CollectedAt.Equal(want.CollectedAt) {
		t.Errorf("collected_at: expected %v, got %v", want.CollectedAt, got.CollectedAt)
	}

	byDomain, err := b.Query(ctx, storage.Filter{Domain: "acme.com"})
	if err != nil {
		t.Fatalf("query by domain: %v", err)
	}
	if len(byDomain) != 2 || byDomain[0].ID != "run-3" || byDomain[1].ID != "run-1" {
		t.Errorf("unexpected domain filter result %v", ids(byDomain))
	}

	since := now.Add(-90 * time.Minute)
	recent, err := b.Query(ctx, storage.Filter{Since: &since})
	if err != nil {
		t.Fatalf("query since: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("expected 2 recent runs, got %v", ids(recent))
	}

	page, err := b.Query(ctx, storage.Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("query page: %v", err)
	}
	if len(page) != 1 || page[0].ID != "run-2" {
		t.Errorf("expected run-2, got %v", ids(page))
	}
}

func ids(rs []*storage.RunRecord) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
