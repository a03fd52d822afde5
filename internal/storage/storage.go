package storage

import (
	"context"
	"slices"
	"time"

	"github.com/FranksOps/scout/internal/report"
)

// RunRecord is the persisted form of one discovery run.
type RunRecord struct {
	ID            string                  `json:"id"`
	Keywords      []string                `json:"keywords"`
	UniqueDomains int                     `json:"unique_domains"`
	ProviderUsage map[string]report.Usage `json:"provider_usage"`
	OutputPath    string                  `json:"output_path"`
	StartedAt     time.Time               `json:"started_at"`
	CollectedAt   time.Time               `json:"collected_at"`
	Domains       []string                `json:"domains"`
}

// FromReport combines a run's report with its inputs and output.
func FromReport(r report.DiscoveryReport, keywords, domains []string) *RunRecord {
	return &RunRecord{
		ID:            r.RunID,
		Keywords:      slices.Clone(keywords),
		UniqueDomains: r.UniqueDomains,
		ProviderUsage: r.ProviderUsage,
		OutputPath:    r.OutputPath,
		StartedAt:     r.StartedAt.UTC(),
		CollectedAt:   r.CollectedAt.UTC(),
		Domains:       slices.Clone(domains),
	}
}

// Filter narrows a history query.
type Filter struct {
	// Domain keeps runs that discovered this host.
	Domain string
	Since  *time.Time
	Limit  int
	Offset int
}

// Match reports whether r passes the Domain and Since conditions.
func (f Filter) Match(r *RunRecord) bool {
	if f.Domain != "" && !slices.Contains(r.Domains, f.Domain) {
		return false
	}
	if f.Since != nil && r.CollectedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Page applies Match, newest-first ordering, Offset and Limit to records
// held in insertion order. File backends use it; SQL backends push the same
// logic into the query.
func (f Filter) Page(records []*RunRecord) []*RunRecord {
	var out []*RunRecord
	for i := len(records) - 1; i >= 0; i-- {
		if f.Match(records[i]) {
			out = append(out, records[i])
		}
	}
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []*RunRecord{}
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out
}

// Backend stores run history.
type Backend interface {
	Save(ctx context.Context, run *RunRecord) error
	Query(ctx context.Context, filter Filter) ([]*RunRecord, error)
	Close() error
}
