package csvbackend

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/FranksOps/scout/internal/report"
	"github.com/FranksOps/scout/internal/storage"
)

var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order. Domains are space separated since a
// valid host never contains a space.
var headers = []string{
	"id",
	"keywords_json",
	"unique_domains",
	"provider_usage_json",
	"output_path",
	"started_at",
	"collected_at",
	"domains",
}

// New opens (or creates) a CSV run history at filePath, writing the header
// row to a new file.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat run history: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func (b *csvBackend) Save(ctx context.Context, run *storage.RunRecord) error {
	keywords, err := json.Marshal(run.Keywords)
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}
	usage, err := json.Marshal(run.ProviderUsage)
	if err != nil {
		return fmt.Errorf("encode usage: %w", err)
	}

	record := []string{
		run.ID,
		string(keywords),
		strconv.Itoa(run.UniqueDomains),
		string(usage),
		run.OutputPath,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.CollectedAt.UTC().Format(time.RFC3339Nano),
		strings.Join(run.Domains, " "),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek run history: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(record); err != nil {
		return fmt.Errorf("append run: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("append run: %w", err)
	}
	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.RunRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind run history: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*storage.RunRecord{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var all []*storage.RunRecord
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read run: %w", err)
		}
		if len(record) != len(headers) {
			continue // skip malformed rows
		}
		all = append(all, parseRecord(record))
	}

	return filter.Page(all), nil
}

func parseRecord(record []string) *storage.RunRecord {
	var keywords []string
	_ = json.Unmarshal([]byte(record[1]), &keywords)
	unique, _ := strconv.Atoi(record[2])
	usage := map[string]report.Usage{}
	_ = json.Unmarshal([]byte(record[3]), &usage)
	started, _ := time.Parse(time.RFC3339Nano, record[5])
	collected, _ := time.Parse(time.RFC3339Nano, record[6])

	return &storage.RunRecord{
		ID:            record[0],
		Keywords:      keywords,
		UniqueDomains: unique,
		ProviderUsage: usage,
		OutputPath:    record[4],
		StartedAt:     started,
		CollectedAt:   collected,
		Domains:       strings.Fields(record[7]),
	}
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
