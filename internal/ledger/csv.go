package ledger

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

var csvHeader = []string{"job_id", "platform", "title", "company", "url", "applied_at", "status", "metadata"}

// CSV backend: an append-only flat-file log. A sync.RWMutex serializes
// callers inside the process; a flock file lock covers other processes
// sharing the same ledger file. The existence check and the append happen
// inside one exclusively-locked critical section, which is what preserves
// the race-free insert guarantee without a database constraint.
type CSV struct {
	path string
	mu   sync.RWMutex
	flk  *flock.Flock
}

func OpenCSV(path string) (*CSV, error) {
	l := &CSV{
		path: path,
		flk:  flock.New(path + ".lock"),
	}

	if err := l.flk.Lock(); err != nil {
		return nil, unavailable("open ledger", err)
	}
	defer func() { _ = l.flk.Unlock() }()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		f, err := os.Create(path)
		if err != nil {
			return nil, unavailable("open ledger", err)
		}
		w := csv.NewWriter(f)
		_ = w.Write(csvHeader)
		w.Flush()
		if err := w.Error(); err != nil {
			_ = f.Close()
			return nil, unavailable("open ledger", err)
		}
		if err := f.Close(); err != nil {
			return nil, unavailable("open ledger", err)
		}
	} else if err != nil {
		return nil, unavailable("open ledger", err)
	}

	return l, nil
}

func (l *CSV) Close() error { return nil }

// readAll returns every record in insertion order. Caller holds a lock.
func (l *CSV) readAll() ([]Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []Record
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A torn or malformed row is skipped rather than poisoning
			// the whole ledger read.
			continue
		}
		if first {
			first = false
			if len(row) > 0 && row[0] == "job_id" {
				continue
			}
		}
		if len(row) < 8 {
			continue
		}
		rec := Record{
			JobID:    row[0],
			Platform: row[1],
			Title:    row[2],
			Company:  row[3],
			URL:      row[4],
			Status:   row[6],
		}
		rec.AppliedAt, _ = time.Parse(time.RFC3339Nano, row[5])
		if row[7] != "" && row[7] != "{}" {
			_ = json.Unmarshal([]byte(row[7]), &rec.Metadata)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (l *CSV) HasApplied(ctx context.Context, jobID, platform string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := l.flk.RLock(); err != nil {
		return false, unavailable("has applied", err)
	}
	defer func() { _ = l.flk.Unlock() }()

	recs, err := l.readAll()
	if err != nil {
		return false, unavailable("has applied", err)
	}
	for _, r := range recs {
		if r.JobID == jobID && r.Platform == platform {
			return true, nil
		}
	}
	return false, nil
}

func (l *CSV) HasAppliedBatch(ctx context.Context, keys []Key) (map[Key]bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[Key]bool, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	if err := l.flk.RLock(); err != nil {
		return nil, unavailable("has applied batch", err)
	}
	defer func() { _ = l.flk.Unlock() }()

	recs, err := l.readAll()
	if err != nil {
		return nil, unavailable("has applied batch", err)
	}
	seen := make(map[Key]bool, len(recs))
	for _, r := range recs {
		seen[Key{JobID: r.JobID, Platform: r.Platform}] = true
	}
	for _, k := range keys {
		out[k] = seen[k]
	}
	return out, nil
}

func (l *CSV) Record(ctx context.Context, rec Record) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.flk.Lock(); err != nil {
		return false, unavailable("record application", err)
	}
	defer func() { _ = l.flk.Unlock() }()

	// Existence check and append under the same exclusive lock.
	recs, err := l.readAll()
	if err != nil {
		return false, unavailable("record application", err)
	}
	for _, r := range recs {
		if r.JobID == rec.JobID && r.Platform == rec.Platform {
			return false, nil
		}
	}

	if rec.Status == "" {
		rec.Status = "applied"
	}
	if rec.AppliedAt.IsZero() {
		rec.AppliedAt = time.Now().UTC()
	}
	metaJSON := "{}"
	if len(rec.Metadata) > 0 {
		if b, err := json.Marshal(rec.Metadata); err == nil {
			metaJSON = string(b)
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return false, unavailable("record application", err)
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{
		rec.JobID, rec.Platform, rec.Title, rec.Company, rec.URL,
		rec.AppliedAt.Format(time.RFC3339Nano), rec.Status, metaJSON,
	})
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return false, unavailable("record application", err)
	}
	if err := f.Close(); err != nil {
		return false, unavailable("record application", err)
	}
	return true, nil
}

func (l *CSV) Stats(ctx context.Context) (Stats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := l.flk.RLock(); err != nil {
		return Stats{}, unavailable("ledger stats", err)
	}
	defer func() { _ = l.flk.Unlock() }()

	recs, err := l.readAll()
	if err != nil {
		return Stats{}, unavailable("ledger stats", err)
	}

	stats := Stats{Platforms: map[string]PlatformStats{}}
	for _, r := range recs {
		ps := stats.Platforms[r.Platform]
		ps.Total++
		if r.Status == "applied" {
			ps.Successful++
		}
		stats.Platforms[r.Platform] = ps
		stats.Total++
	}
	return stats, nil
}

func (l *CSV) Recent(ctx context.Context, limit int) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	if err := l.flk.RLock(); err != nil {
		return nil, unavailable("recent applications", err)
	}
	defer func() { _ = l.flk.Unlock() }()

	recs, err := l.readAll()
	if err != nil {
		return nil, unavailable("recent applications", err)
	}

	// File order is insertion order; newest are at the tail.
	out := make([]Record, 0, limit)
	for i := len(recs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, recs[i])
	}
	return out, nil
}
