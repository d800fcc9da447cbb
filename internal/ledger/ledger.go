// Package ledger is the duplicate-prevention source of truth: a durable
// store of one record per (job_id, platform) application attempt.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable means the backing storage cannot be read or written.
// Callers must treat it as fatal for the run: without the ledger there is
// no safe way to guarantee no-duplicate.
var ErrUnavailable = errors.New("ledger unavailable")

// Key identifies an application attempt. The pair is unique across all
// records; that uniqueness is the one correctness property the ledger
// upholds under concurrent writers.
type Key struct {
	JobID    string
	Platform string
}

// Record is immutable once created. Metadata is stored and returned,
// never queried.
type Record struct {
	JobID     string
	Platform  string
	Title     string
	Company   string
	URL       string
	AppliedAt time.Time
	Status    string // applied/rejected/error
	Metadata  map[string]string
}

type PlatformStats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
}

type Stats struct {
	Total     int                      `json:"total"`
	Platforms map[string]PlatformStats `json:"platforms"`
}

type Ledger interface {
	// HasApplied reflects all previously committed Record calls, including
	// ones from other goroutines. Readers never observe a partial record.
	HasApplied(ctx context.Context, jobID, platform string) (bool, error)

	// HasAppliedBatch is a bulk HasApplied with identical semantics,
	// one round trip for many keys.
	HasAppliedBatch(ctx context.Context, keys []Key) (map[Key]bool, error)

	// Record returns true if this call created the record, false if the
	// (job_id, platform) pair already exists. A duplicate is the expected
	// signal, never an error. Concurrent callers racing on the same pair
	// get exactly one true.
	Record(ctx context.Context, rec Record) (bool, error)

	// Stats is an aggregate read used for reporting only.
	Stats(ctx context.Context) (Stats, error)

	// Recent returns up to limit records, most recently recorded first.
	// Same-instant inserts keep a stable order (insertion sequence, not
	// wall-clock).
	Recent(ctx context.Context, limit int) ([]Record, error)

	Close() error
}

// Open picks the configured backend. Both satisfy the same contract.
func Open(backend, path string) (Ledger, error) {
	switch backend {
	case "sqlite":
		return OpenSQLite(path)
	case "csv":
		return OpenCSV(path)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
