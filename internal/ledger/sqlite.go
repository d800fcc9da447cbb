package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite backend. The UNIQUE constraint on (job_id, platform) plus
// INSERT OR IGNORE gives the race-free insert; seq (rowid) is the
// monotonic insertion sequence used for recency ordering.
type SQLite struct {
	pool *sql.DB
	mu   sync.Mutex // serializes writers within this instance
}

func OpenSQLite(path string) (*SQLite, error) {
	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, unavailable("open ledger", err)
	}

	pool.SetMaxOpenConns(1) // sqlite wants a single writer
	pool.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, unavailable("open ledger", err)
	}

	l := &SQLite{pool: pool}
	if err := l.migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return l, nil
}

func (l *SQLite) migrate(ctx context.Context) error {
	tx, err := l.pool.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("migrate ledger", err)
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return unavailable("migrate ledger", err)
	}
	if v >= 1 {
		return tx.Commit()
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS applied_jobs (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  job_id TEXT NOT NULL,
  platform TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  company TEXT NOT NULL DEFAULT '',
  url TEXT NOT NULL DEFAULT '',
  applied_at TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'applied',
  metadata TEXT NOT NULL DEFAULT '{}',
  UNIQUE (job_id, platform)
);
`); err != nil {
		return unavailable("migrate ledger", err)
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_applied_jobs_platform
ON applied_jobs(platform);
`); err != nil {
		return unavailable("migrate ledger", err)
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return unavailable("migrate ledger", err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("migrate ledger", err)
	}
	return nil
}

func (l *SQLite) Close() error {
	if l == nil || l.pool == nil {
		return nil
	}
	return l.pool.Close()
}

func (l *SQLite) HasApplied(ctx context.Context, jobID, platform string) (bool, error) {
	var one int
	err := l.pool.QueryRowContext(ctx,
		`SELECT 1 FROM applied_jobs WHERE job_id = ? AND platform = ? LIMIT 1;`,
		jobID, platform,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, unavailable("has applied", err)
	}
	return true, nil
}

func (l *SQLite) HasAppliedBatch(ctx context.Context, keys []Key) (map[Key]bool, error) {
	out := make(map[Key]bool, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	// One query per chunk; sqlite caps bound parameters, so stay well under.
	const chunk = 200
	for start := 0; start < len(keys); start += chunk {
		end := start + chunk
		if end > len(keys) {
			end = len(keys)
		}
		part := keys[start:end]

		preds := make([]string, 0, len(part))
		args := make([]any, 0, len(part)*2)
		for _, k := range part {
			preds = append(preds, "(job_id = ? AND platform = ?)")
			args = append(args, k.JobID, k.Platform)
			out[k] = false
		}

		rows, err := l.pool.QueryContext(ctx,
			`SELECT job_id, platform FROM applied_jobs WHERE `+strings.Join(preds, " OR ")+`;`,
			args...,
		)
		if err != nil {
			return nil, unavailable("has applied batch", err)
		}
		for rows.Next() {
			var k Key
			if err := rows.Scan(&k.JobID, &k.Platform); err != nil {
				rows.Close()
				return nil, unavailable("has applied batch", err)
			}
			out[k] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, unavailable("has applied batch", err)
		}
		rows.Close()
	}
	return out, nil
}

func (l *SQLite) Record(ctx context.Context, rec Record) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

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

	res, err := l.pool.ExecContext(ctx, `
INSERT OR IGNORE INTO applied_jobs (job_id, platform, title, company, url, applied_at, status, metadata)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
		rec.JobID, rec.Platform, rec.Title, rec.Company, rec.URL,
		rec.AppliedAt.Format(time.RFC3339Nano), rec.Status, metaJSON,
	)
	if err != nil {
		return false, unavailable("record application", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		// Fall back to changes(); with a single connection this sees the
		// same session as the insert above.
		var changes int
		if e := l.pool.QueryRowContext(ctx, `SELECT changes();`).Scan(&changes); e == nil {
			return changes > 0, nil
		}
		return false, unavailable("record application", err)
	}
	return n > 0, nil
}

func (l *SQLite) Stats(ctx context.Context) (Stats, error) {
	rows, err := l.pool.QueryContext(ctx, `
SELECT
  platform,
  COUNT(*) AS total,
  COUNT(CASE WHEN status = 'applied' THEN 1 END) AS successful
FROM applied_jobs
GROUP BY platform;`)
	if err != nil {
		return Stats{}, unavailable("ledger stats", err)
	}
	defer rows.Close()

	stats := Stats{Platforms: map[string]PlatformStats{}}
	for rows.Next() {
		var platform string
		var ps PlatformStats
		if err := rows.Scan(&platform, &ps.Total, &ps.Successful); err != nil {
			return Stats{}, unavailable("ledger stats", err)
		}
		stats.Platforms[platform] = ps
		stats.Total += ps.Total
	}
	if err := rows.Err(); err != nil {
		return Stats{}, unavailable("ledger stats", err)
	}
	return stats, nil
}

func (l *SQLite) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.pool.QueryContext(ctx, `
SELECT job_id, platform, title, company, url, applied_at, status, metadata
FROM applied_jobs
ORDER BY seq DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, unavailable("recent applications", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var appliedAt, metaJSON string
		if err := rows.Scan(&rec.JobID, &rec.Platform, &rec.Title, &rec.Company,
			&rec.URL, &appliedAt, &rec.Status, &metaJSON); err != nil {
			return nil, unavailable("recent applications", err)
		}
		rec.AppliedAt, _ = time.Parse(time.RFC3339Nano, appliedAt)
		if metaJSON != "" && metaJSON != "{}" {
			_ = json.Unmarshal([]byte(metaJSON), &rec.Metadata)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("recent applications", err)
	}
	return out, nil
}
