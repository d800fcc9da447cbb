package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openBackends(t *testing.T) map[string]Ledger {
	t.Helper()
	dir := t.TempDir()

	sq, err := OpenSQLite(filepath.Join(dir, "apps.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })

	cs, err := OpenCSV(filepath.Join(dir, "apps.csv"))
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })

	return map[string]Ledger{"sqlite": sq, "csv": cs}
}

func rec(jobID, platform string) Record {
	return Record{
		JobID:     jobID,
		Platform:  platform,
		Title:     "Backend Engineer",
		Company:   "Acme",
		URL:       "https://example.com/jobs/" + jobID,
		AppliedAt: time.Now().UTC(),
		Status:    "applied",
		Metadata:  map[string]string{"steps": "3"},
	}
}

func TestRecordOnce(t *testing.T) {
	ctx := context.Background()
	for name, led := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			created, err := led.Record(ctx, rec("42", "linkedin"))
			require.NoError(t, err)
			require.True(t, created)

			created, err = led.Record(ctx, rec("42", "linkedin"))
			require.NoError(t, err)
			require.False(t, created, "second write of the same pair must report duplicate")

			ok, err := led.HasApplied(ctx, "42", "linkedin")
			require.NoError(t, err)
			require.True(t, ok)

			// Same job id on a different platform is a distinct key.
			ok, err = led.HasApplied(ctx, "42", "wellfound")
			require.NoError(t, err)
			require.False(t, ok)

			stats, err := led.Stats(ctx)
			require.NoError(t, err)
			require.Equal(t, 1, stats.Total, "duplicate write must not change totals")
		})
	}
}

func TestRecordConcurrentExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	for name, led := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			const workers = 10
			results := make([]bool, workers)
			errs := make([]error, workers)
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				// Assertions stay out of the goroutines; failures are
				// collected and checked after Wait.
				go func(i int) {
					defer wg.Done()
					results[i], errs[i] = led.Record(ctx, rec("777", "linkedin"))
				}(i)
			}
			wg.Wait()

			winners := 0
			for i, created := range results {
				require.NoError(t, errs[i])
				if created {
					winners++
				}
			}
			require.Equal(t, 1, winners)

			ok, err := led.HasApplied(ctx, "777", "linkedin")
			require.NoError(t, err)
			require.True(t, ok)
		})
	}
}

func TestHasAppliedBatch(t *testing.T) {
	ctx := context.Background()
	for name, led := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := led.Record(ctx, rec("1", "linkedin"))
			require.NoError(t, err)
			_, err = led.Record(ctx, rec("2", "indeed"))
			require.NoError(t, err)

			keys := []Key{
				{JobID: "1", Platform: "linkedin"},
				{JobID: "1", Platform: "indeed"},
				{JobID: "2", Platform: "indeed"},
				{JobID: "3", Platform: "linkedin"},
			}
			seen, err := led.HasAppliedBatch(ctx, keys)
			require.NoError(t, err)
			require.True(t, seen[Key{JobID: "1", Platform: "linkedin"}])
			require.False(t, seen[Key{JobID: "1", Platform: "indeed"}])
			require.True(t, seen[Key{JobID: "2", Platform: "indeed"}])
			require.False(t, seen[Key{JobID: "3", Platform: "linkedin"}])
		})
	}
}

func TestRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	for name, led := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			// Same AppliedAt on purpose: ordering must come from insertion
			// sequence, not the timestamp.
			at := time.Now().UTC()
			for _, id := range []string{"a", "b", "c"} {
				r := rec(id, "linkedin")
				r.AppliedAt = at
				created, err := led.Record(ctx, r)
				require.NoError(t, err)
				require.True(t, created)
			}

			recent, err := led.Recent(ctx, 2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			require.Equal(t, "c", recent[0].JobID)
			require.Equal(t, "b", recent[1].JobID)
		})
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	for name, led := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := led.Record(ctx, rec("1", "linkedin"))
			require.NoError(t, err)
			failed := rec("2", "linkedin")
			failed.Status = "error"
			_, err = led.Record(ctx, failed)
			require.NoError(t, err)
			_, err = led.Record(ctx, rec("3", "indeed"))
			require.NoError(t, err)

			stats, err := led.Stats(ctx)
			require.NoError(t, err)
			require.Equal(t, 3, stats.Total)
			require.Equal(t, 2, stats.Platforms["linkedin"].Total)
			require.Equal(t, 1, stats.Platforms["linkedin"].Successful)
			require.Equal(t, 1, stats.Platforms["indeed"].Successful)
		})
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, led := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			r := rec("meta", "linkedin")
			r.Metadata = map[string]string{"steps": "4", "verified": "true"}
			_, err := led.Record(ctx, r)
			require.NoError(t, err)

			recent, err := led.Recent(ctx, 1)
			require.NoError(t, err)
			require.Len(t, recent, 1)
			require.Equal(t, "4", recent[0].Metadata["steps"])
			require.Equal(t, "true", recent[0].Metadata["verified"])
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("redis", "whatever")
	require.Error(t, err)
}
