package platform

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applyflow-engine/internal/domain"
)

func writeJobsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileSourceSearch(t *testing.T) {
	path := writeJobsFile(t, `
jobs:
  - job_id: "1"
    title: Senior Golang Engineer
    company: Acme
    url: https://example.com/jobs/1
    location: Berlin
    remote: true
  - job_id: "2"
    title: Frontend Developer
    company: Acme
    url: https://example.com/jobs/2
    location: Berlin
  - job_id: ""
    title: Missing id gets dropped
    url: https://example.com/jobs/x
`)
	src := NewFileSource("linkedin", path)
	assert.Equal(t, "linkedin", src.Name())

	jobs, err := src.Search(context.Background(), domain.SearchCriteria{Keywords: []string{"golang"}})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "1", jobs[0].JobID)
	assert.Equal(t, "linkedin", jobs[0].Platform, "platform defaults to the source name")
}

func TestFileSourceRemoteOnly(t *testing.T) {
	path := writeJobsFile(t, `
jobs:
  - job_id: "1"
    title: Backend Engineer
    url: https://example.com/jobs/1
    remote: true
  - job_id: "2"
    title: Backend Engineer
    url: https://example.com/jobs/2
    location: Dallas, TX
`)
	src := NewFileSource("indeed", path)

	jobs, err := src.Search(context.Background(), domain.SearchCriteria{RemoteOnly: true})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "1", jobs[0].JobID)
}

func TestFileSourceLocationFilterSkipsRemotePostings(t *testing.T) {
	path := writeJobsFile(t, `
jobs:
  - job_id: "1"
    title: Backend Engineer
    url: https://example.com/jobs/1
    location: Dallas-Fort Worth, TX
  - job_id: "2"
    title: Backend Engineer
    url: https://example.com/jobs/2
    remote: true
  - job_id: "3"
    title: Backend Engineer
    url: https://example.com/jobs/3
    location: New York, NY
`)
	src := NewFileSource("indeed", path)

	jobs, err := src.Search(context.Background(), domain.SearchCriteria{Locations: []string{"dallas"}})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "1", jobs[0].JobID)
	assert.Equal(t, "2", jobs[1].JobID, "remote postings pass the location filter")
}

func TestFileSourceMissingFile(t *testing.T) {
	src := NewFileSource("linkedin", filepath.Join(t.TempDir(), "nope.yml"))
	_, err := src.Search(context.Background(), domain.SearchCriteria{})
	require.Error(t, err)
}
