package platform

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"applyflow-engine/internal/domain"
)

// FileSource reads postings from a YAML file. Useful for curated lists
// and for dry runs where no live board is wired up.
type FileSource struct {
	name string
	path string
}

func NewFileSource(name, path string) *FileSource {
	return &FileSource{name: name, path: path}
}

func (f *FileSource) Name() string { return f.name }

func (f *FileSource) Search(ctx context.Context, criteria domain.SearchCriteria) ([]domain.JobPosting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}

	var doc struct {
		Jobs []domain.JobPosting `yaml:"jobs"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse jobs file %s: %w", f.path, err)
	}

	out := make([]domain.JobPosting, 0, len(doc.Jobs))
	for _, job := range doc.Jobs {
		if job.Platform == "" {
			job.Platform = f.name
		}
		if job.JobID == "" || job.URL == "" {
			continue
		}
		if !matches(job, criteria) {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

func matches(job domain.JobPosting, c domain.SearchCriteria) bool {
	if c.RemoteOnly && !job.Remote {
		return false
	}
	if len(c.Keywords) > 0 {
		hay := strings.ToLower(job.Title + " " + job.Description)
		found := false
		for _, kw := range c.Keywords {
			if kw != "" && strings.Contains(hay, strings.ToLower(kw)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(c.Locations) > 0 && !job.Remote {
		loc := strings.ToLower(job.Location)
		found := false
		for _, want := range c.Locations {
			if want != "" && strings.Contains(loc, strings.ToLower(want)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
