// Package platform abstracts where job postings come from.
package platform

import (
	"context"

	"applyflow-engine/internal/domain"
)

type Source interface {
	Name() string
	Search(ctx context.Context, criteria domain.SearchCriteria) ([]domain.JobPosting, error)
}
