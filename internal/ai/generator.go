// Package ai is the opaque content-generation capability. Failures here
// are always recoverable: the caller keeps going with no AI content.
package ai

import (
	"context"

	"applyflow-engine/internal/domain"
)

type Relevance struct {
	Score     int    `json:"score"` // 1..10
	Reasoning string `json:"reasoning"`
}

type ContentGenerator interface {
	// ScoreRelevance rates how well a posting matches the configured
	// resume, 1..10.
	ScoreRelevance(ctx context.Context, job domain.JobPosting) (Relevance, error)

	// CoverLetter writes a short cover letter tailored to the posting.
	CoverLetter(ctx context.Context, job domain.JobPosting) (string, error)

	// OptimizeSection rewrites a resume section (summary, skills) against
	// the posting.
	OptimizeSection(ctx context.Context, job domain.JobPosting, section string) (string, error)
}
