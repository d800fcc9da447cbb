// Package report publishes run results to an external tracker. A sink
// failure never fails the run; the orchestrator logs and moves on.
package report

import (
	"context"

	"applyflow-engine/internal/domain"
)

type ResultsSink interface {
	Report(ctx context.Context, summary domain.RunSummary) error
}
