package domain

import "time"

// Terminal outcome of a single application attempt.
const (
	StatusApplied  = "applied"
	StatusRejected = "rejected"
	StatusError    = "error"
)

type AppliedJob struct {
	Title          string `json:"title"`
	Company        string `json:"company"`
	URL            string `json:"url"`
	RelevanceScore int    `json:"relevance_score,omitempty"`
	AIEnhanced     bool   `json:"ai_enhanced"`
	FailureReason  string `json:"failure_reason,omitempty"`
	Status         string `json:"status"`
}

// PlatformSummary aggregates one platform's slice of a run.
type PlatformSummary struct {
	Platform              string       `json:"platform"`
	JobsFound             int          `json:"jobs_found"`
	AlreadyApplied        int          `json:"already_applied"`
	AIFiltered            int          `json:"ai_filtered"`
	ApplicationsSubmitted int          `json:"applications_submitted"`
	Errors                int          `json:"errors"`
	AppliedJobs           []AppliedJob `json:"applied_jobs"`
}

// RunSummary is what gets forwarded to the results sink. It always
// completes, even when individual platforms or applications fail.
type RunSummary struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Platforms  []PlatformSummary `json:"platforms"`
	JobsFound  int               `json:"jobs_found"`
	Submitted  int               `json:"applications_submitted"`
	Errors     int               `json:"errors"`
}

func (s *RunSummary) Add(p PlatformSummary) {
	s.Platforms = append(s.Platforms, p)
	s.JobsFound += p.JobsFound
	s.Submitted += p.ApplicationsSubmitted
	s.Errors += p.Errors
}
