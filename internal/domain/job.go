package domain

import "time"

// JobPosting is produced by a platform source and consumed by the
// orchestrator as an opaque handle; JobID is platform-assigned and
// never parsed.
type JobPosting struct {
	JobID       string     `yaml:"job_id" json:"job_id"`
	Platform    string     `yaml:"platform" json:"platform"` // linkedin/wellfound/etc.
	Title       string     `yaml:"title" json:"title"`
	Company     string     `yaml:"company" json:"company"`
	URL         string     `yaml:"url" json:"url"`
	Location    string     `yaml:"location" json:"location"`
	Salary      string     `yaml:"salary" json:"salary"`
	Remote      bool       `yaml:"remote" json:"remote"`
	Description string     `yaml:"description" json:"description"`
	PostedAt    *time.Time `yaml:"posted_at" json:"posted_at"`
}

// SearchCriteria is built once per run from config and handed to platform
// sources. Not persisted.
type SearchCriteria struct {
	Keywords        []string
	Locations       []string
	ExperienceLevel string // entry/mid/senior, empty = any
	RemoteOnly      bool
	DatePosted      string // past-24h/past-week/past-month, empty = any
	EasyApplyOnly   bool
}
