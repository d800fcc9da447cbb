// internal/config/config.go
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type PlatformConfig struct {
	Enabled         bool   `yaml:"enabled"`
	MaxApplications int    `yaml:"max_applications"`
	JobsFile        string `yaml:"jobs_file"` // curated postings, see internal/platform
}

type Config struct {
	App struct {
		DataDir            string `yaml:"data_dir"`
		LedgerBackend      string `yaml:"ledger_backend"` // sqlite | csv
		RunIntervalMinutes int    `yaml:"run_interval_minutes"`
		ParallelPlatforms  bool   `yaml:"parallel_platforms"`
		DryRun             bool   `yaml:"dry_run"`
	} `yaml:"app"`

	Platforms map[string]PlatformConfig `yaml:"platforms"`

	Search struct {
		Keywords        []string `yaml:"keywords"`
		Locations       []string `yaml:"locations"`
		ExperienceLevel string   `yaml:"experience_level"`
		RemoteOnly      bool     `yaml:"remote_only"`
		DatePosted      string   `yaml:"date_posted"`
		EasyApplyOnly   bool     `yaml:"easy_apply_only"`
	} `yaml:"search"`

	Email struct {
		Enabled        bool     `yaml:"enabled"`
		IMAPHost       string   `yaml:"imap_host"`
		IMAPPort       int      `yaml:"imap_port"`
		Username       string   `yaml:"username"`
		AppPassword    string   `yaml:"app_password"` // usually empty, pulled from keyring
		Mailbox        string   `yaml:"mailbox"`
		SenderAny      []string `yaml:"sender_any"`
		SubjectAny     []string `yaml:"subject_any"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
		PollSeconds    int      `yaml:"poll_seconds"`
	} `yaml:"email"`

	Application struct {
		StepCap      int               `yaml:"step_cap"`
		PaceSeconds  int               `yaml:"pace_seconds"` // minimum gap between applications
		PersonalInfo map[string]string `yaml:"personal_info"`
		Answers      map[string]string `yaml:"default_answers"` // field keyword -> answer
	} `yaml:"application"`

	AI struct {
		Enabled            bool    `yaml:"enabled"`
		Model              string  `yaml:"model"`
		MaxTokens          int     `yaml:"max_tokens"`
		Temperature        float64 `yaml:"temperature"`
		RelevanceThreshold int     `yaml:"relevance_threshold"`
		ResumeSummary      string  `yaml:"resume_summary"`
		ResumeSkills       string  `yaml:"resume_skills"`
	} `yaml:"ai"`

	Report struct {
		Enabled    bool   `yaml:"enabled"`
		DatabaseID string `yaml:"database_id"` // Notion database the summary lands in
	} `yaml:"report"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}
