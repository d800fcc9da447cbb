package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applyflow-engine/internal/config"
)

func TestSecretAccount(t *testing.T) {
	var cfg config.Config
	cfg.Email.Username = "me@example.com"
	cfg.Email.IMAPHost = "imap.example.com"

	acc, err := secretAccount(cfg, "ai")
	require.NoError(t, err)
	assert.Equal(t, "applyflow:ai:api_key", acc)

	acc, err = secretAccount(cfg, "notion")
	require.NoError(t, err)
	assert.Equal(t, "applyflow:report:notion_token", acc)

	acc, err = secretAccount(cfg, "imap")
	require.NoError(t, err)
	assert.Equal(t, "applyflow:imap:me@example.com@imap.example.com", acc)

	_, err = secretAccount(cfg, "github")
	require.Error(t, err)
}

func TestBuildSources(t *testing.T) {
	var cfg config.Config
	cfg.Platforms = map[string]config.PlatformConfig{
		"linkedin": {Enabled: true, JobsFile: "jobs/linkedin.yml"},
		"indeed":   {Enabled: true}, // no jobs file, skipped
		"angel":    {Enabled: false, JobsFile: "jobs/angel.yml"},
	}

	sources := buildSources(cfg)
	require.Len(t, sources, 1)
	assert.Equal(t, "linkedin", sources[0].Name())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"go", "sql"}, splitList("go, sql"))
	assert.Empty(t, splitList("  ,, "))
}
