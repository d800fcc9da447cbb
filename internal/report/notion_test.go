package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applyflow-engine/internal/domain"
)

func TestBuildRowProperties(t *testing.T) {
	props := buildRowProperties("linkedin", "run-1", domain.AppliedJob{
		Title:          "Backend Engineer",
		Company:        "Acme",
		URL:            "https://example.com/jobs/1",
		RelevanceScore: 8,
		AIEnhanced:     true,
		Status:         domain.StatusApplied,
	})

	require.Contains(t, props, "Position")
	assert.Equal(t, "Backend Engineer", props["Position"].Title[0].Text.Content)
	assert.Equal(t, "Acme", props["Company"].RichText[0].Text.Content)
	assert.Equal(t, "linkedin", props["Platform"].Select.Name)
	assert.Equal(t, "applied", props["Status"].Select.Name)
	assert.Equal(t, float64(8), *props["Relevance"].Number)
	assert.Equal(t, "AI-tailored content", props["Notes"].RichText[0].Text.Content)
	assert.Equal(t, "run-1", props["Run"].RichText[0].Text.Content)
}

func TestBuildRowPropertiesOmitsEmptyFields(t *testing.T) {
	props := buildRowProperties("", "", domain.AppliedJob{Title: "X", Status: domain.StatusError})

	assert.NotContains(t, props, "Company")
	assert.NotContains(t, props, "Platform")
	assert.NotContains(t, props, "Relevance")
	assert.NotContains(t, props, "Notes")
	assert.NotContains(t, props, "Run")
}

func TestSummaryRowProperties(t *testing.T) {
	props := summaryRowProperties(domain.RunSummary{
		RunID:     "run-2",
		StartedAt: time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC),
		JobsFound: 12,
		Submitted: 4,
		Errors:    1,
		Platforms: []domain.PlatformSummary{{Platform: "linkedin"}},
	})

	assert.Equal(t, "Run summary 2026-08-29 10:30", props["Position"].Title[0].Text.Content)
	assert.Equal(t, "summary", props["Status"].Select.Name)
	assert.Equal(t, "12 found, 4 submitted, 1 errors, 1 platforms", props["Notes"].RichText[0].Text.Content)
	assert.Equal(t, "run-2", props["Run"].RichText[0].Text.Content)
}
